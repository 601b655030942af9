package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gymfinance",
		Subsystem: "analytics",
		Name:      "fetch_duration_seconds",
		Help:      "Wall time of the concurrent ledger fetch for one computation.",
		Buckets:   prometheus.DefBuckets,
	})

	fetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymfinance",
		Subsystem: "analytics",
		Name:      "fetch_failures_total",
		Help:      "Ledger fetches that failed, grouped by reason.",
	}, []string{"reason"})

	unresolvedPlans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymfinance",
		Subsystem: "analytics",
		Name:      "unresolved_plan_references_total",
		Help:      "Payments whose plan reference could not be resolved, grouped by plan table.",
	}, []string{"table"})

	computations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymfinance",
		Subsystem: "analytics",
		Name:      "computations_total",
		Help:      "Completed computations grouped by operation.",
	}, []string{"operation"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gymfinance",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Result cache lookups grouped by kind and outcome.",
	}, []string{"kind", "outcome"})

	lastComputedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gymfinance",
		Subsystem: "analytics",
		Name:      "last_computed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed computation.",
	})
)

// Fetch failure reasons.
const (
	FetchReasonTimeout = "timeout"
	FetchReasonError   = "error"
)

func init() {
	prometheus.MustRegister(fetchDuration, fetchFailures, unresolvedPlans, computations, cacheLookups, lastComputedGauge)
}

// ObserveFetch records how long a fan-out took.
func ObserveFetch(d time.Duration) {
	fetchDuration.Observe(d.Seconds())
}

// RecordFetchFailure counts a failed fan-out.
func RecordFetchFailure(reason string) {
	fetchFailures.WithLabelValues(reason).Inc()
}

// RecordUnresolvedPlans adds n unresolved plan references for table.
func RecordUnresolvedPlans(table string, n int) {
	if n <= 0 {
		return
	}
	unresolvedPlans.WithLabelValues(table).Add(float64(n))
}

// RecordComputation counts a completed operation and moves the watermark.
func RecordComputation(operation string, ts time.Time) {
	computations.WithLabelValues(operation).Inc()
	if ts.IsZero() {
		return
	}
	lastComputedGauge.Set(float64(ts.Unix()))
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(kind string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookups.WithLabelValues(kind, outcome).Inc()
}
