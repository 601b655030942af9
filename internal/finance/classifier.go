// Package finance holds the pure calculators that derive revenue, pay, margins and forecasts
// from already-fetched ledger records.
package finance

import (
	"strings"

	"example.com/gymfinance/internal/domain"
)

// Category is the canonical plan category.
type Category int

const (
	CategoryOther Category = iota
	CategoryMembership
	CategoryPersonalTraining
)

func (c Category) String() string {
	switch c {
	case CategoryMembership:
		return "membership"
	case CategoryPersonalTraining:
		return "personal_training"
	default:
		return "other"
	}
}

// Table returns the plan table that holds plans of this category.
func (c Category) Table() (domain.PlanTable, bool) {
	switch c {
	case CategoryMembership:
		return domain.PlanTableMembership, true
	case CategoryPersonalTraining:
		return domain.PlanTablePT, true
	default:
		return "", false
	}
}

// categoryTags maps every known spelling, legacy and current, after normalizeTag.
var categoryTags = map[string]Category{
	// current
	"membership":        CategoryMembership,
	"personal_training": CategoryPersonalTraining,
	// legacy
	"gym":                    CategoryMembership,
	"gym_membership":         CategoryMembership,
	"general":                CategoryMembership,
	"membership_plan":        CategoryMembership,
	"plan":                   CategoryMembership,
	"pt":                     CategoryPersonalTraining,
	"pt_plan":                CategoryPersonalTraining,
	"personal_trainer":       CategoryPersonalTraining,
	"personaltraining":       CategoryPersonalTraining,
	"trainer":                CategoryPersonalTraining,
	"training":               CategoryPersonalTraining,
	"pt_membership":          CategoryPersonalTraining,
	"personal_training_plan": CategoryPersonalTraining,
}

// Classify maps a raw plan-category tag to its canonical category. The boolean is
// false for absent or unknown tags.
func Classify(rawTag string) (Category, bool) {
	tag := normalizeTag(rawTag)
	if tag == "" {
		return CategoryOther, false
	}
	c, ok := categoryTags[tag]
	return c, ok
}

// ClassifyPayment returns the revenue bucket for a payment. Payments are never
// Other: an unrecognised tag lands in Membership and is reported as unclassified.
func ClassifyPayment(p domain.PaymentRecord) (Category, bool) {
	c, ok := Classify(p.PlanCategory)
	if !ok {
		return CategoryMembership, false
	}
	return c, true
}

func normalizeTag(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	tag = strings.NewReplacer(" ", "_", "-", "_").Replace(tag)
	return tag
}

// PlanResolver resolves plan references for one request from a batch of lookups.
type PlanResolver struct {
	plans map[domain.PlanTable]map[string]domain.PlanSnapshot
}

// NewPlanResolver builds a resolver over the supplied lookup results.
func NewPlanResolver(plans map[domain.PlanTable]map[string]domain.PlanSnapshot) *PlanResolver {
	if plans == nil {
		plans = make(map[domain.PlanTable]map[string]domain.PlanSnapshot)
	}
	return &PlanResolver{plans: plans}
}

// Resolve looks up the plan in the table implied by the category. It returns false
// when the plan has been deleted or the category has no plan table.
func (r *PlanResolver) Resolve(c Category, planID string) (domain.PlanSnapshot, bool) {
	if r == nil || planID == "" {
		return domain.PlanSnapshot{}, false
	}
	table, ok := c.Table()
	if !ok {
		return domain.PlanSnapshot{}, false
	}
	plan, ok := r.plans[table][planID]
	return plan, ok
}

// PlanIDsByTable collects the distinct plan IDs referenced by payments, grouped by table.
func PlanIDsByTable(payments []domain.PaymentRecord) map[domain.PlanTable][]string {
	seen := make(map[domain.PlanTable]map[string]struct{})
	out := make(map[domain.PlanTable][]string)
	for _, p := range payments {
		if p.PlanID == "" {
			continue
		}
		c, _ := ClassifyPayment(p)
		table, ok := c.Table()
		if !ok {
			continue
		}
		if seen[table] == nil {
			seen[table] = make(map[string]struct{})
		}
		if _, dup := seen[table][p.PlanID]; dup {
			continue
		}
		seen[table][p.PlanID] = struct{}{}
		out[table] = append(out[table], p.PlanID)
	}
	return out
}

// Anomalies counts records that were kept in the totals but could not be fully interpreted.
type Anomalies struct {
	UnresolvedPlans      int `json:"unresolved_plans"`
	UnclassifiedPayments int `json:"unclassified_payments"`
}
