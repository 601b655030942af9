// Package api exposes HTTP handlers for the finance analytics service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"example.com/gymfinance/internal/analytics"
	"example.com/gymfinance/internal/auth"
	"example.com/gymfinance/internal/domain"
	"example.com/gymfinance/internal/finance"
)

const dateLayout = "2006-01-02"

// FinanceService is the engine surface the handlers depend on.
type FinanceService interface {
	ComputeAdvancedAnalytics(ctx context.Context, tenantID string, req analytics.Request) (*analytics.AdvancedAnalytics, error)
	ComputeCompensation(ctx context.Context, tenantID, staffID string, month time.Month, year int) (*finance.CompensationResult, error)
	PayrollHistory(ctx context.Context, tenantID, staffID string, months int, asOf time.Time) ([]finance.CompensationResult, error)
}

// Handler coordinates HTTP requests with the analytics service.
type Handler struct {
	service FinanceService
	logger  *zap.Logger
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service FinanceService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger, now: time.Now}
}

// RegisterRoutes wires the authenticated finance endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(auth.RequireScope(auth.ScopeAnalyticsRead)).Get("/v1/analytics/advanced", h.advancedAnalytics)
	r.Route("/v1/staff/{staffID}", func(sr chi.Router) {
		sr.Use(auth.RequireScope(auth.ScopePayrollRead))
		sr.Get("/compensation", h.compensation)
		sr.Get("/payroll", h.payroll)
	})
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) advancedAnalytics(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	q := r.URL.Query()
	start, err := parseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "start must be YYYY-MM-DD")
		return
	}
	end, err := parseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "end must be YYYY-MM-DD")
		return
	}

	compare, err := finance.ParseCompareMode(q.Get("compare"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "compare must be previous-period or previous-year")
		return
	}

	forecast := 0
	if raw := q.Get("forecast_months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "forecast_months must be a positive integer")
			return
		}
		forecast = parsed
	}

	result, err := h.service.ComputeAdvancedAnalytics(r.Context(), claims.TenantID, analytics.Request{
		Window:         domain.Window{Start: start, End: end},
		ForecastMonths: forecast,
		Compare:        compare,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) compensation(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	staffID := strings.TrimSpace(chi.URLParam(r, "staffID"))
	month, errMonth := strconv.Atoi(r.URL.Query().Get("month"))
	year, errYear := strconv.Atoi(r.URL.Query().Get("year"))
	if errMonth != nil || errYear != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "month and year are required integers")
		return
	}

	result, err := h.service.ComputeCompensation(r.Context(), claims.TenantID, staffID, time.Month(month), year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) payroll(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	staffID := strings.TrimSpace(chi.URLParam(r, "staffID"))
	months := 0
	if raw := r.URL.Query().Get("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > analytics.MaxPayrollMonths {
			writeError(w, http.StatusBadRequest, "validation_failed", "months must be between 1 and 24")
			return
		}
		months = parsed
	}

	history, err := h.service.PayrollHistory(r.Context(), claims.TenantID, staffID, months, h.now().UTC())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PayrollResponse{StaffID: staffID, Items: history})
}

// PayrollResponse packages a payroll history.
type PayrollResponse struct {
	StaffID string                       `json:"staff_id"`
	Items   []finance.CompensationResult `json:"items"`
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidWindow),
		errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrInvalidHorizon),
		errors.Is(err, domain.ErrInvalidCompareMode):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrStaffNotFound):
		writeError(w, http.StatusNotFound, "not_found", "staff not found")
	case errors.Is(err, domain.ErrDataFetchTimeout), errors.Is(err, domain.ErrDataFetch):
		h.logger.Warn("analytics unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "analytics_unavailable", "could not compute analytics")
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func parseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(raw), time.UTC)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
