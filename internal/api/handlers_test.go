package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/gymfinance/internal/analytics"
	"example.com/gymfinance/internal/auth"
	"example.com/gymfinance/internal/domain"
	"example.com/gymfinance/internal/finance"
)

var authConfig = auth.Config{Secret: "test-secret", Issuer: "i5e.identity"}

type stubService struct {
	analyticsReq    analytics.Request
	analyticsTenant string
	analyticsErr    error

	compStaff string
	compMonth time.Month
	compYear  int
	compErr   error

	payrollMonths int
	payrollAsOf   time.Time
}

func (s *stubService) ComputeAdvancedAnalytics(_ context.Context, tenantID string, req analytics.Request) (*analytics.AdvancedAnalytics, error) {
	s.analyticsTenant = tenantID
	s.analyticsReq = req
	if s.analyticsErr != nil {
		return nil, s.analyticsErr
	}
	return &analytics.AdvancedAnalytics{
		Start:            req.Window.Start.Format(dateLayout),
		End:              req.Window.End.Format(dateLayout),
		RevenueBreakdown: finance.RevenueBreakdown{Total: decimal.NewFromInt(7000)},
	}, nil
}

func (s *stubService) ComputeCompensation(_ context.Context, _ string, staffID string, month time.Month, year int) (*finance.CompensationResult, error) {
	s.compStaff, s.compMonth, s.compYear = staffID, month, year
	if s.compErr != nil {
		return nil, s.compErr
	}
	return &finance.CompensationResult{StaffID: staffID, Month: month, Year: year, TotalPayable: decimal.NewFromInt(2700)}, nil
}

func (s *stubService) PayrollHistory(_ context.Context, _ string, staffID string, months int, asOf time.Time) ([]finance.CompensationResult, error) {
	s.payrollMonths, s.payrollAsOf = months, asOf
	return []finance.CompensationResult{{StaffID: staffID, Month: asOf.Month(), Year: asOf.Year()}}, nil
}

func newTestRouter(t *testing.T, svc FinanceService) (http.Handler, *Handler) {
	t.Helper()
	h := NewHandler(svc, zaptest.NewLogger(t))
	h.now = func() time.Time { return time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC) }
	return NewRouter(RouterConfig{}, auth.NewMiddleware(authConfig), h, zaptest.NewLogger(t)), h
}

func token(t *testing.T, scopes ...string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       "manager-1",
		"tenant_id": "gym-1",
		"iss":       authConfig.Issuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"scopes":    scopes,
	}).SignedString([]byte(authConfig.Secret))
	require.NoError(t, err)
	return signed
}

func do(t *testing.T, h http.Handler, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestAdvancedAnalyticsSuccess(t *testing.T) {
	svc := &stubService{}
	router, _ := newTestRouter(t, svc)

	rr := do(t, router, "/v1/analytics/advanced?start=2025-03-01&end=2025-04-01&compare=previous-year&forecast_months=3", token(t, auth.ScopeAnalyticsRead))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	require.Equal(t, "gym-1", svc.analyticsTenant)
	require.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), svc.analyticsReq.Window.Start)
	require.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), svc.analyticsReq.Window.End)
	require.Equal(t, finance.ComparePreviousYear, svc.analyticsReq.Compare)
	require.Equal(t, 3, svc.analyticsReq.ForecastMonths)

	var resp analytics.AdvancedAnalytics
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.RevenueBreakdown.Total.Equal(decimal.NewFromInt(7000)))
}

func TestAdvancedAnalyticsValidation(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{})
	bearer := token(t, auth.ScopeAnalyticsRead)

	for _, path := range []string{
		"/v1/analytics/advanced?end=2025-04-01",
		"/v1/analytics/advanced?start=03/01/2025&end=2025-04-01",
		"/v1/analytics/advanced?start=2025-03-01&end=2025-04-01&compare=last-week",
		"/v1/analytics/advanced?start=2025-03-01&end=2025-04-01&forecast_months=-1",
	} {
		rr := do(t, router, path, bearer)
		require.Equal(t, http.StatusBadRequest, rr.Code, path)
		require.Equal(t, "validation_failed", decodeError(t, rr)["type"])
	}
}

func TestAdvancedAnalyticsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{eris.Wrap(domain.ErrDataFetchTimeout, "fetch"), http.StatusServiceUnavailable, "analytics_unavailable"},
		{eris.Wrap(domain.ErrDataFetch, "fetch"), http.StatusServiceUnavailable, "analytics_unavailable"},
		{domain.ErrInvalidWindow, http.StatusBadRequest, "validation_failed"},
		{eris.New("boom"), http.StatusInternalServerError, "server_error"},
	}
	for _, tc := range cases {
		router, _ := newTestRouter(t, &stubService{analyticsErr: tc.err})
		rr := do(t, router, "/v1/analytics/advanced?start=2025-03-01&end=2025-04-01", token(t, auth.ScopeAnalyticsRead))
		require.Equal(t, tc.status, rr.Code)
		body := decodeError(t, rr)
		require.Equal(t, tc.kind, body["type"])
		if tc.status == http.StatusServiceUnavailable {
			require.Equal(t, "could not compute analytics", body["detail"])
		}
	}
}

func TestAdvancedAnalyticsRequiresScope(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{})

	rr := do(t, router, "/v1/analytics/advanced?start=2025-03-01&end=2025-04-01", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, router, "/v1/analytics/advanced?start=2025-03-01&end=2025-04-01", token(t, auth.ScopePayrollRead))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCompensationEndpoint(t *testing.T) {
	svc := &stubService{}
	router, _ := newTestRouter(t, svc)
	bearer := token(t, auth.ScopePayrollRead)

	rr := do(t, router, "/v1/staff/S1/compensation?month=6&year=2025", bearer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "S1", svc.compStaff)
	require.Equal(t, time.June, svc.compMonth)
	require.Equal(t, 2025, svc.compYear)

	rr = do(t, router, "/v1/staff/S1/compensation?month=june&year=2025", bearer)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	svc.compErr = eris.Wrap(domain.ErrStaffNotFound, "fetch staff")
	rr = do(t, router, "/v1/staff/S9/compensation?month=6&year=2025", bearer)
	require.Equal(t, http.StatusNotFound, rr.Code)

	svc.compErr = eris.Wrap(domain.ErrInvalidPeriod, "month 13")
	rr = do(t, router, "/v1/staff/S1/compensation?month=13&year=2025", bearer)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPayrollEndpoint(t *testing.T) {
	svc := &stubService{}
	router, _ := newTestRouter(t, svc)
	bearer := token(t, auth.ScopePayrollRead)

	rr := do(t, router, "/v1/staff/S1/payroll", bearer)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Zero(t, svc.payrollMonths)
	require.Equal(t, time.June, svc.payrollAsOf.Month())

	var resp PayrollResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "S1", resp.StaffID)
	require.Len(t, resp.Items, 1)

	rr = do(t, router, "/v1/staff/S1/payroll?months=25", bearer)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, "/v1/staff/S1/payroll?months=12", bearer)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 12, svc.payrollMonths)
}

func TestHealthzIsPublic(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{})
	rr := do(t, router, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}
