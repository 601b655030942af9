package auth

// Scopes accepted by the finance API.
const (
	ScopeAnalyticsRead = "analytics:read"
	ScopePayrollRead   = "payroll:read"
)
