package consumer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"example.com/gymfinance/internal/events"
)

// TenantInvalidator drops cached results for a tenant.
type TenantInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string) (int, error)
}

// InvalidationHandler evicts a tenant's cached analytics whenever its ledger changes.
type InvalidationHandler struct {
	cache  TenantInvalidator
	logger *zap.Logger
}

// NewInvalidationHandler constructs the handler.
func NewInvalidationHandler(cache TenantInvalidator, logger *zap.Logger) *InvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvalidationHandler{cache: cache, logger: logger}
}

// Handle implements Handler. Event types that cannot affect results are acknowledged.
func (h *InvalidationHandler) Handle(ctx context.Context, msg Message) error {
	if !events.InvalidatesResults(msg.EventType) {
		h.logger.Debug("ignoring event", zap.String("event_type", msg.EventType))
		return nil
	}

	tenantID := strings.TrimSpace(msg.TenantID)
	if tenantID == "" {
		var payload events.LedgerChanged
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return eris.Wrapf(err, "decode %s payload", msg.EventType)
		}
		tenantID = strings.TrimSpace(payload.TenantID)
	}
	if tenantID == "" {
		return eris.Errorf("%s event without tenant", msg.EventType)
	}

	n, err := h.cache.InvalidateTenant(ctx, tenantID)
	if err != nil {
		return eris.Wrapf(err, "invalidate tenant %s", tenantID)
	}
	recordInvalidated(msg.EventType, n)
	h.logger.Info("cache invalidated",
		zap.String("tenant_id", tenantID),
		zap.String("event_type", msg.EventType),
		zap.Int("entries", n),
	)
	return nil
}
