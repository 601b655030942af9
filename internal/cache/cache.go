// Package cache stores copies of computed analytics so repeated reads skip the ledger fan-out.
package cache

import (
	"context"
	"fmt"
	"strings"
)

const keyPrefix = "gymfinance"

// Cache is a tenant-partitioned read-through store for computed results.
type Cache interface {
	// Get decodes the value stored under key into dest. It reports false on a miss.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	// InvalidateTenant removes every entry for the tenant and returns how many were dropped.
	InvalidateTenant(ctx context.Context, tenantID string) (int, error)
}

// Key builds "gymfinance:{tenant}:{kind}:{params...}".
func Key(tenantID, kind string, params ...string) string {
	parts := append([]string{keyPrefix, tenantID, kind}, params...)
	return strings.Join(parts, ":")
}

func tenantPattern(tenantID string) string {
	return fmt.Sprintf("%s:%s:*", keyPrefix, tenantID)
}

// NoopCache never stores anything.
type NoopCache struct{}

// Get always misses.
func (NoopCache) Get(context.Context, string, any) (bool, error) { return false, nil }

// Set discards the value.
func (NoopCache) Set(context.Context, string, any) error { return nil }

// InvalidateTenant performs no action.
func (NoopCache) InvalidateTenant(context.Context, string) (int, error) { return 0, nil }
