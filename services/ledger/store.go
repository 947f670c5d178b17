// Package ledger tracks per-tenant monthly spend and request counts. Both
// ledgers key their counters by (tenant, month) so a new calendar month starts
// from zero without an explicit reset step.
package ledger

import (
	"context"
	"time"
)

// Store is the persistence boundary shared by the budget and quota ledgers.
// Increment operations must be atomic: concurrent callers observe a total that
// equals the sum of their individual amounts.
type Store interface {
	// BudgetLimit returns the configured monthly cap for a tenant. The bool
	// reports whether a cap was ever configured.
	BudgetLimit(ctx context.Context, tenantID string) (float64, bool, error)
	SetBudgetLimit(ctx context.Context, tenantID string, limitUSD float64) error

	Spend(ctx context.Context, tenantID, monthKey string) (float64, error)
	AddSpend(ctx context.Context, tenantID, monthKey string, amountUSD float64) (float64, error)

	Requests(ctx context.Context, tenantID, monthKey string) (int, error)
	AddRequests(ctx context.Context, tenantID, monthKey string, n int) (int, error)
}

// MonthKey formats a timestamp as the calendar-month bucket key, e.g.
// "2025-09".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
