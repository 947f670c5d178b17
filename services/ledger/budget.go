package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/owlhq/answerplane/models"
	"go.uber.org/zap"
)

// BudgetLedger enforces per-tenant monthly spend caps. Enforcement can be
// disabled globally; accounting still runs so spend reports stay accurate.
type BudgetLedger struct {
	store   Store
	enabled bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewBudgetLedger creates a budget ledger on the given store.
func NewBudgetLedger(store Store, enabled bool, logger *zap.Logger) *BudgetLedger {
	return &BudgetLedger{
		store:   store,
		enabled: enabled,
		logger:  logger,
		now:     time.Now,
	}
}

// AllowSpend reports whether spending amountUSD would keep the tenant within
// its monthly cap. A tenant with no configured cap, or a cap of zero or less,
// is unlimited.
func (l *BudgetLedger) AllowSpend(ctx context.Context, tenantID string, amountUSD float64) (bool, error) {
	if !l.enabled {
		return true, nil
	}

	limit, configured, err := l.store.BudgetLimit(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to load budget limit: %w", err)
	}
	if !configured || limit <= 0 {
		return true, nil
	}

	spent, err := l.store.Spend(ctx, tenantID, MonthKey(l.now()))
	if err != nil {
		return false, fmt.Errorf("failed to load spend: %w", err)
	}

	allowed := spent+amountUSD <= limit
	if !allowed {
		l.logger.Warn("budget exceeded",
			zap.String("tenant_id", tenantID),
			zap.Float64("spent_usd", spent),
			zap.Float64("limit_usd", limit),
			zap.Float64("request_usd", amountUSD))
	}
	return allowed, nil
}

// RecordSpend adds amountUSD to the tenant's current-month total. Recording
// happens even when enforcement is disabled.
func (l *BudgetLedger) RecordSpend(ctx context.Context, tenantID string, amountUSD float64) error {
	if amountUSD <= 0 {
		return nil
	}
	if _, err := l.store.AddSpend(ctx, tenantID, MonthKey(l.now()), amountUSD); err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}
	return nil
}

// Snapshot returns the tenant's budget state for the current month.
func (l *BudgetLedger) Snapshot(ctx context.Context, tenantID string) (*models.Budget, error) {
	monthKey := MonthKey(l.now())

	limit, _, err := l.store.BudgetLimit(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load budget limit: %w", err)
	}
	spent, err := l.store.Spend(ctx, tenantID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load spend: %w", err)
	}

	return &models.Budget{
		TenantID:             tenantID,
		MonthlyBudgetUSD:     limit,
		SpentUSDCurrentMonth: spent,
		MonthKey:             monthKey,
	}, nil
}

// SetBudget configures the tenant's monthly cap. Zero or less means
// unlimited.
func (l *BudgetLedger) SetBudget(ctx context.Context, tenantID string, limitUSD float64) error {
	if err := l.store.SetBudgetLimit(ctx, tenantID, limitUSD); err != nil {
		return fmt.Errorf("failed to set budget: %w", err)
	}
	return nil
}
