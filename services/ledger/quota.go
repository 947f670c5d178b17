package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/owlhq/answerplane/models"
	"go.uber.org/zap"
)

// PlanResolver maps a tenant to its subscription plan.
type PlanResolver interface {
	PlanFor(ctx context.Context, tenantID string) (models.Plan, error)
}

// StaticPlanResolver assigns every tenant the same plan. Used when no tenant
// configuration store is wired.
type StaticPlanResolver struct {
	Plan models.Plan
}

func (r StaticPlanResolver) PlanFor(ctx context.Context, tenantID string) (models.Plan, error) {
	return r.Plan, nil
}

// QuotaLedger enforces per-tenant monthly request quotas. The effective limit
// is plan.MonthlyRequests + plan.BurstCredits; a non-positive limit means
// unlimited.
type QuotaLedger struct {
	store  Store
	plans  PlanResolver
	logger *zap.Logger
	now    func() time.Time
}

// NewQuotaLedger creates a quota ledger on the given store.
func NewQuotaLedger(store Store, plans PlanResolver, logger *zap.Logger) *QuotaLedger {
	return &QuotaLedger{
		store:  store,
		plans:  plans,
		logger: logger,
		now:    time.Now,
	}
}

// AllowRequest reports whether the tenant has quota left this month.
func (l *QuotaLedger) AllowRequest(ctx context.Context, tenantID string) (bool, error) {
	plan, err := l.plans.PlanFor(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve plan: %w", err)
	}

	limit := plan.MonthlyRequests + plan.BurstCredits
	if limit <= 0 {
		return true, nil
	}

	used, err := l.store.Requests(ctx, tenantID, MonthKey(l.now()))
	if err != nil {
		return false, fmt.Errorf("failed to load request count: %w", err)
	}

	allowed := used < limit
	if !allowed {
		l.logger.Warn("quota exceeded",
			zap.String("tenant_id", tenantID),
			zap.String("plan", plan.Name),
			zap.Int("used", used),
			zap.Int("limit", limit))
	}
	return allowed, nil
}

// RecordRequest counts one request attempt against the tenant's quota.
// Attempts are counted regardless of how the request terminates.
func (l *QuotaLedger) RecordRequest(ctx context.Context, tenantID string) error {
	if _, err := l.store.AddRequests(ctx, tenantID, MonthKey(l.now()), 1); err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	return nil
}

// Usage returns the tenant's request counter for the current month.
func (l *QuotaLedger) Usage(ctx context.Context, tenantID string) (*models.QuotaCounter, error) {
	monthKey := MonthKey(l.now())
	used, err := l.store.Requests(ctx, tenantID, monthKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load request count: %w", err)
	}
	return &models.QuotaCounter{
		TenantID: tenantID,
		MonthKey: monthKey,
		Requests: used,
	}, nil
}
