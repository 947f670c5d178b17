// Package tenant holds per-tenant configuration: plan assignment, feature
// toggles, and model routing. Reads vastly outnumber writes; unknown tenants
// get defaults rather than errors so a new tenant works without onboarding.
package tenant

import (
	"context"
	"fmt"
	"sync"

	"github.com/owlhq/answerplane/models"
)

// DefaultPlanName is assigned to tenants with no explicit plan.
const DefaultPlanName = "free"

// Store is the tenant configuration boundary.
type Store interface {
	Settings(ctx context.Context, tenantID string) (models.TenantSettings, error)
	SetPlan(ctx context.Context, tenantID, plan string) error
	SetFallbackEnabled(ctx context.Context, tenantID string, enabled bool) error
	SetGuardrailsEnabled(ctx context.Context, tenantID string, enabled bool) error
	Routing(ctx context.Context, tenantID string) (models.ModelSelection, error)
	SetRouting(ctx context.Context, tenantID string, sel models.ModelSelection) error
}

// MemoryStore is an in-process Store with get-or-create defaults.
type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]models.TenantSettings
	routing  map[string]models.ModelSelection
	plans    map[string]models.Plan
}

// NewMemoryStore creates a store seeded with the built-in plan catalog.
func NewMemoryStore() *MemoryStore {
	plans := make(map[string]models.Plan)
	for _, p := range models.DefaultPlans() {
		plans[p.Name] = p
	}
	return &MemoryStore{
		settings: make(map[string]models.TenantSettings),
		routing:  make(map[string]models.ModelSelection),
		plans:    plans,
	}
}

func defaultSettings(tenantID string) models.TenantSettings {
	return models.TenantSettings{
		TenantID:          tenantID,
		Plan:              DefaultPlanName,
		FallbackEnabled:   false,
		GuardrailsEnabled: true,
	}
}

// Settings returns the tenant's settings, creating defaults on first access.
func (s *MemoryStore) Settings(ctx context.Context, tenantID string) (models.TenantSettings, error) {
	s.mu.RLock()
	settings, ok := s.settings[tenantID]
	s.mu.RUnlock()
	if ok {
		return settings, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if settings, ok = s.settings[tenantID]; ok {
		return settings, nil
	}
	settings = defaultSettings(tenantID)
	s.settings[tenantID] = settings
	return settings, nil
}

// SetPlan assigns a plan by name. The plan must exist in the catalog.
func (s *MemoryStore) SetPlan(ctx context.Context, tenantID, plan string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[plan]; !ok {
		return fmt.Errorf("unknown plan %q", plan)
	}
	settings, ok := s.settings[tenantID]
	if !ok {
		settings = defaultSettings(tenantID)
	}
	settings.Plan = plan
	s.settings[tenantID] = settings
	return nil
}

func (s *MemoryStore) SetFallbackEnabled(ctx context.Context, tenantID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, ok := s.settings[tenantID]
	if !ok {
		settings = defaultSettings(tenantID)
	}
	settings.FallbackEnabled = enabled
	s.settings[tenantID] = settings
	return nil
}

func (s *MemoryStore) SetGuardrailsEnabled(ctx context.Context, tenantID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, ok := s.settings[tenantID]
	if !ok {
		settings = defaultSettings(tenantID)
	}
	settings.GuardrailsEnabled = enabled
	s.settings[tenantID] = settings
	return nil
}

// Routing returns the tenant's model routing. An unconfigured tenant routes to
// the local default provider.
func (s *MemoryStore) Routing(ctx context.Context, tenantID string) (models.ModelSelection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sel, ok := s.routing[tenantID]; ok {
		return sel, nil
	}
	return models.ModelSelection{Provider: "ollama"}, nil
}

func (s *MemoryStore) SetRouting(ctx context.Context, tenantID string, sel models.ModelSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routing[tenantID] = sel
	return nil
}

// PlanFor resolves the tenant's plan from its settings. Unknown plan names
// fall back to the default plan.
func (s *MemoryStore) PlanFor(ctx context.Context, tenantID string) (models.Plan, error) {
	settings, err := s.Settings(ctx, tenantID)
	if err != nil {
		return models.Plan{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if plan, ok := s.plans[settings.Plan]; ok {
		return plan, nil
	}
	return s.plans[DefaultPlanName], nil
}
