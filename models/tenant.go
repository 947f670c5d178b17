package models

// Plan describes a subscription tier. Quota checks compare monthly request
// counts against MonthlyRequests + BurstCredits.
type Plan struct {
	Name            string  `json:"name"`
	MonthlyRequests int     `json:"monthly_requests"`
	BurstCredits    int     `json:"burst_credits"`
	PriceUSD        float64 `json:"price_usd"`
	SLA             string  `json:"sla"`
}

// DefaultPlans returns the built-in plan catalog.
func DefaultPlans() []Plan {
	return []Plan{
		{Name: "free", MonthlyRequests: 3000, BurstCredits: 300, PriceUSD: 0.0, SLA: "99.0%"},
		{Name: "pro", MonthlyRequests: 100000, BurstCredits: 5000, PriceUSD: 50.0, SLA: "99.5%"},
		{Name: "enterprise", MonthlyRequests: 1000000, BurstCredits: 20000, PriceUSD: 0.0, SLA: "99.9%"},
	}
}

// TenantSettings holds per-tenant feature toggles and plan assignment.
type TenantSettings struct {
	TenantID          string `json:"tenant_id"`
	Plan              string `json:"plan"`
	FallbackEnabled   bool   `json:"fallback_enabled"`
	GuardrailsEnabled bool   `json:"guardrails_enabled"`
}

// ModelSelection is the resolved model routing for a tenant. Empty fields mean
// "use the provider's default".
type ModelSelection struct {
	Provider   string `json:"provider"`
	ChatModel  string `json:"chat_model"`
	EmbedModel string `json:"embed_model"`
}

// ModelID returns the cache-key identifier for this selection, e.g.
// "ollama:default" or "openai:gpt-4o-mini".
func (s ModelSelection) ModelID() string {
	provider := s.Provider
	if provider == "" {
		provider = "ollama"
	}
	model := s.ChatModel
	if model == "" {
		model = "default"
	}
	return provider + ":" + model
}
