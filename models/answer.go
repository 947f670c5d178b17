package models

// SafetyTag labels the terminal outcome of an answer request.
type SafetyTag string

const (
	SafetySafe   SafetyTag = "SAFE"
	SafetyRefuse SafetyTag = "REFUSE"
)

// FallbackPolicy controls optional web fallback for a single request.
type FallbackPolicy struct {
	Enabled     bool    `json:"enabled"`
	BudgetUSD   float64 `json:"budget_usd,omitempty"`
	MaxWebCalls int     `json:"max_web_calls,omitempty"`
}

// AnswerRequest is the immutable input to the answer pipeline.
type AnswerRequest struct {
	TenantID      string          `json:"tenant_id" validate:"required"`
	Question      string          `json:"question" validate:"required"`
	AllowWeb      bool            `json:"allow_web,omitempty"`
	ScopeDocument string          `json:"scope_document,omitempty"`
	Fallback      *FallbackPolicy `json:"fallback,omitempty"`
}

// AnswerResponse is produced exactly once per request.
type AnswerResponse struct {
	Answer   string    `json:"answer"`
	Sources  []string  `json:"sources"`
	RecordID string    `json:"record_id"`
	Safety   SafetyTag `json:"safety"`
}
