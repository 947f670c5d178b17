package models

// Budget tracks a tenant's monthly USD spend cap. SpentUSDCurrentMonth resets
// to 0 whenever the wall-clock month advances past MonthKey. A budget of zero
// or less means unlimited.
type Budget struct {
	TenantID             string  `json:"tenant_id"`
	MonthlyBudgetUSD     float64 `json:"monthly_budget_usd"`
	SpentUSDCurrentMonth float64 `json:"spent_usd_current_month"`
	MonthKey             string  `json:"month_key"` // "2006-01"
}

// QuotaCounter tracks a tenant's request count for one calendar month.
type QuotaCounter struct {
	TenantID string `json:"tenant_id"`
	MonthKey string `json:"month_key"`
	Requests int    `json:"requests"`
}
