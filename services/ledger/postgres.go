package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists ledger counters in PostgreSQL. Increments are a
// single upsert so concurrent writers never lose updates.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) BudgetLimit(ctx context.Context, tenantID string) (float64, bool, error) {
	query := `SELECT monthly_budget_usd FROM budget_limits WHERE tenant_id = $1`

	var limit float64
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&limit)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query budget limit: %w", err)
	}
	return limit, true, nil
}

func (s *PostgresStore) SetBudgetLimit(ctx context.Context, tenantID string, limitUSD float64) error {
	query := `
		INSERT INTO budget_limits (tenant_id, monthly_budget_usd, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id)
		DO UPDATE SET
			monthly_budget_usd = EXCLUDED.monthly_budget_usd,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, tenantID, limitUSD, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert budget limit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Spend(ctx context.Context, tenantID, monthKey string) (float64, error) {
	query := `SELECT COALESCE(total_usd, 0) FROM spend_ledger WHERE tenant_id = $1 AND month_key = $2`

	var total float64
	err := s.db.QueryRowContext(ctx, query, tenantID, monthKey).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query spend: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) AddSpend(ctx context.Context, tenantID, monthKey string, amountUSD float64) (float64, error) {
	query := `
		INSERT INTO spend_ledger (tenant_id, month_key, total_usd, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, month_key)
		DO UPDATE SET
			total_usd = spend_ledger.total_usd + EXCLUDED.total_usd,
			updated_at = EXCLUDED.updated_at
		RETURNING total_usd
	`

	var total float64
	if err := s.db.QueryRowContext(ctx, query, tenantID, monthKey, amountUSD, time.Now()).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to upsert spend: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) Requests(ctx context.Context, tenantID, monthKey string) (int, error) {
	query := `SELECT COALESCE(requests, 0) FROM request_ledger WHERE tenant_id = $1 AND month_key = $2`

	var count int
	err := s.db.QueryRowContext(ctx, query, tenantID, monthKey).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query request count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) AddRequests(ctx context.Context, tenantID, monthKey string, n int) (int, error) {
	query := `
		INSERT INTO request_ledger (tenant_id, month_key, requests, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, month_key)
		DO UPDATE SET
			requests = request_ledger.requests + EXCLUDED.requests,
			updated_at = EXCLUDED.updated_at
		RETURNING requests
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, tenantID, monthKey, n, time.Now()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to upsert request count: %w", err)
	}
	return count, nil
}
