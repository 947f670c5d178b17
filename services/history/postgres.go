package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/owlhq/answerplane/models"
)

// PostgresStore persists chat records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed history store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, rec *models.ChatRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO chat_records (id, tenant_id, question, answer, cache_hit, sources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.TenantID, rec.Question, rec.Answer, rec.CacheHit, pq.Array(rec.Sources), rec.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert chat record: %w", err)
	}
	return rec.ID, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, tenantID, id string) (*models.ChatRecord, error) {
	query := `
		SELECT id, tenant_id, question, answer, cache_hit, sources, created_at
		FROM chat_records
		WHERE id = $1 AND tenant_id = $2
	`

	var rec models.ChatRecord
	var sources pq.StringArray
	err := s.db.QueryRowContext(ctx, query, id, tenantID).Scan(
		&rec.ID, &rec.TenantID, &rec.Question, &rec.Answer, &rec.CacheHit, &sources, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chat record: %w", err)
	}
	rec.Sources = []string(sources)
	return &rec, nil
}
