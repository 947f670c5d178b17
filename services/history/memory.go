package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/owlhq/answerplane/models"
)

// MemoryStore is an in-process Store for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.ChatRecord
}

// NewMemoryStore creates an empty in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.ChatRecord)}
}

func (s *MemoryStore) Save(ctx context.Context, rec *models.ChatRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = *rec
	return rec.ID, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, tenantID, id string) (*models.ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || rec.TenantID != tenantID {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
