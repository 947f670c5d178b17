package ledger

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node deployments.
// A single mutex guards all three maps; increments are read-modify-write under
// the lock.
type MemoryStore struct {
	mu       sync.Mutex
	limits   map[string]float64
	spend    map[string]float64
	requests map[string]int
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		limits:   make(map[string]float64),
		spend:    make(map[string]float64),
		requests: make(map[string]int),
	}
}

func (s *MemoryStore) BudgetLimit(ctx context.Context, tenantID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit, ok := s.limits[tenantID]
	return limit, ok, nil
}

func (s *MemoryStore) SetBudgetLimit(ctx context.Context, tenantID string, limitUSD float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[tenantID] = limitUSD
	return nil
}

func (s *MemoryStore) Spend(ctx context.Context, tenantID, monthKey string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spend[tenantID+"|"+monthKey], nil
}

func (s *MemoryStore) AddSpend(ctx context.Context, tenantID, monthKey string, amountUSD float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "|" + monthKey
	s.spend[key] += amountUSD
	return s.spend[key], nil
}

func (s *MemoryStore) Requests(ctx context.Context, tenantID, monthKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[tenantID+"|"+monthKey], nil
}

func (s *MemoryStore) AddRequests(ctx context.Context, tenantID, monthKey string, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tenantID + "|" + monthKey
	s.requests[key] += n
	return s.requests[key], nil
}
