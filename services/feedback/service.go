// Package feedback records user ratings on answers and promotes well-rated
// answers into preference memory. This package is the only writer of the
// preference namespace.
package feedback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/owlhq/answerplane/models"
	"github.com/owlhq/answerplane/services/cache"
	"github.com/owlhq/answerplane/services/events"
	"github.com/owlhq/answerplane/services/history"
)

// promoteRating is the minimum rating that writes the answer into preference
// memory; an explicit Helpful flag promotes regardless of rating.
const promoteRating = 4

// Store persists feedback records.
type Store interface {
	Save(ctx context.Context, rec *models.FeedbackRecord) error
	ListByChat(ctx context.Context, tenantID, chatID string) ([]models.FeedbackRecord, error)
}

// MemoryStore is an in-process feedback store.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.FeedbackRecord
}

// NewMemoryStore creates an empty in-memory feedback store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, rec *models.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *MemoryStore) ListByChat(ctx context.Context, tenantID, chatID string) ([]models.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FeedbackRecord
	for _, rec := range s.records {
		if rec.TenantID == tenantID && rec.ChatID == chatID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Service is the feedback intake path.
type Service struct {
	store      Store
	chats      history.Store
	preference *cache.Preference
	publisher  *events.Publisher
	logger     *zap.Logger
}

// NewService creates the feedback service. The preference cache and publisher
// may be nil; promotion and telemetry are skipped when they are.
func NewService(store Store, chats history.Store, preference *cache.Preference, publisher *events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		chats:      chats,
		preference: preference,
		publisher:  publisher,
		logger:     logger,
	}
}

// Record stores feedback for a chat record. Rating >= 4 or an explicit
// Helpful flag promotes the answer into preference memory.
func (s *Service) Record(ctx context.Context, rec models.FeedbackRecord) error {
	if rec.TenantID == "" || rec.ChatID == "" {
		return fmt.Errorf("tenant id and chat id are required")
	}
	if rec.Rating < 0 || rec.Rating > 5 {
		return fmt.Errorf("rating must be between 0 and 5, got %d", rec.Rating)
	}

	chat, err := s.chats.GetByID(ctx, rec.TenantID, rec.ChatID)
	if err != nil {
		return fmt.Errorf("failed to load chat record: %w", err)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.store.Save(ctx, &rec); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	promoted := rec.Helpful || rec.Rating >= promoteRating
	if promoted && s.preference != nil {
		s.preference.Save(ctx, rec.TenantID, chat.Question, chat.Answer, chat.Sources, rec.Rating)
	}

	if s.publisher != nil {
		s.publisher.Publish(events.Event{
			Kind:     events.KindFeedback,
			TenantID: rec.TenantID,
			Fields: map[string]any{
				"chat_id":  rec.ChatID,
				"rating":   rec.Rating,
				"helpful":  rec.Helpful,
				"promoted": promoted,
			},
		})
	}

	s.logger.Debug("feedback recorded",
		zap.String("tenant_id", rec.TenantID),
		zap.String("chat_id", rec.ChatID),
		zap.Int("rating", rec.Rating),
		zap.Bool("promoted", promoted))
	return nil
}
