package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/owlhq/answerplane/models"
	"github.com/owlhq/answerplane/services/cache"
	"github.com/owlhq/answerplane/services/events"
	"github.com/owlhq/answerplane/services/history"
	"github.com/owlhq/answerplane/vectorstore"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	// Deterministic unit vector per text so identical texts always match.
	var a, b float32
	for i, r := range text {
		if i%2 == 0 {
			a += float32(r)
		} else {
			b += float32(r)
		}
	}
	norm := a*a + b*b
	if norm == 0 {
		return []float32{1, 0}, nil
	}
	return []float32{a, b}, nil
}

func setup(t *testing.T) (*Service, *MemoryStore, *cache.Preference, *history.MemoryStore) {
	t.Helper()
	logger := zap.NewNop()
	embedder := stubEmbedder{}
	vs := vectorstore.NewMemoryWithEmbedder(embedder)
	pref := cache.NewPreference(vs, embedder, 0.92, logger)
	chats := history.NewMemoryStore()
	store := NewMemoryStore()
	return NewService(store, chats, pref, nil, logger), store, pref, chats
}

func TestRecordStoresFeedback(t *testing.T) {
	ctx := context.Background()
	svc, store, _, chats := setup(t)

	chatID, err := chats.Save(ctx, &models.ChatRecord{TenantID: "acme", Question: "q", Answer: "a"})
	require.NoError(t, err)

	require.NoError(t, svc.Record(ctx, models.FeedbackRecord{
		TenantID: "acme",
		ChatID:   chatID,
		Rating:   3,
	}))

	recs, err := store.ListByChat(ctx, "acme", chatID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0].Rating)
	assert.False(t, recs[0].CreatedAt.IsZero())
}

func TestRecordPromotesHighRatingToPreference(t *testing.T) {
	ctx := context.Background()
	svc, _, pref, chats := setup(t)

	question := "how do I reset my password"
	chatID, err := chats.Save(ctx, &models.ChatRecord{
		TenantID: "acme",
		Question: question,
		Answer:   "Use the self-service portal.",
		Sources:  []string{"it-handbook.pdf"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Record(ctx, models.FeedbackRecord{
		TenantID: "acme",
		ChatID:   chatID,
		Rating:   5,
	}))

	assert.Equal(t, "Use the self-service portal.", pref.Lookup(ctx, "acme", question))
}

func TestRecordLowRatingNotPromoted(t *testing.T) {
	ctx := context.Background()
	svc, _, pref, chats := setup(t)

	question := "what is the travel policy"
	chatID, err := chats.Save(ctx, &models.ChatRecord{
		TenantID: "acme",
		Question: question,
		Answer:   "See the finance wiki.",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Record(ctx, models.FeedbackRecord{
		TenantID: "acme",
		ChatID:   chatID,
		Rating:   2,
	}))

	assert.Empty(t, pref.Lookup(ctx, "acme", question))
}

func TestRecordHelpfulFlagPromotesRegardlessOfRating(t *testing.T) {
	ctx := context.Background()
	svc, _, pref, chats := setup(t)

	question := "where is the office"
	chatID, err := chats.Save(ctx, &models.ChatRecord{
		TenantID: "acme",
		Question: question,
		Answer:   "12 Main St.",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Record(ctx, models.FeedbackRecord{
		TenantID: "acme",
		ChatID:   chatID,
		Rating:   1,
		Helpful:  true,
	}))

	assert.Equal(t, "12 Main St.", pref.Lookup(ctx, "acme", question))
}

func TestRecordUnknownChatFails(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := setup(t)

	err := svc.Record(ctx, models.FeedbackRecord{TenantID: "acme", ChatID: "ghost", Rating: 5})
	assert.ErrorIs(t, err, history.ErrNotFound)
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := setup(t)

	assert.Error(t, svc.Record(ctx, models.FeedbackRecord{ChatID: "x", Rating: 5}), "missing tenant")
	assert.Error(t, svc.Record(ctx, models.FeedbackRecord{TenantID: "acme", Rating: 5}), "missing chat id")
	assert.Error(t, svc.Record(ctx, models.FeedbackRecord{TenantID: "acme", ChatID: "x", Rating: 9}), "rating out of range")
}

func TestRecordEmitsFeedbackEvent(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	embedder := stubEmbedder{}
	vs := vectorstore.NewMemoryWithEmbedder(embedder)
	pref := cache.NewPreference(vs, embedder, 0.92, logger)
	chats := history.NewMemoryStore()

	sink := &recordingSink{}
	pub := events.NewPublisher(sink, logger, events.Config{BufferSize: 4, WorkerCount: 1})
	require.NoError(t, pub.Start())

	svc := NewService(NewMemoryStore(), chats, pref, pub, logger)

	chatID, err := chats.Save(ctx, &models.ChatRecord{TenantID: "acme", Question: "q", Answer: "a"})
	require.NoError(t, err)
	require.NoError(t, svc.Record(ctx, models.FeedbackRecord{TenantID: "acme", ChatID: chatID, Rating: 5}))
	require.NoError(t, pub.Stop(time.Second))

	require.Len(t, sink.events, 1)
	assert.Equal(t, events.KindFeedback, sink.events[0].Kind)
	assert.Equal(t, true, sink.events[0].Fields["promoted"])
}

type recordingSink struct {
	events []events.Event
}

func (s *recordingSink) Deliver(ctx context.Context, ev events.Event) error {
	s.events = append(s.events, ev)
	return nil
}
