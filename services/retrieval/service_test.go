package retrieval

import (
	"context"
	"testing"

	"github.com/owlhq/answerplane/models"
	"github.com/owlhq/answerplane/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, nil
}

type stubStore struct {
	results    []vectorstore.ScoredDocument
	lastFilter vectorstore.Filter
}

func (s *stubStore) Add(ctx context.Context, docs []vectorstore.Document) error { return nil }

func (s *stubStore) Search(ctx context.Context, req vectorstore.SearchRequest) ([]vectorstore.ScoredDocument, error) {
	s.lastFilter = req.Filter
	return s.results, nil
}

func doc(tenant, filename, text string) vectorstore.Document {
	return vectorstore.Document{
		Text:     text,
		Metadata: map[string]string{"tenantId": tenant, "type": "kb", "filename": filename},
	}
}

func TestSearch_SortsDescendingRegardlessOfStoreOrder(t *testing.T) {
	store := &stubStore{results: []vectorstore.ScoredDocument{
		{Document: doc("t1", "mid.pdf", "mid"), Score: 0.5},
		{Document: doc("t1", "high.pdf", "high"), Score: 0.9},
		{Document: doc("t1", "low.pdf", "low"), Score: 0.2},
	}}
	svc := NewService(store, stubEmbedder{vec: []float32{1}}, nil, zap.NewNop())

	hits, err := svc.Search(context.Background(), "t1", "query", "", 8)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "high", hits[0].Text)
	assert.Equal(t, "mid", hits[1].Text)
	assert.Equal(t, "low", hits[2].Text)
}

func TestSearch_ScopesFilterToTenantAndDocument(t *testing.T) {
	store := &stubStore{}
	svc := NewService(store, stubEmbedder{vec: []float32{1}}, nil, zap.NewNop())

	_, err := svc.Search(context.Background(), "t1", "query", "guide.pdf", 8)
	require.NoError(t, err)
	assert.Equal(t, "t1", store.lastFilter.TenantID)
	assert.Equal(t, models.DocTypeKB, store.lastFilter.Type)
	assert.Equal(t, "guide.pdf", store.lastFilter.Filename)
}

func TestFilterStrong_ThresholdBoundary(t *testing.T) {
	hits := []models.RetrievalHit{
		{Text: "at", Score: 0.45},
		{Text: "below", Score: 0.4499999},
		{Text: "above", Score: 0.46},
	}

	strong := FilterStrong(hits, 0.45, 5)
	require.Len(t, strong, 2)
	// Score exactly at the threshold is included; strictly below is excluded.
	assert.Equal(t, "at", strong[0].Text)
	assert.Equal(t, "above", strong[1].Text)
}

func TestFilterStrong_Cap(t *testing.T) {
	hits := make([]models.RetrievalHit, 8)
	for i := range hits {
		hits[i] = models.RetrievalHit{Score: 0.9}
	}
	assert.Len(t, FilterStrong(hits, 0.45, 5), 5)
}

func TestRerank_PrefersLexicalOverlap(t *testing.T) {
	r := NewTokenOverlapReranker()
	hits := []models.RetrievalHit{
		{Text: "completely unrelated content about cooking pasta", Score: 0.80},
		{Text: "resetting your password requires the admin console", Score: 0.78},
	}

	out := r.Rerank("how do I reset my password", hits)
	require.Len(t, out, 2)
	// 0.7*0.78 + overlap beats 0.7*0.80 + ~0 overlap.
	assert.Equal(t, "resetting your password requires the admin console", out[0].Text)
}

func TestRerank_SingleHitUntouched(t *testing.T) {
	r := NewTokenOverlapReranker()
	hits := []models.RetrievalHit{{Text: "only", Score: 0.5}}
	assert.Equal(t, hits, r.Rerank("query", hits))
}

func TestRerank_CombinedScoreMath(t *testing.T) {
	q := tokenize("alpha beta gamma")
	d := tokenize("alpha beta delta")
	// overlap 2, union 4
	assert.InDelta(t, 0.5, jaccard(q, d), 1e-9)
}

func TestTokenize_DropsTinyTokens(t *testing.T) {
	toks := tokenize("a I am ok, fine!")
	_, hasA := toks["a"]
	assert.False(t, hasA)
	_, hasOK := toks["ok"]
	assert.True(t, hasOK)
	_, hasFine := toks["fine"]
	assert.True(t, hasFine)
}
