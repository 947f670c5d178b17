package retrieval

import (
	"sort"
	"strings"
	"unicode"

	"github.com/owlhq/answerplane/models"
)

// Reranker reorders retrieval hits using a secondary relevance signal.
type Reranker interface {
	Rerank(query string, hits []models.RetrievalHit) []models.RetrievalHit
}

const (
	vectorWeight  = 0.7
	overlapWeight = 0.3
)

// TokenOverlapReranker combines the original vector score with a token-set
// Jaccard overlap between query and candidate text. Cheap, CPU-only, and
// corrects cases where embeddings alone misrank lexically relevant chunks.
type TokenOverlapReranker struct{}

// NewTokenOverlapReranker creates the default reranker.
func NewTokenOverlapReranker() *TokenOverlapReranker {
	return &TokenOverlapReranker{}
}

// Rerank returns hits sorted by the combined score, best first. Hit scores are
// left untouched; only the order changes.
func (r *TokenOverlapReranker) Rerank(query string, hits []models.RetrievalHit) []models.RetrievalHit {
	if len(hits) <= 1 {
		return hits
	}

	queryTokens := tokenize(query)
	type ranked struct {
		hit      models.RetrievalHit
		combined float64
	}
	out := make([]ranked, len(hits))
	for i, h := range hits {
		jaccard := jaccard(queryTokens, tokenize(h.Text))
		out[i] = ranked{hit: h, combined: vectorWeight*h.Score + overlapWeight*jaccard}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].combined > out[j].combined })

	result := make([]models.RetrievalHit, len(out))
	for i, r := range out {
		result[i] = r.hit
	}
	return result
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	overlap := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(a)+len(b)-overlap)
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		// skip tiny tokens
		if len(f) < 2 {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}
