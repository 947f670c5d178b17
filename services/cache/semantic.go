// Package cache implements the three answer cache tiers: the semantic answer
// cache, the exact prompt cache, and preference memory. Each tier is
// independent; absence or failure of one degrades to a miss, never an error.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/owlhq/answerplane/models"
	"github.com/owlhq/answerplane/vectorstore"
	"go.uber.org/zap"
)

// SemanticConfig holds semantic cache tunables.
type SemanticConfig struct {
	SimilarityThreshold     float64
	MaxAnswerChars          int
	EnableCrossTenantLookup bool
}

// Semantic is the fuzzy answer cache. Questions are embedded and matched by
// similarity under type=cache within the tenant's namespace.
type Semantic struct {
	store    vectorstore.Store
	embedder vectorstore.Embedder
	config   SemanticConfig
	logger   *zap.Logger
}

// NewSemantic creates the semantic cache tier.
func NewSemantic(store vectorstore.Store, embedder vectorstore.Embedder, config SemanticConfig, logger *zap.Logger) *Semantic {
	return &Semantic{store: store, embedder: embedder, config: config, logger: logger}
}

// Lookup returns the cached answer for a sufficiently similar question, or ""
// on a miss. Failures degrade to a miss.
func (s *Semantic) Lookup(ctx context.Context, tenantID, question string) string {
	normalized := NormalizeQuestion(question)

	if answer := s.lookup(ctx, vectorstore.Filter{TenantID: tenantID, Type: models.DocTypeCache}, normalized); answer != "" {
		return answer
	}
	if s.config.EnableCrossTenantLookup {
		return s.lookup(ctx, vectorstore.Filter{Type: models.DocTypeCache}, normalized)
	}
	return ""
}

// Save stores an answer under the tenant's cache namespace. Blank answers are
// dropped; long answers are truncated to MaxAnswerChars.
func (s *Semantic) Save(ctx context.Context, tenantID, question, answer string) {
	if strings.TrimSpace(answer) == "" {
		return
	}

	normalized := NormalizeQuestion(question)
	if len(answer) > s.config.MaxAnswerChars {
		answer = answer[:s.config.MaxAnswerChars]
	}

	doc := vectorstore.Document{
		// The question is the vectorized content; the answer rides in metadata.
		Text: question,
		Metadata: map[string]string{
			"type":               models.DocTypeCache,
			"tenantId":           tenantID,
			"normalizedQuestion": normalized,
			"qHash":              QuestionHash(tenantID, normalized),
			"cachedAnswer":       answer,
			"createdAt":          time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := s.store.Add(ctx, []vectorstore.Document{doc}); err != nil {
		s.logger.Warn("semantic cache save failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func (s *Semantic) lookup(ctx context.Context, filter vectorstore.Filter, normalizedQuestion string) string {
	vector, err := s.embedder.Embed(ctx, normalizedQuestion)
	if err != nil {
		s.logger.Warn("semantic cache embed failed", zap.Error(err))
		return ""
	}

	hits, err := s.store.Search(ctx, vectorstore.SearchRequest{
		Vector:   vector,
		Filter:   filter,
		TopK:     1,
		MinScore: s.config.SimilarityThreshold,
	})
	if err != nil {
		s.logger.Warn("semantic cache lookup failed", zap.Error(err))
		return ""
	}
	if len(hits) == 0 {
		return ""
	}
	return hits[0].Document.Metadata["cachedAnswer"]
}

var (
	// Keep URL-ish characters so cached questions about paths and links still
	// normalize to something matchable.
	punctPattern = regexp.MustCompile(`[^\p{L}\p{N}\s/.:]+`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeQuestion lowercases, strips punctuation except / . :, and collapses
// whitespace.
func NormalizeQuestion(s string) string {
	s = strings.ToLower(s)
	s = punctPattern.ReplaceAllString(s, " ")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// QuestionHash returns the hex sha256 of tenant + "::" + normalized question.
func QuestionHash(tenantID, normalizedQuestion string) string {
	sum := sha256.Sum256([]byte(tenantID + "::" + normalizedQuestion))
	return hex.EncodeToString(sum[:])
}
