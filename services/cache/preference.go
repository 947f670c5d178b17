package cache

import (
	"context"
	"strconv"
	"strings"

	"github.com/owlhq/answerplane/models"
	"github.com/owlhq/answerplane/vectorstore"
	"go.uber.org/zap"
)

// Preference is the curated cache tier: answers a user endorsed (rating >= 4
// or marked helpful), kept in a separate type=pref namespace. Same mechanics
// as the semantic cache, higher similarity bar.
type Preference struct {
	store     vectorstore.Store
	embedder  vectorstore.Embedder
	threshold float64
	logger    *zap.Logger
}

// NewPreference creates the preference memory tier.
func NewPreference(store vectorstore.Store, embedder vectorstore.Embedder, threshold float64, logger *zap.Logger) *Preference {
	return &Preference{store: store, embedder: embedder, threshold: threshold, logger: logger}
}

// Lookup returns a previously endorsed answer for a sufficiently similar
// question, or "" on a miss.
func (p *Preference) Lookup(ctx context.Context, tenantID, question string) string {
	vector, err := p.embedder.Embed(ctx, question)
	if err != nil {
		p.logger.Warn("preference embed failed", zap.Error(err))
		return ""
	}

	hits, err := p.store.Search(ctx, vectorstore.SearchRequest{
		Vector:   vector,
		Filter:   vectorstore.Filter{TenantID: tenantID, Type: models.DocTypePref},
		TopK:     1,
		MinScore: p.threshold,
	})
	if err != nil {
		p.logger.Warn("preference lookup failed", zap.Error(err))
		return ""
	}
	if len(hits) == 0 {
		return ""
	}
	return hits[0].Document.Text
}

// Save stores an endorsed answer. The answer is the vectorized content; the
// question, rating, and sources ride in metadata.
func (p *Preference) Save(ctx context.Context, tenantID, question, answer string, sources []string, rating int) {
	if strings.TrimSpace(answer) == "" {
		return
	}
	doc := vectorstore.Document{
		Text: answer,
		Metadata: map[string]string{
			"tenantId": tenantID,
			"type":     models.DocTypePref,
			"question": question,
			"rating":   strconv.Itoa(rating),
			"sources":  strings.Join(sources, ","),
		},
	}
	if err := p.store.Add(ctx, []vectorstore.Document{doc}); err != nil {
		p.logger.Warn("preference save failed", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}
