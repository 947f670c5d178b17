// Package retrieval provides tenant-scoped vector retrieval with optional
// lexical reranking.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/owlhq/answerplane/models"
	"github.com/owlhq/answerplane/vectorstore"
	"go.uber.org/zap"
)

// Service runs similarity search against the knowledge-base namespace and
// normalizes store-defined ordering into descending-score order.
type Service struct {
	store    vectorstore.Store
	embedder vectorstore.Embedder
	reranker Reranker
	logger   *zap.Logger
}

// NewService creates a retrieval service. The reranker may be nil, in which
// case raw similarity order is kept.
func NewService(store vectorstore.Store, embedder vectorstore.Embedder, reranker Reranker, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		reranker: reranker,
		logger:   logger,
	}
}

// Search returns up to topK knowledge-base hits for the tenant, best first.
// When scopeDocument is non-empty, hits are restricted to that filename/url.
func (s *Service) Search(ctx context.Context, tenantID, query, scopeDocument string, topK int) ([]models.RetrievalHit, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	req := vectorstore.SearchRequest{
		Vector: vector,
		Filter: vectorstore.Filter{
			TenantID: tenantID,
			Type:     models.DocTypeKB,
			Filename: scopeDocument,
		},
		TopK: topK,
	}

	scored, err := s.store.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]models.RetrievalHit, 0, len(scored))
	for _, sd := range scored {
		hits = append(hits, models.RetrievalHit{
			Text:     sd.Document.Text,
			Metadata: toHitMetadata(sd.Document.Metadata),
			Score:    sd.Score,
		})
	}

	// The store's ordering is not part of its contract.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if s.reranker != nil {
		hits = s.reranker.Rerank(query, hits)
	}

	s.logger.Debug("retrieval complete",
		zap.String("tenant_id", tenantID),
		zap.Int("hits", len(hits)))
	return hits, nil
}

// FilterStrong keeps hits with score >= threshold (inclusive), capped to max,
// preserving order.
func FilterStrong(hits []models.RetrievalHit, threshold float64, max int) []models.RetrievalHit {
	strong := make([]models.RetrievalHit, 0, max)
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		strong = append(strong, h)
		if len(strong) == max {
			break
		}
	}
	return strong
}

func toHitMetadata(md map[string]string) models.HitMetadata {
	out := models.HitMetadata{
		TenantID: md["tenantId"],
		Type:     md["type"],
		Filename: md["filename"],
		URL:      md["url"],
	}
	for k, v := range md {
		switch k {
		case "tenantId", "type", "filename", "url":
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]string)
			}
			out.Extra[k] = v
		}
	}
	return out
}
