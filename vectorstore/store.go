// Package vectorstore abstracts the similarity search backend shared by
// knowledge retrieval, the semantic answer cache, and preference memory.
package vectorstore

import "context"

// Document is a single entry in the store. Text is what gets embedded;
// Metadata carries the namespace (tenantId, type) and payload fields.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Filter restricts a search to matching metadata. Empty fields are ignored.
type Filter struct {
	TenantID string
	Type     string
	Filename string
}

// SearchRequest describes one similarity search.
type SearchRequest struct {
	Vector   []float32
	Filter   Filter
	TopK     int
	MinScore float64
}

// ScoredDocument pairs a document with its similarity score.
type ScoredDocument struct {
	Document Document
	Score    float64
}

// Store is the similarity search backend. Implementations must apply the
// filter before scoring; cross-tenant leakage is a correctness bug, not a
// ranking problem.
type Store interface {
	Add(ctx context.Context, docs []Document) error
	Search(ctx context.Context, req SearchRequest) ([]ScoredDocument, error)
}

// Embedder turns text into a vector suitable for Store searches.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
