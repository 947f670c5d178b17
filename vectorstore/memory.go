package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store using exact cosine similarity. It backs tests
// and single-node deployments; the Qdrant client is the production path.
type Memory struct {
	mu       sync.RWMutex
	docs     []memoryEntry
	embedder Embedder
}

type memoryEntry struct {
	doc    Document
	vector []float32
}

// NewMemory creates an empty in-memory store. Documents must be inserted via
// AddWithVectors; plain Add entries have no vector and never match a search.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWithEmbedder creates an in-memory store that embeds document text
// on Add, mirroring the Qdrant client's behavior.
func NewMemoryWithEmbedder(embedder Embedder) *Memory {
	return &Memory{embedder: embedder}
}

// AddWithVectors inserts documents with precomputed vectors. Lengths must match.
func (m *Memory) AddWithVectors(ctx context.Context, docs []Document, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, d := range docs {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		m.docs = append(m.docs, memoryEntry{doc: d, vector: vectors[i]})
	}
	return nil
}

// Add inserts documents, embedding their text when the store was built with
// an embedder.
func (m *Memory) Add(ctx context.Context, docs []Document) error {
	vectors := make([][]float32, len(docs))
	if m.embedder != nil {
		for i, d := range docs {
			vector, err := m.embedder.Embed(ctx, d.Text)
			if err != nil {
				return err
			}
			vectors[i] = vector
		}
	}
	return m.AddWithVectors(ctx, docs, vectors)
}

// Search returns the TopK entries matching the filter, scored by cosine
// similarity against req.Vector, best first.
func (m *Memory) Search(ctx context.Context, req SearchRequest) ([]ScoredDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ScoredDocument, 0, req.TopK)
	for _, e := range m.docs {
		if e.vector == nil || !matches(e.doc, req.Filter) {
			continue
		}
		score := cosine(req.Vector, e.vector)
		if score < req.MinScore {
			continue
		}
		out = append(out, ScoredDocument{Document: e.doc, Score: score})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if req.TopK > 0 && len(out) > req.TopK {
		out = out[:req.TopK]
	}
	return out, nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func matches(d Document, f Filter) bool {
	if f.TenantID != "" && d.Metadata["tenantId"] != f.TenantID {
		return false
	}
	if f.Type != "" && d.Metadata["type"] != f.Type {
		return false
	}
	if f.Filename != "" && d.Metadata["filename"] != f.Filename && d.Metadata["url"] != f.Filename {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
