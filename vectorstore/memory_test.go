package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addDoc(t *testing.T, m *Memory, tenant, typ, filename, text string, vec []float32) {
	t.Helper()
	md := map[string]string{"tenantId": tenant, "type": typ}
	if filename != "" {
		md["filename"] = filename
	}
	err := m.AddWithVectors(context.Background(), []Document{{Text: text, Metadata: md}}, [][]float32{vec})
	require.NoError(t, err)
}

func TestMemory_TenantIsolation(t *testing.T) {
	m := NewMemory()
	// Tenant B's document is a perfect match for the query vector; it must
	// still never surface for tenant A.
	addDoc(t, m, "tenant-a", "kb", "a.pdf", "alpha", []float32{0.2, 0.9, 0.1})
	addDoc(t, m, "tenant-b", "kb", "b.pdf", "beta", []float32{1, 0, 0})

	hits, err := m.Search(context.Background(), SearchRequest{
		Vector: []float32{1, 0, 0},
		Filter: Filter{TenantID: "tenant-a", Type: "kb"},
		TopK:   10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "tenant-a", hits[0].Document.Metadata["tenantId"])
}

func TestMemory_TypeNamespaces(t *testing.T) {
	m := NewMemory()
	addDoc(t, m, "t1", "kb", "", "knowledge", []float32{1, 0})
	addDoc(t, m, "t1", "cache", "", "cached question", []float32{1, 0})

	hits, err := m.Search(context.Background(), SearchRequest{
		Vector: []float32{1, 0},
		Filter: Filter{TenantID: "t1", Type: "cache"},
		TopK:   10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "cached question", hits[0].Document.Text)
}

func TestMemory_FilenameFilterMatchesURL(t *testing.T) {
	m := NewMemory()
	md := map[string]string{"tenantId": "t1", "type": "kb", "url": "https://example.com/doc"}
	require.NoError(t, m.AddWithVectors(context.Background(),
		[]Document{{Text: "web doc", Metadata: md}}, [][]float32{{1, 0}}))

	hits, err := m.Search(context.Background(), SearchRequest{
		Vector: []float32{1, 0},
		Filter: Filter{TenantID: "t1", Filename: "https://example.com/doc"},
		TopK:   1,
	})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestMemory_OrderingAndTopK(t *testing.T) {
	m := NewMemory()
	addDoc(t, m, "t1", "kb", "low.pdf", "low", []float32{0.2, 0.9})
	addDoc(t, m, "t1", "kb", "high.pdf", "high", []float32{1, 0})
	addDoc(t, m, "t1", "kb", "mid.pdf", "mid", []float32{0.8, 0.4})

	hits, err := m.Search(context.Background(), SearchRequest{
		Vector: []float32{1, 0},
		Filter: Filter{TenantID: "t1"},
		TopK:   2,
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "high", hits[0].Document.Text)
	assert.Equal(t, "mid", hits[1].Document.Text)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMemory_MinScore(t *testing.T) {
	m := NewMemory()
	addDoc(t, m, "t1", "kb", "", "orthogonal", []float32{0, 1})

	hits, err := m.Search(context.Background(), SearchRequest{
		Vector:   []float32{1, 0},
		Filter:   Filter{TenantID: "t1"},
		TopK:     5,
		MinScore: 0.5,
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine(nil, []float32{1}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}
