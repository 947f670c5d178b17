package models

// Well-known values for HitMetadata.Type. The vector store holds knowledge-base
// chunks, cached answers, and preference entries side by side; the type field is
// what keeps the namespaces apart.
const (
	DocTypeKB    = "kb"
	DocTypeCache = "cache"
	DocTypePref  = "pref"
	DocTypeWeb   = "web"
)

// HitMetadata describes where a retrieved chunk came from.
type HitMetadata struct {
	TenantID string `json:"tenant_id"`
	Type     string `json:"type"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`

	// Extra carries store-specific payload fields (cached answers, ratings, hashes).
	Extra map[string]string `json:"extra,omitempty"`
}

// Source returns the citation label for a hit: filename if present, else URL,
// else "doc".
func (m HitMetadata) Source() string {
	if m.Filename != "" {
		return m.Filename
	}
	if m.URL != "" {
		return m.URL
	}
	return "doc"
}

// RetrievalHit is a scored chunk returned by vector search. Score is a
// cosine-similarity-like value in roughly [0,1]; higher is better.
type RetrievalHit struct {
	Text     string      `json:"text"`
	Metadata HitMetadata `json:"metadata"`
	Score    float64     `json:"score"`
}
