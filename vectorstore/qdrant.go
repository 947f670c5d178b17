package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Qdrant is a Store backed by a Qdrant collection over HTTP. Documents are
// stored with their text under payload "content" and metadata fields under
// payload "metadata", matching the ingestion side's schema.
type Qdrant struct {
	baseURL    string
	collection string
	embedder   Embedder
	httpClient *http.Client
	logger     *zap.Logger
}

// NewQdrant creates a Qdrant-backed store. The embedder is used to vectorize
// document text on Add.
func NewQdrant(baseURL, collection string, embedder Embedder, timeout time.Duration, logger *zap.Logger) *Qdrant {
	return &Qdrant{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Add embeds and upserts documents into the collection.
func (q *Qdrant) Add(ctx context.Context, docs []Document) error {
	points := make([]qdrantPoint, 0, len(docs))
	for _, d := range docs {
		vector, err := q.embedder.Embed(ctx, d.Text)
		if err != nil {
			return fmt.Errorf("failed to embed document: %w", err)
		}
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		metadata := make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			metadata[k] = v
		}
		points = append(points, qdrantPoint{
			ID:     id,
			Vector: vector,
			Payload: map[string]any{
				"content":  d.Text,
				"metadata": metadata,
			},
		})
	}

	body := map[string]any{"points": points}
	if err := q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

type qdrantSearchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Search runs a filtered similarity search. Filters match on the nested
// metadata payload fields.
func (q *Qdrant) Search(ctx context.Context, req SearchRequest) ([]ScoredDocument, error) {
	must := make([]map[string]any, 0, 3)
	if req.Filter.TenantID != "" {
		must = append(must, matchCondition("metadata.tenantId", req.Filter.TenantID))
	}
	if req.Filter.Type != "" {
		must = append(must, matchCondition("metadata.type", req.Filter.Type))
	}
	if req.Filter.Filename != "" {
		must = append(must, map[string]any{
			"should": []map[string]any{
				matchCondition("metadata.filename", req.Filter.Filename),
				matchCondition("metadata.url", req.Filter.Filename),
			},
		})
	}

	body := map[string]any{
		"vector":       req.Vector,
		"limit":        req.TopK,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(must) > 0 {
		body["filter"] = map[string]any{"must": must}
	}
	if req.MinScore > 0 {
		body["score_threshold"] = req.MinScore
	}

	var resp qdrantSearchResponse
	if err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", body, &resp); err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	out := make([]ScoredDocument, 0, len(resp.Result))
	for _, r := range resp.Result {
		doc := Document{Metadata: map[string]string{}}
		if content, ok := r.Payload["content"].(string); ok {
			doc.Text = content
		}
		if md, ok := r.Payload["metadata"].(map[string]any); ok {
			for k, v := range md {
				doc.Metadata[k] = fmt.Sprintf("%v", v)
			}
		}
		out = append(out, ScoredDocument{Document: doc, Score: r.Score})
	}
	return out, nil
}

func matchCondition(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func (q *Qdrant) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := q.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return fmt.Errorf("qdrant returned status %d: %s", httpResp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
