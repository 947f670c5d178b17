package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama is the local default provider. It implements both ChatClient (via
// /api/chat) and vectorstore.Embedder (via /api/embeddings), so a stack with
// no hosted credentials still answers and embeds.
type Ollama struct {
	baseURL    string
	chatModel  string
	embedModel string
	httpClient *http.Client
}

// NewOllama creates an Ollama client.
func NewOllama(baseURL, chatModel, embedModel string, timeout time.Duration) *Ollama {
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		chatModel:  chatModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (o *Ollama) Name() string { return "ollama" }

// WithChatModel returns a copy using the given chat model. Empty keeps the
// configured default.
func (o *Ollama) WithChatModel(model string) *Ollama {
	if model == "" {
		return o
	}
	clone := *o
	clone.chatModel = model
	return &clone
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

// Complete performs one chat exchange.
func (o *Ollama) Complete(ctx context.Context, system, user string) (string, error) {
	req := ollamaChatRequest{
		Model: o.chatModel,
		Messages: []ollamaMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var resp ollamaChatResponse
	if err := o.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text, implementing
// vectorstore.Embedder.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	req := ollamaEmbedRequest{Model: o.embedModel, Prompt: text}
	var resp ollamaEmbedResponse
	if err := o.post(ctx, "/api/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, NewProviderError(o.Name(), "EMPTY_EMBEDDING", "empty embedding returned", 0, false, nil)
	}
	return resp.Embedding, nil
}

func (o *Ollama) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return NewProviderError(o.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return NewProviderError(o.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return NewProviderError(o.Name(), "TRANSPORT_ERROR", "request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		retryable := httpResp.StatusCode >= 500
		return NewProviderError(o.Name(), "API_ERROR",
			fmt.Sprintf("status %d: %s", httpResp.StatusCode, string(data)),
			httpResp.StatusCode, retryable, nil)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return NewProviderError(o.Name(), "DECODE_ERROR", "failed to decode response", 0, false, err)
	}
	return nil
}
