package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllama_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "the answer"},
		})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.1", "nomic-embed-text", time.Second)
	out, err := o.Complete(context.Background(), "be brief", "what is up")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

func TestOllama_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.1", "nomic-embed-text", time.Second)
	vec, err := o.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestOllama_EmbedEmptyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{})
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.1", "nomic-embed-text", time.Second)
	_, err := o.Embed(context.Background(), "hello")
	require.Error(t, err)
}

func TestOllama_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOllama(srv.URL, "llama3.1", "nomic-embed-text", time.Second)
	_, err := o.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	require.Error(t, err)
	provErr, ok := err.(*ProviderError)
	require.True(t, ok)
	assert.Equal(t, "MISSING_CREDENTIAL", provErr.Code)
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "hi there"}},
			},
		})
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	out, err := o.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestOpenAI_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "recovered"}},
			},
		})
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		Timeout:    time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	out, err := o.Complete(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAI_NonRetryable4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	o, err := NewOpenAI(OpenAIConfig{APIKey: "sk-bad", BaseURL: srv.URL, Timeout: time.Second, MaxRetries: 3})
	require.NoError(t, err)
	_, err = o.Complete(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewAnthropic_RequiresKey(t *testing.T) {
	_, err := NewAnthropic("", "", 0)
	require.Error(t, err)
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewProviderError("openai", "TIMEOUT", "deadline", 0, true, cause)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "openai")
}
