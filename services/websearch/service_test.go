package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/owlhq/answerplane/config"
)

type stubSearcher struct {
	results []Result
	err     error
	calls   int
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	s.calls++
	return s.results, s.err
}

func TestServiceDisabledReturnsEmpty(t *testing.T) {
	searcher := &stubSearcher{results: []Result{{Text: "hit", URL: "http://x"}}}
	svc := &Service{searcher: searcher, enabled: false, logger: zap.NewNop()}

	assert.Empty(t, svc.Search(context.Background(), "query", 5))
	assert.Zero(t, searcher.calls)
	assert.False(t, svc.Enabled())
}

func TestServiceUnconfiguredBackendReturnsEmpty(t *testing.T) {
	svc := NewService(config.FallbackConfig{Enabled: true, Provider: "serpapi"}, zap.NewNop())

	assert.False(t, svc.Enabled(), "enabled flag without credentials is inert")
	assert.Empty(t, svc.Search(context.Background(), "query", 5))
}

func TestServiceBackendErrorReturnsEmpty(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("search api down")}
	svc := &Service{searcher: searcher, enabled: true, logger: zap.NewNop()}

	assert.Empty(t, svc.Search(context.Background(), "query", 5))
	assert.Equal(t, 1, searcher.calls)
}

func TestServiceBlankQueryReturnsEmpty(t *testing.T) {
	searcher := &stubSearcher{results: []Result{{Text: "hit"}}}
	svc := &Service{searcher: searcher, enabled: true, logger: zap.NewNop()}

	assert.Empty(t, svc.Search(context.Background(), "   ", 5))
	assert.Zero(t, searcher.calls)
}

func TestSerpAPIParsesOrganicResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "capital of france", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Write([]byte(`{
			"organic_results": [
				{"title": "Paris", "snippet": "Paris is the capital of France.", "link": "https://en.wikipedia.org/wiki/Paris"},
				{"title": "France", "snippet": "", "link": "https://example.com/france"},
				{"title": "Extra", "snippet": "dropped by limit", "link": "https://example.com/extra"}
			]
		}`))
	}))
	defer server.Close()

	client := NewSerpAPI("test-key", time.Second)
	client.baseURL = server.URL

	results, err := client.Search(context.Background(), "capital of france", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Paris - Paris is the capital of France.", results[0].Text)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Paris", results[0].URL)
	assert.Equal(t, "France", results[1].Text, "empty snippet keeps title only")
}

func TestSerpAPINon200IsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewSerpAPI("bad-key", time.Second)
	client.baseURL = server.URL

	_, err := client.Search(context.Background(), "query", 5)
	assert.Error(t, err)
}

func TestBingParsesWebPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sub-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		w.Write([]byte(`{
			"webPages": {
				"value": [
					{"name": "Go", "snippet": "Go is a programming language.", "url": "https://go.dev"}
				]
			}
		}`))
	}))
	defer server.Close()

	client := NewBing(server.URL, "sub-key", time.Second)

	results, err := client.Search(context.Background(), "golang", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Go - Go is a programming language.", results[0].Text)
	assert.Equal(t, "https://go.dev", results[0].URL)
}

func TestBingTransportErrorIsError(t *testing.T) {
	client := NewBing("http://127.0.0.1:1", "sub-key", 200*time.Millisecond)

	_, err := client.Search(context.Background(), "query", 5)
	assert.Error(t, err)
}
