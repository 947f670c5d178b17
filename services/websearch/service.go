// Package websearch performs the web fallback lookup when the knowledge base
// has no grounding for a question. The search tier is best-effort: any
// transport, auth, or parse failure yields an empty result list, never an
// error that could fail the pipeline.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/owlhq/answerplane/config"
)

// Result is one web hit. Text is "title - snippet" ready for prompt context.
type Result struct {
	Text string
	URL  string
}

// Searcher is one search backend.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Service wraps a Searcher with the enable flag and the soft-fail contract.
type Service struct {
	searcher Searcher
	enabled  bool
	maxCalls int
	logger   *zap.Logger
}

// NewService builds the web search service from config. When fallback is
// disabled or no backend is configured, every search returns empty.
func NewService(cfg config.FallbackConfig, logger *zap.Logger) *Service {
	var searcher Searcher
	switch cfg.Provider {
	case "serpapi":
		if cfg.SerpAPIKey != "" {
			searcher = NewSerpAPI(cfg.SerpAPIKey, 10*time.Second)
		}
	case "bing":
		if cfg.BingKey != "" {
			searcher = NewBing(cfg.BingEndpoint, cfg.BingKey, 10*time.Second)
		}
	}

	return &Service{
		searcher: searcher,
		enabled:  cfg.Enabled,
		maxCalls: cfg.MaxWebCalls,
		logger:   logger,
	}
}

// Enabled reports whether web fallback can run at all.
func (s *Service) Enabled() bool {
	return s.enabled && s.searcher != nil
}

// MaxCalls returns the configured per-request web call cap.
func (s *Service) MaxCalls() int {
	return s.maxCalls
}

// Search runs the query against the backend. Disabled or failing backends
// return an empty slice.
func (s *Service) Search(ctx context.Context, query string, limit int) []Result {
	if !s.Enabled() || strings.TrimSpace(query) == "" {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}

	results, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		s.logger.Warn("web search failed", zap.Error(err))
		return nil
	}
	return results
}

// SerpAPI queries serpapi.com's Google results endpoint.
type SerpAPI struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewSerpAPI creates a SerpApi-backed searcher.
func NewSerpAPI(apiKey string, timeout time.Duration) *SerpAPI {
	return &SerpAPI{
		apiKey:     apiKey,
		baseURL:    "https://serpapi.com/search",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"organic_results"`
}

func (s *SerpAPI) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.apiKey)
	params.Set("num", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi returned status %d", resp.StatusCode)
	}

	var out serpAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode serpapi response: %w", err)
	}

	results := make([]Result, 0, limit)
	for _, r := range out.OrganicResults {
		if len(results) >= limit {
			break
		}
		results = append(results, Result{Text: formatResult(r.Title, r.Snippet), URL: r.Link})
	}
	return results, nil
}

// Bing queries the Bing Web Search v7 API.
type Bing struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewBing creates a Bing-backed searcher.
func NewBing(endpoint, apiKey string, timeout time.Duration) *Bing {
	return &Bing{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			Snippet string `json:"snippet"`
			URL     string `json:"url"`
		} `json:"value"`
	} `json:"webPages"`
}

func (b *Bing) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bing request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bing returned status %d", resp.StatusCode)
	}

	var out bingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode bing response: %w", err)
	}

	results := make([]Result, 0, limit)
	for _, v := range out.WebPages.Value {
		if len(results) >= limit {
			break
		}
		results = append(results, Result{Text: formatResult(v.Name, v.Snippet), URL: v.URL})
	}
	return results, nil
}

func formatResult(title, snippet string) string {
	title = strings.TrimSpace(title)
	snippet = strings.TrimSpace(snippet)
	if snippet == "" {
		return title
	}
	if title == "" {
		return snippet
	}
	return title + " - " + snippet
}
