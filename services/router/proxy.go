package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/owlhq/answerplane/models"
	"github.com/owlhq/answerplane/services/providers"
)

// ProxyClient forwards chat calls to a central model gateway instead of
// talking to providers directly. The gateway owns credentials and per-model
// rate limits.
type ProxyClient struct {
	baseURL    string
	tenantID   string
	selection  models.ModelSelection
	httpClient *http.Client
	logger     *zap.Logger
}

// NewProxyClient creates a proxy client bound to one tenant and selection.
func NewProxyClient(baseURL, tenantID string, sel models.ModelSelection, timeout time.Duration, logger *zap.Logger) *ProxyClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ProxyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenantID:   tenantID,
		selection:  sel,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Name returns the provider name.
func (p *ProxyClient) Name() string { return "proxy" }

type proxyChatRequest struct {
	TenantID string `json:"tenantId"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	System   string `json:"system"`
	User     string `json:"user"`
}

type proxyChatResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// Complete forwards the exchange to POST /v1/chat on the gateway.
func (p *ProxyClient) Complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(proxyChatRequest{
		TenantID: p.tenantID,
		Provider: p.selection.Provider,
		Model:    p.selection.ChatModel,
		System:   system,
		User:     user,
	})
	if err != nil {
		return "", providers.NewProviderError(p.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat", bytes.NewReader(payload))
	if err != nil {
		return "", providers.NewProviderError(p.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", providers.NewProviderError(p.Name(), "TRANSPORT_ERROR", "gateway unreachable", 0, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", providers.NewProviderError(p.Name(), "GATEWAY_ERROR",
			fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			resp.StatusCode, resp.StatusCode >= 500, nil)
	}

	var out proxyChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", providers.NewProviderError(p.Name(), "DECODE_ERROR", "failed to decode gateway response", 0, false, err)
	}
	if out.Error != "" {
		return "", providers.NewProviderError(p.Name(), "GATEWAY_ERROR", out.Error, resp.StatusCode, false, nil)
	}
	return out.Answer, nil
}
