package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig holds construction parameters for the OpenAI client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// OpenAI is a chat-completions client for the OpenAI API.
type OpenAI struct {
	config     OpenAIConfig
	httpClient *http.Client
}

// NewOpenAI creates an OpenAI client. APIKey is required.
func NewOpenAI(config OpenAIConfig) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, NewProviderError("openai", "MISSING_CREDENTIAL", "api key is required", 0, false, nil)
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenAIBaseURL
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}

	return &OpenAI{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Name returns the provider name.
func (o *OpenAI) Name() string { return "openai" }

// WithModel returns a shallow copy targeting a different chat model.
func (o *OpenAI) WithModel(model string) *OpenAI {
	clone := *o
	clone.config.Model = model
	return &clone
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message openaiMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete performs one chat exchange, retrying transient 5xx failures.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	req := openaiRequest{
		Model: o.config.Model,
		Messages: []openaiMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", NewProviderError(o.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	var httpResp *http.Response
	var lastErr error
	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", NewProviderError(o.Name(), "TIMEOUT", "context cancelled during retry", 0, true, ctx.Err())
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			o.config.BaseURL+"/chat/completions", strings.NewReader(string(payload)))
		if err != nil {
			return "", NewProviderError(o.Name(), "REQUEST_ERROR", "failed to create request", 0, false, err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+o.config.APIKey)

		httpResp, lastErr = o.httpClient.Do(httpReq)
		if lastErr == nil && httpResp.StatusCode < 500 {
			break
		}
		if httpResp != nil {
			httpResp.Body.Close()
		}
	}
	if lastErr != nil {
		return "", NewProviderError(o.Name(), "TRANSPORT_ERROR", "request failed", 0, true, lastErr)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		retryable := httpResp.StatusCode >= 500 || httpResp.StatusCode == http.StatusTooManyRequests
		return "", NewProviderError(o.Name(), "API_ERROR",
			fmt.Sprintf("status %d: %s", httpResp.StatusCode, string(data)),
			httpResp.StatusCode, retryable, nil)
	}

	var resp openaiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", NewProviderError(o.Name(), "DECODE_ERROR", "failed to decode response", 0, false, err)
	}
	if resp.Error != nil {
		return "", NewProviderError(o.Name(), "API_ERROR", resp.Error.Message, httpResp.StatusCode, false, nil)
	}
	if len(resp.Choices) == 0 {
		return "", NewProviderError(o.Name(), "EMPTY_RESPONSE", "no choices returned", 0, false, nil)
	}
	return resp.Choices[0].Message.Content, nil
}
