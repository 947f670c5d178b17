// Package router resolves which chat client serves a tenant's request. The
// public boundary never returns an error: any routing failure falls back to
// the local default client so a misconfigured tenant still gets answers.
package router

import (
	"context"

	"go.uber.org/zap"

	"github.com/owlhq/answerplane/config"
	"github.com/owlhq/answerplane/models"
	"github.com/owlhq/answerplane/services/providers"
)

// RoutingSource supplies the per-tenant model selection.
type RoutingSource interface {
	Routing(ctx context.Context, tenantID string) (models.ModelSelection, error)
}

// Service maps tenants to provider clients.
type Service struct {
	tenants       RoutingSource
	cfg           config.ProvidersConfig
	defaultClient providers.ChatClient
	openai        *providers.OpenAI
	anthropic     *providers.Anthropic
	ollama        *providers.Ollama
	logger        *zap.Logger
}

// NewService creates the router. Remote provider clients are constructed up
// front from config; a provider whose credentials are missing stays nil and
// routes fall back to the default client.
func NewService(tenants RoutingSource, cfg config.ProvidersConfig, defaultClient providers.ChatClient, logger *zap.Logger) *Service {
	s := &Service{
		tenants:       tenants,
		cfg:           cfg,
		defaultClient: defaultClient,
		logger:        logger,
	}

	if ollama, ok := defaultClient.(*providers.Ollama); ok {
		s.ollama = ollama
	}

	if cfg.OpenAI.APIKey != "" {
		client, err := providers.NewOpenAI(providers.OpenAIConfig{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Timeout:    cfg.OpenAI.Timeout,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			logger.Warn("openai client unavailable", zap.Error(err))
		} else {
			s.openai = client
		}
	}

	if cfg.Anthropic.APIKey != "" {
		client, err := providers.NewAnthropic(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
		if err != nil {
			logger.Warn("anthropic client unavailable", zap.Error(err))
		} else {
			s.anthropic = client
		}
	}

	return s
}

// ResolveSelection returns the tenant's configured model selection. Lookup
// failures resolve to the local default.
func (s *Service) ResolveSelection(ctx context.Context, tenantID string) models.ModelSelection {
	sel, err := s.tenants.Routing(ctx, tenantID)
	if err != nil {
		s.logger.Warn("routing lookup failed, using default",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return models.ModelSelection{Provider: "ollama"}
	}
	return sel
}

// ClientFor returns the chat client serving the selection. When a model proxy
// is configured every call goes through it; otherwise the provider name picks
// a direct client. Unknown providers and unconfigured credentials fall back
// to the default client.
func (s *Service) ClientFor(ctx context.Context, tenantID string, sel models.ModelSelection) providers.ChatClient {
	if s.cfg.ProxyURL != "" {
		return NewProxyClient(s.cfg.ProxyURL, tenantID, sel, s.cfg.Ollama.Timeout, s.logger)
	}

	switch sel.Provider {
	case "", "ollama":
		if s.ollama != nil && sel.ChatModel != "" {
			return s.ollama.WithChatModel(sel.ChatModel)
		}
		return s.defaultClient
	case "openai":
		if s.openai == nil {
			s.logger.Warn("openai not configured, using default client",
				zap.String("tenant_id", tenantID))
			return s.defaultClient
		}
		if sel.ChatModel != "" {
			return s.openai.WithModel(sel.ChatModel)
		}
		return s.openai
	case "anthropic":
		if s.anthropic == nil {
			s.logger.Warn("anthropic not configured, using default client",
				zap.String("tenant_id", tenantID))
			return s.defaultClient
		}
		if sel.ChatModel != "" {
			return s.anthropic.WithModel(sel.ChatModel)
		}
		return s.anthropic
	default:
		s.logger.Warn("unknown provider, using default client",
			zap.String("tenant_id", tenantID), zap.String("provider", sel.Provider))
		return s.defaultClient
	}
}
