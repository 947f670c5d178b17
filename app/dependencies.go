// Package app is the composition root: it wires configuration, stores, and
// services into a ready-to-use answer pipeline.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/lib/pq"

	"github.com/owlhq/answerplane/config"
	"github.com/owlhq/answerplane/services/answer"
	"github.com/owlhq/answerplane/services/cache"
	"github.com/owlhq/answerplane/services/events"
	"github.com/owlhq/answerplane/services/feedback"
	"github.com/owlhq/answerplane/services/guardrails"
	"github.com/owlhq/answerplane/services/history"
	"github.com/owlhq/answerplane/services/ledger"
	"github.com/owlhq/answerplane/services/providers"
	"github.com/owlhq/answerplane/services/retrieval"
	"github.com/owlhq/answerplane/services/router"
	"github.com/owlhq/answerplane/services/tenant"
	"github.com/owlhq/answerplane/services/websearch"
	"github.com/owlhq/answerplane/vectorstore"
)

// Dependencies holds the wired application graph. Answer is the public entry
// point; the rest is exposed for admin surfaces and tests.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	DB    *sql.DB
	Redis *redis.Client

	VectorStore vectorstore.Store
	Embedder    vectorstore.Embedder

	Tenants    *tenant.MemoryStore
	Budget     *ledger.BudgetLedger
	Quota      *ledger.QuotaLedger
	Retrieval  *retrieval.Service
	Semantic   *cache.Semantic
	Prompt     *cache.Prompt
	Preference *cache.Preference
	Guardrails *guardrails.Service
	Router     *router.Service
	Web        *websearch.Service
	History    history.Store
	Events     *events.Publisher
	Feedback   *feedback.Service

	Answer *answer.Service
}

// NewDependencies creates and wires the full service graph.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	ollama := providers.NewOllama(
		cfg.Providers.Ollama.BaseURL,
		cfg.Providers.Ollama.ChatModel,
		cfg.Providers.Ollama.EmbedModel,
		cfg.Providers.Ollama.Timeout)
	deps.Embedder = ollama

	if err := deps.initStores(ctx, cfg); err != nil {
		return nil, err
	}
	deps.initVectorStore(cfg, logger)
	deps.initCaches(cfg, logger)
	deps.initServices(cfg, ollama, logger)

	if err := deps.Events.Start(); err != nil {
		return nil, fmt.Errorf("failed to start event publisher: %w", err)
	}

	logger.Info("dependencies initialized",
		zap.String("vector_backend", cfg.VectorStore.Backend),
		zap.Bool("postgres", deps.DB != nil),
		zap.Bool("redis", deps.Redis != nil))
	return deps, nil
}

func (d *Dependencies) initStores(ctx context.Context, cfg *config.Config) error {
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		d.DB = db
	}

	if cfg.Redis.Addr != "" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	d.Tenants = tenant.NewMemoryStore()

	var ledgerStore ledger.Store
	if d.DB != nil {
		ledgerStore = ledger.NewPostgresStore(d.DB)
		d.History = history.NewPostgresStore(d.DB)
	} else {
		ledgerStore = ledger.NewMemoryStore()
		d.History = history.NewMemoryStore()
	}
	d.Budget = ledger.NewBudgetLedger(ledgerStore, cfg.Cost.BudgetEnabled, d.Logger)
	d.Quota = ledger.NewQuotaLedger(ledgerStore, d.Tenants, d.Logger)

	return nil
}

func (d *Dependencies) initVectorStore(cfg *config.Config, logger *zap.Logger) {
	switch cfg.VectorStore.Backend {
	case "qdrant":
		d.VectorStore = vectorstore.NewQdrant(
			cfg.VectorStore.QdrantURL,
			cfg.VectorStore.Collection,
			d.Embedder,
			cfg.ExternalCallTimeout,
			logger)
	default:
		d.VectorStore = vectorstore.NewMemoryWithEmbedder(d.Embedder)
	}
}

func (d *Dependencies) initCaches(cfg *config.Config, logger *zap.Logger) {
	d.Semantic = cache.NewSemantic(d.VectorStore, d.Embedder, cache.SemanticConfig{
		SimilarityThreshold:     cfg.Cache.SimilarityThreshold,
		MaxAnswerChars:          cfg.Cache.MaxAnswerChars,
		EnableCrossTenantLookup: cfg.Cache.EnableCrossTenantLookup,
	}, logger)
	d.Prompt = cache.NewPrompt(d.Redis, cfg.Cache.PromptTTL, logger)
	d.Preference = cache.NewPreference(d.VectorStore, d.Embedder, cfg.Cache.PreferenceThreshold, logger)
}

func (d *Dependencies) initServices(cfg *config.Config, ollama *providers.Ollama, logger *zap.Logger) {
	var reranker retrieval.Reranker
	if cfg.Retrieval.RerankEnabled {
		reranker = retrieval.NewTokenOverlapReranker()
	}
	d.Retrieval = retrieval.NewService(d.VectorStore, d.Embedder, reranker, logger)

	d.Guardrails = guardrails.NewService(cfg.Guardrails.Enabled, buildClassifier(cfg, ollama, logger), logger)

	d.Router = router.NewService(d.Tenants, cfg.Providers, ollama, logger)
	d.Web = websearch.NewService(cfg.Fallback, logger)

	d.Events = events.NewPublisher(events.LogSink{Logger: logger}, logger, events.Config{
		BufferSize:  cfg.Events.BufferSize,
		WorkerCount: cfg.Events.WorkerCount,
	})

	d.Feedback = feedback.NewService(feedback.NewMemoryStore(), d.History, d.Preference, d.Events, logger)

	d.Answer = answer.NewService(cfg, answer.Services{
		Quota:      d.Quota,
		Budget:     d.Budget,
		Safety:     d.Guardrails,
		Semantic:   d.Semantic,
		Prompt:     d.Prompt,
		Preference: d.Preference,
		Retriever:  d.Retrieval,
		Router:     d.Router,
		Web:        d.Web,
		Settings:   d.Tenants,
		History:    d.History,
		Events:     d.Events,
	}, logger)
}

func buildClassifier(cfg *config.Config, ollama *providers.Ollama, logger *zap.Logger) guardrails.Classifier {
	safetyClient := ollama
	if cfg.Guardrails.Model != "" {
		safetyClient = ollama.WithChatModel(cfg.Guardrails.Model)
	}

	local := guardrails.Chain{
		guardrails.KeywordClassifier{},
		guardrails.NewModelClassifier(safetyClient, defaultSafetyPolicy, logger),
	}
	if cfg.Guardrails.RemoteURL != "" {
		return guardrails.NewRemoteClassifier(cfg.Guardrails.RemoteURL, cfg.ExternalCallTimeout, local, logger)
	}
	return local
}

const defaultSafetyPolicy = "Refuse content that seeks to harm people, facilitate violence or " +
	"weapons, exploit minors, or obtain personal financial identifiers. Everything else is safe."

// Close releases long-lived resources. Safe to call once after the pipeline
// is no longer in use.
func (d *Dependencies) Close() error {
	var firstErr error

	if d.Events != nil {
		if err := d.Events.Stop(10 * time.Second); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
