package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete pipeline configuration
type Config struct {
	Retrieval   RetrievalConfig
	Cache       CacheConfig
	Guardrails  GuardrailsConfig
	Cost        CostConfig
	Fallback    FallbackConfig
	Providers   ProvidersConfig
	VectorStore VectorStoreConfig
	Redis       RedisConfig
	Database    DatabaseConfig
	Events      EventsConfig

	// ExternalCallTimeout bounds every outbound call (vector store, model,
	// classifier, web search). Expiry surfaces as a TIMEOUT pipeline error.
	ExternalCallTimeout time.Duration

	Environment string
}

// RetrievalConfig holds vector retrieval and reranking tunables
type RetrievalConfig struct {
	TopK           int
	KeepTop        int
	ScoreThreshold float64
	RerankEnabled  bool
}

// CacheConfig holds the three cache tiers' tunables
type CacheConfig struct {
	SimilarityThreshold     float64
	PreferenceThreshold     float64
	MaxAnswerChars          int
	PromptTTL               time.Duration
	EnableCrossTenantLookup bool
}

// GuardrailsConfig holds safety classification configuration
type GuardrailsConfig struct {
	Enabled   bool
	Model     string // e.g. "ollama:llama-guard"; empty uses the tenant's chat model
	RemoteURL string // remote classification endpoint; empty disables
}

// CostConfig holds budget enforcement configuration
type CostConfig struct {
	BudgetEnabled      bool
	DefaultBudgetUSD   float64
	EstimatePerCallUSD float64
}

// FallbackConfig holds web search fallback configuration
type FallbackConfig struct {
	Enabled      bool
	Provider     string // serpapi|bing
	SerpAPIKey   string
	BingKey      string
	BingEndpoint string
	MaxWebCalls  int
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	Ollama    OllamaConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	ProxyURL  string // when set, chat calls are forwarded to the model gateway
}

// OllamaConfig holds the local (default) provider configuration
type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
	Timeout    time.Duration
}

// OpenAIConfig holds OpenAI provider configuration
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// AnthropicConfig holds Anthropic provider configuration
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// VectorStoreConfig holds the vector search backend configuration.
// Backend "memory" keeps everything in process; "qdrant" talks HTTP.
type VectorStoreConfig struct {
	Backend    string
	QdrantURL  string
	Collection string
}

// RedisConfig holds the prompt cache backend configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig holds PostgreSQL configuration for history and ledger stores.
// When DSN is empty the in-memory stores are used instead.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// EventsConfig holds the async event publisher configuration
type EventsConfig struct {
	BufferSize  int
	WorkerCount int
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present; ignore errors when absent.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Retrieval: RetrievalConfig{
			TopK:           getEnvAsInt("RETRIEVAL_TOP_K", 8),
			KeepTop:        getEnvAsInt("RETRIEVAL_KEEP_TOP", 5),
			ScoreThreshold: getEnvAsFloat("RETRIEVAL_SCORE_THRESHOLD", 0.45),
			RerankEnabled:  getEnvAsBool("RERANK_ENABLED", true),
		},
		Cache: CacheConfig{
			SimilarityThreshold:     getEnvAsFloat("CACHE_SIMILARITY_THRESHOLD", 0.90),
			PreferenceThreshold:     getEnvAsFloat("PREFERENCE_SIMILARITY_THRESHOLD", 0.92),
			MaxAnswerChars:          getEnvAsInt("CACHE_MAX_ANSWER_CHARS", 4000),
			PromptTTL:               getEnvAsDuration("PROMPT_CACHE_TTL", 7*24*time.Hour),
			EnableCrossTenantLookup: getEnvAsBool("CACHE_ENABLE_CROSS_TENANT", false),
		},
		Guardrails: GuardrailsConfig{
			Enabled:   getEnvAsBool("GUARDRAILS_ENABLED", false),
			Model:     getEnv("SAFETY_MODEL", ""),
			RemoteURL: getEnv("SAFETY_REMOTE_URL", ""),
		},
		Cost: CostConfig{
			BudgetEnabled:      getEnvAsBool("BUDGET_ENABLED", false),
			DefaultBudgetUSD:   getEnvAsFloat("BUDGET_DEFAULT_USD", 0),
			EstimatePerCallUSD: getEnvAsFloat("COST_ESTIMATE_PER_CALL_USD", 0.0005),
		},
		Fallback: FallbackConfig{
			Enabled:      getEnvAsBool("FALLBACK_ENABLED", false),
			Provider:     getEnv("FALLBACK_PROVIDER", "serpapi"),
			SerpAPIKey:   getEnv("FALLBACK_SERPAPI_KEY", ""),
			BingKey:      getEnv("FALLBACK_BING_KEY", ""),
			BingEndpoint: getEnv("FALLBACK_BING_ENDPOINT", "https://api.bing.microsoft.com/v7.0/search"),
			MaxWebCalls:  getEnvAsInt("FALLBACK_MAX_WEB_CALLS", 2),
		},
		Providers: ProvidersConfig{
			Ollama: OllamaConfig{
				BaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
				ChatModel:  getEnv("OLLAMA_CHAT_MODEL", "llama3.1"),
				EmbedModel: getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
				Timeout:    getEnvAsDuration("OLLAMA_TIMEOUT", 60*time.Second),
			},
			OpenAI: OpenAIConfig{
				APIKey:     getEnv("OPENAI_API_KEY", ""),
				BaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Timeout:    getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries: getEnvAsInt("OPENAI_MAX_RETRIES", 3),
			},
			Anthropic: AnthropicConfig{
				APIKey:    getEnv("ANTHROPIC_API_KEY", ""),
				Model:     getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
				MaxTokens: getEnvAsInt("ANTHROPIC_MAX_TOKENS", 1024),
			},
			ProxyURL: getEnv("MODEL_PROXY_URL", ""),
		},
		VectorStore: VectorStoreConfig{
			Backend:    getEnv("VECTOR_BACKEND", "memory"),
			QdrantURL:  getEnv("QDRANT_URL", "http://localhost:6333"),
			Collection: getEnv("QDRANT_COLLECTION", "owl_kb"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Events: EventsConfig{
			BufferSize:  getEnvAsInt("EVENTS_BUFFER_SIZE", 1024),
			WorkerCount: getEnvAsInt("EVENTS_WORKER_COUNT", 2),
		},
		ExternalCallTimeout: getEnvAsDuration("EXTERNAL_CALL_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval top-k must be positive")
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval score threshold must be in [0,1]")
	}
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache similarity threshold must be in [0,1]")
	}
	switch c.VectorStore.Backend {
	case "memory", "qdrant":
	default:
		return fmt.Errorf("unknown vector backend %q", c.VectorStore.Backend)
	}
	if c.ExternalCallTimeout <= 0 {
		return fmt.Errorf("external call timeout must be positive")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
