package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Config holds runtime configuration for the CLI and the services.
type Config struct {
	// Server
	Port      int    `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760" validate:"min=1"` // 10MB in bytes

	// Batch directories
	InputDir  string `env:"INPUT_DIR" envDefault:"./input"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"./chunks"`

	// Chunking
	MaxTokenLength int    `env:"MAX_TOKEN_LENGTH" envDefault:"100000" validate:"min=1"`
	WindowTokens   int    `env:"WINDOW_TOKENS" validate:"min=0"` // 0 means MAX_TOKEN_LENGTH
	KNearestTokens int    `env:"K_NEAREST_TOKENS" envDefault:"50" validate:"min=1"`
	CutCandidates  int    `env:"CUT_CANDIDATES" envDefault:"3" validate:"min=1,max=3"`
	TokenProfile   string `env:"TOKEN_PROFILE" envDefault:"cl100k_base" validate:"oneof=cl100k_base o200k_base words"`
	ChunkWorkers   int    `env:"CHUNK_WORKERS" envDefault:"4" validate:"min=1"`

	// Oracle
	LLMProvider   string        `env:"LLM_PROVIDER" envDefault:"openai"` // "openai" or "none" (forced cuts only)
	OpenAIKey     string        `env:"OPENAI_API_KEY"`
	LLMBaseURL    string        `env:"LLM_BASE_URL" validate:"omitempty,url"` // any OpenAI-compatible endpoint
	LLMModel      string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	OracleTimeout time.Duration `env:"ORACLE_TIMEOUT" envDefault:"120s"`
	OracleRetries int           `env:"ORACLE_RETRIES" envDefault:"1" validate:"min=0,max=5"`

	// Cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"none"` // "redis" or "none"
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"168h"`

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"` // "postgres" (production database)
	DBURL         string `env:"DB_URL"`

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"nats"` // "nats" (required for inter-service communication)
	QueueURL      string `env:"QUEUE_URL"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}

// Validate checks value ranges. Provider names are checked where the
// providers are built.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
