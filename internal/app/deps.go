package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"doc-chunker/internal/cache"
	"doc-chunker/internal/chunker"
	"doc-chunker/internal/config"
	"doc-chunker/internal/llm"
	"doc-chunker/internal/logger"
	"doc-chunker/internal/oracle"
	"doc-chunker/internal/queue"
	"doc-chunker/internal/store"
	"doc-chunker/internal/tokens"
)

// Deps bundles common runtime dependencies for services and the CLI.
// Store and Queue are nil when built with BuildLocal.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	Store     store.Store
	Queue     queue.Queue
	Cache     cache.Cache
	Oracle    oracle.Oracle
	Estimator tokens.Estimator
	Chunker   *chunker.Chunker
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() (config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	return config.Load(), nil
}

// Build loads env, config, and shared components for the networked services.
func Build() (Deps, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return Deps{}, err
	}
	deps, err := BuildLocal(cfg)
	if err != nil {
		return Deps{}, err
	}

	st, err := buildStore(cfg, deps.Log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	q, err := buildQueue(cfg, deps.Log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	deps.Store = st
	deps.Queue = q
	return deps, nil
}

// BuildLocal builds everything the chunking core needs from cfg, without
// a database or a queue.
func BuildLocal(cfg config.Config) (Deps, error) {
	if err := cfg.Validate(); err != nil {
		return Deps{}, err
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	c, err := buildCache(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	orc, err := buildOracle(cfg, c, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize oracle: %w", err)
	}
	est, err := tokens.New(cfg.TokenProfile)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize token estimator: %w", err)
	}
	ch, err := chunker.New(est, orc, log, ChunkerOptions(cfg))
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize chunker: %w", err)
	}
	return Deps{
		Config:    cfg,
		Log:       log,
		Cache:     c,
		Oracle:    orc,
		Estimator: est,
		Chunker:   ch,
	}, nil
}

// ChunkerOptions maps configuration onto chunker options.
func ChunkerOptions(cfg config.Config) chunker.Options {
	return chunker.Options{
		MaxTokens:     cfg.MaxTokenLength,
		WindowTokens:  cfg.WindowTokens,
		ContextTokens: cfg.KNearestTokens,
		Candidates:    cfg.CutCandidates,
	}
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid option: postgres)", cfg.StoreProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid option: nats)", cfg.QueueProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("using Redis cache", "addr", cfg.RedisAddr)
		return c, nil
	case "none", "":
		log.Debug("oracle cache disabled")
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: redis, none)", cfg.CacheProvider)
	}
}

func buildOracle(cfg config.Config, c cache.Cache, log *slog.Logger) (oracle.Oracle, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.LLMBaseURL, openai.ChatModel(cfg.LLMModel))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI cut oracle", "model", cfg.LLMModel)
		return oracle.NewLLM(client, c, log, oracle.Options{
			Model:    cfg.LLMModel,
			Timeout:  cfg.OracleTimeout,
			Retries:  cfg.OracleRetries,
			CacheTTL: cfg.CacheTTL,
		}), nil
	case "none":
		log.Info("no cut oracle configured; oversized sections use forced cuts")
		return oracle.None, nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: openai, none)", cfg.LLMProvider)
	}
}
