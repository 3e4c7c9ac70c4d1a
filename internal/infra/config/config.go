package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP  HTTPConfig  `yaml:"http"`
	LLM   LLMConfig   `yaml:"llm"`
	Auth  AuthConfig  `yaml:"auth"`
	RAG   RAGConfig   `yaml:"rag"`
	Quota QuotaConfig `yaml:"quota"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains provider credentials shared by answering, rewriting,
// and embedding.
// TODO: split per-capability models once a second provider needs a
// different one than the answering model.
type LLMConfig struct {
	Provider       string  `yaml:"provider"` // "chatgpt", "anthropic", or "echo"
	APIKey         string  `yaml:"apiKey"`
	BaseURL        string  `yaml:"baseUrl"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embeddingModel"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int64   `yaml:"maxTokens"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret       string         `yaml:"jwtSecret"`
	AccessTokenTTL  time.Duration  `yaml:"accessTokenTtl"`
	RefreshTokenTTL time.Duration  `yaml:"refreshTokenTtl"`
	Postgres        PostgresConfig `yaml:"postgres"`
}

// RAGConfig controls the workspace ingestion and retrieval/answering
// pipelines, generalizing the teacher's UploadAskConfig.
type RAGConfig struct {
	VectorDim       int    `yaml:"vectorDim"`
	MaxFileMB       int    `yaml:"maxFileMb"`
	MaxRetrieved    int    `yaml:"maxRetrieved"`
	MaxContextChars int    `yaml:"maxContextChars"`
	PromptVersion   string `yaml:"promptVersion"`
	PromptLanguage  string `yaml:"promptLanguage"`
	PresignTTL      time.Duration `yaml:"presignTtl"`

	EnableHybridSearch bool `yaml:"enableHybridSearch"`
	HybridRRFK         int  `yaml:"hybridRrfK"`

	EnableRewriter    bool `yaml:"enableRewriter"`
	RewriteMinHistory int  `yaml:"rewriteMinHistory"`

	EnableReranker bool   `yaml:"enableReranker"`
	RerankMode     string `yaml:"rerankMode"` // "disabled", "heuristic", "llm"
	RerankTopK     int    `yaml:"rerankTopK"`

	InjectionFilterMode      string  `yaml:"injectionFilterMode"` // "off", "exclude", "downrank"
	InjectionFilterThreshold float64 `yaml:"injectionFilterThreshold"`

	Storage  RAGStorageConfig `yaml:"storage"`
	Redis    RedisConfig      `yaml:"redis"`
	Postgres PostgresConfig   `yaml:"postgres"`
	Worker   RAGWorkerConfig  `yaml:"worker"`
}

// RAGStorageConfig configures object storage for uploaded documents.
type RAGStorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// RAGWorkerConfig toggles background document processing.
type RAGWorkerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// QuotaConfig bounds per-scope resource consumption for the answering
// pipeline.
type QuotaConfig struct {
	MessagesPerHour int64 `yaml:"messagesPerHour"`
}

// RedisConfig contains connection information for cache storage.
type RedisConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_READ_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_WRITE_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = parsed
		}
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.LLM.MaxTokens = parsed
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("AUTH_ACCESS_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.AccessTokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_REFRESH_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.RefreshTokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_POSTGRES_DSN"); v != "" {
		cfg.Auth.Postgres.DSN = v
	}
	if v := os.Getenv("AUTH_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Auth.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("AUTH_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Auth.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("RAG_VECTOR_DIM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.VectorDim = parsed
		}
	}
	if v := os.Getenv("RAG_MAX_FILE_MB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.MaxFileMB = parsed
		}
	}
	if v := os.Getenv("RAG_MAX_RETRIEVED"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.MaxRetrieved = parsed
		}
	}
	if v := os.Getenv("RAG_MAX_CONTEXT_CHARS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.MaxContextChars = parsed
		}
	}
	if v := os.Getenv("RAG_PROMPT_VERSION"); v != "" {
		cfg.RAG.PromptVersion = v
	}
	if v := os.Getenv("RAG_PROMPT_LANGUAGE"); v != "" {
		cfg.RAG.PromptLanguage = v
	}
	if v := os.Getenv("RAG_PRESIGN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.RAG.PresignTTL = parsed
		}
	}
	if v := os.Getenv("RAG_ENABLE_HYBRID_SEARCH"); v != "" {
		cfg.RAG.EnableHybridSearch = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAG_HYBRID_RRF_K"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.HybridRRFK = parsed
		}
	}
	if v := os.Getenv("RAG_ENABLE_REWRITER"); v != "" {
		cfg.RAG.EnableRewriter = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAG_REWRITE_MIN_HISTORY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.RewriteMinHistory = parsed
		}
	}
	if v := os.Getenv("RAG_ENABLE_RERANKER"); v != "" {
		cfg.RAG.EnableReranker = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAG_RERANK_MODE"); v != "" {
		cfg.RAG.RerankMode = v
	}
	if v := os.Getenv("RAG_RERANK_TOP_K"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.RerankTopK = parsed
		}
	}
	if v := os.Getenv("RAG_INJECTION_FILTER_MODE"); v != "" {
		cfg.RAG.InjectionFilterMode = v
	}
	if v := os.Getenv("RAG_INJECTION_FILTER_THRESHOLD"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RAG.InjectionFilterThreshold = parsed
		}
	}
	if v := os.Getenv("RAG_STORAGE_ENDPOINT"); v != "" {
		cfg.RAG.Storage.Endpoint = v
	}
	if v := os.Getenv("RAG_STORAGE_ACCESS_KEY"); v != "" {
		cfg.RAG.Storage.AccessKey = v
	}
	if v := os.Getenv("RAG_STORAGE_SECRET_KEY"); v != "" {
		cfg.RAG.Storage.SecretKey = v
	}
	if v := os.Getenv("RAG_STORAGE_BUCKET"); v != "" {
		cfg.RAG.Storage.Bucket = v
	}
	if v := os.Getenv("RAG_STORAGE_REGION"); v != "" {
		cfg.RAG.Storage.Region = v
	}
	if v := os.Getenv("RAG_POSTGRES_DSN"); v != "" {
		cfg.RAG.Postgres.DSN = v
	}
	if v := os.Getenv("RAG_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("RAG_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.RAG.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("RAG_WORKER_ENABLED"); v != "" {
		cfg.RAG.Worker.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAG_REDIS_ENABLED"); v != "" {
		cfg.RAG.Redis.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAG_REDIS_ADDR"); v != "" {
		cfg.RAG.Redis.Addr = v
	}
	if v := os.Getenv("QUOTA_MESSAGES_PER_HOUR"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Quota.MessagesPerHour = parsed
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address: ":8080",
			AllowedOrigins: []string{
				"*",
			},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/auth/login",
					"/api/v1/auth/register",
					"/api/v1/auth/refresh",
					"/api/v1/workspaces/ask/stream",
				},
			},
		},
		LLM: LLMConfig{
			Provider:       "chatgpt",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.2,
			MaxTokens:      1024,
		},
		Auth: AuthConfig{
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			Postgres: PostgresConfig{
				DSN:      "",
				MaxConns: 5,
				MinConns: 1,
			},
		},
		RAG: RAGConfig{
			VectorDim:                1536,
			MaxFileMB:                20,
			MaxRetrieved:             8,
			MaxContextChars:          6000,
			PromptVersion:            "v1",
			PromptLanguage:           "en",
			PresignTTL:               15 * time.Minute,
			EnableHybridSearch:       false,
			HybridRRFK:               60,
			EnableRewriter:           false,
			RewriteMinHistory:        2,
			EnableReranker:           false,
			RerankMode:               "disabled",
			RerankTopK:               8,
			InjectionFilterMode:      "off",
			InjectionFilterThreshold: 0.5,
			Storage:                  RAGStorageConfig{},
			Redis: RedisConfig{
				Enabled: false,
				Addr:    "",
			},
			Postgres: PostgresConfig{
				DSN:      "",
				MaxConns: 5,
				MinConns: 1,
			},
			Worker: RAGWorkerConfig{
				Enabled: true,
			},
		},
		Quota: QuotaConfig{
			MessagesPerHour: 60,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.LLM.EmbeddingModel) == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret cannot be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return errors.New("auth.accessTokenTtl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth.refreshTokenTtl must be positive")
	}
	if c.RAG.VectorDim <= 0 {
		return errors.New("rag.vectorDim must be positive")
	}
	if c.RAG.MaxFileMB <= 0 {
		return errors.New("rag.maxFileMb must be positive")
	}
	if c.RAG.MaxContextChars <= 0 {
		return errors.New("rag.maxContextChars must be positive")
	}
	switch c.RAG.RerankMode {
	case "disabled", "heuristic", "llm":
	default:
		return errors.New("rag.rerankMode must be one of disabled, heuristic, llm")
	}
	switch c.RAG.InjectionFilterMode {
	case "off", "exclude", "downrank":
	default:
		return errors.New("rag.injectionFilterMode must be one of off, exclude, downrank")
	}
	if c.RAG.Redis.Enabled && strings.TrimSpace(c.RAG.Redis.Addr) == "" {
		return errors.New("rag.redis.addr cannot be empty when rag.redis is enabled")
	}
	if c.Quota.MessagesPerHour < 0 {
		return errors.New("quota.messagesPerHour cannot be negative")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var result []string
	for _, part := range parts {
		val := strings.TrimSpace(part)
		if val != "" {
			result = append(result, val)
		}
	}
	return result
}
