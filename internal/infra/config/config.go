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
	HTTP       HTTPConfig       `yaml:"http"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Auth       AuthConfig       `yaml:"auth"`
	VectorDisk VectorDiskConfig `yaml:"vectorDisk"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Valkey     ValkeyConfig     `yaml:"valkey"`
	Storage    StorageConfig    `yaml:"storage"`
	Admin      AdminConfig      `yaml:"admin"`
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

// RetryConfig configures best-effort retries of POST requests that end in
// a retryable status; paths in Exclude are never retried.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig configures the ChatGPT-compatible completion client and the
// model fallback chain the Answerer walks on upstream failure.
type LLMConfig struct {
	APIKey      string   `yaml:"apiKey"`
	BaseURL     string   `yaml:"baseUrl"`
	Primary     string   `yaml:"primary"`
	Fallback    []string `yaml:"fallback"`
	Temperature float32  `yaml:"temperature"`
}

// EmbedderConfig configures the embedding provider fallback chain: each
// named remote model is tried in order at startup, and the deterministic
// hash embedder is always appended last as a guaranteed-to-load floor.
type EmbedderConfig struct {
	RemoteModels     []string `yaml:"remoteModels"`
	DeterministicDim int      `yaml:"deterministicDim"`
}

// RerankerConfig toggles the lexical cross-encoder stand-in.
type RerankerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ChunkingConfig sizes PDFProcessor's char-window chunker.
type ChunkingConfig struct {
	WindowSize int `yaml:"windowSize"`
	Overlap    int `yaml:"overlap"`
}

// IngestionConfig bounds IngestionCoordinator's concurrency; the limit is
// shared by all requests the coordinator serves.
type IngestionConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// AuthConfig controls authentication session behavior.
type AuthConfig struct {
	SessionTTL time.Duration `yaml:"sessionTtl"`
}

// VectorDiskConfig locates the vector index snapshot and its metadata
// sibling, written atomically via temp-file + rename.
type VectorDiskConfig struct {
	SnapshotPath string `yaml:"snapshotPath"`
}

// PostgresConfig contains DSN and pooling settings for ChatStore.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ValkeyConfig configures the auth-session cache-through layer.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StorageConfig configures the blob store backing original PDF bytes.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// AdminConfig gates the admin HTTP surface on a static API key.
type AdminConfig struct {
	APIKey string `yaml:"apiKey"`
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
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
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
		cfg.HTTP.Retry.Enabled = parseBool(v)
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
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_PRIMARY_MODEL"); v != "" {
		cfg.LLM.Primary = v
	}
	if v := os.Getenv("LLM_FALLBACK_MODELS"); v != "" {
		cfg.LLM.Fallback = splitAndTrim(v)
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("EMBEDDER_REMOTE_MODELS"); v != "" {
		cfg.Embedder.RemoteModels = splitAndTrim(v)
	}
	if v := os.Getenv("EMBEDDER_DETERMINISTIC_DIM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Embedder.DeterministicDim = parsed
		}
	}
	if v := os.Getenv("RERANKER_ENABLED"); v != "" {
		cfg.Reranker.Enabled = parseBool(v)
	}
	if v := os.Getenv("CHUNK_WINDOW_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.WindowSize = parsed
		}
	}
	if v := os.Getenv("CHUNK_OVERLAP"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Chunking.Overlap = parsed
		}
	}
	if v := os.Getenv("INGESTION_CONCURRENCY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.Concurrency = parsed
		}
	}
	if v := os.Getenv("AUTH_SESSION_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.SessionTTL = parsed
		}
	}
	if v := os.Getenv("VECTOR_SNAPSHOT_PATH"); v != "" {
		cfg.VectorDisk.SnapshotPath = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("VALKEY_ENABLED"); v != "" {
		cfg.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.Valkey.Addr = v
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Admin.APIKey = v
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			AllowedOrigins: []string{"*"},
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
					"/api/v1/files/upload",
				},
			},
		},
		LLM: LLMConfig{
			Primary:     "gpt-4o-mini",
			Fallback:    []string{"gpt-4o", "gpt-3.5-turbo"},
			Temperature: 0.1,
		},
		Embedder: EmbedderConfig{
			RemoteModels:     []string{"text-embedding-3-small", "text-embedding-3-large"},
			DeterministicDim: 768,
		},
		Reranker: RerankerConfig{
			Enabled: true,
		},
		Chunking: ChunkingConfig{
			WindowSize: 400,
			Overlap:    100,
		},
		Ingestion: IngestionConfig{
			Concurrency: 4,
		},
		Auth: AuthConfig{
			SessionTTL: 7 * 24 * time.Hour,
		},
		VectorDisk: VectorDiskConfig{
			SnapshotPath: "data/vector_index.bin",
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
			MinConns: 2,
		},
		Valkey: ValkeyConfig{
			Enabled: false,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
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
	if strings.TrimSpace(c.LLM.Primary) == "" {
		return errors.New("llm.primary cannot be empty")
	}
	if len(c.LLM.Fallback) > 5 {
		return errors.New("llm.fallback is too long, cap the worst-case fallback latency")
	}
	if c.Embedder.DeterministicDim <= 0 {
		return errors.New("embedder.deterministicDim must be positive")
	}
	if c.Chunking.WindowSize <= 0 {
		return errors.New("chunking.windowSize must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.WindowSize {
		return errors.New("chunking.overlap must be non-negative and smaller than the window size")
	}
	if c.Ingestion.Concurrency <= 0 {
		return errors.New("ingestion.concurrency must be positive")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.sessionTtl must be positive")
	}
	if c.VectorDisk.SnapshotPath == "" {
		return errors.New("vectorDisk.snapshotPath cannot be empty")
	}
	if c.Valkey.Enabled && strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty when valkey is enabled")
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
