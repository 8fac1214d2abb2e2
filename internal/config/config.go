package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the statementlens server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	AI       AIConfig
	Storage  StorageConfig
	Reports  ReportsConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	FrontendURL        string
	RateLimitPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type AIConfig struct {
	Provider string
	// InferenceTimeout bounds one extraction call. Zero means no timeout.
	InferenceTimeout time.Duration
	MaxTokens        int
	RepairJSON       bool
	Anthropic        AnthropicConfig
	OpenAI           OpenAIConfig
	VLLM             VLLMConfig
	Gemini           GeminiConfig
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type StorageConfig struct {
	Backend  string
	LocalDir string
	S3       S3Config
}

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

type ReportsConfig struct {
	LockTTL  time.Duration
	CacheTTL time.Duration
}

var validProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"vllm":      true,
	"gemini":    true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("PORT", 3001),
			Env:                envString("APP_ENV", "development"),
			FrontendURL:        os.Getenv("FRONTEND_URL"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			TokenTTL:  envDuration("JWT_TTL", 7*24*time.Hour),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 0),
			MaxTokens:        envInt("AI_MAX_TOKENS", 8000),
			RepairJSON:       envBool("EXTRACTION_REPAIR_JSON", false),
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			Gemini: GeminiConfig{
				APIKey: os.Getenv("GEMINI_API_KEY"),
				Model:  envString("GEMINI_MODEL", "gemini-2.0-flash"),
			},
		},
		Storage: StorageConfig{
			Backend:  envString("STORAGE_BACKEND", "local"),
			LocalDir: envString("STORAGE_LOCAL_DIR", "uploads"),
			S3: S3Config{
				Bucket:   os.Getenv("S3_BUCKET"),
				Region:   envString("S3_REGION", "us-east-1"),
				Endpoint: os.Getenv("S3_ENDPOINT"),
			},
		},
		Reports: ReportsConfig{
			LockTTL:  envDuration("REPORT_LOCK_TTL", 10*time.Minute),
			CacheTTL: envDuration("REPORT_CACHE_TTL", 10*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of anthropic, openai, vllm, gemini; got %q", c.AI.Provider)
	}

	switch c.AI.Provider {
	case "anthropic":
		if c.AI.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
		}
	case "openai":
		if c.AI.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
		}
	case "vllm":
		if c.AI.VLLM.Model == "" {
			return fmt.Errorf("VLLM_MODEL is required when AI_PROVIDER is vllm")
		}
		if !isHTTPURL(c.AI.VLLM.BaseURL) {
			return fmt.Errorf("VLLM_BASE_URL must start with http:// or https://, got %q", c.AI.VLLM.BaseURL)
		}
	case "gemini":
		if c.AI.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
		}
	}

	if c.AI.MaxTokens <= 0 {
		return fmt.Errorf("AI_MAX_TOKENS must be positive, got %d", c.AI.MaxTokens)
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("STORAGE_LOCAL_DIR is required when STORAGE_BACKEND is local")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is s3")
		}
		if c.Storage.S3.Endpoint != "" && !isHTTPURL(c.Storage.S3.Endpoint) {
			return fmt.Errorf("S3_ENDPOINT must start with http:// or https://, got %q", c.Storage.S3.Endpoint)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of local, s3; got %q", c.Storage.Backend)
	}

	if c.Reports.LockTTL <= 0 {
		return fmt.Errorf("REPORT_LOCK_TTL must be positive")
	}

	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
