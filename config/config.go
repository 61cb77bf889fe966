// Package config provides configuration management for the application.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultModel is the model submitted to the grid when a request does not name one.
const DefaultModel = "aphrodite/deepseek-ai/DeepSeek-R1-Distill-Llama-70B"

// DefaultBodySizeLimit is the maximum accepted request body size.
const DefaultBodySizeLimit = "1M"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig
	Grid      GridConfig
	Adapter   AdapterConfig
	RateLimit RateLimitConfig
	Models    ModelsConfig
	Metrics   MetricsConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port          string
	BodySizeLimit string
}

// GridConfig holds the upstream grid API configuration
type GridConfig struct {
	// BaseURL is the grid API root, e.g. https://api.aipowergrid.io/api/v2
	BaseURL string
	// TLSServerName overrides the SNI server name on outbound connections
	TLSServerName string
	PollInterval  time.Duration
	PollTimeout   time.Duration
	// PollMaxTransientRetries bounds consecutive transport failures tolerated
	// during a poll loop before the request is aborted.
	PollMaxTransientRetries int
}

// AdapterConfig holds request-shaping and emission policies
type AdapterConfig struct {
	DefaultModel               string
	DefaultMaxTokensChat       int
	DefaultMaxTokensCompletion int
	// SystemDirective, when set, is prepended to every instruction,
	// separated from the conversation by one blank line.
	SystemDirective string
	// AnswerMarker splits hidden reasoning from the final answer. Only the
	// text after the marker is emitted when extraction is enabled.
	AnswerMarker            string
	AnswerExtractionEnabled bool
	StreamTokenDelay        time.Duration
}

// RateLimitConfig holds the admission gate configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
	// RedisURL switches the limiter (and model cache) to redis when set
	RedisURL string
}

// ModelsConfig holds the grid model registry configuration
type ModelsConfig struct {
	CacheTTL time.Duration
	// CacheFile persists the model list across restarts when set
	CacheFile string
	// ValidateBeforeSubmit rejects unknown models with a 400 before any
	// upstream call.
	ValidateBeforeSubmit bool
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// LoggingConfig holds log output configuration
type LoggingConfig struct {
	Format string // "json" or "pretty"
	Level  string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	// Load .env file using Viper (optional, won't fail if not found)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if .env file doesn't exist

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("BODY_SIZE_LIMIT", DefaultBodySizeLimit)
	viper.SetDefault("GRID_API_URL", "https://api.aipowergrid.io/api/v2")
	viper.SetDefault("GRID_TLS_SERVER_NAME", "api.aipowergrid.io")
	viper.SetDefault("POLL_INTERVAL", 2*time.Second)
	viper.SetDefault("POLL_TIMEOUT", 120*time.Second)
	viper.SetDefault("POLL_MAX_TRANSIENT_RETRIES", 3)
	viper.SetDefault("DEFAULT_MODEL", DefaultModel)
	viper.SetDefault("DEFAULT_MAX_TOKENS_CHAT", 150)
	viper.SetDefault("DEFAULT_MAX_TOKENS_COMPLETION", 50)
	viper.SetDefault("ANSWER_MARKER", "Final Answer:")
	viper.SetDefault("ANSWER_EXTRACTION_ENABLED", false)
	viper.SetDefault("STREAM_TOKEN_DELAY", 50*time.Millisecond)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW", 60*time.Second)
	viper.SetDefault("MODEL_CACHE_TTL", 60*time.Second)
	viper.SetDefault("GRID_VALIDATE_MODELS", false)
	viper.SetDefault("METRICS_ENABLED", false)
	viper.SetDefault("METRICS_ENDPOINT", "/metrics")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("LOG_LEVEL", "info")

	// Enable automatic environment variable reading
	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:          viper.GetString("PORT"),
			BodySizeLimit: viper.GetString("BODY_SIZE_LIMIT"),
		},
		Grid: GridConfig{
			BaseURL:                 viper.GetString("GRID_API_URL"),
			TLSServerName:           viper.GetString("GRID_TLS_SERVER_NAME"),
			PollInterval:            viper.GetDuration("POLL_INTERVAL"),
			PollTimeout:             viper.GetDuration("POLL_TIMEOUT"),
			PollMaxTransientRetries: viper.GetInt("POLL_MAX_TRANSIENT_RETRIES"),
		},
		Adapter: AdapterConfig{
			DefaultModel:               viper.GetString("DEFAULT_MODEL"),
			DefaultMaxTokensChat:       viper.GetInt("DEFAULT_MAX_TOKENS_CHAT"),
			DefaultMaxTokensCompletion: viper.GetInt("DEFAULT_MAX_TOKENS_COMPLETION"),
			SystemDirective:            viper.GetString("SYSTEM_DIRECTIVE"),
			AnswerMarker:               viper.GetString("ANSWER_MARKER"),
			AnswerExtractionEnabled:    viper.GetBool("ANSWER_EXTRACTION_ENABLED"),
			StreamTokenDelay:           viper.GetDuration("STREAM_TOKEN_DELAY"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  viper.GetBool("RATE_LIMIT_ENABLED"),
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   viper.GetDuration("RATE_LIMIT_WINDOW"),
			RedisURL: viper.GetString("REDIS_URL"),
		},
		Models: ModelsConfig{
			CacheTTL:             viper.GetDuration("MODEL_CACHE_TTL"),
			CacheFile:            viper.GetString("MODEL_CACHE_FILE"),
			ValidateBeforeSubmit: viper.GetBool("GRID_VALIDATE_MODELS"),
		},
		Metrics: MetricsConfig{
			Enabled:  viper.GetBool("METRICS_ENABLED"),
			Endpoint: viper.GetString("METRICS_ENDPOINT"),
		},
		Logging: LoggingConfig{
			Format: viper.GetString("LOG_FORMAT"),
			Level:  viper.GetString("LOG_LEVEL"),
		},
	}

	return cfg, nil
}
