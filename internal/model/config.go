package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all runtime settings, loaded from defaults, config file, env and flags
type Config struct {
	Feed         FeedConfig        `yaml:"feed" mapstructure:"feed"`
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Breaker      BreakerConfig     `yaml:"breaker" mapstructure:"breaker"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Server       ServerConfig      `yaml:"server" mapstructure:"server"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
}

// FeedConfig locates the upstream index and bounds the recency window
type FeedConfig struct {
	IndexURL      string        `yaml:"index_url" mapstructure:"index_url" validate:"required,url"`
	ArchiveSuffix string        `yaml:"archive_suffix" mapstructure:"archive_suffix" validate:"required"`
	Window        time.Duration `yaml:"window" mapstructure:"window" validate:"gt=0"`
}

// HTTPConfig controls upstream requests
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
	MaxRetries    int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy" validate:"omitempty,url"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy" validate:"omitempty,url"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// ConcurrencyConfig sizes the archive worker pool
type ConcurrencyConfig struct {
	ArchiveWorkers int `yaml:"archive_workers" mapstructure:"archive_workers" validate:"gte=1,lte=32"`
}

// RateLimitConfig throttles requests per upstream host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" mapstructure:"burst" validate:"gte=1"`
}

// BreakerConfig tunes the upstream circuit breaker
type BreakerConfig struct {
	FailureThreshold uint32        `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=1"`
	OpenTimeout      time.Duration `yaml:"open_timeout" mapstructure:"open_timeout" validate:"gt=0"`
}

// CacheConfig controls the in-memory archive payload cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
}

// ServerConfig controls the dashboard HTTP server
type ServerConfig struct {
	Addr              string        `yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`
	MaxConnections    int           `yaml:"max_connections" mapstructure:"max_connections" validate:"gte=1"`
	CORSOrigins       []string      `yaml:"cors_origins" mapstructure:"cors_origins"`
	RateLimitRequests int           `yaml:"rate_limit_requests" mapstructure:"rate_limit_requests" validate:"gte=1"` // Per client IP per minute
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"gt=0"`
	RefreshOnStart    bool          `yaml:"refresh_on_start" mapstructure:"refresh_on_start"`
	MapPrecision      uint          `yaml:"map_precision" mapstructure:"map_precision" validate:"gte=1,lte=12"`
}

// LogConfig selects level and output format
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// LLMConfig configures the optional briefing summarizer. Empty Provider disables it.
type LLMConfig struct {
	Provider       string        `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=openai anthropic ollama"`
	Model          string        `yaml:"model" mapstructure:"model"`
	APIKey         string        `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL        string        `yaml:"base_url,omitempty" mapstructure:"base_url" validate:"omitempty,url"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	MaxTokens      int           `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=1"`
	Temperature    float32       `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
	StrictEvidence bool          `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	MaxSourceURLs  int           `yaml:"max_source_urls" mapstructure:"max_source_urls" validate:"gte=1"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Feed: FeedConfig{
			IndexURL:      "http://data.gdeltproject.org/gdeltv2/lastupdate.txt",
			ArchiveSuffix: ".export.CSV.zip",
			Window:        15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "gdeltwatch/0.1 (+https://github.com/ppiankov/gdeltwatch)",
			MaxBodyBytes: 64 << 20,
			MaxRetries:   3,
		},
		Concurrency: ConcurrencyConfig{
			ArchiveWorkers: 1,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			OpenTimeout:      time.Minute,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Minute,
		},
		Server: ServerConfig{
			Addr:              "localhost:8501",
			MaxConnections:    256,
			CORSOrigins:       []string{"http://localhost:8501"},
			RateLimitRequests: 120,
			ShutdownTimeout:   10 * time.Second,
			MapPrecision:      3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		LLM: LLMConfig{
			Timeout:        30 * time.Second,
			MaxTokens:      800,
			Temperature:    0.2,
			StrictEvidence: true,
			MaxSourceURLs:  20,
		},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration and reports every invalid field
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
