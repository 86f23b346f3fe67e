// Package config loads runtime settings from a file and AGENTLOOP_* environment
// variables, and agent configurations from YAML documents.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/agentloop/logging"
)

// ErrInvalidConfig is returned when settings fail validation.
var ErrInvalidConfig = errors.New("invalid config")

// EnvPrefix prefixes environment overrides, e.g. AGENTLOOP_REDIS_ADDR.
const EnvPrefix = "AGENTLOOP"

// Config holds all runtime settings.
type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Cancellation CancellationConfig `mapstructure:"cancellation"`
	Models       ModelsConfig       `mapstructure:"models"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	Engine       EngineConfig       `mapstructure:"engine"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

// LogConfig selects the logging backend.
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`  // json or text
	Backend string `mapstructure:"backend"` // slog or zap
}

// Logging converts the section for logging.New.
func (c LogConfig) Logging() logging.Config {
	return logging.Config{Level: c.Level, Format: c.Format, Backend: c.Backend}
}

// RedisConfig points at the cancellation flag store. An empty Addr selects
// the in-memory store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CancellationConfig tunes the cancellation monitor.
type CancellationConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	ResetTTL      time.Duration `mapstructure:"reset_ttl"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

// ModelsConfig optionally replaces the built-in model catalog.
type ModelsConfig struct {
	CatalogFile string `mapstructure:"catalog_file"`
}

// ProviderConfig holds the credentials of one model provider.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ProvidersConfig holds the credentials of every supported provider.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
}

// EngineConfig bounds turn execution.
type EngineConfig struct {
	MaxConcurrentTurns       int `mapstructure:"max_concurrent_turns"`
	MaxConcurrentActions     int `mapstructure:"max_concurrent_actions"`
	ReservedGenerationTokens int `mapstructure:"reserved_generation_tokens"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace"`
}

// Load reads settings from path (optional) and the environment. Without a
// path, agentloop.{yaml,json,toml} is searched in ./config and the working
// directory; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("agentloop")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.Normalize()
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.backend", "slog")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cancellation.check_interval", "500ms")
	v.SetDefault("cancellation.reset_ttl", "1h")
	v.SetDefault("cancellation.key_prefix", "assistant:generation:cancelled:")

	v.SetDefault("models.catalog_file", "")

	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", "")
	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("providers.anthropic.base_url", "")
	v.SetDefault("providers.gemini.api_key", "")

	v.SetDefault("engine.max_concurrent_turns", 0)
	v.SetDefault("engine.max_concurrent_actions", 0)
	v.SetDefault("engine.reserved_generation_tokens", 2048)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.namespace", "agentloop")
}

// Normalize trims and lower-cases enumerated values.
func (c *Config) Normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Log.Backend = strings.ToLower(strings.TrimSpace(c.Log.Backend))
	if c.Log.Backend == "" {
		c.Log.Backend = "slog"
	}
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.Models.CatalogFile = strings.TrimSpace(c.Models.CatalogFile)
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.Log.Backend {
	case "slog", "zap":
	default:
		return fmt.Errorf("%w: log.backend %q", ErrInvalidConfig, c.Log.Backend)
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Cancellation.CheckInterval <= 0 {
		return fmt.Errorf("%w: cancellation.check_interval must be positive", ErrInvalidConfig)
	}
	if c.Cancellation.ResetTTL <= 0 {
		return fmt.Errorf("%w: cancellation.reset_ttl must be positive", ErrInvalidConfig)
	}
	if c.Engine.MaxConcurrentTurns < 0 || c.Engine.MaxConcurrentActions < 0 {
		return fmt.Errorf("%w: engine concurrency limits must not be negative", ErrInvalidConfig)
	}
	if c.Engine.ReservedGenerationTokens < 0 {
		return fmt.Errorf("%w: engine.reserved_generation_tokens must not be negative", ErrInvalidConfig)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("%w: metrics.addr is required when metrics are enabled", ErrInvalidConfig)
	}
	return nil
}
