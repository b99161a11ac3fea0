// Package config loads genui settings from an optional file and GENUI_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GENUI"

// Config is the full application configuration.
type Config struct {
	Model        ModelConfig     `mapstructure:"model"`
	Store        StoreConfig     `mapstructure:"store"`
	Log          LogConfig       `mapstructure:"log"`
	Telemetry    TelemetryConfig `mapstructure:"telemetry"`
	SystemPrompt string          `mapstructure:"system_prompt"`
	BusyPolicy   string          `mapstructure:"busy_policy"`
}

// ModelConfig selects the model provider.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Name        string  `mapstructure:"name"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Tokenizer   string  `mapstructure:"tokenizer"`
	// RequestsPerMinute throttles model requests; zero disables the limiter.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
}

// StoreConfig selects where conversation history is persisted.
type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	MongoURI    string `mapstructure:"mongo_uri"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Disable     bool    `mapstructure:"disable"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load reads path (any format viper understands) if given, then overlays
// environment variables. A missing file at the default locations is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.genui")
		v.SetConfigName("genui")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Store endpoints use flat names.
	_ = v.BindEnv("store.redis_addr", EnvPrefix+"_REDIS_ADDR")
	_ = v.BindEnv("store.postgres_dsn", EnvPrefix+"_POSTGRES_DSN")
	_ = v.BindEnv("store.mongo_uri", EnvPrefix+"_MONGO_URI")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.name", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.max_tokens", 2048)
	v.SetDefault("model.temperature", 0.7)
	v.SetDefault("model.tokenizer", "cl100k_base")
	v.SetDefault("model.requests_per_minute", 0)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.disable", true)
	v.SetDefault("telemetry.exporter", "")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("system_prompt", "")
	v.SetDefault("busy_policy", "serialize")
}

// Validate checks the settings that do not depend on the environment of a
// specific provider. API keys are checked by the provider constructors.
func (c *Config) Validate() error {
	v := NewValidator()
	v.ValidateOneOf("model.provider", c.Model.Provider, "openai", "claude", "gemini")
	v.ValidateFloatRange("model.temperature", c.Model.Temperature, 0, 2)
	v.RequirePositive("model.max_tokens", c.Model.MaxTokens)
	v.ValidateURL("model.base_url", c.Model.BaseURL, "http", "https")
	v.When(c.Model.RequestsPerMinute != 0, func(v *Validator) {
		v.ValidateFloatRange("model.requests_per_minute", c.Model.RequestsPerMinute, 0, 10000)
	})
	v.When(!c.Telemetry.Disable, func(v *Validator) {
		v.ValidateOneOf("telemetry.exporter", c.Telemetry.Exporter, "", "stdout", "otlp")
		v.ValidateFloatRange("telemetry.sample_ratio", c.Telemetry.SampleRatio, 0, 1)
	})
	v.ValidateOneOf("store.backend", c.Store.Backend, "memory", "redis", "postgres", "mongo")
	v.When(c.Store.Backend == "redis", func(v *Validator) {
		v.RequireNonEmpty("store.redis_addr", c.Store.RedisAddr)
		v.ValidateDBNumber("store.redis_db", c.Store.RedisDB)
	})
	v.When(c.Store.Backend == "postgres", func(v *Validator) {
		v.RequireNonEmpty("store.postgres_dsn", c.Store.PostgresDSN)
	})
	v.When(c.Store.Backend == "mongo", func(v *Validator) {
		v.RequireNonEmpty("store.mongo_uri", c.Store.MongoURI).
			ValidateURL("store.mongo_uri", c.Store.MongoURI, "mongodb", "mongodb+srv")
	})
	v.ValidateOneOf("busy_policy", c.BusyPolicy, "serialize", "reject")
	v.ValidateOneOf("log.format", c.Log.Format, "json", "text")
	return v.Error()
}
