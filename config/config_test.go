package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, 2048, cfg.Model.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Model.Temperature, 1e-9)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "serialize", cfg.BusyPolicy)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Telemetry.Disable)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genui.yaml")
	body := `
model:
  provider: claude
  name: claude-sonnet-4-5
  max_tokens: 512
store:
  backend: redis
  redis_addr: file:6379
system_prompt: You control the lights.
busy_policy: reject
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("GENUI_MODEL_NAME", "claude-opus")
	t.Setenv("GENUI_REDIS_ADDR", "env:6379")
	t.Setenv("GENUI_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.Model.Provider)
	assert.Equal(t, "claude-opus", cfg.Model.Name)
	assert.Equal(t, 512, cfg.Model.MaxTokens)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "env:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "You control the lights.", cfg.SystemPrompt)
	assert.Equal(t, "reject", cfg.BusyPolicy)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Model:      ModelConfig{Provider: "gemini", MaxTokens: 100, Temperature: 1},
			Store:      StoreConfig{Backend: "memory"},
			Log:        LogConfig{Format: "text"},
			BusyPolicy: "serialize",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown provider", func(c *Config) { c.Model.Provider = "llama" }, "model.provider"},
		{"temperature", func(c *Config) { c.Model.Temperature = 3 }, "model.temperature"},
		{"max tokens", func(c *Config) { c.Model.MaxTokens = 0 }, "model.max_tokens"},
		{"base url", func(c *Config) { c.Model.BaseURL = "api.groq.com/openai/v1" }, "model.base_url"},
		{"mongo scheme", func(c *Config) {
			c.Store.Backend = "mongo"
			c.Store.MongoURI = "http://localhost:27017"
		}, "store.mongo_uri"},
		{"negative rate", func(c *Config) { c.Model.RequestsPerMinute = -1 }, "model.requests_per_minute"},
		{"backend", func(c *Config) { c.Store.Backend = "sqlite" }, "store.backend"},
		{"postgres dsn", func(c *Config) { c.Store.Backend = "postgres" }, "store.postgres_dsn"},
		{"mongo uri", func(c *Config) { c.Store.Backend = "mongo" }, "store.mongo_uri"},
		{"redis db", func(c *Config) {
			c.Store.Backend = "redis"
			c.Store.RedisAddr = "localhost:6379"
			c.Store.RedisDB = 42
		}, "store.redis_db"},
		{"telemetry exporter", func(c *Config) {
			c.Telemetry.Disable = false
			c.Telemetry.Exporter = "zipkin"
		}, "telemetry.exporter"},
		{"busy policy", func(c *Config) { c.BusyPolicy = "queue" }, "busy_policy"},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
