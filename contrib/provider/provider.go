// Package provider builds a model.Client from configuration.
package provider

import (
	"context"
	"fmt"
	"io"

	"github.com/sweetpotato0/genui/config"
	"github.com/sweetpotato0/genui/contrib/provider/claude"
	"github.com/sweetpotato0/genui/contrib/provider/gemini"
	"github.com/sweetpotato0/genui/contrib/provider/openai"
	"github.com/sweetpotato0/genui/model"
)

// Provider names accepted by New.
const (
	OpenAI = "openai"
	Claude = "claude"
	Gemini = "gemini"
)

// New returns the client selected by cfg.Provider. Empty fields keep the
// provider defaults, including their *_API_KEY and *_BASE_URL environment
// fallbacks. If the client holds a connection it also implements io.Closer.
func New(ctx context.Context, cfg config.ModelConfig) (model.Client, error) {
	switch cfg.Provider {
	case OpenAI, "":
		c := openai.DefaultConfig()
		override(&c.APIKey, cfg.APIKey)
		override(&c.BaseURL, cfg.BaseURL)
		override(&c.Model, cfg.Name)
		if cfg.MaxTokens > 0 {
			c.MaxTokens = int64(cfg.MaxTokens)
		}
		if cfg.Temperature > 0 {
			c.Temperature = cfg.Temperature
		}
		return client(openai.New(c))

	case Claude:
		c := claude.DefaultConfig(cfg.APIKey, cfg.BaseURL)
		override(&c.Model, cfg.Name)
		if cfg.MaxTokens > 0 {
			c.MaxTokens = int64(cfg.MaxTokens)
		}
		if cfg.Temperature > 0 {
			c.Temperature = min(cfg.Temperature, 1)
		}
		return client(claude.New(c))

	case Gemini:
		c := gemini.DefaultConfig(cfg.APIKey)
		override(&c.BaseURL, cfg.BaseURL)
		override(&c.Model, cfg.Name)
		if cfg.MaxTokens > 0 {
			c.MaxTokens = cfg.MaxTokens
		}
		if cfg.Temperature > 0 {
			c.Temperature = float32(cfg.Temperature)
		}
		return client(gemini.New(ctx, c))

	default:
		return nil, config.ValidationErrors{{
			Field:   "model.provider",
			Message: fmt.Sprintf("unknown provider %q", cfg.Provider),
		}}
	}
}

// Close closes mc if it holds resources.
func Close(mc model.Client) error {
	if c, ok := mc.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// client keeps a failed constructor from returning a typed nil interface.
func client[T model.Client](c T, err error) (model.Client, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
