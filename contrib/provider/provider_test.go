package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/genui/config"
	"github.com/sweetpotato0/genui/contrib/provider/claude"
	"github.com/sweetpotato0/genui/contrib/provider/openai"
)

func TestNewSelectsProvider(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.ModelConfig{Provider: OpenAI, APIKey: "k", Name: "gpt-test"})
	require.NoError(t, err)
	assert.IsType(t, &openai.Provider{}, c)
	assert.NoError(t, Close(c))

	c, err = New(ctx, config.ModelConfig{Provider: Claude, APIKey: "k", Temperature: 1.5})
	require.NoError(t, err)
	assert.IsType(t, &claude.Provider{}, c)
}

func TestNewMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	for _, name := range []string{OpenAI, Claude, Gemini} {
		t.Run(name, func(t *testing.T) {
			_, err := New(context.Background(), config.ModelConfig{Provider: name})
			require.Error(t, err)
			var ve config.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestNewEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	_, err := New(context.Background(), config.ModelConfig{Provider: OpenAI})
	assert.NoError(t, err)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.ModelConfig{Provider: "llama"})
	var ve config.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "model.provider", ve.Field)
}
