// Package openai streams chat completions from OpenAI and any endpoint that
// speaks its API (Groq, vLLM, Ollama) as model events.
package openai

import (
	"context"
	"encoding/json"
	"iter"
	"os"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sweetpotato0/genui/capability"
	"github.com/sweetpotato0/genui/config"
	genuierrors "github.com/sweetpotato0/genui/errors"
	"github.com/sweetpotato0/genui/message"
	"github.com/sweetpotato0/genui/model"
)

const defaultModel = "gpt-4o-mini"

// Config holds OpenAI provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	// Options are appended to the client options, mainly for tests.
	Options []option.RequestOption
}

// WithBaseURL set BaseURL.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// WithAPIKey set api key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithModel set model.
func (cfg *Config) WithModel(model string) *Config {
	cfg.Model = model
	return cfg
}

// DefaultConfig returns default OpenAI configuration, reading OPENAI_API_KEY
// and OPENAI_BASE_URL.
func DefaultConfig() *Config {
	return &Config{
		APIKey:      os.Getenv("OPENAI_API_KEY"),
		BaseURL:     os.Getenv("OPENAI_BASE_URL"),
		Model:       defaultModel,
		MaxTokens:   2000,
		Temperature: 0.7,
	}
}

// Provider implements model.Client for OpenAI
type Provider struct {
	config *Config
	client openaisdk.Client
}

// New creates a new OpenAI provider using official SDK
func New(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := config.NewValidator().
		RequireNonEmpty("openai.api_key", cfg.APIKey).
		ValidateFloatRange("openai.temperature", cfg.Temperature, 0, 2).
		Error(); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, cfg.Options...)

	return &Provider{
		config: cfg,
		client: openaisdk.NewClient(opts...),
	}, nil
}

// Stream implements model.Client.
func (p *Provider) Stream(ctx context.Context, req model.Request) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		params := p.params(req)

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		var (
			text  strings.Builder
			calls []model.CapabilityCall
		)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			if delta.Content != "" {
				text.WriteString(delta.Content)
				if !yield(model.TextDelta{ContentSoFar: text.String()}) {
					return
				}
			}

			for _, tc := range delta.ToolCalls {
				idx := int(tc.Index)
				for len(calls) <= idx {
					calls = append(calls, model.CapabilityCall{})
				}
				if tc.ID != "" {
					calls[idx].CallID = tc.ID
				}
				if tc.Function.Name != "" {
					calls[idx].Name = tc.Function.Name
				}
				calls[idx].Arguments = append(calls[idx].Arguments, tc.Function.Arguments...)
			}
		}

		if err := stream.Err(); err != nil {
			yield(streamError(ctx, err))
			return
		}

		for _, call := range calls {
			if call.Name == "" {
				continue
			}
			if len(call.Arguments) == 0 {
				call.Arguments = json.RawMessage("{}")
			}
			yield(call)
			return
		}
		yield(model.TextDelta{ContentSoFar: text.String(), Final: true})
	}
}

func (p *Provider) params(req model.Request) openaisdk.ChatCompletionNewParams {
	params := openaisdk.ChatCompletionNewParams{
		Messages: encodeMessages(req.SystemPrompt, req.Messages),
		Model:    openaisdk.ChatModel(p.config.Model),
	}
	if p.config.Temperature > 0 {
		params.Temperature = openaisdk.Float(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(p.config.MaxTokens)
	}
	if len(req.Capabilities) > 0 {
		params.Tools = encodeTools(req.Capabilities)
	}
	return params
}

func encodeMessages(system string, msgs []*message.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if strings.TrimSpace(system) != "" {
		out = append(out, openaisdk.SystemMessage(system))
	}
	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		case message.RoleUser:
			out = append(out, openaisdk.UserMessage(msg.Content))
		case message.RoleAssistant:
			assistant := &openaisdk.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openaisdk.String(msg.Content)
			}
			assistant.ToolCalls = encodeToolCalls(msg.ToolCalls)
			out = append(out, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case message.RoleTool:
			out = append(out, openaisdk.ToolMessage(msg.Content, msg.ToolID))
		}
	}
	return out
}

func encodeToolCalls(calls []message.ToolCall) []openaisdk.ChatCompletionMessageToolCallUnionParam {
	if len(calls) == 0 {
		return nil
	}
	params := make([]openaisdk.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for _, tc := range calls {
		args := string(tc.Arguments)
		if args == "" {
			args = "{}"
		}
		params = append(params, openaisdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: args,
				},
			},
		})
	}
	return params
}

func encodeTools(descs []capability.Descriptor) []openaisdk.ChatCompletionToolUnionParam {
	tools := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(descs))
	for _, d := range descs {
		def := openaisdk.FunctionDefinitionParam{
			Name:       d.Name,
			Parameters: openaisdk.FunctionParameters(d.Schema.Definition()),
		}
		if d.Description != "" {
			def.Description = openaisdk.String(d.Description)
		}
		tools = append(tools, openaisdk.ChatCompletionFunctionTool(def))
	}
	return tools
}

func streamError(ctx context.Context, err error) model.StreamError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return model.StreamError{Err: ctxErr}
	}
	return model.StreamError{Err: &genuierrors.ModelUnavailableError{Op: "openai.stream", Err: err}}
}
