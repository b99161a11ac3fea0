// Package claude streams Anthropic Messages API responses as model events.
package claude

import (
	"context"
	"encoding/json"
	"iter"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/sweetpotato0/genui/capability"
	"github.com/sweetpotato0/genui/config"
	genuierrors "github.com/sweetpotato0/genui/errors"
	"github.com/sweetpotato0/genui/message"
	"github.com/sweetpotato0/genui/model"
)

const defaultModel = "claude-sonnet-4-5-20250929"

// Config holds Claude provider configuration
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
	Options     []option.RequestOption
}

// DefaultConfig returns default Claude configuration. Empty arguments fall
// back to ANTHROPIC_API_KEY and ANTHROPIC_BASE_URL.
func DefaultConfig(apiKey, baseURL string) *Config {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if baseURL == "" {
		baseURL = os.Getenv("ANTHROPIC_BASE_URL")
	}
	return &Config{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       defaultModel,
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// Provider implements model.Client for Claude
type Provider struct {
	config *Config
	client anthropic.Client
}

// New creates a new Claude provider using official SDK
func New(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig("", "")
	}
	if err := config.NewValidator().
		RequireNonEmpty("claude.api_key", cfg.APIKey).
		RequirePositive("claude.max_tokens", int(cfg.MaxTokens)).
		ValidateFloatRange("claude.temperature", cfg.Temperature, 0, 1).
		Error(); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithAuthToken(""),
	}
	if cfg.BaseURL != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}
	options = append(options, cfg.Options...)

	return &Provider{
		config: cfg,
		client: anthropic.NewClient(options...),
	}, nil
}

// toolUse is a tool_use content block being streamed.
type toolUse struct {
	id    string
	name  string
	input strings.Builder
}

// Stream implements model.Client.
func (p *Provider) Stream(ctx context.Context, req model.Request) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		stream := p.client.Messages.NewStreaming(ctx, p.params(req))
		defer stream.Close()

		var (
			text  strings.Builder
			tools = map[int64]*toolUse{}
			first *toolUse
		)
		for stream.Next() {
			event := stream.Current()

			switch event.Type {
			case "content_block_start":
				start := event.AsContentBlockStart()
				if start.ContentBlock.Type == "tool_use" {
					tu := &toolUse{id: start.ContentBlock.ID, name: start.ContentBlock.Name}
					tools[start.Index] = tu
					if first == nil {
						first = tu
					}
				}
			case "content_block_delta":
				delta := event.AsContentBlockDelta()
				switch delta.Delta.Type {
				case "text_delta":
					if delta.Delta.Text == "" {
						continue
					}
					text.WriteString(delta.Delta.Text)
					if !yield(model.TextDelta{ContentSoFar: text.String()}) {
						return
					}
				case "input_json_delta":
					if tu, ok := tools[delta.Index]; ok {
						tu.input.WriteString(delta.Delta.PartialJSON)
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(model.StreamError{Err: ctxErr})
				return
			}
			yield(model.StreamError{Err: &genuierrors.ModelUnavailableError{Op: "claude.stream", Err: err}})
			return
		}

		if first != nil {
			args := json.RawMessage(first.input.String())
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			yield(model.CapabilityCall{Name: first.name, Arguments: args, CallID: first.id})
			return
		}
		yield(model.TextDelta{ContentSoFar: text.String(), Final: true})
	}
}

func (p *Provider) params(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		Messages:  encodeMessages(req.Messages),
		MaxTokens: p.config.MaxTokens,
	}

	system := []string{}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		system = append(system, req.SystemPrompt)
	}
	for _, msg := range req.Messages {
		if msg.Role == message.RoleSystem {
			system = append(system, msg.Content)
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n")}}
	}

	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}
	if len(req.Capabilities) > 0 {
		params.Tools = encodeTools(req.Capabilities)
	}
	return params
}

// encodeMessages converts history into alternating user/assistant turns.
// Tool responses travel as tool_result blocks of a user turn and adjacent
// turns with the same role are merged.
func encodeMessages(msgs []*message.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	push := func(role anthropic.MessageParamRole, blocks ...anthropic.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			return
		}
		out = append(out, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleUser:
			push(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(msg.Content))
		case message.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(msg.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := tc.Arguments
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			push(anthropic.MessageParamRoleAssistant, blocks...)
		case message.RoleTool:
			push(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(msg.ToolID, msg.Content, false))
		}
	}
	return out
}

func encodeTools(descs []capability.Descriptor) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(descs))
	for _, d := range descs {
		def := d.Schema.Definition()
		schema := anthropic.ToolInputSchemaParam{Properties: def["properties"]}
		if required, ok := def["required"].([]any); ok {
			for _, r := range required {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		if required, ok := def["required"].([]string); ok {
			schema.Required = append(schema.Required, required...)
		}

		tool := &anthropic.ToolParam{Name: d.Name, InputSchema: schema}
		if d.Description != "" {
			tool.Description = anthropic.String(d.Description)
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: tool})
	}
	return tools
}
