// Package gemini streams Google Gemini responses as model events.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/sweetpotato0/genui/capability"
	"github.com/sweetpotato0/genui/config"
	genuierrors "github.com/sweetpotato0/genui/errors"
	"github.com/sweetpotato0/genui/message"
	"github.com/sweetpotato0/genui/model"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// DefaultConfig returns default Gemini configuration. An empty key falls
// back to GEMINI_API_KEY.
func DefaultConfig(apiKey string) *Config {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	return &Config{
		APIKey:      apiKey,
		BaseURL:     os.Getenv("GEMINI_BASE_URL"),
		Model:       defaultModel,
		MaxTokens:   2048,
		Temperature: 0.7,
	}
}

// Provider implements model.Client for Google Gemini
type Provider struct {
	config *Config
	client *genai.Client
}

// New creates a new Gemini provider. The returned provider holds a client
// connection and must be closed.
func New(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig("")
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{config: cfg, client: client}, nil
}

func validate(cfg *Config) error {
	return config.NewValidator().
		RequireNonEmpty("gemini.api_key", cfg.APIKey).
		ValidateFloatRange("gemini.temperature", float64(cfg.Temperature), 0, 2).
		Error()
}

// Close releases the client connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

// Stream implements model.Client.
func (p *Provider) Stream(ctx context.Context, req model.Request) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		history := encodeContents(req.Messages)
		if len(history) == 0 {
			yield(model.StreamError{Err: &genuierrors.ModelUnavailableError{
				Op:  "gemini.stream",
				Err: errors.New("request has no messages"),
			}})
			return
		}
		last := history[len(history)-1]

		gm := p.generativeModel(req)
		cs := gm.StartChat()
		cs.History = history[:len(history)-1]

		var text strings.Builder
		it := cs.SendMessageStream(ctx, last.Parts...)
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(model.StreamError{Err: ctxErr})
					return
				}
				yield(model.StreamError{Err: &genuierrors.ModelUnavailableError{Op: "gemini.stream", Err: err}})
				return
			}

			chunk, calls := decodeResponse(resp)
			if len(calls) > 0 {
				yield(calls[0])
				return
			}
			if chunk == "" {
				continue
			}
			text.WriteString(chunk)
			if !yield(model.TextDelta{ContentSoFar: text.String()}) {
				return
			}
		}
		yield(model.TextDelta{ContentSoFar: text.String(), Final: true})
	}
}

func (p *Provider) generativeModel(req model.Request) *genai.GenerativeModel {
	gm := p.client.GenerativeModel(p.config.Model)
	if p.config.Temperature > 0 {
		gm.SetTemperature(p.config.Temperature)
	}
	if p.config.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(p.config.MaxTokens))
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if len(req.Capabilities) > 0 {
		gm.Tools = []*genai.Tool{{FunctionDeclarations: encodeTools(req.Capabilities)}}
	}
	return gm
}

// encodeContents maps history onto Gemini's user/model roles. Tool calls
// become FunctionCall parts of a model turn and tool responses
// FunctionResponse parts of a user turn.
func encodeContents(msgs []*message.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	push := func(role string, parts ...genai.Part) {
		if len(parts) == 0 {
			return
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			return
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleUser:
			push("user", genai.Text(msg.Content))
		case message.RoleAssistant:
			var parts []genai.Part
			if strings.TrimSpace(msg.Content) != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: callArgs(tc.Arguments)})
			}
			push("model", parts...)
		case message.RoleTool:
			push("user", genai.FunctionResponse{Name: msg.Name, Response: toolResponse(msg.Content)})
		}
	}
	return out
}

// callArgs decodes stored call arguments. Arguments that are not a JSON
// object are kept verbatim under "raw" rather than replayed as empty.
func callArgs(raw json.RawMessage) map[string]any {
	args := map[string]any{}
	if len(raw) == 0 {
		return args
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	if args == nil {
		return map[string]any{}
	}
	return args
}

// toolResponse wraps content in an object, as Gemini requires one.
func toolResponse(content string) map[string]any {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return map[string]any{"result": content}
	}
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	return map[string]any{"result": v}
}

// decodeResponse returns the text of the first candidate and any function
// calls it carries. Gemini has no call IDs, so each call gets one.
func decodeResponse(resp *genai.GenerateContentResponse) (string, []model.CapabilityCall) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}
	var (
		text  strings.Builder
		calls []model.CapabilityCall
	)
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			args, err := json.Marshal(p.Args)
			if err != nil || p.Args == nil {
				args = []byte("{}")
			}
			calls = append(calls, model.CapabilityCall{
				Name:      p.Name,
				Arguments: args,
				CallID:    "call_" + uuid.NewString(),
			})
		}
	}
	return text.String(), calls
}

func encodeTools(descs []capability.Descriptor) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(descs))
	for _, d := range descs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  encodeSchema(d.Schema.Definition()),
		})
	}
	return decls
}

// encodeSchema converts the subset of JSON schema Gemini understands.
func encodeSchema(def map[string]any) *genai.Schema {
	if def == nil {
		return nil
	}
	s := &genai.Schema{}
	switch t := def["type"].(type) {
	case string:
		s.Type = schemaType(t)
	case []any:
		for _, v := range t {
			name, _ := v.(string)
			if name == "null" {
				s.Nullable = true
				continue
			}
			s.Type = schemaType(name)
		}
	}
	if desc, ok := def["description"].(string); ok {
		s.Description = desc
	}
	if format, ok := def["format"].(string); ok {
		s.Format = format
	}
	if enum, ok := def["enum"].([]any); ok {
		for _, e := range enum {
			s.Enum = append(s.Enum, fmt.Sprint(e))
		}
	}
	if items, ok := def["items"].(map[string]any); ok {
		s.Items = encodeSchema(items)
	}
	if props, ok := def["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]any); ok {
				s.Properties[name] = encodeSchema(prop)
			}
		}
	}
	switch req := def["required"].(type) {
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	case []string:
		s.Required = append(s.Required, req...)
	}
	return s
}

func schemaType(name string) genai.Type {
	switch name {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
