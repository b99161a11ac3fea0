package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sweetpotato0/genui/capability"
)

// ToolError is returned when the MCP server reports an error result.
type ToolError struct {
	Name    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("mcp tool %s: %s", e.Name, e.Message)
}

// ListAllTools returns every tool the server exposes, following pagination.
func (c *Client) ListAllTools(ctx context.Context) ([]*sdkmcp.Tool, error) {
	if c.closed() {
		return nil, ErrClientClosed
	}

	params := &sdkmcp.ListToolsParams{}
	var tools []*sdkmcp.Tool
	for {
		res, err := c.session.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		tools = append(tools, res.Tools...)
		if res.NextCursor == "" {
			return tools, nil
		}
		params.Cursor = res.NextCursor
	}
}

// CallTool invokes a remote tool. Structured content is returned as is when
// the server provides it, otherwise the textual content is joined.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if c.closed() {
		return nil, ErrClientClosed
	}

	if args == nil {
		args = map[string]any{}
	}
	result, err := c.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}

	text := normalizeContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool returned error without message"
		}
		return nil, &ToolError{Name: name, Message: text}
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	return text, nil
}

// Descriptors converts the server's tools into capability descriptors whose
// arguments are validated against the server-declared input schema. Names
// carry the configured prefix.
func (c *Client) Descriptors(ctx context.Context) ([]capability.Descriptor, error) {
	defs, err := c.ListAllTools(ctx)
	if err != nil {
		return nil, err
	}

	descs := make([]capability.Descriptor, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		desc, err := c.descriptor(def)
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

func (c *Client) descriptor(def *sdkmcp.Tool) (capability.Descriptor, error) {
	description := def.Description
	if description == "" && def.Annotations != nil {
		description = def.Annotations.Title
	}

	schema, err := capability.NewJSONSchema(schemaMap(def.InputSchema))
	if err != nil {
		return capability.Descriptor{}, fmt.Errorf("mcp tool %s: %w", def.Name, err)
	}

	remote := def.Name
	return capability.Descriptor{
		Name:        c.prefix + remote,
		Description: description,
		Schema:      schema,
		Handler: func(ctx context.Context, input any, call capability.Call) (any, error) {
			args, _ := input.(map[string]any)
			if args == nil {
				args = map[string]any{}
			}
			return c.CallTool(ctx, remote, args)
		},
	}, nil
}

func normalizeContent(content []sdkmcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := c.MarshalJSON(); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// schemaMap normalizes whatever shape the SDK decoded the input schema into.
// A missing schema accepts any object.
func schemaMap(schema any) map[string]any {
	var out map[string]any
	switch v := schema.(type) {
	case nil:
	case map[string]any:
		out = v
	case json.RawMessage:
		_ = json.Unmarshal(v, &out)
	case []byte:
		_ = json.Unmarshal(v, &out)
	default:
		if data, err := json.Marshal(v); err == nil {
			_ = json.Unmarshal(data, &out)
		}
	}
	if out == nil {
		out = map[string]any{"type": "object"}
	}
	return out
}
