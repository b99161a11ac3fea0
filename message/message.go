package message

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents the role of the message sender
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message represents a single message in a conversation
type Message struct {
	ID        string         `json:"id" bson:"id"`
	Role      Role           `json:"role" bson:"role"`
	Content   string         `json:"content" bson:"content"`
	ToolCalls []ToolCall     `json:"tool_calls,omitempty" bson:"tool_calls,omitempty"`
	ToolID    string         `json:"tool_id,omitempty" bson:"tool_id,omitempty"` // For tool response messages
	Name      string         `json:"name,omitempty" bson:"name,omitempty"`       // Capability name for tool responses
	Metadata  map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}

// ToolCall represents a capability invocation requested by the model
type ToolCall struct {
	ID        string          `json:"id" bson:"id"`
	Name      string          `json:"name" bson:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty" bson:"arguments,omitempty"`
}

// NewMessage creates a new message with the given role and content
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewToolCallMessage creates an assistant message carrying tool calls
func NewToolCallMessage(toolCalls ...ToolCall) *Message {
	msg := NewMessage(RoleAssistant, "")
	msg.ToolCalls = toolCalls
	return msg
}

// NewToolResponseMessage creates a tool response message
func NewToolResponseMessage(toolID, name, content string) *Message {
	msg := NewMessage(RoleTool, content)
	msg.ToolID = toolID
	msg.Name = name
	return msg
}

// IsBlankAssistant reports whether m is an assistant message with no visible
// content and no tool calls. Such messages are left behind by failed
// completions.
func (m *Message) IsBlankAssistant() bool {
	return m != nil &&
		m.Role == RoleAssistant &&
		len(m.ToolCalls) == 0 &&
		strings.TrimSpace(m.Content) == ""
}

// Clone creates a deep copy of the message.
func Clone(msg *Message) *Message {
	if msg == nil {
		return nil
	}
	cloned := *msg
	if msg.Metadata != nil {
		cloned.Metadata = make(map[string]any, len(msg.Metadata))
		for k, v := range msg.Metadata {
			cloned.Metadata[k] = v
		}
	}
	if len(msg.ToolCalls) > 0 {
		cloned.ToolCalls = make([]ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			cloned.ToolCalls[i] = cloneToolCall(tc)
		}
	}
	return &cloned
}

// CloneMessages copies a slice of messages.
func CloneMessages(msgs []*Message) []*Message {
	if len(msgs) == 0 {
		return nil
	}
	clones := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		clones = append(clones, Clone(msg))
	}
	return clones
}

func cloneToolCall(call ToolCall) ToolCall {
	cloned := ToolCall{
		ID:   call.ID,
		Name: call.Name,
	}
	if call.Arguments != nil {
		cloned.Arguments = append(json.RawMessage(nil), call.Arguments...)
	}
	return cloned
}
