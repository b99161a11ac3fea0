package message

import (
	"encoding/json"
	"testing"
)

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "Hello, world!")

	if msg.Role != RoleUser {
		t.Errorf("Expected role %s, got %s", RoleUser, msg.Role)
	}

	if msg.Content != "Hello, world!" {
		t.Errorf("Expected content 'Hello, world!', got '%s'", msg.Content)
	}

	if msg.ID == "" {
		t.Error("Expected non-empty ID")
	}

	if msg.CreatedAt.IsZero() {
		t.Error("Expected non-zero created time")
	}
}

func TestNewMessageIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewMessage(RoleUser, "x").ID
		if seen[id] {
			t.Fatalf("duplicate message id %s", id)
		}
		seen[id] = true
	}
}

func TestNewToolCallMessage(t *testing.T) {
	msg := NewToolCallMessage(ToolCall{ID: "call1", Name: "tool1", Arguments: json.RawMessage(`{"arg1":"value1"}`)})

	if msg.Role != RoleAssistant {
		t.Errorf("Expected role %s, got %s", RoleAssistant, msg.Role)
	}

	if len(msg.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(msg.ToolCalls))
	}

	if msg.ToolCalls[0].Name != "tool1" {
		t.Errorf("Expected tool name 'tool1', got '%s'", msg.ToolCalls[0].Name)
	}

	if msg.IsBlankAssistant() {
		t.Error("a tool call message must not count as a blank assistant message")
	}
}

func TestNewToolResponseMessage(t *testing.T) {
	msg := NewToolResponseMessage("call1", "tool1", "result")

	if msg.Role != RoleTool {
		t.Errorf("Expected role %s, got %s", RoleTool, msg.Role)
	}

	if msg.Content != "result" {
		t.Errorf("Expected content 'result', got '%s'", msg.Content)
	}

	if msg.ToolID != "call1" || msg.Name != "tool1" {
		t.Errorf("Expected tool ID 'call1' and name 'tool1', got '%s' / '%s'", msg.ToolID, msg.Name)
	}
}

func TestIsBlankAssistant(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		want bool
	}{
		{"empty assistant", NewMessage(RoleAssistant, ""), true},
		{"whitespace assistant", NewMessage(RoleAssistant, " \n\t"), true},
		{"assistant with text", NewMessage(RoleAssistant, "hi"), false},
		{"blank user", NewMessage(RoleUser, ""), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsBlankAssistant(); got != tt.want {
				t.Errorf("IsBlankAssistant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := NewToolCallMessage(ToolCall{ID: "c1", Name: "n", Arguments: json.RawMessage(`{"a":1}`)})
	original.Metadata = map[string]any{"k": "v"}

	cloned := Clone(original)
	cloned.ToolCalls[0].Arguments[2] = 'b'
	cloned.Metadata["k"] = "changed"

	if string(original.ToolCalls[0].Arguments) != `{"a":1}` {
		t.Errorf("clone shares argument bytes: %s", original.ToolCalls[0].Arguments)
	}
	if original.Metadata["k"] != "v" {
		t.Errorf("clone shares metadata map")
	}
}

func TestCloneMessagesPreservesOrder(t *testing.T) {
	msgs := []*Message{
		NewMessage(RoleUser, "one"),
		NewMessage(RoleAssistant, "two"),
		NewMessage(RoleUser, "three"),
	}

	clones := CloneMessages(msgs)
	if len(clones) != len(msgs) {
		t.Fatalf("expected %d clones, got %d", len(msgs), len(clones))
	}
	for i := range msgs {
		if clones[i] == msgs[i] {
			t.Errorf("message %d was not copied", i)
		}
		if clones[i].ID != msgs[i].ID || clones[i].Content != msgs[i].Content {
			t.Errorf("message %d differs after clone", i)
		}
	}
	if CloneMessages(nil) != nil {
		t.Error("expected nil for empty input")
	}
}
