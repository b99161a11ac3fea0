package tiktoken

import (
	"testing"

	"github.com/sweetpotato0/genui/message"
)

func newTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := NewTiktokenTokenizer("cl100k_base")
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	return tok
}

func TestCountTokensMatchesEncode(t *testing.T) {
	tok := newTokenizer(t)
	text := "turn on the living room lamp"
	if got, want := tok.CountTokens(text), len(tok.Encode(text)); got != want {
		t.Fatalf("CountTokens = %d, want %d", got, want)
	}
	if tok.DecodeIds(tok.Encode(text)) != text {
		t.Fatal("decode did not round-trip")
	}
}

func TestCountMessagesGrowsWithHistory(t *testing.T) {
	tok := newTokenizer(t)
	one := []*message.Message{message.NewMessage(message.RoleUser, "hi")}
	two := append(one, message.NewMessage(message.RoleAssistant, "hello there"))

	if tok.CountMessages("", one) >= tok.CountMessages("", two) {
		t.Fatal("expected more tokens for a longer history")
	}
	if tok.CountMessages("be brief", one) <= tok.CountMessages("", one) {
		t.Fatal("expected the system prompt to be counted")
	}
}
