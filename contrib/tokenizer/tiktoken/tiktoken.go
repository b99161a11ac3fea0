// Package tiktoken counts prompt tokens with the OpenAI BPE encodings.
package tiktoken

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/sweetpotato0/genui/message"
)

// Per-message framing overhead of the chat format.
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer resolves name as a model first, then as an encoding
// such as "cl100k_base".
func NewTiktokenTokenizer(name string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}

// CountMessages estimates the prompt size of a system prompt plus history.
func (t *Tokenizer) CountMessages(system string, msgs []*message.Message) int {
	total := tokensPerReply
	if system != "" {
		total += tokensPerMessage + t.CountTokens(system)
	}
	for _, m := range msgs {
		total += tokensPerMessage + t.CountTokens(string(m.Role)) + t.CountTokens(m.Content)
		for _, tc := range m.ToolCalls {
			total += t.CountTokens(tc.Name) + t.CountTokens(string(tc.Arguments))
		}
	}
	return total
}

func (t *Tokenizer) DecodeIds(ids []int) string {
	return t.enc.Decode(ids)
}
