// Package model defines the contract between the orchestrator and a language
// model: the request it sends and the events the model streams back.
package model

import (
	"context"
	"encoding/json"
	"iter"

	"github.com/sweetpotato0/genui/capability"
	"github.com/sweetpotato0/genui/message"
)

// Event is one item of a model stream. It is implemented by TextDelta,
// CapabilityCall and StreamError only.
type Event interface {
	isEvent()
}

// TextDelta carries the full text produced so far. Final marks the last
// text event of the response.
type TextDelta struct {
	ContentSoFar string
	Final        bool
}

// CapabilityCall asks for a registered capability to be executed.
type CapabilityCall struct {
	Name      string
	Arguments json.RawMessage
	CallID    string
}

// StreamError reports that the model failed mid-stream.
type StreamError struct {
	Err error
}

func (TextDelta) isEvent()      {}
func (CapabilityCall) isEvent() {}
func (StreamError) isEvent()    {}

// Request is everything a model needs to produce one response.
type Request struct {
	SystemPrompt string
	Messages     []*message.Message
	Capabilities []capability.Descriptor
}

// Client streams a model response. Implementations yield events in order
// and end the sequence after the first terminal event: a final TextDelta,
// a CapabilityCall or a StreamError. Stopping iteration early must release
// the underlying connection.
type Client interface {
	Stream(ctx context.Context, req Request) iter.Seq[Event]
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) iter.Seq[Event]

// Stream implements Client.
func (f ClientFunc) Stream(ctx context.Context, req Request) iter.Seq[Event] {
	return f(ctx, req)
}

// IsTerminal reports whether ev ends a response.
func IsTerminal(ev Event) bool {
	switch e := ev.(type) {
	case TextDelta:
		return e.Final
	case CapabilityCall, StreamError:
		return true
	default:
		return false
	}
}
