// Package artifact defines the single terminal output of a turn.
package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/sweetpotato0/genui/stream"
)

// Kind tags the artifact variant.
type Kind string

const (
	KindText       Kind = "text"
	KindCapability Kind = "capability"
	KindError      Kind = "error"
)

// Artifact is either a reference to a streamed text value, a capability
// payload, or an error. Only the fields of its Kind are set.
type Artifact struct {
	Kind Kind

	// KindText
	Stream *stream.Value[string]

	// KindCapability
	Name    string
	Payload any

	// KindError
	Message     string
	Recoverable bool
	PartialText string
}

// Text returns a text artifact backed by s.
func Text(s *stream.Value[string]) *Artifact {
	return &Artifact{Kind: KindText, Stream: s}
}

// Capability returns a capability artifact carrying payload unchanged.
func Capability(name string, payload any) *Artifact {
	return &Artifact{Kind: KindCapability, Name: name, Payload: payload}
}

// Error returns an error artifact.
func Error(message string, recoverable bool) *Artifact {
	return &Artifact{Kind: KindError, Message: message, Recoverable: recoverable}
}

// FromError builds an error artifact for err. Text streamed before the
// failure is kept in PartialText and appended to the message.
func FromError(err error, recoverable bool, partial string) *Artifact {
	msg := err.Error()
	if partial != "" {
		msg = fmt.Sprintf("%s\n\npartial response:\n%s", msg, partial)
	}
	a := Error(msg, recoverable)
	a.PartialText = partial
	return a
}

type wire struct {
	Kind        Kind   `json:"kind"`
	Text        string `json:"text,omitempty"`
	Done        *bool  `json:"done,omitempty"`
	Name        string `json:"name,omitempty"`
	Payload     any    `json:"payload,omitempty"`
	Message     string `json:"message,omitempty"`
	Recoverable *bool  `json:"recoverable,omitempty"`
	PartialText string `json:"partial_text,omitempty"`
}

// MarshalJSON renders the artifact for a presentation layer. Text artifacts
// are rendered from the stream's current value.
func (a *Artifact) MarshalJSON() ([]byte, error) {
	w := wire{Kind: a.Kind}
	switch a.Kind {
	case KindText:
		if a.Stream != nil {
			text, done := a.Stream.Current()
			w.Text = text
			w.Done = &done
		}
	case KindCapability:
		w.Name = a.Name
		w.Payload = a.Payload
	case KindError:
		w.Message = a.Message
		recoverable := a.Recoverable
		w.Recoverable = &recoverable
		w.PartialText = a.PartialText
	default:
		return nil, fmt.Errorf("artifact: unknown kind %q", a.Kind)
	}
	return json.Marshal(w)
}
