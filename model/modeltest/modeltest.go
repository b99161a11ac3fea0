// Package modeltest provides a scripted model.Client for tests.
package modeltest

import (
	"context"
	"encoding/json"
	"iter"
	"sync"

	"github.com/sweetpotato0/genui/model"
)

// Script replays a fixed sequence of events and records every request.
// Each Stream call consumes the next response; the last response repeats
// once the script is exhausted.
type Script struct {
	mu        sync.Mutex
	responses [][]model.Event
	requests  []model.Request
	next      int
	// Gate, when set, is received from before each event is yielded.
	Gate chan struct{}
}

// New returns a script whose responses are played one per Stream call.
func New(responses ...[]model.Event) *Script {
	return &Script{responses: responses}
}

// Events is a convenience for building one response.
func Events(events ...model.Event) []model.Event {
	return events
}

// Text builds the deltas "h", "he", ... for each prefix of chunks followed by
// a final delta carrying the concatenation.
func Text(chunks ...string) []model.Event {
	var (
		events []model.Event
		so     string
	)
	for _, c := range chunks {
		so += c
		events = append(events, model.TextDelta{ContentSoFar: so})
	}
	return append(events, model.TextDelta{ContentSoFar: so, Final: true})
}

// Call builds a single capability call response.
func Call(name, callID, args string) []model.Event {
	return []model.Event{model.CapabilityCall{Name: name, CallID: callID, Arguments: json.RawMessage(args)}}
}

// Stream implements model.Client.
func (s *Script) Stream(ctx context.Context, req model.Request) iter.Seq[model.Event] {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	var events []model.Event
	if len(s.responses) > 0 {
		idx := s.next
		if idx >= len(s.responses) {
			idx = len(s.responses) - 1
		} else {
			s.next++
		}
		events = s.responses[idx]
	}
	gate := s.Gate
	s.mu.Unlock()

	return func(yield func(model.Event) bool) {
		for _, ev := range events {
			if gate != nil {
				select {
				case <-gate:
				case <-ctx.Done():
					yield(model.StreamError{Err: ctx.Err()})
					return
				}
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Requests returns the requests seen so far.
func (s *Script) Requests() []model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Request(nil), s.requests...)
}

// LastRequest returns the most recent request, or the zero value.
func (s *Script) LastRequest() model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return model.Request{}
	}
	return s.requests[len(s.requests)-1]
}
