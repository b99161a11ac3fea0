package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sweetpotato0/genui/artifact"
	"github.com/sweetpotato0/genui/capability"
	genuierrors "github.com/sweetpotato0/genui/errors"
	"github.com/sweetpotato0/genui/message"
	"github.com/sweetpotato0/genui/model"
	"github.com/sweetpotato0/genui/pkg/telemetry"
	"github.com/sweetpotato0/genui/stream"
)

// State is the lifecycle position of a turn.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateTextTerminal
	StateToolTerminal
	StateFailed
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateTextTerminal:
		return "text_terminal"
	case StateToolTerminal:
		return "tool_terminal"
	case StateFailed:
		return "failed"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Turn is one in-flight request/response cycle.
type Turn struct {
	id   string
	text *stream.Value[string]
	done chan struct{}

	mu       sync.Mutex
	state    State
	terminal State
	art      *artifact.Artifact
}

func newTurn() *Turn {
	return &Turn{
		id:   uuid.NewString(),
		text: stream.New(""),
		done: make(chan struct{}),
	}
}

// ID returns the turn identifier used in logs and spans.
func (t *Turn) ID() string {
	return t.id
}

// Stream returns the text stream of the turn. It is closed when the turn
// reaches a terminal state, empty if no text was produced.
func (t *Turn) Stream() *stream.Value[string] {
	return t.text
}

// Done is closed once the turn has committed and its artifact is set.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the turn finishes or ctx is done. Giving up on the wait
// does not stop the turn.
func (t *Turn) Wait(ctx context.Context) (*artifact.Artifact, error) {
	select {
	case <-t.done:
		return t.Artifact(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Artifact returns the terminal artifact, or nil while the turn is running.
func (t *Turn) Artifact() *artifact.Artifact {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.art
}

// State returns the current lifecycle state.
func (t *Turn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Terminal returns which terminal state the turn reached, or StateIdle if it
// has not reached one yet.
func (t *Turn) Terminal() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminal
}

func (t *Turn) setState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
	switch s {
	case StateTextTerminal, StateToolTerminal, StateFailed:
		t.terminal = s
	}
}

func (t *Turn) finish(art *artifact.Artifact) {
	t.mu.Lock()
	t.art = art
	t.state = StateDone
	t.mu.Unlock()
	close(t.done)
}

// outcome is what the event loop settled on.
type outcome struct {
	state   State
	art     *artifact.Artifact
	staged  []*message.Message
	partial string
	err     error
}

func (o *Orchestrator) run(ctx context.Context, t *Turn, text string) {
	ctx, span := telemetry.StartTurn(ctx, o.tracer, o.store.ID(), t.id)
	logger := o.logger.With("conversation_id", o.store.ID(), "turn_id", t.id)

	tx, err := o.store.BeginTurn(ctx, message.NewMessage(message.RoleUser, text))
	if err != nil {
		logger.Warn("turn rejected", "error", err)
		t.text.Done()
		t.setState(StateFailed)
		t.finish(artifact.FromError(err, genuierrors.IsRecoverable(err), ""))
		telemetry.End(span, err)
		return
	}

	t.setState(StateStreaming)
	req := model.Request{
		SystemPrompt: o.systemPrompt,
		Messages:     tx.Messages(),
		Capabilities: o.registry.Descriptors(),
	}
	if o.counter != nil {
		tokens := o.counter.CountMessages(req.SystemPrompt, req.Messages)
		span.SetAttributes(telemetry.PromptTokensKey.Int(tokens))
		logger.Debug("model request prepared", "messages", len(req.Messages), "prompt_tokens", tokens)
	}

	out := o.consume(ctx, t, req)
	done := true
	if out.err != nil {
		out.state = StateFailed
		done = ctx.Err() == nil
		t.text.Done()
		out.staged = nil
		if strings.TrimSpace(out.partial) != "" {
			out.staged = []*message.Message{message.NewMessage(message.RoleAssistant, out.partial)}
		}
		out.art = artifact.FromError(out.err, genuierrors.IsRecoverable(out.err), out.partial)
		logger.Warn("turn failed", "error", out.err, "recoverable", out.art.Recoverable)
	}
	t.setState(out.state)
	span.SetAttributes(telemetry.TurnTerminalKey.String(out.state.String()))

	if err := tx.Commit(context.WithoutCancel(ctx), done, out.staged...); err != nil {
		logger.Error("turn commit failed", "error", err)
	}
	logger.Info("turn finished", "terminal", out.state.String(), "staged", len(out.staged), "done", done)

	t.finish(out.art)
	telemetry.End(span, out.err)
}

// consume reads model events until the first terminal one. Events after it
// are never read.
func (o *Orchestrator) consume(ctx context.Context, t *Turn, req model.Request) outcome {
	var partial string
	for ev := range o.client.Stream(ctx, req) {
		if err := ctx.Err(); err != nil {
			return outcome{partial: partial, err: err}
		}

		switch e := ev.(type) {
		case model.TextDelta:
			if !e.Final {
				partial = e.ContentSoFar
				t.text.MustUpdate(e.ContentSoFar)
				continue
			}
			closeWith(t.text, e.ContentSoFar)
			var staged []*message.Message
			if strings.TrimSpace(e.ContentSoFar) != "" {
				staged = append(staged, message.NewMessage(message.RoleAssistant, e.ContentSoFar))
			}
			return outcome{state: StateTextTerminal, art: artifact.Text(t.text), staged: staged}

		case model.CapabilityCall:
			art, err := o.dispatcher.Dispatch(ctx, capability.Call{Name: e.Name, ID: e.CallID}, e.Arguments)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				return outcome{partial: partial, err: err}
			}
			// A capability answer replaces any text streamed before the call.
			closeWith(t.text, "")
			return outcome{
				state:  StateToolTerminal,
				art:    art,
				staged: toolExchange(e, art.Payload),
			}

		case model.StreamError:
			return outcome{partial: partial, err: modelError(e.Err)}
		}
	}

	if err := ctx.Err(); err != nil {
		return outcome{partial: partial, err: err}
	}
	return outcome{partial: partial, err: &genuierrors.ModelUnavailableError{
		Op:  "stream",
		Err: errors.New("stream ended without a terminal event"),
	}}
}

// closeWith closes v on final, publishing final only if it differs from
// what subscribers already saw.
func closeWith(v *stream.Value[string], final string) {
	if cur, _ := v.Current(); cur == final {
		v.Done()
		return
	}
	if err := v.DoneWith(final); err != nil {
		panic(err)
	}
}

func toolExchange(call model.CapabilityCall, payload any) []*message.Message {
	content, err := json.Marshal(payload)
	if err != nil {
		content = []byte(fmt.Sprint(payload))
	}
	return []*message.Message{
		message.NewToolCallMessage(message.ToolCall{
			ID:        call.CallID,
			Name:      call.Name,
			Arguments: call.Arguments,
		}),
		message.NewToolResponseMessage(call.CallID, call.Name, string(content)),
	}
}

func modelError(err error) error {
	switch {
	case err == nil:
		return &genuierrors.ModelUnavailableError{Op: "stream", Err: errors.New("unspecified stream error")}
	case isCancellation(err), errors.Is(err, genuierrors.ErrModelUnavailable):
		return err
	default:
		return &genuierrors.ModelUnavailableError{Op: "stream", Err: err}
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
