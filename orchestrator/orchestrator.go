// Package orchestrator drives conversation turns: it streams one model
// response, routes its events to the text stream or the capability
// dispatcher, commits the outcome and hands back exactly one artifact.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/sweetpotato0/genui/artifact"
	"github.com/sweetpotato0/genui/capability"
	"github.com/sweetpotato0/genui/conversation"
	"github.com/sweetpotato0/genui/message"
	"github.com/sweetpotato0/genui/model"
	"github.com/sweetpotato0/genui/pkg/logging"
	"github.com/sweetpotato0/genui/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// TokenCounter estimates the prompt size of a request.
type TokenCounter interface {
	CountMessages(system string, msgs []*message.Message) int
}

// Orchestrator runs turns against one conversation.
type Orchestrator struct {
	store        *conversation.Store
	client       model.Client
	registry     *capability.Registry
	dispatcher   *capability.Dispatcher
	systemPrompt string
	logger       *slog.Logger
	tracer       trace.Tracer
	counter      TokenCounter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRegistry sets the capabilities offered to the model.
func WithRegistry(reg *capability.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = reg
	}
}

// WithSystemPrompt sets the system instructions sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) {
		o.systemPrompt = prompt
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer overrides the tracer used for turn spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithTokenCounter records the prompt size of every request.
func WithTokenCounter(c TokenCounter) Option {
	return func(o *Orchestrator) {
		o.counter = c
	}
}

// New creates an orchestrator for the conversation held by store.
func New(store *conversation.Store, client model.Client, opts ...Option) *Orchestrator {
	if store == nil {
		panic("orchestrator: nil conversation store")
	}
	if client == nil {
		panic("orchestrator: nil model client")
	}

	o := &Orchestrator{
		store:  store,
		client: client,
		logger: logging.WithComponent("orchestrator"),
		tracer: telemetry.Tracer("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = capability.MustRegistry()
	}
	o.dispatcher = capability.NewDispatcher(o.registry,
		capability.WithLogger(o.logger),
		capability.WithTracer(o.tracer))
	return o
}

// ConversationID returns the ID of the conversation the orchestrator drives.
func (o *Orchestrator) ConversationID() string {
	return o.store.ID()
}

// Start begins a turn for text and returns immediately. The turn's text
// stream is live before the turn completes.
func (o *Orchestrator) Start(ctx context.Context, text string) *Turn {
	t := newTurn()
	go o.run(ctx, t, text)
	return t
}

// SendMessage runs a turn to completion and returns its artifact. It never
// returns nil: failures are reported as error artifacts.
func (o *Orchestrator) SendMessage(ctx context.Context, text string) *artifact.Artifact {
	t := o.Start(ctx, text)
	<-t.Done()
	return t.Artifact()
}
