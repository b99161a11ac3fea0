package capability

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/sweetpotato0/genui/artifact"
	genuierrors "github.com/sweetpotato0/genui/errors"
	"github.com/sweetpotato0/genui/pkg/logging"
	"github.com/sweetpotato0/genui/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher validates and executes capability calls against a registry.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// NewDispatcher creates a dispatcher for reg.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   logging.WithComponent("capability"),
		tracer:   telemetry.Tracer("capability"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the registry the dispatcher resolves names against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch resolves call.Name, validates raw against its schema and invokes
// the handler once. The returned artifact carries the handler payload
// unchanged. Every failure is a *errors.DispatchError.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call, raw json.RawMessage) (art *artifact.Artifact, err error) {
	ctx, span := telemetry.StartDispatch(ctx, d.tracer, call.Name, call.ID)
	defer func() { telemetry.End(span, err) }()

	desc, err := d.registry.Lookup(call.Name)
	if err != nil {
		d.logger.Warn("unknown capability requested", "capability", call.Name, "call_id", call.ID)
		return nil, &genuierrors.DispatchError{Err: err}
	}

	input, err := desc.Schema.Validate(raw)
	if err != nil {
		invalid := &genuierrors.InvalidArgumentsError{Name: call.Name, Err: err}
		var violation *SchemaViolation
		if stderrors.As(err, &violation) {
			invalid.Fields = violation.Fields
		}
		d.logger.Warn("capability arguments rejected",
			"capability", call.Name, "call_id", call.ID, "fields", invalid.Fields)
		return nil, &genuierrors.DispatchError{Err: invalid}
	}

	payload, err := invoke(ctx, desc.Handler, input, call)
	if err != nil {
		d.logger.Error("capability handler failed",
			"capability", call.Name, "call_id", call.ID, "error", err)
		return nil, &genuierrors.DispatchError{Err: &genuierrors.CapabilityExecutionError{
			Name:   call.Name,
			CallID: call.ID,
			Err:    err,
		}}
	}

	d.logger.Debug("capability dispatched", "capability", call.Name, "call_id", call.ID)
	return artifact.Capability(call.Name, payload), nil
}

func invoke(ctx context.Context, h Handler, input any, call Call) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, input, call)
}
