package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common error conditions. The typed errors below match
// them through errors.Is so callers can branch without type assertions.
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrModelUnavailable indicates the model collaborator failed (network, auth, quota)
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrUnknownCapability indicates the model requested an undeclared capability
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrInvalidArguments indicates capability arguments failed schema validation
	ErrInvalidArguments = errors.New("invalid capability arguments")

	// ErrCapabilityExecution indicates a capability handler failed
	ErrCapabilityExecution = errors.New("capability execution failed")

	// ErrClosedStream indicates an update was attempted on a closed stream
	ErrClosedStream = errors.New("stream is closed")

	// ErrConversationBusy indicates another turn is in flight for the conversation
	ErrConversationBusy = errors.New("conversation busy")
)

// ModelUnavailableError wraps a failure reported by the model collaborator.
type ModelUnavailableError struct {
	Op  string
	Err error
}

func (e *ModelUnavailableError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("model unavailable: %v", e.Err)
	}
	return fmt.Sprintf("model unavailable: %s: %v", e.Op, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

func (e *ModelUnavailableError) Is(target error) bool { return target == ErrModelUnavailable }

// UnknownCapabilityError is returned when a capability name is not registered.
type UnknownCapabilityError struct {
	Name string
}

func (e *UnknownCapabilityError) Error() string {
	return fmt.Sprintf("unknown capability %q", e.Name)
}

func (e *UnknownCapabilityError) Is(target error) bool { return target == ErrUnknownCapability }

// InvalidArgumentsError describes which argument fields failed validation.
type InvalidArgumentsError struct {
	Name   string
	Fields []string
	Err    error
}

func (e *InvalidArgumentsError) Error() string {
	msg := fmt.Sprintf("invalid arguments for capability %q", e.Name)
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, "; ")
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidArgumentsError) Unwrap() error { return e.Err }

func (e *InvalidArgumentsError) Is(target error) bool { return target == ErrInvalidArguments }

// CapabilityExecutionError wraps a failure returned by a capability handler.
type CapabilityExecutionError struct {
	Name   string
	CallID string
	Err    error
}

func (e *CapabilityExecutionError) Error() string {
	return fmt.Sprintf("capability %q (call %s) failed: %v", e.Name, e.CallID, e.Err)
}

func (e *CapabilityExecutionError) Unwrap() error { return e.Err }

func (e *CapabilityExecutionError) Is(target error) bool { return target == ErrCapabilityExecution }

// ClosedStreamError reports an update after a stream was closed. It is a
// programming error and never reaches callers as an artifact.
type ClosedStreamError struct{}

func (e *ClosedStreamError) Error() string { return "update on closed stream" }

func (e *ClosedStreamError) Is(target error) bool { return target == ErrClosedStream }

// ConversationBusyError is returned when a turn is rejected because another
// turn is in flight on the same conversation.
type ConversationBusyError struct {
	ConversationID string
}

func (e *ConversationBusyError) Error() string {
	return fmt.Sprintf("conversation %s already has a turn in flight", e.ConversationID)
}

func (e *ConversationBusyError) Is(target error) bool { return target == ErrConversationBusy }

// DispatchError is the single error kind the dispatcher reports. It wraps an
// UnknownCapabilityError, InvalidArgumentsError or CapabilityExecutionError.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string { return "dispatch: " + e.Err.Error() }

func (e *DispatchError) Unwrap() error { return e.Err }

// IsRecoverable reports whether the user can simply retry after err.
// Model and transport failures, busy conversations and cancellations are
// recoverable; capability and programming mismatches are not. A dispatch
// failure is never recoverable, whatever its handler wrapped.
func IsRecoverable(err error) bool {
	var de *DispatchError
	switch {
	case err == nil:
		return true
	case errors.As(err, &de):
		return false
	case errors.Is(err, ErrModelUnavailable),
		errors.Is(err, ErrConversationBusy),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}
