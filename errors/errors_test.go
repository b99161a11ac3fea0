package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"model", &ModelUnavailableError{Op: "stream", Err: cause}, ErrModelUnavailable},
		{"unknown", &UnknownCapabilityError{Name: "doThings"}, ErrUnknownCapability},
		{"invalid", &InvalidArgumentsError{Name: "x", Fields: []string{"room: required"}}, ErrInvalidArguments},
		{"execution", &CapabilityExecutionError{Name: "x", CallID: "c1", Err: cause}, ErrCapabilityExecution},
		{"closed", &ClosedStreamError{}, ErrClosedStream},
		{"busy", &ConversationBusyError{ConversationID: "c"}, ErrConversationBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestDispatchErrorUnwraps(t *testing.T) {
	inner := &UnknownCapabilityError{Name: "doThings"}
	err := error(&DispatchError{Err: inner})

	var unknown *UnknownCapabilityError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "doThings", unknown.Name)
	assert.ErrorIs(t, err, ErrUnknownCapability)
	assert.Contains(t, err.Error(), "doThings")
}

func TestCapabilityExecutionErrorKeepsCause(t *testing.T) {
	cause := errors.New("device offline")
	err := &CapabilityExecutionError{Name: "setDevice", CallID: "call-1", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(&ModelUnavailableError{Err: errors.New("503")}))
	assert.True(t, IsRecoverable(&ConversationBusyError{ConversationID: "c"}))
	assert.True(t, IsRecoverable(fmt.Errorf("turn: %w", context.Canceled)))
	assert.False(t, IsRecoverable(&DispatchError{Err: &UnknownCapabilityError{Name: "x"}}))
	assert.False(t, IsRecoverable(&DispatchError{Err: &InvalidArgumentsError{Name: "x"}}))

	// Handler failures stay fatal even when they wrap a timeout or a model outage.
	assert.False(t, IsRecoverable(&DispatchError{Err: &CapabilityExecutionError{
		Name: "lookup",
		Err:  fmt.Errorf("backend lookup: %w", context.DeadlineExceeded),
	}}))
	assert.False(t, IsRecoverable(fmt.Errorf("turn: %w", &DispatchError{Err: &CapabilityExecutionError{
		Name: "summarise",
		Err:  &ModelUnavailableError{Op: "stream", Err: errors.New("503")},
	}})))
}

func TestInvalidArgumentsMessageListsFields(t *testing.T) {
	err := &InvalidArgumentsError{Name: "setDevice", Fields: []string{"state: is required", "room: invalid type"}}
	assert.Equal(t, `invalid arguments for capability "setDevice": state: is required; room: invalid type`, err.Error())
}
