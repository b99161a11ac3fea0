package artifact

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetpotato0/genui/stream"
)

func TestTextArtifactJSON(t *testing.T) {
	s := stream.New("")
	require.NoError(t, s.Update("hello"))
	s.Done()

	raw, err := json.Marshal(Text(s))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"text","text":"hello","done":true}`, string(raw))
}

func TestCapabilityArtifactJSON(t *testing.T) {
	raw, err := json.Marshal(Capability("listDevices", map[string]any{"count": 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"capability","name":"listDevices","payload":{"count":2}}`, string(raw))
}

func TestErrorArtifactJSONKeepsRecoverableFalse(t *testing.T) {
	raw, err := json.Marshal(Error("unknown capability", false))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"error","message":"unknown capability","recoverable":false}`, string(raw))
}

func TestFromErrorKeepsPartialText(t *testing.T) {
	a := FromError(errors.New("connection reset"), true, "Hello, wor")
	assert.Equal(t, KindError, a.Kind)
	assert.True(t, a.Recoverable)
	assert.Equal(t, "Hello, wor", a.PartialText)
	assert.Contains(t, a.Message, "connection reset")
	assert.Contains(t, a.Message, "Hello, wor")

	bare := FromError(errors.New("boom"), false, "")
	assert.Equal(t, "boom", bare.Message)
}

func TestUnknownKindFailsToMarshal(t *testing.T) {
	_, err := json.Marshal(&Artifact{Kind: "weird"})
	assert.Error(t, err)
}
