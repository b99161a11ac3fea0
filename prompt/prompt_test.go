package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/genui/capability"
)

func testRegistry(t *testing.T) *capability.Registry {
	t.Helper()
	noop := func(ctx context.Context, in struct{}, call capability.Call) (any, error) { return nil, nil }
	reg, err := capability.NewRegistry(
		capability.MustTyped("listDevices", "List every device and its state", noop),
		capability.MustTyped("setDevice", "", noop),
	)
	require.NoError(t, err)
	return reg
}

func TestRenderSystem(t *testing.T) {
	out, err := RenderSystem("You run a smart home.", testRegistry(t))
	require.NoError(t, err)

	assert.Equal(t, "You run a smart home.\n\n"+
		"Reply with plain text, or call exactly one of these capabilities when it answers the request better:\n"+
		"- listDevices: List every device and its state\n"+
		"- setDevice", out)
}

func TestRenderSystemWithoutCapabilities(t *testing.T) {
	out, err := RenderSystem("", nil)
	require.NoError(t, err)
	assert.Equal(t, "Reply with plain text.", out)
}

func TestManagerCustomTemplate(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.RegisterString(SystemTemplateName, "{{len .Capabilities}} tools. {{.Instructions}}"))

	out, err := m.System("Be brief.", testRegistry(t))
	require.NoError(t, err)
	assert.Equal(t, "2 tools. Be brief.", out)

	require.NoError(t, m.RegisterString("greeting", "Hello {{.name}}"))
	out, err = m.Render("greeting", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", out)

	_, err = m.Render("greeting", map[string]any{})
	assert.Error(t, err)

	assert.Equal(t, []string{"greeting", "system"}, m.List())
}

func TestManagerErrors(t *testing.T) {
	m := NewManager()
	_, err := m.Get("missing")
	assert.Error(t, err)

	assert.Error(t, m.Register(&Template{}))
	assert.Error(t, m.RegisterString("bad", "{{.Unclosed"))
}
