package cmds

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/genui/config"
	"github.com/sweetpotato0/genui/conversation/store"
	"github.com/sweetpotato0/genui/examples/smarthome"
	"github.com/sweetpotato0/genui/model"
	"github.com/sweetpotato0/genui/model/modeltest"
)

type harness struct {
	app    *app
	script *modeltest.Script
	repo   *store.InMemoryStore
}

func newHarness(t *testing.T, responses ...[]model.Event) *harness {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GENUI_MODEL_TOKENIZER", "no-such-encoding")

	h := &harness{script: modeltest.New(responses...), repo: store.NewInMemoryStore()}
	h.app = &app{
		newClient: func(ctx context.Context, cfg config.ModelConfig) (model.Client, error) {
			return h.script, nil
		},
		repo: h.repo,
	}
	return h
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand(h.app)
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestChatOneShotText(t *testing.T) {
	h := newHarness(t, modeltest.Text("he", "llo"))

	out, _, err := h.run(t, "", "chat", "-m", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	req := h.script.LastRequest()
	assert.Contains(t, req.SystemPrompt, "You control a smart home.")
	assert.Contains(t, req.SystemPrompt, "- setDevice")
	require.Len(t, req.Capabilities, 2)
}

func TestChatCapabilityAndHistory(t *testing.T) {
	h := newHarness(t, modeltest.Call(smarthome.SetDevice, "call_1", `{"id":"coffee-machine","on":true}`))

	out, _, err := h.run(t, "", "chat", "--id", "kitchen", "-m", "make coffee")
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "capability"`)
	assert.Contains(t, out, `"name": "setDevice"`)
	assert.Contains(t, out, `"on": true`)

	assert.Equal(t, 1, h.repo.Count())

	out, _, err = h.run(t, "", "history")
	require.NoError(t, err)
	assert.Equal(t, "kitchen\n", out)

	out, _, err = h.run(t, "", "history", "kitchen")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "user"))
	assert.Contains(t, lines[1], "call setDevice")
	assert.Contains(t, lines[2], "setDevice ->")

	out, _, err = h.run(t, "", "history", "kitchen", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "kitchen"`)
}

func TestChatREPL(t *testing.T) {
	h := newHarness(t, modeltest.Text("one"), modeltest.Text("two"))

	out, errOut, err := h.run(t, "first\nsecond\n\nignored\n", "chat")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", out)
	assert.Contains(t, errOut, "conversation ")
	assert.Len(t, h.script.Requests(), 2)
}

func TestChatErrorArtifact(t *testing.T) {
	h := newHarness(t, modeltest.Call("doThings", "call_1", `{}`))

	out, errOut, err := h.run(t, "", "chat", "-m", "do things")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "error: ")
	assert.Contains(t, errOut, "doThings")
}

func TestInvalidConfig(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(t, "", "--store", "sqlite", "history")
	require.Error(t, err)
	var ve config.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestHistoryUnknownConversation(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run(t, "", "history", "nope")
	assert.Error(t, err)
}
