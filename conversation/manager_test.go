package conversation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/genui/conversation"
	"github.com/sweetpotato0/genui/conversation/store"
	"github.com/sweetpotato0/genui/message"
	"github.com/sweetpotato0/genui/pkg/logging"
)

func TestManagerPersistsAndRehydrates(t *testing.T) {
	ctx := context.Background()
	repo := store.NewInMemoryStore()

	mgr := conversation.NewManager(repo, conversation.WithLogger(logging.Discard()))
	s, err := mgr.GetOrCreate(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, s.ID())

	again, err := mgr.GetOrCreate(ctx, s.ID())
	require.NoError(t, err)
	assert.Same(t, s, again)

	tx, err := s.BeginTurn(ctx, message.NewMessage(message.RoleUser, "hi"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx, true, message.NewMessage(message.RoleAssistant, "hello")))

	saved, err := repo.Load(ctx, s.ID())
	require.NoError(t, err)
	require.Len(t, saved.Messages, 2)

	fresh := conversation.NewManager(repo, conversation.WithLogger(logging.Discard()))
	restored, err := fresh.GetOrCreate(ctx, s.ID())
	require.NoError(t, err)
	snap := restored.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "hello", snap[1].Content)

	ids, err := fresh.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID()}, ids)

	require.NoError(t, fresh.Delete(ctx, s.ID()))
	_, ok := fresh.Get(s.ID())
	assert.False(t, ok)
	ids, err = fresh.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestManagerChainsUserHook(t *testing.T) {
	ctx := context.Background()
	var seen []bool
	mgr := conversation.NewManager(store.NewInMemoryStore(),
		conversation.WithLogger(logging.Discard()),
		conversation.WithCommitHook(func(_ context.Context, _ conversation.State, done bool) error {
			seen = append(seen, done)
			return nil
		}))

	s, err := mgr.GetOrCreate(ctx, "c1")
	require.NoError(t, err)
	tx, err := s.BeginTurn(ctx, message.NewMessage(message.RoleUser, "hi"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx, false))

	assert.Equal(t, []bool{false}, seen)
}

func TestManagerWithoutRepository(t *testing.T) {
	mgr := conversation.NewManager(nil, conversation.WithLogger(logging.Discard()))
	s, err := mgr.GetOrCreate(context.Background(), "c1")
	require.NoError(t, err)
	s.Append(message.NewMessage(message.RoleUser, "hi"))
	require.NoError(t, s.Commit(context.Background()))

	ids, err := mgr.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}
