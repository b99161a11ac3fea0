package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	genuierrors "github.com/sweetpotato0/genui/errors"
)

// Repository persists committed conversation state. Load returns an error
// matching errors.ErrNotFound for unknown IDs.
type Repository interface {
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, state State) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// HookFor returns a commit hook that saves every committed state to repo,
// including the best-known state of abandoned turns.
func HookFor(repo Repository) CommitHook {
	return func(ctx context.Context, state State, _ bool) error {
		return repo.Save(ctx, state)
	}
}

// ChainHooks runs hooks in order and joins their errors.
func ChainHooks(hooks ...CommitHook) CommitHook {
	return func(ctx context.Context, state State, done bool) error {
		var errs []error
		for _, h := range hooks {
			if h == nil {
				continue
			}
			if err := h(ctx, state.Clone(), done); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// Manager owns one Store per conversation ID and rehydrates stores from an
// optional repository.
type Manager struct {
	mu     sync.Mutex
	repo   Repository
	opts   []Option
	hook   CommitHook
	logger *slog.Logger
	stores map[string]*Store
}

// NewManager creates a manager. repo may be nil, in which case history only
// lives in memory. opts are applied to every store the manager creates.
func NewManager(repo Repository, opts ...Option) *Manager {
	o := newOptions(opts)
	hook := o.hook
	if repo != nil {
		hook = ChainHooks(HookFor(repo), o.hook)
	}
	return &Manager{
		repo:   repo,
		opts:   opts,
		hook:   hook,
		logger: o.logger,
		stores: make(map[string]*Store),
	}
}

// GetOrCreate returns the store for id, loading its history from the
// repository the first time. An empty id starts a new conversation with a
// generated ID.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (*Store, error) {
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stores[id]; ok {
		return s, nil
	}

	var history State
	if m.repo != nil {
		st, err := m.repo.Load(ctx, id)
		switch {
		case err == nil:
			history = st
			m.logger.Debug("conversation rehydrated", "conversation_id", id, "messages", len(st.Messages))
		case errors.Is(err, genuierrors.ErrNotFound):
		default:
			return nil, fmt.Errorf("load conversation %s: %w", id, err)
		}
	}

	opts := append(append([]Option(nil), m.opts...),
		WithHistory(history.Messages),
		WithCommitHook(m.hook),
	)
	s := NewStore(id, opts...)
	m.stores[id] = s
	return s, nil
}

// Get returns a cached store without touching the repository.
func (m *Manager) Get(id string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	return s, ok
}

// Delete forgets the conversation and removes it from the repository.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.stores, id)
	m.mu.Unlock()

	if m.repo == nil {
		return nil
	}
	if err := m.repo.Delete(ctx, id); err != nil && !errors.Is(err, genuierrors.ErrNotFound) {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	return nil
}

// IDs returns the known conversation IDs, cached and persisted, sorted.
func (m *Manager) IDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	m.mu.Lock()
	for id := range m.stores {
		seen[id] = struct{}{}
	}
	m.mu.Unlock()

	if m.repo != nil {
		ids, err := m.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
