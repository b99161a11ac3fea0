// Package store provides conversation.Repository implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sweetpotato0/genui/conversation"
	genuierrors "github.com/sweetpotato0/genui/errors"
)

// InMemoryStore keeps conversation states in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]conversation.State
}

// NewInMemoryStore creates an empty in-memory repository.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]conversation.State)}
}

// Load implements conversation.Repository.
func (s *InMemoryStore) Load(_ context.Context, id string) (conversation.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	if !ok {
		return conversation.State{}, fmt.Errorf("conversation %s: %w", id, genuierrors.ErrNotFound)
	}
	return st.Clone(), nil
}

// Save implements conversation.Repository.
func (s *InMemoryStore) Save(_ context.Context, state conversation.State) error {
	if state.ID == "" {
		return fmt.Errorf("conversation id cannot be empty: %w", genuierrors.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ID] = state.Clone()
	return nil
}

// Delete implements conversation.Repository.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

// List implements conversation.Repository.
func (s *InMemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of stored conversations.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states), nil
}
