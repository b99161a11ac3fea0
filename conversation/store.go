// Package conversation keeps the message history of conversations and
// serializes the turns that mutate it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	genuierrors "github.com/sweetpotato0/genui/errors"
	"github.com/sweetpotato0/genui/message"
	"github.com/sweetpotato0/genui/pkg/logging"
)

// ErrTurnFinished is returned when a turn is committed more than once.
var ErrTurnFinished = errors.New("turn already committed")

// State is the committed history of one conversation.
type State struct {
	ID        string             `json:"id" bson:"_id"`
	Messages  []*message.Message `json:"messages" bson:"messages"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Messages = message.CloneMessages(s.Messages)
	return s
}

// CommitHook observes every commit. done is false when the turn was
// abandoned before the model finished.
type CommitHook func(ctx context.Context, state State, done bool) error

// BusyPolicy decides what happens when a turn starts while another is in
// flight on the same conversation.
type BusyPolicy int

const (
	// BusySerialize waits for the in-flight turn to commit.
	BusySerialize BusyPolicy = iota
	// BusyReject fails with a ConversationBusyError.
	BusyReject
)

func (p BusyPolicy) String() string {
	if p == BusyReject {
		return "reject"
	}
	return "serialize"
}

// ParseBusyPolicy maps "serialize" and "reject" to a policy.
func ParseBusyPolicy(s string) (BusyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "serialize":
		return BusySerialize, nil
	case "reject":
		return BusyReject, nil
	default:
		return BusySerialize, fmt.Errorf("unknown busy policy %q", s)
	}
}

// Option configures a Store or a Manager.
type Option func(*options)

type options struct {
	history []*message.Message
	hook    CommitHook
	policy  BusyPolicy
	logger  *slog.Logger
}

// WithHistory seeds a store with previously committed messages.
func WithHistory(msgs []*message.Message) Option {
	return func(o *options) {
		o.history = msgs
	}
}

// WithCommitHook sets the hook invoked after every commit.
func WithCommitHook(hook CommitHook) Option {
	return func(o *options) {
		o.hook = hook
	}
}

// WithBusyPolicy sets how concurrent turns are handled.
func WithBusyPolicy(p BusyPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: logging.WithComponent("conversation")}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Store holds the committed history of one conversation and the working copy
// a turn builds on.
type Store struct {
	id     string
	hook   CommitHook
	policy BusyPolicy
	logger *slog.Logger
	gate   chan struct{}

	mu        sync.Mutex
	committed []*message.Message
	working   []*message.Message
	updatedAt time.Time
}

// NewStore creates a store for conversation id.
func NewStore(id string, opts ...Option) *Store {
	o := newOptions(opts)
	committed := message.CloneMessages(o.history)
	return &Store{
		id:        id,
		hook:      o.hook,
		policy:    o.policy,
		logger:    o.logger.With("conversation_id", id),
		gate:      make(chan struct{}, 1),
		committed: committed,
		working:   message.CloneMessages(committed),
		updatedAt: time.Now(),
	}
}

// ID returns the conversation identifier.
func (s *Store) ID() string {
	return s.id
}

// Snapshot returns a deep copy of the working messages.
func (s *Store) Snapshot() []*message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return message.CloneMessages(s.working)
}

// State returns a deep copy of the committed history.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Append adds msg to the working copy without committing it. It fails with
// ConversationBusyError while a turn is in flight.
func (s *Store) Append(msg *message.Message) error {
	if msg == nil {
		return nil
	}
	if err := s.tryAcquire(); err != nil {
		return err
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = append(s.working, message.Clone(msg))
	return nil
}

// Cleanup drops every trailing blank assistant message from the working copy.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = TrimBlankAssistant(s.working)
}

// Commit makes the working copy plus staged the committed history and runs
// the commit hook once. A hook failure is returned but the commit stands.
// Turns commit through their TurnTx; Commit fails with ConversationBusyError
// while one is in flight.
func (s *Store) Commit(ctx context.Context, staged ...*message.Message) error {
	if err := s.tryAcquire(); err != nil {
		return err
	}
	defer s.release()
	return s.commit(ctx, true, staged)
}

func (s *Store) tryAcquire() error {
	select {
	case s.gate <- struct{}{}:
		return nil
	default:
		return &genuierrors.ConversationBusyError{ConversationID: s.id}
	}
}

func (s *Store) release() {
	<-s.gate
}

func (s *Store) commit(ctx context.Context, done bool, staged []*message.Message) error {
	s.mu.Lock()
	next := make([]*message.Message, 0, len(s.working)+len(staged))
	next = append(next, s.working...)
	for _, m := range staged {
		if m != nil {
			next = append(next, message.Clone(m))
		}
	}
	s.committed = next
	s.working = message.CloneMessages(next)
	s.updatedAt = time.Now()
	state := s.stateLocked()
	hook := s.hook
	s.mu.Unlock()

	s.logger.Debug("conversation committed", "messages", len(state.Messages), "done", done)
	if hook == nil {
		return nil
	}
	if err := hook(ctx, state, done); err != nil {
		s.logger.Error("commit hook failed", "error", err)
		return fmt.Errorf("commit hook: %w", err)
	}
	return nil
}

func (s *Store) stateLocked() State {
	return State{
		ID:        s.id,
		Messages:  message.CloneMessages(s.committed),
		UpdatedAt: s.updatedAt,
	}
}

// BeginTurn claims the conversation for one turn. Trailing blank assistant
// messages are dropped and user is appended to the working copy. The
// returned transaction must be committed to release the conversation.
func (s *Store) BeginTurn(ctx context.Context, user *message.Message) (*TurnTx, error) {
	switch s.policy {
	case BusyReject:
		select {
		case s.gate <- struct{}{}:
		default:
			return nil, &genuierrors.ConversationBusyError{ConversationID: s.id}
		}
	default:
		select {
		case s.gate <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	s.working = TrimBlankAssistant(s.working)
	if user != nil {
		s.working = append(s.working, message.Clone(user))
	}
	snapshot := message.CloneMessages(s.working)
	s.mu.Unlock()

	return &TurnTx{store: s, snapshot: snapshot}, nil
}

// TurnTx is an in-flight turn holding the conversation's turn gate.
type TurnTx struct {
	store    *Store
	snapshot []*message.Message

	mu       sync.Mutex
	finished bool
}

// Messages returns the history the turn's model request is built from.
func (tx *TurnTx) Messages() []*message.Message {
	return message.CloneMessages(tx.snapshot)
}

// Commit commits the turn and releases the conversation. Only the first call
// has any effect; later calls return ErrTurnFinished.
func (tx *TurnTx) Commit(ctx context.Context, done bool, staged ...*message.Message) error {
	tx.mu.Lock()
	if tx.finished {
		tx.mu.Unlock()
		return ErrTurnFinished
	}
	tx.finished = true
	tx.mu.Unlock()

	defer tx.store.release()
	return tx.store.commit(ctx, done, staged)
}

// TrimBlankAssistant returns msgs without its trailing blank assistant
// messages. The backing array is shared with msgs.
func TrimBlankAssistant(msgs []*message.Message) []*message.Message {
	n := len(msgs)
	for n > 0 && msgs[n-1].IsBlankAssistant() {
		n--
	}
	return msgs[:n]
}
