// Package stream provides Value, a single-writer, single-subscriber cell that
// carries an incrementally produced value (typically streamed text) from the
// goroutine driving a model stream to one consumer.
//
// A Value moves through two states: open and closed. While open the producer
// replaces the current value with Update; Done closes it. The consumer calls
// Subscribe once and then Next until it reports false. Delivery has
// latest-value semantics: a slow consumer may skip intermediate values but
// always observes the last value before closure, exactly once.
package stream

import (
	"context"
	"errors"
	"iter"
	"sync"

	genuierrors "github.com/sweetpotato0/genui/errors"
)

// ErrAlreadySubscribed is returned when a second subscriber attaches while the
// first is still active.
var ErrAlreadySubscribed = errors.New("stream: value already has an active subscriber")

// Value is an incremental value cell with an update/done lifecycle.
type Value[T any] struct {
	mu         sync.Mutex
	current    T
	closed     bool
	version    uint64
	changed    chan struct{}
	subscribed bool
}

// New creates an open Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		changed: make(chan struct{}),
	}
}

// Update replaces the current value. It fails with a ClosedStreamError once
// Done has been called.
func (v *Value[T]) Update(val T) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return &genuierrors.ClosedStreamError{}
	}
	v.current = val
	v.version++
	v.notifyLocked()
	return nil
}

// MustUpdate is Update for producers that treat a closed stream as a broken
// invariant.
func (v *Value[T]) MustUpdate(val T) {
	if err := v.Update(val); err != nil {
		panic(err)
	}
}

// Done closes the value. Calling Done on a closed value is a no-op.
func (v *Value[T]) Done() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.notifyLocked()
}

// DoneWith sets the final value and closes in one step, so a subscriber never
// observes an open state holding the final value.
func (v *Value[T]) DoneWith(final T) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return &genuierrors.ClosedStreamError{}
	}
	v.current = final
	v.version++
	v.closed = true
	v.notifyLocked()
	return nil
}

// Current returns the latest value and whether the value is closed.
func (v *Value[T]) Current() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.closed
}

// Closed reports whether Done has been called.
func (v *Value[T]) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// Subscribe attaches the single subscriber. It returns the current value and
// a Subscription yielding later values. If the value is already closed the
// returned value is final and the subscription yields nothing.
func (v *Value[T]) Subscribe() (T, *Subscription[T], error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.subscribed {
		var zero T
		return zero, nil, ErrAlreadySubscribed
	}
	v.subscribed = true
	sub := &Subscription[T]{value: v, seen: v.version, finished: v.closed}
	return v.current, sub, nil
}

func (v *Value[T]) notifyLocked() {
	close(v.changed)
	v.changed = make(chan struct{})
}

// Subscription yields the values published after Subscribe.
type Subscription[T any] struct {
	value    *Value[T]
	seen     uint64
	finished bool
	released bool
}

// Next blocks until a newer value is published or the value is closed. It
// returns false once the value is closed and its final value was delivered,
// or when ctx is done.
func (s *Subscription[T]) Next(ctx context.Context) (T, bool) {
	var zero T
	for {
		v := s.value
		v.mu.Lock()
		if s.finished {
			v.mu.Unlock()
			return zero, false
		}
		if v.version > s.seen {
			s.seen = v.version
			val := v.current
			v.mu.Unlock()
			return val, true
		}
		if v.closed {
			s.finished = true
			v.mu.Unlock()
			return zero, false
		}
		ch := v.changed
		v.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return zero, false
		}
	}
}

// Closed reports whether the subscription has observed closure.
func (s *Subscription[T]) Closed() bool {
	s.value.mu.Lock()
	defer s.value.mu.Unlock()
	return s.finished
}

// All ranges over the remaining values until closure or ctx is done.
func (s *Subscription[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			val, ok := s.Next(ctx)
			if !ok || !yield(val) {
				return
			}
		}
	}
}

// Close releases the subscriber slot so another consumer may subscribe.
func (s *Subscription[T]) Close() {
	s.value.mu.Lock()
	defer s.value.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.value.subscribed = false
}
