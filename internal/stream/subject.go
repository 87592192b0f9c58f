// Package stream provides the publish-subscribe primitives the feed pipeline
// is built on. A Subject holds the latest value and replays it to every new
// subscriber; Shared keeps an upstream connection alive only while it has
// observers.
package stream

import "sync"

// Subject is a replay-latest broadcast cell. Subscribers receive values on a
// channel with a buffer of one; a slow subscriber skips intermediate values
// and only ever sees the most recent one.
type Subject[T any] struct {
	mu     sync.Mutex
	value  T
	has    bool
	subs   map[int]chan T
	nextID int
	closed bool
}

// NewSubject returns an empty subject. Subscribers receive nothing until the
// first Publish.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{subs: make(map[int]chan T)}
}

// NewSubjectWith returns a subject seeded with an initial value.
func NewSubjectWith[T any](initial T) *Subject[T] {
	s := NewSubject[T]()
	s.value = initial
	s.has = true
	return s
}

// Publish stores v and delivers it to every subscriber without blocking.
func (s *Subject[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.value = v
	s.has = true
	for _, ch := range s.subs {
		offer(ch, v)
	}
}

// Value returns the latest published value.
func (s *Subject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.has
}

// Subscribe registers a new observer. The returned channel first yields the
// latest value, if any. The cancel func closes the channel and is safe to call
// more than once.
func (s *Subject[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	if s.has {
		ch <- s.value
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (s *Subject[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close closes every subscriber channel. Later publishes are dropped and later
// subscriptions receive an already-closed channel.
func (s *Subject[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// offer replaces whatever is buffered in ch with v. Only the owner of the
// subject's lock sends on ch, so the final send cannot block.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Map derives a subscription by applying fn to every value of src. Cancelling
// the derived subscription cancels src.
func Map[T, U any](src <-chan T, cancel func(), fn func(T) U) (<-chan U, func()) {
	out := make(chan U, 1)
	go func() {
		defer close(out)
		for v := range src {
			offer(out, fn(v))
		}
	}()
	return out, cancel
}
