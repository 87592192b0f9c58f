package stream

import (
	"sync"
	"time"
)

// Shared multicasts an upstream subscription. The upstream is connected on
// the first Subscribe and disconnected once the last observer has been gone
// for the grace period. The latest value survives disconnects.
type Shared[T any] struct {
	connect func() (<-chan T, func())
	grace   time.Duration

	mu      sync.Mutex
	subject *Subject[T]
	refs    int
	stop    func()
	timer   *time.Timer
	epoch   uint64
	closed  bool
}

// NewShared wraps connect. A zero grace disconnects as soon as the last
// observer leaves.
func NewShared[T any](grace time.Duration, connect func() (<-chan T, func())) *Shared[T] {
	return &Shared[T]{
		connect: connect,
		grace:   grace,
		subject: NewSubject[T](),
	}
}

// Subscribe adds an observer, connecting upstream if needed.
func (s *Shared[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.subject.Subscribe()
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.epoch++
	if s.stop == nil {
		s.stop = s.pump()
	}
	s.refs++

	ch, cancel := s.subject.Subscribe()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			cancel()
			s.release()
		})
	}
}

// Connected reports whether the upstream is currently subscribed.
func (s *Shared[T]) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Value returns the most recent upstream value.
func (s *Shared[T]) Value() (T, bool) {
	return s.subject.Value()
}

// Close disconnects upstream and ends every subscription. Later subscribers
// receive a closed channel.
func (s *Shared[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.disconnectLocked()
	s.subject.Close()
}

func (s *Shared[T]) pump() func() {
	upstream, cancel := s.connect()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range upstream {
			s.subject.Publish(v)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *Shared[T]) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs--
	if s.refs > 0 || s.closed {
		return
	}
	if s.grace <= 0 {
		s.disconnectLocked()
		return
	}
	epoch := s.epoch
	s.timer = time.AfterFunc(s.grace, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.epoch != epoch || s.refs > 0 {
			return
		}
		s.timer = nil
		s.disconnectLocked()
	})
}

func (s *Shared[T]) disconnectLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}
