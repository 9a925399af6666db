// Package stream provides in-process observable value streams: a value that
// can be updated repeatedly, then finalized exactly once as done or failed.
// Subscribers receive every update in order plus a terminal notification;
// late subscribers first receive the current snapshot.
//
// Publishing never blocks. A subscriber that falls behind has intermediate
// updates dropped (its buffer keeps the newest updates); terminal delivery is
// guaranteed because the channel is closed and Latest retains the final state.
package stream

import (
	"context"
	"sync"
)

// State is the lifecycle state of a stream.
type State int

const (
	// Open means the stream may still receive updates.
	Open State = iota
	// Done means the stream finished normally; Latest holds the final value.
	Done
	// Failed means the stream terminated with an error.
	Failed
)

// Update is one notification delivered to subscribers.
type Update[T any] struct {
	Value T
	State State
	Err   error
}

// Stream is a mutable-then-finalized observable value.
// The zero value is not usable; create with New.
type Stream[T any] struct {
	mu    sync.Mutex
	value T
	state State
	err   error
	subs  map[chan Update[T]]struct{}
}

// subBuffer is the per-subscriber channel depth. Eager publishing with no
// backpressure: when full, the oldest pending update is dropped.
const subBuffer = 64

// New creates an open stream with the zero value of T.
func New[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[chan Update[T]]struct{})}
}

// Update publishes a new value. Updates after finalization are ignored.
func (s *Stream[T]) Update(v T) {
	s.publish(v, Open, nil)
}

// Done finalizes the stream with its final value. Only the first
// finalization (Done or Fail) takes effect.
func (s *Stream[T]) Done(v T) {
	s.publish(v, Done, nil)
}

// Fail finalizes the stream in the error terminal state. The last published
// value is retained.
func (s *Stream[T]) Fail(err error) {
	s.mu.Lock()
	v := s.value
	s.mu.Unlock()
	s.publish(v, Failed, err)
}

func (s *Stream[T]) publish(v T, state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Open {
		return
	}
	s.value = v
	s.state = state
	s.err = err

	u := Update[T]{Value: v, State: state, Err: err}
	for ch := range s.subs {
		select {
		case ch <- u:
		default:
			// Slow consumer: drop its oldest pending update to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- u:
			default:
			}
		}
		if state != Open {
			close(ch)
		}
	}
	if state != Open {
		s.subs = make(map[chan Update[T]]struct{})
	}
}

// Subscribe attaches an observer. The returned channel yields the current
// snapshot first, then every subsequent update, and is closed after the
// terminal update. cancel detaches early; it is safe to call more than once.
func (s *Stream[T]) Subscribe() (<-chan Update[T], func()) {
	ch := make(chan Update[T], subBuffer)

	s.mu.Lock()
	ch <- Update[T]{Value: s.value, State: s.state, Err: s.err}
	if s.state != Open {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

// Latest returns the current value, state, and terminal error.
func (s *Stream[T]) Latest() (T, State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.state, s.err
}

// Wait blocks until the stream reaches a terminal state or ctx is cancelled,
// returning the final value and the stream's terminal error.
func (s *Stream[T]) Wait(ctx context.Context) (T, error) {
	ch, cancel := s.Subscribe()
	defer cancel()

	var last T
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case u, ok := <-ch:
			if !ok {
				v, _, err := s.Latest()
				return v, err
			}
			last = u.Value
			if u.State == Failed {
				return u.Value, u.Err
			}
			if u.State == Done {
				return u.Value, nil
			}
		}
	}
}
