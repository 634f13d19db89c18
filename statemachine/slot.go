package statemachine

import "go.uber.org/atomic"

// EventSlot is a single-value cell shared between a platform event callback
// (producer, any goroutine) and a state's step functions (consumer, driver
// goroutine). A newer event replaces an unconsumed older one.
//
// The zero value is an empty slot.
type EventSlot[T any] struct {
	value atomic.Pointer[T]
}

// Store records an event, replacing any unconsumed one.
func (s *EventSlot[T]) Store(v T) {
	s.value.Store(&v)
}

// Present reports whether an event is waiting to be consumed.
func (s *EventSlot[T]) Present() bool {
	return s.value.Load() != nil
}

// Peek returns the waiting event without consuming it.
func (s *EventSlot[T]) Peek() (T, bool) {
	if p := s.value.Load(); p != nil {
		return *p, true
	}

	var zero T

	return zero, false
}

// Take consumes the waiting event. Exactly one concurrent caller observes it.
func (s *EventSlot[T]) Take() (T, bool) {
	if p := s.value.Swap(nil); p != nil {
		return *p, true
	}

	var zero T

	return zero, false
}

// TakeIf consumes the waiting event only if match accepts it.
func (s *EventSlot[T]) TakeIf(match func(T) bool) (T, bool) {
	for {
		p := s.value.Load()
		if p == nil || !match(*p) {
			var zero T

			return zero, false
		}

		if s.value.CompareAndSwap(p, nil) {
			return *p, true
		}
	}
}

// Reset discards any waiting event.
func (s *EventSlot[T]) Reset() {
	s.value.Store(nil)
}
