package platform

import (
	"io"
	"sync"

	"github.com/amp-labs/logicstates/closer"
)

// Broadcaster is an EventSource that delivers every published event to all
// current subscribers, synchronously on the publishing goroutine.
//
// The zero value is ready to use.
type Broadcaster[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]func(T)
	order    []uint64
}

// Subscribe registers handler until the returned closer is closed.
func (b *Broadcaster[T]) Subscribe(handler func(T)) io.Closer {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers == nil {
		b.handlers = make(map[uint64]func(T))
	}

	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.order = append(b.order, id)

	return closer.CloseOnce(closer.CustomCloser(func() error {
		b.unsubscribe(id)

		return nil
	}))
}

func (b *Broadcaster[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, id)

	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)

			break
		}
	}
}

// Publish delivers event to every subscriber in subscription order.
func (b *Broadcaster[T]) Publish(event T) {
	b.mu.RLock()
	handlers := make([]func(T), 0, len(b.order))

	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// Subscribers returns the number of current subscribers.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.order)
}

var _ EventSource[struct{}] = (*Broadcaster[struct{}])(nil)
