// Package bus is the in-process publish/subscribe fabric the pipeline
// components use to stay decoupled: the sync engine publishes projection
// and status events, the receipt batcher publishes flushes, consumers
// subscribe by kind prefix.
package bus

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bus fans events out to prefix-filtered subscribers. Delivery is
// non-blocking; a full subscriber buffer drops the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	namespace string
	ch        chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish sends an event to every subscriber whose namespace prefixes
// evt.Kind, assigning an envelope id and timestamp if unset.
func (b *Bus) Publish(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				// Subscriber is saturated; drop rather than block the
				// publishing goroutine.
			}
		}
	}
}

// Subscribe returns a channel receiving events whose kind starts with
// namespace, plus an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
