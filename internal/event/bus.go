package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 100

type subscription struct {
	ch      chan Event
	dropped atomic.Int64
}

// InMemoryBus fans every published event out to all current subscribers.
type InMemoryBus struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func NewBus() *InMemoryBus {
	return &InMemoryBus{subs: make(map[*subscription]struct{})}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *InMemoryBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			slog.Warn("event dropped for slow subscriber", "type", e.Type, "subject", e.Subject, "dropped_total", sub.dropped.Add(1))
		}
	}
}

// Subscribe returns a buffered channel and a function that closes it. The
// function may be called more than once.
func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

func (b *InMemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
