// Package feed fans newly created report pins out to live map subscribers.
package feed

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/fixr/internal/metrics"
	"github.com/mr1hm/fixr/internal/models"
)

const subscriberBuffer = 64

type Broadcaster struct {
	subscribers map[uint64]chan models.Pin
	nextID      atomic.Uint64
	closed      bool
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan models.Pin),
	}
}

// Subscribe registers a listener. After Close the returned channel is already closed.
func (b *Broadcaster) Subscribe() (uint64, <-chan models.Pin) {
	id := b.nextID.Add(1)
	ch := make(chan models.Pin, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	metrics.FeedSubscribers.Set(float64(len(b.subscribers)))

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
		metrics.FeedSubscribers.Set(float64(len(b.subscribers)))
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(p models.Pin) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- p:
		default:
			// Skip slow subscribers
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
	metrics.FeedSubscribers.Set(0)
}
