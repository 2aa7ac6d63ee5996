package feed

import (
	"sync"

	"github.com/parable/backend/internal/models"
)

// Bus fans newly published posts out to live feed subscribers. Delivery is
// best-effort: a subscriber that cannot keep up misses events rather than
// blocking the publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan models.Post
	next int
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan models.Post)}
}

// Subscribe registers a listener. The returned cancel function must be called
// to release the subscription.
func (b *Bus) Subscribe() (<-chan models.Post, func()) {
	ch := make(chan models.Post, 16)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}

	return ch, cancel
}

// Publish delivers a post to every live subscriber.
func (b *Bus) Publish(post models.Post) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- post:
		default:
		}
	}
}
