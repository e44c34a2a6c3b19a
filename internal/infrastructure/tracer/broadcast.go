package tracer

import (
	"sync"
	"sync/atomic"
)

// Broadcaster fans finished spans out to live subscribers. A subscriber
// that falls behind loses spans rather than slowing the traced code.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[uint64]chan FinishedSpan
	nextID  uint64
	dropped atomic.Int64
}

// NewBroadcaster creates a broadcaster with no subscribers
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan FinishedSpan)}
}

// Export delivers span to every subscriber with room in its buffer
func (b *Broadcaster) Export(span FinishedSpan) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- span:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber buffering up to buffer spans. The
// returned cancel func unsubscribes and closes the channel; it is safe to
// call more than once.
func (b *Broadcaster) Subscribe(buffer int) (<-chan FinishedSpan, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan FinishedSpan, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns the number of spans lost to slow subscribers
func (b *Broadcaster) Dropped() int64 {
	return b.dropped.Load()
}
