// Package bus is a small in-process pub/sub used to tell interested parties
// that replica data changed. It is injected, never global, so tests can wire
// their own instance.
package bus

import "sync"

// Signal is a coalescing refresh notification. It carries no payload;
// subscribers re-read the replica.
type Signal struct{}

// Bus fans a refresh signal out to subscribers. Publish never blocks: each
// subscriber channel has capacity one, and a signal already pending absorbs
// new ones.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Signal]struct{}
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[chan Signal]struct{})}
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() chan Signal {
	ch := make(chan Signal, 1)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Signal) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers a signal to every subscriber without blocking. A
// subscriber with a signal already pending is skipped; one pending signal
// means "refresh", two would mean the same thing.
func (b *Bus) Publish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- Signal{}:
		default:
		}
	}
}
