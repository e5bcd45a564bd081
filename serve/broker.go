package serve

import (
	"sync"
)

// Subscriber limits. Each subscriber is one open /api/events connection; the
// buffer absorbs bursts from parallel workers finishing at once.
const (
	maxSubscribers   = 50
	subscriberBuffer = 64
)

// EventBroker fans statement lifecycle events out to SSE subscribers. It
// never blocks the worker pool: a subscriber that stops draining its channel
// loses events instead of stalling parses.
type EventBroker struct {
	mu   sync.RWMutex
	subs map[chan BrokerEvent]struct{}
}

func NewEventBroker() *EventBroker {
	return &EventBroker{
		subs: make(map[chan BrokerEvent]struct{}),
	}
}

// Subscribe registers a new event channel. It returns nil when the subscriber
// limit is reached. Callers must Unsubscribe when their connection ends.
func (b *EventBroker) Subscribe() chan BrokerEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs) >= maxSubscribers {
		return nil
	}

	ch := make(chan BrokerEvent, subscriberBuffer)
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber channel. Safe to call after
// Close.
func (b *EventBroker) Unsubscribe(ch chan BrokerEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Close disconnects every subscriber. Used at shutdown so SSE handlers
// unblock and the HTTP server can drain.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}

// Publish delivers an event to every subscriber whose buffer has room.
func (b *EventBroker) Publish(event BrokerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
