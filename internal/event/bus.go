package event

import (
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles one published event
type Handler func(Event)

type subscription struct {
	id      string
	kind    string
	handler Handler
}

// Bus is a synchronous pub-sub bus keyed by event kind.
// Handlers run on the publisher's goroutine in registration order.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	logger *zap.Logger
}

// NewBus creates a new event bus
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe registers handler for one event kind and returns its subscription ID
func (b *Bus) Subscribe(kind string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.subs[kind] = append(b.subs[kind], subscription{id: id, kind: kind, handler: handler})
	return id
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for kind, subs := range b.subs {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			// copy so snapshots taken by in-flight Publish calls stay intact
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, kind)
			} else {
				b.subs[kind] = next
			}
			return true
		}
	}
	return false
}

// Publish dispatches an event to every handler subscribed to its kind.
// A panicking handler is logged and does not stop delivery to the rest.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.subs[ev.EventType()]
	b.mu.RUnlock()

	for _, sub := range subs {
		b.safeCall(sub.handler, ev)
	}
}

func (b *Bus) safeCall(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				zap.String("event", ev.EventType()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	handler(ev)
}

// SubscriptionCount returns the total number of active subscriptions
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subs {
		count += len(subs)
	}
	return count
}
