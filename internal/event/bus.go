package event

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"

	"github.com/rally-hq/rally/internal/logging"
)

// Handler is a function that handles an event.
type Handler func(Event)

// wildcard is the pseudo event type SubscribeAll registers under.
const wildcard = "*"

// subscription represents a registered event handler.
type subscription struct {
	id        string
	eventType string
	handler   Handler
}

// Bus is a simple synchronous pub-sub event bus.
// Workers publish to it and the live view, metrics and logs subscribe.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]subscription // eventType -> subscriptions
	nextID        atomic.Uint64
	logger        *logging.Logger
}

// NewBus creates a new event bus. Handler panics are logged to logger; a
// nil logger discards them.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Bus{
		subscriptions: make(map[string][]subscription),
		logger:        logger.WithComponent("event"),
	}
}

// Subscribe registers a handler for a specific event type.
// Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := "sub-" + strconv.FormatUint(b.nextID.Add(1), 10)
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})
	return id
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(wildcard, handler)
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			kept := make([]subscription, 0, len(subs)-1)
			kept = append(kept, subs[:i]...)
			kept = append(kept, subs[i+1:]...)
			b.subscriptions[eventType] = kept
			return true
		}
	}
	return false
}

// Publish dispatches an event to all registered handlers on the caller's
// goroutine. Specific handlers run first, then wildcard handlers, each group
// in registration order. A panicking handler is logged and skipped.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	specific := b.subscriptions[e.EventType()]
	wild := b.subscriptions[wildcard]
	b.mu.RUnlock()

	// Unsubscribe copies on write, so the slices read above stay valid.
	for _, sub := range specific {
		b.safeCall(sub.handler, e)
	}
	for _, sub := range wild {
		b.safeCall(sub.handler, e)
	}
}

func (b *Bus) safeCall(handler Handler, e Event) {
	var pc panics.Catcher
	pc.Try(func() { handler(e) })
	if r := pc.Recovered(); r != nil {
		b.logger.Error("event handler panicked",
			"event", e.EventType(),
			"panic", fmt.Sprint(r.Value),
			"stack", string(r.Stack))
	}
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
