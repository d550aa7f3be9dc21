package eventbus

import "time"

// Event represents a domain event emitted on the bus.
// Payload is opaque to the bus; it is stored and forwarded as-is.
type Event struct {
	Type      string    `json:"type"`
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Handler receives events for a subscription.
// A returned error is logged and reported but never reaches the emitter.
type Handler interface {
	Handle(e Event) error
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(e Event) error

// Handle calls f(e).
func (f HandlerFunc) Handle(e Event) error {
	return f(e)
}

// Observer receives bus lifecycle notifications. Implementations must be
// safe for concurrent use and must not call back into the bus.
type Observer interface {
	EventEmitted(e Event, delivered int)
	HandlerFailed(e Event, err *HandlerError)
	// SubscriptionsChanged reports the count right after a change. Calls
	// from concurrent Subscribe/Unsubscribe may arrive out of order, so the
	// count is a hint; SubscriberCount is authoritative.
	SubscriptionsChanged(eventType string, count int)
}

type nopObserver struct{}

func (nopObserver) EventEmitted(Event, int)            {}
func (nopObserver) HandlerFailed(Event, *HandlerError) {}
func (nopObserver) SubscriptionsChanged(string, int)   {}
