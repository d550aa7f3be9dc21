package events

import (
	"fmt"

	"github.com/shaharia-lab/tablebus/internal/eventbus"
)

// PayloadTypeError is returned by typed handlers when an event carries a
// payload of an unexpected type.
type PayloadTypeError struct {
	EventType string
	Want      string
	Got       string
}

func (e *PayloadTypeError) Error() string {
	return fmt.Sprintf("event %q: payload is %s, want %s", e.EventType, e.Got, e.Want)
}

// On subscribes fn to eventType on bus with a typed payload. Payloads of type
// P or *P are passed through; anything else fails the handler with a
// *PayloadTypeError.
func On[P any](bus *eventbus.Bus, eventType string, fn func(eventbus.Event, P) error) (*eventbus.Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil handler", eventbus.ErrInvalidArgument)
	}
	return bus.SubscribeFunc(eventType, func(e eventbus.Event) error {
		switch p := e.Payload.(type) {
		case P:
			return fn(e, p)
		case *P:
			if p != nil {
				return fn(e, *p)
			}
		}
		var want P
		return &PayloadTypeError{
			EventType: e.Type,
			Want:      fmt.Sprintf("%T", want),
			Got:       fmt.Sprintf("%T", e.Payload),
		}
	})
}
