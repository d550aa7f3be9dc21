package eventbus

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned by Subscribe for a malformed request.
var ErrInvalidArgument = errors.New("eventbus: invalid argument")

// HandlerError describes a subscriber that failed while handling an event,
// either by returning an error or by panicking.
type HandlerError struct {
	EventType      string
	Sequence       uint64
	SubscriptionID string
	Err            error
	Panic          any
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("eventbus: handler %s panicked on %q (seq %d): %v",
			e.SubscriptionID, e.EventType, e.Sequence, e.Panic)
	}
	return fmt.Sprintf("eventbus: handler %s failed on %q (seq %d): %v",
		e.SubscriptionID, e.EventType, e.Sequence, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
