package service

import (
	"sync"

	"github.com/shaharia-lab/tablebus/internal/eventbus"
)

const (
	defaultStreamBuffer = 64
	// MaxStreamBuffer caps the per-stream queue a client may request.
	MaxStreamBuffer = 1024
)

// Stream relays bus events to a single consumer over a channel.
// A consumer that falls behind by more than the buffer is cut off: the
// stream closes itself and Overflowed reports true.
type Stream struct {
	ch         chan eventbus.Event
	types      []string
	subs       []*eventbus.Subscription
	mu         sync.Mutex
	closed     bool
	overflowed bool
}

func newStream(bus *eventbus.Bus, types []string, buffer int) (*Stream, error) {
	switch {
	case buffer <= 0:
		buffer = defaultStreamBuffer
	case buffer > MaxStreamBuffer:
		buffer = MaxStreamBuffer
	}
	s := &Stream{
		ch:    make(chan eventbus.Event, buffer),
		types: append([]string(nil), types...),
	}
	for _, t := range types {
		sub, err := bus.SubscribeFunc(t, s.deliver)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			sub.Unsubscribe()
			continue
		}
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
	}
	return s, nil
}

// Events returns the channel of relayed events. It is closed when the stream closes.
func (s *Stream) Events() <-chan eventbus.Event {
	return s.ch
}

// Types returns the event types the stream is subscribed to.
func (s *Stream) Types() []string {
	return s.types
}

// Buffer returns the capacity of the event channel.
func (s *Stream) Buffer() int {
	return cap(s.ch)
}

// Overflowed reports whether the stream was closed because the consumer fell behind.
func (s *Stream) Overflowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overflowed
}

func (s *Stream) deliver(e eventbus.Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	select {
	case s.ch <- e:
		s.mu.Unlock()
		return nil
	default:
	}
	s.overflowed = true
	s.mu.Unlock()
	s.Close()
	return nil
}

// Close unsubscribes from the bus and closes the event channel. It is safe to
// call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	close(s.ch)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
