package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaharia-lab/tablebus/internal/eventbus"
)

const defaultBufferSize = 256

// Recorder subscribes to bus events and writes them to a Store.
// Events are handed to a single writer goroutine through a buffered channel,
// so a slow disk never stalls Emit.
type Recorder struct {
	store  Store
	logger *slog.Logger
	busID  string
	now    func() time.Time

	ch      chan eventbus.Event
	wg      sync.WaitGroup
	mu      sync.Mutex
	subs    []*eventbus.Subscription
	closed  bool
	dropped int
}

// NewRecorder creates a Recorder and starts its writer goroutine.
// If bufferSize is <= 0, a default of 256 is used.
func NewRecorder(store Store, logger *slog.Logger, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	r := &Recorder{
		store:  store,
		logger: logger,
		now:    time.Now,
		ch:     make(chan eventbus.Event, bufferSize),
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for e := range r.ch {
			r.write(e)
		}
	}()
	return r
}

// Attach subscribes the recorder to each of types on bus.
func (r *Recorder) Attach(bus *eventbus.Bus, types ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("journal recorder is closed")
	}
	r.busID = bus.ID()
	for _, t := range types {
		sub, err := bus.SubscribeFunc(t, r.enqueue)
		if err != nil {
			return fmt.Errorf("subscribing journal to %q: %w", t, err)
		}
		r.subs = append(r.subs, sub)
	}
	return nil
}

// enqueue never blocks: when the buffer is full the event is dropped.
func (r *Recorder) enqueue(e eventbus.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	select {
	case r.ch <- e:
	default:
		r.dropped++
		r.logger.Warn("journal buffer full, dropping event",
			"event_type", e.Type, "sequence", e.Sequence)
	}
	return nil
}

func (r *Recorder) write(e eventbus.Event) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		r.logger.Error("journal: encoding payload", "event_type", e.Type, "sequence", e.Sequence, "error", err)
		payload = []byte("null")
	}

	r.mu.Lock()
	busID := r.busID
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := Entry{
		BusID:      busID,
		Sequence:   e.Sequence,
		Type:       e.Type,
		Payload:    payload,
		EmittedAt:  e.Timestamp,
		RecordedAt: r.now(),
	}
	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.Error("journal: appending entry", "event_type", e.Type, "sequence", e.Sequence, "error", err)
	}
}

// Dropped returns the number of events dropped because the buffer was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close unsubscribes from the bus, then waits for pending events to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	close(r.ch)
	r.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	r.wg.Wait()
}
