// Package eventbus provides the in-memory, synchronous event bus that lets the
// restaurant apps exchange domain events without importing each other.
//
// Emit dispatches to every handler registered for the exact event type, in
// registration order, on the caller's goroutine. The bus also keeps a bounded
// history of recent events for debugging and test assertions.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultHistoryCapacity is the number of events retained when no capacity is configured.
const DefaultHistoryCapacity = 100

const tracerName = "github.com/shaharia-lab/tablebus/internal/eventbus"

// Option configures a Bus.
type Option func(*Bus)

// WithHistoryCapacity sets the history buffer size. Values <= 0 select DefaultHistoryCapacity.
func WithHistoryCapacity(n int) Option {
	return func(b *Bus) {
		b.capacity = n
	}
}

// WithLogger sets the logger used to report handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// WithObserver registers an Observer for metrics.
func WithObserver(o Observer) Option {
	return func(b *Bus) {
		if o != nil {
			b.observer = o
		}
	}
}

// WithTracer sets the tracer used for emit spans.
func WithTracer(t trace.Tracer) Option {
	return func(b *Bus) {
		if t != nil {
			b.tracer = t
		}
	}
}

// Subscription is a registration of one handler for one event type.
type Subscription struct {
	id      string
	typ     string
	handler Handler
	active  atomic.Bool
	bus     *Bus
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Type returns the event type this subscription listens for.
func (s *Subscription) Type() string { return s.typ }

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool { return s.active.Load() }

// Unsubscribe removes the subscription. Calling it again is a no-op.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s)
}

// Bus is the event bus. The zero value is not usable; call New.
type Bus struct {
	id       string
	capacity int
	logger   *slog.Logger
	now      func() time.Time
	observer Observer
	tracer   trace.Tracer

	mu      sync.Mutex
	subs    map[string][]*Subscription // copy-on-write per type
	byID    map[string]*Subscription
	seq     uint64
	lastTS  time.Time
	history *ring
}

// New creates a Bus with the given options.
func New(opts ...Option) *Bus {
	b := &Bus{
		id:       uuid.NewString(),
		logger:   slog.Default(),
		now:      time.Now,
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
		subs:     make(map[string][]*Subscription),
		byID:     make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.capacity <= 0 {
		b.capacity = DefaultHistoryCapacity
	}
	b.history = newRing(b.capacity)
	return b
}

// ID returns the per-instance identifier, used to tell sequence spaces apart.
func (b *Bus) ID() string { return b.id }

// Capacity returns the configured history capacity.
func (b *Bus) Capacity() int { return b.capacity }

// Subscribe registers h for events of eventType. The handler receives every
// matching event emitted after this call returns.
func (b *Bus) Subscribe(eventType string, h Handler) (*Subscription, error) {
	if eventType == "" {
		return nil, fmt.Errorf("%w: empty event type", ErrInvalidArgument)
	}
	if h == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}
	if f, ok := h.(HandlerFunc); ok && f == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}

	s := &Subscription{
		id:      uuid.NewString(),
		typ:     eventType,
		handler: h,
		bus:     b,
	}
	s.active.Store(true)

	b.mu.Lock()
	cur := b.subs[eventType]
	next := make([]*Subscription, len(cur), len(cur)+1)
	copy(next, cur)
	b.subs[eventType] = append(next, s)
	b.byID[s.id] = s
	count := len(next) + 1
	b.mu.Unlock()

	b.observer.SubscriptionsChanged(eventType, count)
	return s, nil
}

// SubscribeFunc is Subscribe for a plain function.
func (b *Bus) SubscribeFunc(eventType string, fn func(Event) error) (*Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidArgument)
	}
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Unsubscribe removes the subscription with the given ID. It reports whether
// a subscription was removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	s, ok := b.byID[id]
	b.mu.Unlock()
	if !ok {
		return false
	}
	return b.remove(s)
}

func (b *Bus) remove(s *Subscription) bool {
	if !s.active.CompareAndSwap(true, false) {
		return false
	}

	b.mu.Lock()
	cur := b.subs[s.typ]
	next := make([]*Subscription, 0, len(cur))
	for _, c := range cur {
		if c != s {
			next = append(next, c)
		}
	}
	if len(next) == 0 {
		delete(b.subs, s.typ)
	} else {
		b.subs[s.typ] = next
	}
	delete(b.byID, s.id)
	count := len(next)
	b.mu.Unlock()

	b.observer.SubscriptionsChanged(s.typ, count)
	return true
}

// Emit publishes an event and synchronously delivers it to the handlers
// subscribed to eventType. It returns the event as recorded in history.
func (b *Bus) Emit(eventType string, payload any) Event {
	return b.EmitContext(context.Background(), eventType, payload)
}

// EmitContext is Emit with a parent context for the emit span.
func (b *Bus) EmitContext(ctx context.Context, eventType string, payload any) Event {
	_, span := b.tracer.Start(ctx, "eventbus.emit",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("event.type", eventType)),
	)
	defer span.End()

	b.mu.Lock()
	b.seq++
	ts := b.now()
	if ts.Before(b.lastTS) {
		ts = b.lastTS
	}
	b.lastTS = ts
	e := Event{
		Type:      eventType,
		Sequence:  b.seq,
		Timestamp: ts,
		Payload:   payload,
	}
	b.history.push(e)
	snapshot := b.subs[eventType]
	b.mu.Unlock()

	delivered, failed := b.dispatch(e, snapshot)

	span.SetAttributes(
		attribute.Int64("event.sequence", int64(e.Sequence)), //nolint:gosec // sequence stays far below MaxInt64
		attribute.Int("event.delivered", delivered),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d handler(s) failed", failed))
	}
	b.observer.EventEmitted(e, delivered)
	return e
}

// dispatch invokes each still-active subscription in order. Each handler is
// called with panic recovery so one bad subscriber cannot affect others.
func (b *Bus) dispatch(e Event, subs []*Subscription) (delivered, failed int) {
	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		delivered++
		if herr := b.invoke(s, e); herr != nil {
			failed++
			b.logger.Error("eventbus: handler failed",
				"event_type", e.Type,
				"sequence", e.Sequence,
				"subscription_id", s.id,
				"error", herr,
			)
			b.observer.HandlerFailed(e, herr)
		}
	}
	return delivered, failed
}

func (b *Bus) invoke(s *Subscription, e Event) (herr *HandlerError) {
	defer func() {
		if r := recover(); r != nil {
			herr = &HandlerError{
				EventType:      e.Type,
				Sequence:       e.Sequence,
				SubscriptionID: s.id,
				Err:            fmt.Errorf("panic: %v", r),
				Panic:          r,
			}
		}
	}()
	if err := s.handler.Handle(e); err != nil {
		return &HandlerError{
			EventType:      e.Type,
			Sequence:       e.Sequence,
			SubscriptionID: s.id,
			Err:            err,
		}
	}
	return nil
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.snapshot()
}

// HistoryLen returns the number of retained events.
func (b *Bus) HistoryLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.len()
}

// ClearHistory empties the history buffer. Subscriptions are not affected.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history.reset()
}

// LastSequence returns the sequence of the most recently emitted event, or 0.
func (b *Bus) LastSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// SubscriberCount returns the number of active subscriptions for eventType.
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[eventType])
}

// Types returns the event types that currently have subscribers, sorted.
func (b *Bus) Types() []string {
	b.mu.Lock()
	types := make([]string, 0, len(b.subs))
	for t := range b.subs {
		types = append(types, t)
	}
	b.mu.Unlock()
	sort.Strings(types)
	return types
}
