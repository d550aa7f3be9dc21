package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shaharia-lab/tablebus/internal/eventbus"
	"github.com/shaharia-lab/tablebus/internal/events"
	"github.com/shaharia-lab/tablebus/internal/journal"
)

// TypeInfo describes an event type with its live subscriber count.
type TypeInfo struct {
	events.Definition
	Subscribers int  `json:"subscribers"`
	Known       bool `json:"known"`
}

// EventService exposes the bus to the HTTP API.
type EventService interface {
	// Emit decodes payload for eventType and emits it on the bus.
	Emit(ctx context.Context, eventType string, payload json.RawMessage) (eventbus.Event, error)
	// History returns the retained events, oldest first.
	History() []eventbus.Event
	// ClearHistory empties the bus history.
	ClearHistory()
	// Types lists catalog types plus any other type that has subscribers.
	Types() []TypeInfo
	// Journal queries the event journal. Returns ErrJournalDisabled without one.
	// An AfterSequence cursor with no BusID is scoped to the live bus.
	Journal(ctx context.Context, f journal.Filter) ([]journal.Entry, error)
	// Stream subscribes to eventTypes (all catalog types when empty).
	Stream(eventTypes []string, buffer int) (*Stream, error)
}

// eventServiceImpl implements EventService.
type eventServiceImpl struct {
	bus     *eventbus.Bus
	journal journal.Store
	logger  *slog.Logger
}

// NewEventService creates a new EventService. store may be nil when the
// journal is disabled.
func NewEventService(bus *eventbus.Bus, store journal.Store, logger *slog.Logger) EventService {
	return &eventServiceImpl{bus: bus, journal: store, logger: logger}
}

func (s *eventServiceImpl) Emit(ctx context.Context, eventType string, payload json.RawMessage) (eventbus.Event, error) {
	if eventType == "" {
		return eventbus.Event{}, &ValidationError{Field: "type", Message: "is required"}
	}
	p, err := events.Decode(eventType, payload)
	if err != nil {
		return eventbus.Event{}, &ValidationError{Field: "payload", Message: err.Error()}
	}
	e := s.bus.EmitContext(ctx, eventType, p)
	s.logger.Debug("event emitted via api", "event_type", e.Type, "sequence", e.Sequence)
	return e, nil
}

func (s *eventServiceImpl) History() []eventbus.Event {
	return s.bus.History()
}

func (s *eventServiceImpl) ClearHistory() {
	s.bus.ClearHistory()
	s.logger.Info("event history cleared")
}

func (s *eventServiceImpl) Types() []TypeInfo {
	seen := make(map[string]bool)
	var out []TypeInfo
	for _, d := range events.Catalog() {
		seen[d.Type] = true
		out = append(out, TypeInfo{
			Definition:  d,
			Subscribers: s.bus.SubscriberCount(d.Type),
			Known:       true,
		})
	}
	for _, t := range s.bus.Types() {
		if seen[t] {
			continue
		}
		out = append(out, TypeInfo{
			Definition:  events.Definition{Type: t},
			Subscribers: s.bus.SubscriberCount(t),
		})
	}
	return out
}

func (s *eventServiceImpl) Journal(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	// A sequence cursor without a bus refers to the live bus.
	if f.AfterSequence > 0 && f.BusID == "" {
		f.BusID = s.bus.ID()
	}
	return s.journal.List(ctx, f)
}

func (s *eventServiceImpl) Stream(eventTypes []string, buffer int) (*Stream, error) {
	if len(eventTypes) == 0 {
		eventTypes = events.Types()
	}
	st, err := newStream(s.bus, eventTypes, buffer)
	if err != nil {
		return nil, &ValidationError{Field: "type", Message: err.Error()}
	}
	return st, nil
}
