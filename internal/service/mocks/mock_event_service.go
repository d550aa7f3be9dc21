package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/tablebus/internal/eventbus"
	"github.com/shaharia-lab/tablebus/internal/journal"
	"github.com/shaharia-lab/tablebus/internal/service"
)

// MockEventService is a mock implementation of service.EventService.
type MockEventService struct {
	mock.Mock
}

//nolint:revive
func (m *MockEventService) Emit(ctx context.Context, eventType string, payload json.RawMessage) (eventbus.Event, error) {
	args := m.Called(ctx, eventType, payload)
	return args.Get(0).(eventbus.Event), args.Error(1)
}

//nolint:revive
func (m *MockEventService) History() []eventbus.Event {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]eventbus.Event)
}

//nolint:revive
func (m *MockEventService) ClearHistory() {
	m.Called()
}

//nolint:revive
func (m *MockEventService) Types() []service.TypeInfo {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]service.TypeInfo)
}

//nolint:revive
func (m *MockEventService) Journal(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]journal.Entry), args.Error(1)
}

//nolint:revive
func (m *MockEventService) Stream(eventTypes []string, buffer int) (*service.Stream, error) {
	args := m.Called(eventTypes, buffer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Stream), args.Error(1)
}
