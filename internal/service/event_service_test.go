package service_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/tablebus/internal/eventbus"
	"github.com/shaharia-lab/tablebus/internal/events"
	"github.com/shaharia-lab/tablebus/internal/journal"
	"github.com/shaharia-lab/tablebus/internal/service"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) Append(ctx context.Context, e journal.Entry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockJournal) List(ctx context.Context, f journal.Filter) ([]journal.Entry, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]journal.Entry), args.Error(1)
}

func (m *mockJournal) Prune(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockJournal) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestEmitDecodesTypedPayload(t *testing.T) {
	bus := eventbus.New()
	svc := service.NewEventService(bus, nil, newTestLogger())

	var got events.OrderCreatedPayload
	_, err := events.On(bus, events.OrderCreated, func(_ eventbus.Event, p events.OrderCreatedPayload) error {
		got = p
		return nil
	})
	require.NoError(t, err)

	e, err := svc.Emit(context.Background(), events.OrderCreated, json.RawMessage(`{"order_id":"o1","customer_name":"Ann"}`))
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.Sequence)
	assert.Equal(t, "Ann", got.CustomerName)
	assert.Len(t, svc.History(), 1)
}

func TestEmitValidation(t *testing.T) {
	svc := service.NewEventService(eventbus.New(), nil, newTestLogger())

	_, err := svc.Emit(context.Background(), "", nil)
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "type", vErr.Field)

	_, err = svc.Emit(context.Background(), events.MenuUpdated, json.RawMessage(`{"item_id":`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "payload", vErr.Field)

	_, err = svc.Emit(context.Background(), events.OrderCreated, json.RawMessage(`{"id":"o1"}`))
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "payload", vErr.Field)

	assert.Empty(t, svc.History())
}

func TestClearHistory(t *testing.T) {
	bus := eventbus.New()
	svc := service.NewEventService(bus, nil, newTestLogger())
	bus.Emit(events.MenuUpdated, nil)

	svc.ClearHistory()
	assert.Empty(t, svc.History())
}

func TestTypesIncludesCatalogAndAdHoc(t *testing.T) {
	bus := eventbus.New()
	svc := service.NewEventService(bus, nil, newTestLogger())

	_, err := bus.SubscribeFunc(events.OrderPaid, func(eventbus.Event) error { return nil })
	require.NoError(t, err)
	_, err = bus.SubscribeFunc("loyalty:stamp", func(eventbus.Event) error { return nil })
	require.NoError(t, err)

	types := svc.Types()
	byType := map[string]service.TypeInfo{}
	for _, ti := range types {
		byType[ti.Type] = ti
	}

	assert.Len(t, types, len(events.Catalog())+1)
	assert.Equal(t, 1, byType[events.OrderPaid].Subscribers)
	assert.True(t, byType[events.OrderPaid].Known)
	assert.Equal(t, 0, byType[events.MenuUpdated].Subscribers)
	assert.False(t, byType["loyalty:stamp"].Known)
	assert.Equal(t, 1, byType["loyalty:stamp"].Subscribers)
}

func TestJournal(t *testing.T) {
	ctx := context.Background()

	disabled := service.NewEventService(eventbus.New(), nil, newTestLogger())
	_, err := disabled.Journal(ctx, journal.Filter{})
	require.ErrorIs(t, err, service.ErrJournalDisabled)

	store := &mockJournal{}
	filter := journal.Filter{Type: events.OrderPaid, Limit: 5}
	store.On("List", ctx, filter).Return([]journal.Entry{{Sequence: 3, Type: events.OrderPaid}}, nil)

	svc := service.NewEventService(eventbus.New(), store, newTestLogger())
	entries, err := svc.Journal(ctx, filter)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 3, entries[0].Sequence)
	store.AssertExpectations(t)
}

func TestJournalCursorDefaultsToLiveBus(t *testing.T) {
	ctx := context.Background()
	bus := eventbus.New()
	store := &mockJournal{}
	store.On("List", ctx, journal.Filter{BusID: bus.ID(), AfterSequence: 10}).Return([]journal.Entry{}, nil)
	store.On("List", ctx, journal.Filter{BusID: "earlier-run", AfterSequence: 10}).Return([]journal.Entry{}, nil)

	svc := service.NewEventService(bus, store, newTestLogger())
	_, err := svc.Journal(ctx, journal.Filter{AfterSequence: 10})
	require.NoError(t, err)
	_, err = svc.Journal(ctx, journal.Filter{BusID: "earlier-run", AfterSequence: 10})
	require.NoError(t, err)

	store.AssertExpectations(t)
}

func TestStreamRelaysEvents(t *testing.T) {
	bus := eventbus.New()
	svc := service.NewEventService(bus, nil, newTestLogger())

	st, err := svc.Stream([]string{events.OrderCreated}, 4)
	require.NoError(t, err)

	bus.Emit(events.OrderCreated, "a")
	bus.Emit(events.MenuUpdated, "ignored")

	e := <-st.Events()
	assert.Equal(t, "a", e.Payload)

	st.Close()
	st.Close()
	_, open := <-st.Events()
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount(events.OrderCreated))
}

func TestStreamDefaultsToCatalog(t *testing.T) {
	bus := eventbus.New()
	svc := service.NewEventService(bus, nil, newTestLogger())

	st, err := svc.Stream(nil, 0)
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, events.Types(), st.Types())
	assert.Equal(t, 64, st.Buffer())

	for _, typ := range events.Types() {
		assert.Equal(t, 1, bus.SubscriberCount(typ), typ)
	}
}

func TestStreamBufferIsCapped(t *testing.T) {
	svc := service.NewEventService(eventbus.New(), nil, newTestLogger())

	st, err := svc.Stream([]string{events.OrderCreated}, math.MaxInt)
	require.NoError(t, err)
	defer st.Close()

	assert.Equal(t, service.MaxStreamBuffer, st.Buffer())
}

func TestStreamOverflowClosesStream(t *testing.T) {
	bus := eventbus.New()
	svc := service.NewEventService(bus, nil, newTestLogger())

	st, err := svc.Stream([]string{events.OrderUpdated}, 1)
	require.NoError(t, err)

	bus.Emit(events.OrderUpdated, 1)
	bus.Emit(events.OrderUpdated, 2) // no room: stream is cut off

	assert.True(t, st.Overflowed())
	assert.Equal(t, 0, bus.SubscriberCount(events.OrderUpdated))

	e, open := <-st.Events()
	require.True(t, open)
	assert.Equal(t, 1, e.Payload)
	_, open = <-st.Events()
	assert.False(t, open)
}

func TestStreamInvalidType(t *testing.T) {
	svc := service.NewEventService(eventbus.New(), nil, newTestLogger())
	_, err := svc.Stream([]string{""}, 1)
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
}
