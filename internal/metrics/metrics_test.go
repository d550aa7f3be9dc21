package metrics_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/tablebus/internal/eventbus"
	"github.com/shaharia-lab/tablebus/internal/metrics"
)

func TestCollectorCountsBusActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	bus := eventbus.New(eventbus.WithObserver(c), eventbus.WithHistoryCapacity(2))
	require.NoError(t, c.Track(bus))

	sub, err := bus.SubscribeFunc("order:created", func(eventbus.Event) error { return nil })
	require.NoError(t, err)
	_, err = bus.SubscribeFunc("order:created", func(eventbus.Event) error { return errors.New("boom") })
	require.NoError(t, err)

	bus.Emit("order:created", nil)
	bus.Emit("order:created", nil)
	bus.Emit("menu:updated", nil)
	sub.Unsubscribe()

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			key := f.GetName()
			for _, l := range m.GetLabel() {
				key += "{" + l.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	assert.InDelta(t, 2, values["tablebus_events_emitted_total{order:created}"], 0)
	assert.InDelta(t, 1, values["tablebus_events_emitted_total{menu:updated}"], 0)
	assert.InDelta(t, 4, values["tablebus_events_delivered_total{order:created}"], 0)
	assert.InDelta(t, 2, values["tablebus_handler_failures_total{order:created}"], 0)
	assert.InDelta(t, 1, values["tablebus_subscriptions{order:created}"], 0)
	assert.InDelta(t, 3, values["tablebus_subscription_changes_total{order:created}"], 0)
	assert.InDelta(t, 2, values["tablebus_history_events"], 0)
}

func TestSubscriptionsGaugeUnderConcurrentSubscribe(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)

	bus := eventbus.New(eventbus.WithObserver(c))
	require.NoError(t, c.Track(bus))

	const n = 50
	subs := make([]*eventbus.Subscription, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := bus.SubscribeFunc("order:created", func(eventbus.Event) error { return nil })
			assert.NoError(t, err)
			subs[i] = sub
		}()
	}
	wg.Wait()

	want := `
# HELP tablebus_subscriptions Active subscriptions, by event type.
# TYPE tablebus_subscriptions gauge
tablebus_subscriptions{type="order:created"} 50
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "tablebus_subscriptions"))

	for i := range n / 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			subs[i].Unsubscribe()
		}()
	}
	wg.Wait()

	want = strings.Replace(want, "} 50", "} 25", 1)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "tablebus_subscriptions"))
}

func TestCollectorDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)

	_, err = metrics.New(reg)
	require.Error(t, err)
}

func TestHistoryGaugeLint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := metrics.New(reg)
	require.NoError(t, err)
	require.NoError(t, c.Track(eventbus.New()))

	problems, err := testutil.GatherAndLint(reg)
	require.NoError(t, err)
	assert.Empty(t, problems)
}
