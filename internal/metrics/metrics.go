// Package metrics exposes event bus activity as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaharia-lab/tablebus/internal/eventbus"
)

const namespace = "tablebus"

// Collector implements eventbus.Observer on top of Prometheus metrics.
type Collector struct {
	emitted    *prometheus.CounterVec
	delivered  *prometheus.CounterVec
	failures   *prometheus.CounterVec
	subChanges *prometheus.CounterVec
	reg        prometheus.Registerer
}

// New creates a Collector and registers its metrics on reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_emitted_total",
			Help:      "Events emitted on the bus, by type.",
		}, []string{"type"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Handler invocations, by event type.",
		}, []string{"type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_failures_total",
			Help:      "Handlers that returned an error or panicked, by event type.",
		}, []string{"type"}),
		subChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_changes_total",
			Help:      "Subscribe and unsubscribe operations, by event type.",
		}, []string{"type"}),
		reg: reg,
	}

	for _, m := range []prometheus.Collector{c.emitted, c.delivered, c.failures, c.subChanges} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("registering metric: %w", err)
		}
	}
	return c, nil
}

// Track registers the gauges that are read from bus at scrape time: the
// history length and the live subscription count per event type.
func (c *Collector) Track(bus *eventbus.Bus) error {
	history := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_events",
		Help:      "Events currently retained in the bus history.",
	}, func() float64 {
		return float64(bus.HistoryLen())
	})
	if err := c.reg.Register(history); err != nil {
		return fmt.Errorf("registering history gauge: %w", err)
	}
	if err := c.reg.Register(newSubscriptionCollector(bus)); err != nil {
		return fmt.Errorf("registering subscriptions gauge: %w", err)
	}
	return nil
}

// subscriptionCollector reports bus.SubscriberCount for every type that has
// subscribers. Reading at scrape time keeps the gauge consistent with the bus
// even when Subscribe and Unsubscribe race.
type subscriptionCollector struct {
	bus  *eventbus.Bus
	desc *prometheus.Desc
}

func newSubscriptionCollector(bus *eventbus.Bus) *subscriptionCollector {
	return &subscriptionCollector{
		bus: bus,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "subscriptions"),
			"Active subscriptions, by event type.",
			[]string{"type"}, nil,
		),
	}
}

func (c *subscriptionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *subscriptionCollector) Collect(ch chan<- prometheus.Metric) {
	for _, t := range c.bus.Types() {
		n := c.bus.SubscriberCount(t)
		if n == 0 {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), t)
	}
}

// EventEmitted implements eventbus.Observer.
func (c *Collector) EventEmitted(e eventbus.Event, delivered int) {
	c.emitted.WithLabelValues(e.Type).Inc()
	if delivered > 0 {
		c.delivered.WithLabelValues(e.Type).Add(float64(delivered))
	}
}

// HandlerFailed implements eventbus.Observer.
func (c *Collector) HandlerFailed(e eventbus.Event, _ *eventbus.HandlerError) {
	c.failures.WithLabelValues(e.Type).Inc()
}

// SubscriptionsChanged implements eventbus.Observer. It only counts churn;
// the live count comes from the gauge registered by Track.
func (c *Collector) SubscriptionsChanged(eventType string, _ int) {
	c.subChanges.WithLabelValues(eventType).Inc()
}
