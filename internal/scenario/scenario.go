// Package scenario loads YAML event scripts and plays them through a bus.
//
// A scenario file looks like:
//
//	name: lunch rush
//	history_capacity: 3
//	events:
//	  - type: order:created
//	    payload:
//	      order_id: o1
//	      customer_name: Ann
//	  - type: kitchen:status_updated
//	    payload: {order_id: o1, status: preparing}
package scenario

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaharia-lab/tablebus/internal/eventbus"
	"github.com/shaharia-lab/tablebus/internal/events"
)

// Step is one event to emit.
type Step struct {
	Type    string `yaml:"type"`
	Payload any    `yaml:"payload"`
}

// Scenario is a named, ordered list of events.
type Scenario struct {
	Name            string `yaml:"name"`
	HistoryCapacity int    `yaml:"history_capacity"`
	Events          []Step `yaml:"events"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	//nolint:gosec // path is supplied by the operator on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates scenario YAML.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if len(s.Events) == 0 {
		return nil, fmt.Errorf("scenario %q has no events", s.Name)
	}
	for i, st := range s.Events {
		if st.Type == "" {
			return nil, fmt.Errorf("scenario %q: event %d has no type", s.Name, i+1)
		}
	}
	return &s, nil
}

// Run emits every event of s on bus in order and returns the bus history.
// It stops early if ctx is cancelled between events.
func Run(ctx context.Context, bus *eventbus.Bus, s *Scenario) ([]eventbus.Event, error) {
	for i, st := range s.Events {
		if err := ctx.Err(); err != nil {
			return bus.History(), fmt.Errorf("scenario stopped before event %d: %w", i+1, err)
		}
		payload, err := events.DecodeValue(st.Type, st.Payload)
		if err != nil {
			return bus.History(), fmt.Errorf("event %d: %w", i+1, err)
		}
		bus.EmitContext(ctx, st.Type, payload)
	}
	return bus.History(), nil
}
