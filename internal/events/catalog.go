package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Definition describes one known event type.
type Definition struct {
	Type        string `json:"type"`
	Source      string `json:"source"`
	Description string `json:"description"`

	payload reflect.Type
}

var catalog = []Definition{
	{OrderCreated, "orders", "A new order was placed.", reflect.TypeFor[OrderCreatedPayload]()},
	{OrderUpdated, "orders", "An order's items or status changed.", reflect.TypeFor[OrderUpdatedPayload]()},
	{OrderPaid, "orders", "An order was settled.", reflect.TypeFor[OrderPaidPayload]()},
	{KitchenStatusUpdated, "kitchen", "The kitchen moved an order to a new status.", reflect.TypeFor[KitchenStatusUpdatedPayload]()},
	{MenuUpdated, "menu", "A menu item was added, changed or made unavailable.", reflect.TypeFor[MenuUpdatedPayload]()},
	{ReservationCreated, "reservations", "A table was reserved.", reflect.TypeFor[ReservationCreatedPayload]()},
	{ReservationUpdated, "reservations", "A reservation was changed or cancelled.", reflect.TypeFor[ReservationUpdatedPayload]()},
	{StockUpdated, "inventory", "Stock on hand changed for an item.", reflect.TypeFor[StockUpdatedPayload]()},
	{LowStock, "inventory", "An item fell below its reorder threshold.", reflect.TypeFor[LowStockPayload]()},
	{InventoryAlert, "inventory", "Inventory raised an operator alert.", reflect.TypeFor[InventoryAlertPayload]()},
	{SupplierUpdated, "inventory", "Supplier details changed.", reflect.TypeFor[SupplierUpdatedPayload]()},
	{AnalyticsTracked, "shell", "An analytics event was recorded.", reflect.TypeFor[AnalyticsTrackedPayload]()},
	{UserAction, "shell", "A user performed a tracked UI action.", reflect.TypeFor[UserActionPayload]()},
}

var byType = func() map[string]Definition {
	m := make(map[string]Definition, len(catalog))
	for _, d := range catalog {
		m[d.Type] = d
	}
	return m
}()

// Catalog returns the known event types.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Types returns the known event type identifiers in catalog order.
func Types() []string {
	out := make([]string, len(catalog))
	for i, d := range catalog {
		out[i] = d.Type
	}
	return out
}

// Lookup returns the definition for eventType.
func Lookup(eventType string) (Definition, bool) {
	d, ok := byType[eventType]
	return d, ok
}

// Decode parses raw JSON into the payload struct registered for eventType.
// Fields the struct does not declare are rejected so nothing is silently
// dropped. Unknown types decode into map[string]any. Empty input yields a
// nil payload.
func Decode(eventType string, raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	d, ok := byType[eventType]
	if !ok {
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decoding %q payload: %w", eventType, err)
		}
		return m, nil
	}

	ptr := reflect.New(d.payload)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decoding %q payload: %w", eventType, err)
	}
	return ptr.Elem().Interface(), nil
}

// DecodeValue converts an already-parsed value (for example from YAML) into
// the typed payload for eventType by round-tripping through JSON.
func DecodeValue(eventType string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %q payload: %w", eventType, err)
	}
	return Decode(eventType, raw)
}
