// Package events defines the event types the restaurant apps agree on and
// the payload shape each one carries. The bus itself treats payloads as
// opaque; this package is the shared contract between producers and consumers.
package events

import "time"

// Event type identifiers.
const (
	OrderCreated         = "order:created"
	OrderUpdated         = "order:updated"
	OrderPaid            = "order:paid"
	KitchenStatusUpdated = "kitchen:status_updated"
	MenuUpdated          = "menu:updated"
	ReservationCreated   = "reservation:created"
	ReservationUpdated   = "reservation:updated"
	StockUpdated         = "inventory:stock_updated"
	LowStock             = "inventory:low_stock"
	InventoryAlert       = "inventory:alert"
	SupplierUpdated      = "inventory:supplier_updated"
	AnalyticsTracked     = "analytics:tracked"
	UserAction           = "user:action"
)

// OrderItem is one line of an order.
type OrderItem struct {
	MenuItemID string  `json:"menu_item_id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Notes      string  `json:"notes,omitempty"`
}

// OrderCreatedPayload is carried by OrderCreated.
type OrderCreatedPayload struct {
	OrderID      string      `json:"order_id"`
	CustomerName string      `json:"customer_name"`
	TableNumber  int         `json:"table_number,omitempty"`
	Items        []OrderItem `json:"items"`
	Total        float64     `json:"total"`
}

// OrderUpdatedPayload is carried by OrderUpdated.
type OrderUpdatedPayload struct {
	OrderID string      `json:"order_id"`
	Status  string      `json:"status"`
	Items   []OrderItem `json:"items,omitempty"`
	Total   float64     `json:"total,omitempty"`
}

// OrderPaidPayload is carried by OrderPaid.
type OrderPaidPayload struct {
	OrderID       string  `json:"order_id"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	Tip           float64 `json:"tip,omitempty"`
}

// KitchenStatusUpdatedPayload is carried by KitchenStatusUpdated.
type KitchenStatusUpdatedPayload struct {
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	Station          string `json:"station,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes,omitempty"`
}

// MenuUpdatedPayload is carried by MenuUpdated.
type MenuUpdatedPayload struct {
	ItemID    string  `json:"item_id"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Available bool    `json:"available"`
	Category  string  `json:"category,omitempty"`
}

// ReservationCreatedPayload is carried by ReservationCreated.
type ReservationCreatedPayload struct {
	ReservationID string    `json:"reservation_id"`
	CustomerName  string    `json:"customer_name"`
	PartySize     int       `json:"party_size"`
	Time          time.Time `json:"time"`
	TableNumber   int       `json:"table_number,omitempty"`
}

// ReservationUpdatedPayload is carried by ReservationUpdated.
type ReservationUpdatedPayload struct {
	ReservationID string    `json:"reservation_id"`
	Status        string    `json:"status"`
	PartySize     int       `json:"party_size,omitempty"`
	Time          time.Time `json:"time,omitzero"`
}

// StockUpdatedPayload is carried by StockUpdated.
type StockUpdatedPayload struct {
	ItemID   string  `json:"item_id"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
}

// LowStockPayload is carried by LowStock.
type LowStockPayload struct {
	ItemID            string  `json:"item_id"`
	Name              string  `json:"name,omitempty"`
	RemainingQuantity float64 `json:"remaining_quantity"`
	Threshold         float64 `json:"threshold"`
}

// InventoryAlertPayload is carried by InventoryAlert.
type InventoryAlertPayload struct {
	AlertID  string `json:"alert_id"`
	ItemID   string `json:"item_id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// SupplierUpdatedPayload is carried by SupplierUpdated.
type SupplierUpdatedPayload struct {
	SupplierID string `json:"supplier_id"`
	Name       string `json:"name"`
	Status     string `json:"status,omitempty"`
}

// AnalyticsTrackedPayload is carried by AnalyticsTracked.
type AnalyticsTrackedPayload struct {
	Name       string         `json:"name"`
	Source     string         `json:"source"`
	Properties map[string]any `json:"properties,omitempty"`
}

// UserActionPayload is carried by UserAction.
type UserActionPayload struct {
	UserID string `json:"user_id,omitempty"`
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
	App    string `json:"app"`
}
