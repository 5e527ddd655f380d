package order

import "github.com/shopspring/decimal"

// Event types published on order lifecycle changes.
const (
	EventOrderCreated   = "order.created"
	EventOrderCancelled = "order.cancelled"
	EventStatusChanged  = "order.status.changed"
)

// Event is the lifecycle message published for created and cancelled
// orders, routed with key "order.status".
type Event struct {
	EventType   string          `json:"event_type"`
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// StatusChangeEvent is published on every successful transition, routed
// with key "order.status.changed".
type StatusChangeEvent struct {
	EventType string `json:"event_type"`
	OrderID   int64  `json:"order_id"`
	UserID    int64  `json:"user_id"`
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
}

// StockMessage asks the product service to reserve or release stock for
// one order line. The routing key decides which.
type StockMessage struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	OrderID   string `json:"order_id"`
}
