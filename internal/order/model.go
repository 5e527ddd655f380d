package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusConfirmed Status = "CONFIRMED"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the full lifecycle DAG. DELIVERED and CANCELLED are
// terminal.
var transitions = map[Status][]Status{
	StatusCreated:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPaid, StatusShipped, StatusCancelled},
	StatusPaid:      {StatusShipped},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// ParseStatus validates a wire status value.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// CanTransition reports whether from -> to is a permitted lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Item is one order line. Items are immutable once the order is created.
type Item struct {
	ItemID             int64           `json:"item_id"`
	ProductID          int64           `json:"product_id"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	ProductName        string          `json:"product_name,omitempty"`
	ProductDescription string          `json:"product_description,omitempty"`
}

// Order is the aggregate persisted by the store. Status only changes
// through the state machine.
type Order struct {
	OrderID         int64           `json:"order_id"`
	UserID          int64           `json:"user_id"`
	OrderDate       time.Time       `json:"order_date"`
	Status          Status          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
	BillingAddress  string          `json:"billing_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Items           []Item          `json:"items"`
}

// Total computes the amount of a line set: sum of quantity * unit price.
func Total(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
