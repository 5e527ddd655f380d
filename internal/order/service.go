package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fathy2028/marketco/internal/broker"
	"github.com/fathy2028/marketco/internal/logging"
)

// ErrInvalidRequest means the create request failed validation.
var ErrInvalidRequest = errors.New("invalid order request")

// CreateRequest is the inbound DTO for order creation.
type CreateRequest struct {
	UserID          int64        `json:"user_id" validate:"required"`
	ShippingAddress string       `json:"shipping_address"`
	BillingAddress  string       `json:"billing_address"`
	Notes           string       `json:"notes"`
	Items           []CreateItem `json:"items" validate:"required,min=1,dive"`
}

// CreateItem is one requested order line.
type CreateItem struct {
	ProductID          int64           `json:"product_id" validate:"required"`
	Quantity           int             `json:"quantity" validate:"required,min=1"`
	Price              decimal.Decimal `json:"price"`
	ProductName        string          `json:"product_name"`
	ProductDescription string          `json:"product_description"`
}

// Service coordinates the order lifecycle: it owns every status
// transition and emits broker events after the database commit.
type Service struct {
	store    Store
	pub      broker.Publisher
	validate *validator.Validate
	log      *logrus.Logger
}

func NewService(store Store, pub broker.Publisher) *Service {
	return &Service{
		store:    store,
		pub:      pub,
		validate: validator.New(),
		log:      logging.Logger(),
	}
}

// Create validates the request, persists the order and its items in one
// transaction, then emits order.created and one stock reservation per
// item. The commit happens before any publish; a failed publish leaves the
// order persisted and is only logged.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for _, it := range req.Items {
		if !it.Price.IsPositive() {
			return nil, fmt.Errorf("%w: product %d: price must be positive", ErrInvalidRequest, it.ProductID)
		}
	}

	items := make([]Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = Item{
			ProductID:          it.ProductID,
			Quantity:           it.Quantity,
			UnitPrice:          it.Price,
			ProductName:        it.ProductName,
			ProductDescription: it.ProductDescription,
		}
	}

	o := &Order{
		UserID:          req.UserID,
		OrderDate:       time.Now().UTC(),
		Status:          StatusCreated,
		TotalAmount:     Total(items),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
		Items:           items,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, EventOrderCreated, o)
	s.publishStock(ctx, broker.StockReserveQueue, o)

	s.log.WithField("order_id", o.OrderID).Info("order created")
	return o, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.store.Get(ctx, id)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, f Filter) ([]*Order, error) {
	return s.store.List(ctx, f)
}

// CountByStatus returns the number of orders in a given status.
func (s *Service) CountByStatus(ctx context.Context, st Status) (int64, error) {
	return s.store.CountByStatus(ctx, st)
}

// UpdateStatus moves the order to a new status when the lifecycle permits
// it, then emits order.status.changed.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status) (*Order, error) {
	o, old, err := s.store.Transition(ctx, id, to)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, broker.OrderExchange, broker.OrderStatusChangedQueue, StatusChangeEvent{
		EventType: EventStatusChanged,
		OrderID:   o.OrderID,
		UserID:    o.UserID,
		OldStatus: old,
		NewStatus: to,
	})

	s.log.WithFields(logrus.Fields{
		"order_id": id,
		"old":      old,
		"new":      to,
	}).Info("order status changed")
	return o, nil
}

// Cancel moves the order to CANCELLED (permitted from CREATED and
// CONFIRMED only), then emits order.cancelled and one stock release per
// item.
func (s *Service) Cancel(ctx context.Context, id int64) (*Order, error) {
	o, _, err := s.store.Transition(ctx, id, StatusCancelled)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, EventOrderCancelled, o)
	s.publishStock(ctx, broker.StockReleaseQueue, o)

	s.log.WithField("order_id", id).Info("order cancelled")
	return o, nil
}

func (s *Service) publishEvent(ctx context.Context, eventType string, o *Order) {
	s.publish(ctx, broker.OrderExchange, broker.OrderStatusQueue, Event{
		EventType:   eventType,
		OrderID:     o.OrderID,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
	})
}

func (s *Service) publishStock(ctx context.Context, key string, o *Order) {
	for _, it := range o.Items {
		s.publish(ctx, broker.ProductExchange, key, StockMessage{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			OrderID:   strconv.FormatInt(o.OrderID, 10),
		})
	}
}

// publish is best-effort: the order is already committed, so a broker
// failure is logged and swallowed.
func (s *Service) publish(ctx context.Context, exchange, key string, body any) {
	if err := s.pub.Publish(ctx, exchange, key, body); err != nil {
		s.log.WithFields(logrus.Fields{
			"exchange": exchange,
			"key":      key,
		}).WithError(err).Error("publish failed")
	}
}
