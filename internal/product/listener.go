package product

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/panjf2000/ants/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/fathy2028/marketco/internal/broker"
	"github.com/fathy2028/marketco/internal/logging"
	"github.com/fathy2028/marketco/internal/order"
)

// Listener consumes the stock reserve and release queues and applies each
// message against the stock store in its own transaction. Deliveries are
// dispatched onto a goroutine pool; ordering per product comes from the
// row lock, not the pool.
type Listener struct {
	store StockStore
	pool  *ants.Pool
	log   *logrus.Logger
}

func NewListener(store StockStore, poolSize int) (*Listener, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &Listener{store: store, pool: pool, log: logging.Logger()}, nil
}

// Run consumes both queues until the context is cancelled.
func (l *Listener) Run(ctx context.Context, conn *broker.Conn) error {
	reserves, err := conn.Consume(broker.StockReserveQueue)
	if err != nil {
		return err
	}
	releases, err := conn.Consume(broker.StockReleaseQueue)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-reserves:
			if !ok {
				return errors.New("reserve channel closed")
			}
			l.submit(ctx, d, true)
		case d, ok := <-releases:
			if !ok {
				return errors.New("release channel closed")
			}
			l.submit(ctx, d, false)
		}
	}
}

// Close waits for in-flight handlers and releases the pool.
func (l *Listener) Close() {
	l.pool.Release()
}

func (l *Listener) submit(ctx context.Context, d amqp.Delivery, reserve bool) {
	if err := l.pool.Submit(func() { l.handle(ctx, d, reserve) }); err != nil {
		l.log.WithError(err).Error("submit to worker pool failed")
		_ = d.Nack(false, true)
	}
}

func (l *Listener) handle(ctx context.Context, d amqp.Delivery, reserve bool) {
	var msg order.StockMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		// malformed messages are dropped; redelivery cannot fix them
		l.log.WithError(err).Error("malformed stock message")
		_ = d.Ack(false)
		return
	}

	fields := logrus.Fields{
		"product_id": msg.ProductID,
		"quantity":   msg.Quantity,
		"order_id":   msg.OrderID,
	}

	var err error
	if reserve {
		err = l.store.Reserve(ctx, msg.ProductID, msg.Quantity)
	} else {
		err = l.store.Release(ctx, msg.ProductID, msg.Quantity)
	}

	switch {
	case err == nil:
		l.log.WithFields(fields).Info(actionLabel(reserve) + " applied")
		_ = d.Ack(false)
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrNotFound):
		// business outcome: log and ack, redelivery would not change it
		l.log.WithFields(fields).WithError(err).Warn(actionLabel(reserve) + " rejected")
		_ = d.Ack(false)
	default:
		// transient failure: requeue for another attempt
		l.log.WithFields(fields).WithError(err).Error(actionLabel(reserve) + " failed")
		_ = d.Nack(false, true)
	}
}

func actionLabel(reserve bool) string {
	if reserve {
		return "stock reservation"
	}
	return "stock release"
}
