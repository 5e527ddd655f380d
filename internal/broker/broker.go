// Package broker adapts RabbitMQ for order lifecycle and stock
// coordination messaging.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fathy2028/marketco/internal/logging"
)

// Exchange and queue names. Routing keys match the queue names on both
// direct exchanges.
const (
	OrderExchange   = "order.exchange"
	ProductExchange = "product.exchange"

	OrderStatusQueue        = "order.status"
	OrderStatusChangedQueue = "order.status.changed"
	PaymentStatusQueue      = "order.payment.status"
	StockReserveQueue       = "product.stock.reserve"
	StockReleaseQueue       = "product.stock.release"
)

// Conn wraps a connection and channel pair.
type Conn struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to the broker, retrying while it comes up.
func Dial(url string) (*Conn, error) {
	var conn *amqp.Connection
	err := retry.Do(
		func() error {
			var err error
			conn, err = amqp.Dial(url)
			return err
		},
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.OnRetry(func(n uint, err error) {
			logging.Logger().WithError(err).Warnf("broker dial attempt %d failed", n+1)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Conn{conn: conn, ch: ch}, nil
}

func (c *Conn) Close() {
	_ = c.ch.Close()
	_ = c.conn.Close()
}

// DeclareTopology declares the direct exchanges, durable queues and
// same-name bindings used by the order and product services.
func (c *Conn) DeclareTopology() error {
	for _, ex := range []string{OrderExchange, ProductExchange} {
		if err := c.ch.ExchangeDeclare(ex, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}
	bindings := map[string]string{
		OrderStatusQueue:        OrderExchange,
		OrderStatusChangedQueue: OrderExchange,
		PaymentStatusQueue:      OrderExchange,
		StockReserveQueue:       ProductExchange,
		StockReleaseQueue:       ProductExchange,
	}
	for q, ex := range bindings {
		if _, err := c.ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := c.ch.QueueBind(q, q, ex, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// Publisher emits a JSON message to an exchange under a routing key.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, body any) error
}

// AMQPPublisher publishes persistent JSON messages with a short retry.
type AMQPPublisher struct {
	ch *amqp.Channel
}

func NewPublisher(c *Conn) *AMQPPublisher {
	return &AMQPPublisher{ch: c.ch}
}

func (p *AMQPPublisher) Publish(ctx context.Context, exchange, key string, body any) error {
	bs, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         bs,
	}
	return retry.Do(
		func() error {
			return p.ch.PublishWithContext(ctx, exchange, key, false, false, msg)
		},
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.Context(ctx),
	)
}

// Consume opens a manually acked delivery stream for a queue.
func (c *Conn) Consume(queue string) (<-chan amqp.Delivery, error) {
	return c.ch.Consume(queue, "", false, false, false, false, nil)
}
