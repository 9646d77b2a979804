package amqp

import (
	"context"
	"errors"
	"fmt"

	"moneyflow/internal/log"
	"moneyflow/internal/metrics"
)

// ErrChannelClosed is returned by Consume when the broker closes the
// delivery channel.
var ErrChannelClosed = errors.New("amqp: delivery channel closed")

// Handler processes one alert. A returned error requeues the message.
type Handler func(ctx context.Context, msg AlertMessage) error

// Consumer reads alert messages from a queue with manual acknowledgement.
type Consumer struct {
	ch      Channel
	queue   string
	logger  *log.Logger
	metrics *metrics.Registry
}

// NewConsumer consumes queue on ch. m may be nil.
func NewConsumer(ch Channel, queue string, logger *log.Logger, m *metrics.Registry) *Consumer {
	return &Consumer{
		ch:      ch,
		queue:   queue,
		logger:  logger.WithComponent(log.ComponentAMQP),
		metrics: m,
	}
}

// Consume delivers messages to handler until ctx is done. Malformed
// messages are rejected without requeue; handler failures are requeued.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	msgs, err := c.ch.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming limit alerts", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return ErrChannelClosed
			}

			msg, err := AlertMessageFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "Failed to decode alert message", log.FieldError, err)
				c.observe("malformed")
				_ = delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				c.logger.ErrorContext(ctx, "Failed to handle alert message",
					log.NewFields().WithAlert(msg.ID.String(), msg.Category).WithError(err).ToSlice()...)
				c.observe("requeued")
				_ = delivery.Nack(false, true)
				continue
			}

			_ = delivery.Ack(false)
			c.observe("ok")
		}
	}
}

func (c *Consumer) observe(result string) {
	if c.metrics != nil {
		c.metrics.AlertsConsumed.WithLabelValues(result).Inc()
	}
}
