// Package amqp publishes limit alerts to RabbitMQ and consumes them.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"moneyflow/internal/log"
)

const (
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

// Channel is the subset of *amqp091.Channel the publisher and consumer use.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Client owns one connection and channel with the alert exchange and
// queue declared.
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

// NewClient dials url and declares a durable direct exchange and a durable
// queue bound to it with the queue name as routing key.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

// Connect retries NewClient with exponential backoff until it succeeds,
// the error is not a connection error, or ctx is done.
func Connect(ctx context.Context, logger *log.Logger, url, exchangeName, queueName string) (*Client, error) {
	for attempt := 0; ; attempt++ {
		client, err := NewClient(url, exchangeName, queueName)
		if err == nil {
			return client, nil
		}
		if !isConnectionError(err) {
			return nil, err
		}

		wait := exponentialBackoff(attempt)
		logger.WarnContext(ctx, "AMQP connection failed, retrying",
			log.FieldError, err, "attempt", attempt+1, "retry_in", wait.String())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// Channel returns the declared channel.
func (c *Client) Channel() Channel {
	return c.channel
}

func (c *Client) Exchange() string { return c.exchangeName }

func (c *Client) Queue() string { return c.queueName }

// Closed returns a channel that receives the error when the connection
// drops. It is closed without a value on a clean Close.
func (c *Client) Closed() <-chan *amqp091.Error {
	return c.conn.NotifyClose(make(chan *amqp091.Error, 1))
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// exponentialBackoff returns 1s, 2s, 4s... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "connection reset", "eof", "broken pipe", "closed network connection", "i/o timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
