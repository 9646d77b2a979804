package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"moneyflow/internal/alerts"
	"moneyflow/internal/log"
	"moneyflow/internal/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects publishes.
var ErrCircuitOpen = errors.New("amqp: circuit breaker is open")

// BreakerSettings controls when publishing is short-circuited.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a probe.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns 5 failures and a 30 second open period.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MaxFailures: 5, OpenTimeout: 30 * time.Second}
}

// Publisher sends alert events to the exchange. It satisfies the
// dashboard notifier interface.
type Publisher struct {
	ch         Channel
	exchange   string
	routingKey string
	cb         *gobreaker.CircuitBreaker
	logger     *log.Logger
	metrics    *metrics.Registry
	now        func() time.Time
}

// NewPublisher publishes on ch to exchange with routingKey. m may be nil.
func NewPublisher(ch Channel, exchange, routingKey string, bs BreakerSettings, logger *log.Logger, m *metrics.Registry) *Publisher {
	logger = logger.WithComponent(log.ComponentAMQP)
	st := gobreaker.Settings{
		Name:        "amqp-publish",
		MaxRequests: 1,
		Timeout:     bs.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= bs.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Publisher{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		cb:         gobreaker.NewCircuitBreaker(st),
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// State reports the breaker state.
func (p *Publisher) State() gobreaker.State {
	return p.cb.State()
}

// Notify publishes every event and returns the joined failures.
func (p *Publisher) Notify(ctx context.Context, events []alerts.Event) error {
	var errs []error
	for _, e := range events {
		if err := p.Publish(ctx, NewAlertMessage(e, p.now())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Publish sends one persistent JSON message through the circuit breaker.
func (p *Publisher) Publish(ctx context.Context, msg AlertMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return nil, p.ch.PublishWithContext(
			pubCtx,
			p.exchange,   // exchange
			p.routingKey, // routing key
			false,        // mandatory
			false,        // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				MessageId:    msg.ID.String(),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrCircuitOpen
	}
	if p.metrics != nil {
		p.metrics.AlertsPublished.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		return fmt.Errorf("publish alert %s: %w", msg.ID, err)
	}

	p.logger.InfoContext(ctx, "Published limit alert",
		log.NewFields().
			WithAlert(msg.ID.String(), msg.Category).
			WithAmounts(msg.SpentMinor, msg.LimitMinor).
			With("exchange", p.exchange).
			ToSlice()...)
	return nil
}
