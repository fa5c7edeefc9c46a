package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/simaogato/folio-backend/internal/domain"
)

const (
	// DefaultConfirmTimeout bounds the wait for a broker confirm
	DefaultConfirmTimeout = 5 * time.Second

	contentTypeJSON = "application/json"
)

var (
	// ErrNacked is returned when the broker refuses a message
	ErrNacked = errors.New("message nacked by broker")

	// ErrConfirmTimeout is returned when no confirm arrives in time
	ErrConfirmTimeout = errors.New("confirmation timed out")

	// ErrConfirmsClosed is returned when the channel closes while waiting for a confirm
	ErrConfirmsClosed = errors.New("confirmation channel closed")
)

// ConfirmableChannel defines the AMQP channel operations needed to publish with confirms
type ConfirmableChannel interface {
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends account notifications and waits for the broker to confirm each one.
// It implements domain.NotificationPublisher.
type Publisher struct {
	ch         ConfirmableChannel
	confirms   chan amqp.Confirmation
	exchange   string
	routingKey string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker
	log        zerolog.Logger

	// serializes publishes so confirms arrive in publish order
	mu sync.Mutex
}

// PublisherOption configures a Publisher
type PublisherOption func(*Publisher)

// WithConfirmTimeout overrides DefaultConfirmTimeout
func WithConfirmTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for circuit breaker state changes
func WithLogger(log zerolog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.log = log
	}
}

// NewPublisher puts the channel in confirm mode and returns a publisher bound to the topology
func NewPublisher(ch ConfirmableChannel, topology Topology, opts ...PublisherOption) (*Publisher, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p := &Publisher{
		ch:         ch,
		exchange:   topology.Exchange,
		routingKey: topology.RoutingKey,
		timeout:    DefaultConfirmTimeout,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "rabbitmq-publisher",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return p, nil
}

// Publish encodes the delta as an account notification and publishes it
func (p *Publisher) Publish(ctx context.Context, delta domain.BalanceDelta) error {
	payload, err := json.Marshal(delta.Notification())
	if err != nil {
		return fmt.Errorf("failed to encode account notification: %w", err)
	}

	return p.PublishPayload(ctx, uuid.NewString(), payload)
}

// PublishPayload publishes an already encoded notification.
// Every failure, including an open breaker, is reported as domain.ErrChannelUnavailable.
func (p *Publisher) PublishPayload(ctx context.Context, messageID string, payload []byte) error {
	msg := amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publishAndConfirm(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrChannelUnavailable, err)
	}

	return nil
}

func (p *Publisher) publishAndConfirm(ctx context.Context, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return p.waitForConfirm(ctx)
}

func (p *Publisher) waitForConfirm(ctx context.Context) error {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			return ErrConfirmsClosed
		}
		if !confirm.Ack {
			return fmt.Errorf("%w: delivery tag %d", ErrNacked, confirm.DeliveryTag)
		}
		return nil
	case <-timer.C:
		return ErrConfirmTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
