package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/logger"
)

// ErrDeliveriesClosed is returned when the broker stops the delivery stream
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// ConsumeChannel defines the AMQP channel operations needed to consume a queue
type ConsumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// NotificationHandler applies one decoded account notification
type NotificationHandler interface {
	ApplyNotification(ctx context.Context, broker string, amount decimal.Decimal) error
}

// ConsumerConfig tunes the consumer
type ConsumerConfig struct {
	Queue    string
	Tag      string
	Prefetch int
	Workers  int
}

// Consumer reads account notifications with manual acks and hands them to a handler
type Consumer struct {
	ch      ConsumeChannel
	handler NotificationHandler
	cfg     ConsumerConfig
	log     zerolog.Logger
}

// NewConsumer creates a new Consumer
func NewConsumer(ch ConsumeChannel, handler NotificationHandler, cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	if cfg.Prefetch < 1 {
		cfg.Prefetch = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Consumer{ch: ch, handler: handler, cfg: cfg, log: log}
}

// Run consumes until ctx is cancelled or the delivery stream closes.
// A cancelled ctx is a clean stop and returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := c.ch.Consume(c.cfg.Queue, c.cfg.Tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %w", c.cfg.Queue, err)
	}

	c.log.Info().
		Str("queue", c.cfg.Queue).
		Int("workers", c.cfg.Workers).
		Int("prefetch", c.cfg.Prefetch).
		Msg("consumer started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		g.Go(func() error {
			return c.work(gctx, deliveries)
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (c *Consumer) work(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle applies a single delivery and settles it:
// success acks, undecodable or unroutable messages and values the store refuses
// go to the dead-letter queue, and store outages are requeued for another attempt.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	log := c.log.With().Str("message_id", d.MessageId).Uint64("delivery_tag", d.DeliveryTag).Logger()

	n, err := domain.DecodeNotification(d.Body)
	if err != nil {
		log.Error().Err(err).Msg("rejecting malformed account notification")
		c.settle(log, d.Reject(false))
		return
	}

	log = log.With().Str("broker", n.Account).Str("amount", n.Amount.String()).Logger()

	err = c.handler.ApplyNotification(logger.WithContext(ctx, log), n.Account, n.Amount)
	switch {
	case err == nil:
		log.Debug().Msg("account notification applied")
		c.settle(log, d.Ack(false))
	case errors.Is(err, domain.ErrAccountNotFound):
		log.Warn().Err(err).Msg("no account for broker, dead-lettering notification")
		c.settle(log, d.Reject(false))
	case errors.Is(err, domain.ErrMalformedNotification), errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrValueRejected):
		log.Error().Err(err).Msg("rejecting invalid account notification")
		c.settle(log, d.Reject(false))
	default:
		log.Error().Err(err).Msg("failed to apply account notification, requeueing")
		c.settle(log, d.Nack(false, true))
	}
}

func (c *Consumer) settle(log zerolog.Logger, err error) {
	if err != nil {
		log.Error().Err(err).Msg("failed to settle delivery")
	}
}
