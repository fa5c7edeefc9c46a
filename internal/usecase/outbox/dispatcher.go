package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/logger"
)

const (
	DefaultBatchSize     = 100
	DefaultMaxAttempts   = 10
	DefaultPollInterval  = time.Second
	DefaultMaxRetryDelay = time.Minute
)

// Relay delivers an encoded notification to the channel
type Relay interface {
	PublishPayload(ctx context.Context, messageID string, payload []byte) error
}

// Dispatcher relays pending outbox events to the channel
type Dispatcher struct {
	Repo       domain.OutboxRepository
	Transactor domain.Transactor
	Relay      Relay
	BatchSize  int
	// MaxAttempts is the failure count after which relay errors are logged at error level.
	// Events keep being retried past it.
	MaxAttempts   int
	PollInterval  time.Duration
	MaxRetryDelay time.Duration
}

// NewDispatcher creates a new Dispatcher; non-positive settings fall back to defaults
func NewDispatcher(repo domain.OutboxRepository, transactor domain.Transactor, relay Relay, batchSize, maxAttempts int, pollInterval time.Duration) *Dispatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Dispatcher{
		Repo:          repo,
		Transactor:    transactor,
		Relay:         relay,
		BatchSize:     batchSize,
		MaxAttempts:   maxAttempts,
		PollInterval:  pollInterval,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// DispatchOnce claims one batch of due events and relays them in creation order.
// It stops at the first delivery failure and schedules that event for a later retry;
// only an event whose payload cannot be decoded is marked FAILED.
// Returns the number of events published.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)
	published := 0

	err := d.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		// 1. Lock a batch, skipping rows another replica holds
		events, err := d.Repo.ClaimPending(ctx, d.BatchSize)
		if err != nil {
			return err
		}

		// 2. Relay each event, recording the outcome in the same transaction
		for _, event := range events {
			if _, err := event.Notification(); err != nil {
				log.Error().
					Err(err).
					Str("event_id", event.ID.String()).
					Str("broker", event.Broker).
					Msg("outbox event payload cannot be decoded")

				if markErr := d.Repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
					return markErr
				}
				continue
			}

			if err := d.Relay.PublishPayload(ctx, event.ID.String(), event.Payload); err != nil {
				attempts := event.Attempts + 1
				delay := d.RetryDelay(attempts)

				entry := log.Warn()
				if attempts >= d.MaxAttempts {
					entry = log.Error()
				}
				entry.
					Err(err).
					Str("event_id", event.ID.String()).
					Str("broker", event.Broker).
					Int("attempts", attempts).
					Dur("retry_in", delay).
					Msg("failed to relay outbox event")

				return d.Repo.MarkRetry(ctx, event.ID, err.Error(), delay)
			}

			if err := d.Repo.MarkPublished(ctx, event.ID); err != nil {
				return err
			}
			published++

			log.Debug().
				Str("event_id", event.ID.String()).
				Str("broker", event.Broker).
				Msg("outbox event relayed")
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to dispatch outbox events: %w", err)
	}

	return published, nil
}

// RetryDelay is the wait before retrying an event that has failed attempts times.
// It doubles from PollInterval per failure and is capped at MaxRetryDelay.
func (d *Dispatcher) RetryDelay(attempts int) time.Duration {
	delay := d.PollInterval
	for i := 1; i < attempts && delay < d.MaxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, d.MaxRetryDelay)
}

// Run polls the outbox until ctx is cancelled.
// A full batch is followed immediately by another claim instead of waiting for the next tick.
func (d *Dispatcher) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info().Dur("interval", d.PollInterval).Int("batch_size", d.BatchSize).Msg("outbox dispatcher started")

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox dispatcher stopped")
			return nil
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := d.DispatchOnce(ctx)
		if err != nil {
			logger.FromContext(ctx).Error().Err(err).Msg("outbox dispatch failed")
			return
		}
		if n < d.BatchSize {
			return
		}
	}
}
