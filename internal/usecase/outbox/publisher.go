package outbox

import (
	"context"

	"github.com/simaogato/folio-backend/internal/domain"
)

// Publisher implements domain.NotificationPublisher by writing the notification to
// the outbox table. Called inside a store transaction, the event commits or rolls
// back together with the transaction write.
type Publisher struct {
	Repo domain.OutboxRepository
}

// NewPublisher creates a new outbox Publisher
func NewPublisher(repo domain.OutboxRepository) *Publisher {
	return &Publisher{Repo: repo}
}

// Publish stores the delta as a pending account adjustment event
func (p *Publisher) Publish(ctx context.Context, delta domain.BalanceDelta) error {
	event, err := domain.NewAccountAdjustmentEvent(delta)
	if err != nil {
		return err
	}

	return p.Repo.Create(ctx, event)
}
