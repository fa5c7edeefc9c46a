package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox event
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// EventTypeAccountAdjustment is the only event type written to the outbox
const EventTypeAccountAdjustment = "account.adjustment"

// OutboxEvent is a notification persisted in the same store transaction as the
// transaction write, relayed to the channel later by the dispatcher
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Broker      string
	Payload     []byte
	Status      OutboxStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// NewAccountAdjustmentEvent creates a pending outbox event for a delta
func NewAccountAdjustmentEvent(delta BalanceDelta) (*OutboxEvent, error) {
	payload, err := json.Marshal(delta.Notification())
	if err != nil {
		return nil, fmt.Errorf("failed to encode account notification: %w", err)
	}

	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: EventTypeAccountAdjustment,
		Broker:    delta.Broker,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Notification decodes the stored payload
func (e *OutboxEvent) Notification() (AccountNotification, error) {
	return DecodeNotification(e.Payload)
}
