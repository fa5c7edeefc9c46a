package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AccountNotification is the message exchanged between the transactions and
// accounts services. Wire shape: {"account": "<broker>", "amount": <decimal>}
type AccountNotification struct {
	Account string
	Amount  decimal.Decimal
}

// Notification builds the wire payload for a delta
func (d BalanceDelta) Notification() AccountNotification {
	return AccountNotification{
		Account: d.Broker,
		Amount:  d.Amount,
	}
}

type notificationWire struct {
	Account string          `json:"account"`
	Amount  json.RawMessage `json:"amount"`
}

// MarshalJSON writes the amount as a bare JSON number
func (n AccountNotification) MarshalJSON() ([]byte, error) {
	return json.Marshal(notificationWire{
		Account: n.Account,
		Amount:  json.RawMessage(n.Amount.String()),
	})
}

// UnmarshalJSON accepts the amount either as a number or a quoted string.
// A missing account or amount is reported as ErrMalformedNotification.
func (n *AccountNotification) UnmarshalJSON(data []byte) error {
	var wire struct {
		Account string           `json:"account"`
		Amount  *decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedNotification, err)
	}

	if strings.TrimSpace(wire.Account) == "" {
		return fmt.Errorf("%w: account is required", ErrMalformedNotification)
	}
	if wire.Amount == nil {
		return fmt.Errorf("%w: amount is required", ErrMalformedNotification)
	}

	n.Account = wire.Account
	n.Amount = *wire.Amount

	return nil
}

// DecodeNotification parses a notification body. Every failure, including a
// body that is not JSON at all, wraps ErrMalformedNotification.
func DecodeNotification(data []byte) (AccountNotification, error) {
	var n AccountNotification
	if err := json.Unmarshal(data, &n); err != nil {
		if errors.Is(err, ErrMalformedNotification) {
			return AccountNotification{}, err
		}
		return AccountNotification{}, fmt.Errorf("%w: %w", ErrMalformedNotification, err)
	}
	return n, nil
}

// NotificationPublisher hands a balance delta to the account-adjustment channel
type NotificationPublisher interface {
	// Publish sends one notification per call.
	// Implementations surface transport failures as ErrChannelUnavailable
	// (or ErrStoreUnavailable when the channel is an outbox table).
	Publish(ctx context.Context, delta BalanceDelta) error
}
