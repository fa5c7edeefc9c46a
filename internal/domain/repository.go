package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transactor runs a unit of work inside a single store transaction.
// Repositories called with the ctx passed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionRepository defines the interface for transaction persistence operations
type TransactionRepository interface {
	// Insert stores a new transaction and returns it with ID and CreatedAt assigned
	Insert(ctx context.Context, tx *Transaction) (*Transaction, error)

	// FindByID retrieves an active transaction.
	// Returns a *NotFoundError if it does not exist or was soft-deleted
	FindByID(ctx context.Context, id int64) (*Transaction, error)

	// SoftDelete marks a transaction as deleted.
	// Returns a *NotFoundError if it was already deleted
	SoftDelete(ctx context.Context, id int64) error

	// List retrieves one page of active transactions matching the query
	List(ctx context.Context, query ListQuery) (*Page[Transaction], error)
}

// AccountRepository defines the interface for account persistence operations
type AccountRepository interface {
	// AddToBalance atomically adds amount to the broker's balance in a single statement.
	// Returns the number of rows affected (0 when no active account exists)
	AddToBalance(ctx context.Context, broker string, amount decimal.Decimal) (int64, error)

	// Create creates a new account; ErrAccountExists if the broker already has one
	Create(ctx context.Context, account *Account) error

	// GetByBroker retrieves an active account by broker code
	GetByBroker(ctx context.Context, broker string) (*Account, error)

	// List retrieves all active accounts ordered by broker
	List(ctx context.Context) ([]*Account, error)
}

// OutboxRepository defines persistence operations for pending notifications
type OutboxRepository interface {
	// Create stores a pending event, inside the ctx transaction when there is one
	Create(ctx context.Context, event *OutboxEvent) error

	// ClaimPending locks up to limit pending events that are due for delivery
	// for the ctx transaction, skipping rows already locked by another dispatcher
	ClaimPending(ctx context.Context, limit int) ([]*OutboxEvent, error)

	// MarkPublished flags an event as delivered to the channel
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkRetry records a delivery failure; the event stays PENDING and is not
	// claimed again until delay has passed
	MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, delay time.Duration) error

	// MarkFailed parks an event that can never be delivered as FAILED
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}
