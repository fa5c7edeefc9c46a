package transaction

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/logger"
)

const (
	DefaultPageSize      = 20
	MaxPageSize          = 100
	DefaultSortProperty  = "date"
	DefaultSortDirection = domain.SortAsc
)

// CreateInput represents the input for recording a transaction
type CreateInput struct {
	Date     civil.Date
	Type     string
	Asset    string
	Price    decimal.Decimal
	Quantity int64
	Fee      decimal.Decimal
	Broker   string
}

// ListInput represents a raw list request; nil and empty fields take the defaults
type ListInput struct {
	Broker     string
	Asset      string
	PageSize   *int
	PageNumber *int
	Property   string
	Direction  string
}

// UseCase is the set of transaction commands exposed to the adapters
type UseCase interface {
	Create(ctx context.Context, input CreateInput) (*domain.Transaction, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, input ListInput) (*domain.Page[domain.Transaction], error)
}

// Service handles transaction commands and notifies the accounts service of every
// balance change
type Service struct {
	TransactionRepo domain.TransactionRepository
	Transactor      domain.Transactor
	Publisher       domain.NotificationPublisher
	Now             func() time.Time
}

// NewService creates a new Service instance
func NewService(repo domain.TransactionRepository, transactor domain.Transactor, publisher domain.NotificationPublisher) *Service {
	return &Service{
		TransactionRepo: repo,
		Transactor:      transactor,
		Publisher:       publisher,
		Now:             time.Now,
	}
}

// Create records a transaction and publishes its balance delta
// Logic:
//  1. Normalize codes and validate (nothing is stored or published on failure)
//  2. Insert the transaction
//  3. Compute the SAVE delta from the stored record
//  4. Publish the delta
//
// Steps 2-4 share one store transaction, so a failed publish leaves nothing behind.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Transaction, error) {
	t := &domain.Transaction{
		Date:     input.Date,
		Type:     domain.TransactionType(input.Type),
		Asset:    input.Asset,
		Price:    input.Price,
		Quantity: input.Quantity,
		Fee:      input.Fee,
		Broker:   input.Broker,
	}

	// 1. Normalize and validate
	t.Normalize()
	if err := t.Validate(civil.DateOf(s.Now())); err != nil {
		return nil, err
	}

	var stored *domain.Transaction
	err := s.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		// 2. Persist
		var err error
		stored, err = s.TransactionRepo.Insert(ctx, t)
		if err != nil {
			return err
		}

		// 3-4. Compute and publish
		return s.notify(ctx, *stored, domain.OperationSave)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Int64("transaction_id", stored.ID).
		Str("broker", stored.Broker).
		Str("type", string(stored.Type)).
		Msg("transaction created")

	return stored, nil
}

// Delete soft-deletes a transaction and publishes the reversing delta
// Logic:
//  1. Look the transaction up (NotFound ends the command with no mutation)
//  2. Soft-delete it
//  3. Compute the DELETE delta from the record found in step 1
//  4. Publish the delta
func (s *Service) Delete(ctx context.Context, id int64) error {
	var found *domain.Transaction
	err := s.Transactor.WithinTx(ctx, func(ctx context.Context) error {
		// 1. Lookup
		var err error
		found, err = s.TransactionRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		// 2. Soft-delete
		if err := s.TransactionRepo.SoftDelete(ctx, id); err != nil {
			return err
		}

		// 3-4. Compute and publish
		return s.notify(ctx, *found, domain.OperationDelete)
	})
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info().
		Int64("transaction_id", id).
		Str("broker", found.Broker).
		Msg("transaction deleted")

	return nil
}

// List returns one page of active transactions. No match is an empty page, not an error.
func (s *Service) List(ctx context.Context, input ListInput) (*domain.Page[domain.Transaction], error) {
	query, err := ResolveListQuery(input)
	if err != nil {
		return nil, err
	}

	return s.TransactionRepo.List(ctx, query)
}

func (s *Service) notify(ctx context.Context, t domain.Transaction, op domain.OperationKind) error {
	delta := domain.ComputeDelta(t, op)

	if err := s.Publisher.Publish(ctx, delta); err != nil {
		return fmt.Errorf("failed to publish %s delta for transaction %d: %w", op, t.ID, err)
	}

	logger.FromContext(ctx).Debug().
		Int64("transaction_id", t.ID).
		Str("broker", delta.Broker).
		Str("amount", delta.Amount.String()).
		Str("operation", string(op)).
		Msg("balance delta published")

	return nil
}

// ResolveListQuery applies defaults and validation to a list request.
// Broker takes precedence over asset when both are supplied.
func ResolveListQuery(input ListInput) (domain.ListQuery, error) {
	q := domain.ListQuery{
		Filter:        domain.FilterNone,
		PageSize:      DefaultPageSize,
		PageNumber:    0,
		SortProperty:  DefaultSortProperty,
		SortDirection: DefaultSortDirection,
	}

	if broker := domain.NormalizeCode(input.Broker); broker != "" {
		q.Filter, q.FilterValue = domain.FilterBroker, broker
	} else if asset := domain.NormalizeCode(input.Asset); asset != "" {
		q.Filter, q.FilterValue = domain.FilterAsset, asset
	}

	if input.PageSize != nil {
		if *input.PageSize < 1 || *input.PageSize > MaxPageSize {
			return domain.ListQuery{}, domain.NewValidationError("pageSize",
				fmt.Sprintf("Page size must be between 1 and %d.", MaxPageSize))
		}
		q.PageSize = *input.PageSize
	}

	if input.PageNumber != nil {
		if *input.PageNumber < 0 {
			return domain.ListQuery{}, domain.NewValidationError("pageNumber", "Page number must be zero or positive number.")
		}
		q.PageNumber = *input.PageNumber
	}

	if input.Property != "" {
		if !domain.IsTransactionSortField(input.Property) {
			return domain.ListQuery{}, domain.NewValidationError("property",
				fmt.Sprintf("Property must be one of %v.", domain.TransactionSortFields))
		}
		q.SortProperty = input.Property
	}

	if input.Direction != "" {
		direction, err := domain.ParseSortDirection(input.Direction)
		if err != nil {
			return domain.ListQuery{}, err
		}
		q.SortDirection = direction
	}

	return q, nil
}
