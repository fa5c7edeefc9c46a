package account

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/logger"
)

// CreateInput represents the input for opening a broker account
type CreateInput struct {
	Broker  string
	Balance decimal.Decimal
}

// Service handles account operations and applies balance notifications
type Service struct {
	AccountRepo domain.AccountRepository
}

// NewService creates a new Service instance
func NewService(accountRepo domain.AccountRepository) *Service {
	return &Service{AccountRepo: accountRepo}
}

// ApplyNotification adds a signed amount to the broker's balance.
// The add runs as one conditional update in the store; a broker without an active
// account yields ErrAccountNotFound. Notifications are not deduplicated, so a
// redelivered message is applied again.
func (s *Service) ApplyNotification(ctx context.Context, broker string, amount decimal.Decimal) error {
	broker = domain.NormalizeCode(broker)
	if err := domain.ValidateBroker(broker); err != nil {
		return err
	}
	if !amount.Equal(amount.Round(domain.BalanceScale)) || amount.Abs().GreaterThanOrEqual(domain.MaxMoney) {
		return domain.NewValidationError("amount", "Amount does not fit an account balance.")
	}

	rows, err := s.AccountRepo.AddToBalance(ctx, broker, amount)
	if err != nil {
		return fmt.Errorf("failed to apply notification for broker %s: %w", broker, err)
	}
	if rows == 0 {
		return fmt.Errorf("broker %s: %w", broker, domain.ErrAccountNotFound)
	}

	logger.FromContext(ctx).Info().
		Str("broker", broker).
		Str("amount", amount.String()).
		Msg("account balance adjusted")

	return nil
}

// Create opens an account for a broker
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Account, error) {
	account := domain.NewAccount(input.Broker, input.Balance)
	if err := account.Validate(); err != nil {
		return nil, err
	}

	if err := s.AccountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("broker", account.Broker).
		Str("balance", account.Balance.StringFixed(domain.BalanceScale)).
		Msg("account created")

	return account, nil
}

// Get retrieves the active account of a broker
func (s *Service) Get(ctx context.Context, broker string) (*domain.Account, error) {
	broker = domain.NormalizeCode(broker)
	if err := domain.ValidateBroker(broker); err != nil {
		return nil, err
	}

	return s.AccountRepo.GetByBroker(ctx, broker)
}

// List retrieves all active accounts
func (s *Service) List(ctx context.Context) ([]*domain.Account, error) {
	return s.AccountRepo.List(ctx)
}

// Summary totals the balances of all active accounts
// Logic:
//  1. List active accounts
//  2. Sum their balances
func (s *Service) Summary(ctx context.Context) (*domain.AccountSummary, error) {
	// 1. Get all active accounts
	accounts, err := s.AccountRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	// 2. Sum balances
	total := decimal.Zero
	for _, account := range accounts {
		total = total.Add(account.Balance)
	}

	return &domain.AccountSummary{
		Total:    total,
		Accounts: len(accounts),
	}, nil
}
