package seeder

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simaogato/folio-backend/internal/domain"
	"github.com/simaogato/folio-backend/internal/logger"
)

// AccountSeeder ensures the configured broker accounts exist with a zero balance
type AccountSeeder struct {
	repo    domain.AccountRepository
	brokers []string
}

// NewAccountSeeder creates a new AccountSeeder instance
func NewAccountSeeder(repo domain.AccountRepository, brokers []string) *AccountSeeder {
	return &AccountSeeder{
		repo:    repo,
		brokers: brokers,
	}
}

// Seed creates an account for every configured broker that does not have one.
// Existing accounts and their balances are left untouched.
func (s *AccountSeeder) Seed(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)
	created := 0

	for _, broker := range s.brokers {
		account := domain.NewAccount(broker, decimal.Zero)
		if err := account.Validate(); err != nil {
			return created, fmt.Errorf("invalid seed broker %q: %w", broker, err)
		}

		// Try to get the account by broker
		_, err := s.repo.GetByBroker(ctx, account.Broker)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return created, err
		}

		// Account doesn't exist, create it; another replica may win the race
		if err := s.repo.Create(ctx, account); err != nil {
			if errors.Is(err, domain.ErrAccountExists) {
				continue
			}
			return created, err
		}

		log.Info().Str("broker", account.Broker).Msg("seeded account")
		created++
	}

	return created, nil
}
