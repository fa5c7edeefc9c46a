package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceScale is the number of decimal places stored for account balances
const BalanceScale = 2

// Account represents a broker's cash account in the domain layer
type Account struct {
	ID        uuid.UUID
	Broker    string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NewAccount creates an account for a broker with an opening balance
func NewAccount(broker string, balance decimal.Decimal) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.New(),
		Broker:    NormalizeCode(broker),
		Balance:   balance.Round(BalanceScale),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate ensures the account adheres to domain rules
func (a *Account) Validate() error {
	if err := ValidateBroker(a.Broker); err != nil {
		return err
	}
	if a.Balance.Abs().GreaterThanOrEqual(MaxMoney) {
		return NewValidationError("balance", fmt.Sprintf("Balance must be between -%s and %s exclusive.", MaxMoney, MaxMoney))
	}
	return nil
}

// AccountSummary aggregates the balances of all active accounts
type AccountSummary struct {
	Total    decimal.Decimal
	Accounts int
}
