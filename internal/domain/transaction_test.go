package domain

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = civil.Date{Year: 2024, Month: 6, Day: 15}

func validTransaction() Transaction {
	return Transaction{
		Date:     today,
		Type:     TransactionTypeBuy,
		Asset:    "AAAAA",
		Price:    decimal.RequireFromString("100.00"),
		Quantity: 10,
		Fee:      decimal.RequireFromString("5.00"),
		Broker:   "BROKERAA",
	}
}

func TestTransaction_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(tx *Transaction)
		wantField string
	}{
		{
			name:   "Valid BUY transaction should pass",
			mutate: func(tx *Transaction) {},
		},
		{
			name:   "Valid SELL transaction dated in the past should pass",
			mutate: func(tx *Transaction) { tx.Type = TransactionTypeSell; tx.Date = today.AddDays(-30) },
		},
		{
			name:   "Zero price, quantity and fee should pass",
			mutate: func(tx *Transaction) { tx.Price = decimal.Zero; tx.Quantity = 0; tx.Fee = decimal.Zero },
		},
		{
			name:      "Future date should fail",
			mutate:    func(tx *Transaction) { tx.Date = today.AddDays(1) },
			wantField: "date",
		},
		{
			name:      "Missing date should fail",
			mutate:    func(tx *Transaction) { tx.Date = civil.Date{} },
			wantField: "date",
		},
		{
			name:      "Unknown type should fail",
			mutate:    func(tx *Transaction) { tx.Type = "HOLD" },
			wantField: "type",
		},
		{
			name:      "Asset shorter than 5 characters should fail",
			mutate:    func(tx *Transaction) { tx.Asset = "ABCD" },
			wantField: "asset",
		},
		{
			name:      "Asset longer than 6 characters should fail",
			mutate:    func(tx *Transaction) { tx.Asset = "ABCDEFG" },
			wantField: "asset",
		},
		{
			name:      "Asset with punctuation should fail",
			mutate:    func(tx *Transaction) { tx.Asset = "AB-CD" },
			wantField: "asset",
		},
		{
			name:      "Negative price should fail",
			mutate:    func(tx *Transaction) { tx.Price = decimal.NewFromInt(-1) },
			wantField: "price",
		},
		{
			name:      "Negative quantity should fail",
			mutate:    func(tx *Transaction) { tx.Quantity = -1 },
			wantField: "quantity",
		},
		{
			name:      "Negative fee should fail",
			mutate:    func(tx *Transaction) { tx.Fee = decimal.RequireFromString("-0.01") },
			wantField: "fee",
		},
		{
			name:      "Broker shorter than 5 characters should fail",
			mutate:    func(tx *Transaction) { tx.Broker = "BRK" },
			wantField: "broker",
		},
		{
			name:      "Broker longer than 10 characters should fail",
			mutate:    func(tx *Transaction) { tx.Broker = "BROKERBROKER" },
			wantField: "broker",
		},
		{
			name:      "Price with three decimal places should fail",
			mutate:    func(tx *Transaction) { tx.Price = decimal.RequireFromString("10.125") },
			wantField: "price",
		},
		{
			name:   "Trailing zeros beyond two places should pass",
			mutate: func(tx *Transaction) { tx.Price = decimal.RequireFromString("10.1200000") },
		},
		{
			name:      "Fee with seven decimal places should fail",
			mutate:    func(tx *Transaction) { tx.Fee = decimal.RequireFromString("0.0000001") },
			wantField: "fee",
		},
		{
			name:      "Price at the balance limit should fail",
			mutate:    func(tx *Transaction) { tx.Price = decimal.RequireFromString("10000000000000") },
			wantField: "price",
		},
		{
			name:      "Fee at the balance limit should fail",
			mutate:    func(tx *Transaction) { tx.Fee = decimal.RequireFromString("10000000000000") },
			wantField: "fee",
		},
		{
			name: "Total beyond the balance limit should fail",
			mutate: func(tx *Transaction) {
				tx.Price = decimal.RequireFromString("9999999999999")
				tx.Quantity = 1000
			},
			wantField: "quantity",
		},
		{
			name: "Total just under the balance limit should pass",
			mutate: func(tx *Transaction) {
				tx.Price = decimal.RequireFromString("999999999999.99")
				tx.Quantity = 10
				tx.Fee = decimal.RequireFromString("0.09")
			},
		},
		{
			name:      "Lower-case broker that was not normalized should fail",
			mutate:    func(tx *Transaction) { tx.Broker = "brokeraa" },
			wantField: "broker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)

			err := tx.Validate(today)

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.NotEmpty(t, vErr.Reason)
		})
	}
}

func TestTransaction_Normalize(t *testing.T) {
	tx := Transaction{
		Type:   "buy",
		Asset:  " petr4 ",
		Broker: "brokeraa",
	}

	tx.Normalize()

	assert.Equal(t, TransactionTypeBuy, tx.Type)
	assert.Equal(t, "PETR4", tx.Asset)
	assert.Equal(t, "BROKERAA", tx.Broker)
}

func TestTransaction_IsDeleted(t *testing.T) {
	tx := validTransaction()
	assert.False(t, tx.IsDeleted())

	deletedAt := time.Now()
	tx.DeletedAt = &deletedAt
	assert.True(t, tx.IsDeleted())
}
