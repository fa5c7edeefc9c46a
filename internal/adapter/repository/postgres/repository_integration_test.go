//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/simaogato/folio-backend/internal/domain"
)

var testDB *DB

func TestMain(m *testing.M) {
	os.Exit(runWithPostgres(m))
}

func runWithPostgres(m *testing.M) int {
	ctx := context.Background()

	pg, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("folio"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to start postgres: %v", err))
	}
	defer func() { _ = testcontainers.TerminateContainer(pg) }()

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(fmt.Sprintf("Failed to read postgres DSN: %v", err))
	}

	testDB, err = NewDB(ctx, dsn, Options{MaxOpenConns: 5, MaxIdleConns: 2})
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}
	defer func() { _ = testDB.Close() }()

	for _, schema := range []Schema{TransactionsSchema, AccountsSchema} {
		if err := testDB.EnsureSchema(ctx, schema); err != nil {
			panic(fmt.Sprintf("Failed to apply schema: %v", err))
		}
	}

	return m.Run()
}

func truncate(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		_, err := testDB.ExecContext(context.Background(), "TRUNCATE "+table)
		require.NoError(t, err)
	}
}

func TestTransactionRepository_InsertReturnsStoredValues(t *testing.T) {
	truncate(t, "transactions")
	ctx := context.Background()
	repo := NewTransactionRepository(testDB)

	tests := []struct {
		name      string
		price     string
		fee       string
		wantPrice string
		wantFee   string
	}{
		{name: "Two decimals", price: "10.10", fee: "0.5", wantPrice: "10.10", wantFee: "0.50"},
		{name: "Rounded by the column", price: "10.125", fee: "0.004", wantPrice: "10.13", wantFee: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inserted, err := repo.Insert(ctx, &domain.Transaction{
				Date:     civil.Date{Year: 2024, Month: 6, Day: 14},
				Type:     domain.TransactionTypeBuy,
				Asset:    "PETR4",
				Price:    decimal.RequireFromString(tt.price),
				Quantity: 100,
				Fee:      decimal.RequireFromString(tt.fee),
				Broker:   "XPINV",
			})
			require.NoError(t, err)
			assert.NotZero(t, inserted.ID)
			assert.False(t, inserted.CreatedAt.IsZero())

			found, err := repo.FindByID(ctx, inserted.ID)
			require.NoError(t, err)

			assert.True(t, inserted.Price.Equal(decimal.RequireFromString(tt.wantPrice)), "price %s", inserted.Price)
			assert.True(t, inserted.Fee.Equal(decimal.RequireFromString(tt.wantFee)), "fee %s", inserted.Fee)
			assert.True(t, inserted.Price.Equal(found.Price))
			assert.True(t, inserted.Fee.Equal(found.Fee))
		})
	}
}

func TestTransactionRepository_SoftDelete(t *testing.T) {
	truncate(t, "transactions")
	ctx := context.Background()
	repo := NewTransactionRepository(testDB)

	inserted, err := repo.Insert(ctx, &domain.Transaction{
		Date:     civil.Date{Year: 2024, Month: 6, Day: 14},
		Type:     domain.TransactionTypeSell,
		Asset:    "VALE3",
		Price:    decimal.RequireFromString("60"),
		Quantity: 10,
		Fee:      decimal.Zero,
		Broker:   "CLEAR",
	})
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, inserted.ID))

	_, err = repo.FindByID(ctx, inserted.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.SoftDelete(ctx, inserted.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.SoftDelete(ctx, inserted.ID+1000)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	page, err := repo.List(ctx, domain.ListQuery{PageSize: 20, SortProperty: "id", SortDirection: domain.SortAsc})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
}

func TestAccountRepository_AddToBalance(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		opening  string
		amount   string
		wantRows int64
		wantErr  error
		want     string
	}{
		{name: "Credit", opening: "100", amount: "50.25", wantRows: 1, want: "150.25"},
		{name: "Debit below zero", opening: "100", amount: "-150", wantRows: 1, want: "-50"},
		{name: "Column overflow", opening: "9999999999999.99", amount: "1", wantErr: domain.ErrValueRejected, want: "9999999999999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			truncate(t, "accounts")
			repo := NewAccountRepository(testDB)
			require.NoError(t, repo.Create(ctx, domain.NewAccount("XPINV", decimal.RequireFromString(tt.opening))))

			rows, err := repo.AddToBalance(ctx, "XPINV", decimal.RequireFromString(tt.amount))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRows, rows)
			}

			account, err := repo.GetByBroker(ctx, "XPINV")
			require.NoError(t, err)
			assert.True(t, account.Balance.Equal(decimal.RequireFromString(tt.want)), "balance %s", account.Balance)
		})
	}
}

func TestAccountRepository_AddToBalanceUnknownBroker(t *testing.T) {
	truncate(t, "accounts")
	repo := NewAccountRepository(testDB)

	rows, err := repo.AddToBalance(context.Background(), "NOPE", decimal.NewFromInt(1))

	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestOutboxRepository_RetryKeepsEventPending(t *testing.T) {
	truncate(t, "outbox_events")
	ctx := context.Background()
	repo := NewOutboxRepository(testDB)

	event, err := domain.NewAccountAdjustmentEvent(domain.BalanceDelta{Broker: "XPINV", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, event))

	// Far more failures than any alert threshold
	for range 15 {
		require.NoError(t, repo.MarkRetry(ctx, event.ID, "connection refused", 0))
	}

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, domain.OutboxStatusPending, claimed[0].Status)
	assert.Equal(t, 15, claimed[0].Attempts)
	assert.Equal(t, "connection refused", claimed[0].LastError)

	require.NoError(t, repo.MarkRetry(ctx, event.ID, "connection refused", time.Hour))
	claimed, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "event is not due before its retry delay")
}

func TestOutboxRepository_MarkFailedParksEvent(t *testing.T) {
	truncate(t, "outbox_events")
	ctx := context.Background()
	repo := NewOutboxRepository(testDB)

	parked, err := domain.NewAccountAdjustmentEvent(domain.BalanceDelta{Broker: "XPINV", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	due, err := domain.NewAccountAdjustmentEvent(domain.BalanceDelta{Broker: "CLEAR", Amount: decimal.NewFromInt(7)})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, parked))
	require.NoError(t, repo.Create(ctx, due))

	require.NoError(t, repo.MarkFailed(ctx, parked.ID, "malformed notification"))

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)

	require.NoError(t, repo.MarkPublished(ctx, due.ID))
	claimed, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}
