package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simaogato/folio-backend/internal/domain"
)

const accountSelect = `
	SELECT id, broker, balance, created_at, updated_at, deleted_at
	FROM accounts
`

// accountRepository implements domain.AccountRepository
type accountRepository struct {
	db *DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

// AddToBalance adds amount to the broker's balance in one statement, so concurrent
// notifications for the same broker never lose an update
func (r *accountRepository) AddToBalance(ctx context.Context, broker string, amount decimal.Decimal) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2::numeric, updated_at = now()
		WHERE broker = $1 AND deleted_at IS NULL
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query, broker, amount.String())
	if err != nil {
		return 0, storeError("failed to update account balance", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("failed to read affected rows", err)
	}

	return rows, nil
}

// Create creates a new account
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, broker, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.conn(ctx).ExecContext(ctx, query,
		account.ID,
		account.Broker,
		account.Balance.String(),
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("broker %s: %w", account.Broker, domain.ErrAccountExists)
		}
		return storeError("failed to create account", err)
	}

	return nil
}

// GetByBroker retrieves an active account by broker code
func (r *accountRepository) GetByBroker(ctx context.Context, broker string) (*domain.Account, error) {
	query := accountSelect + `WHERE broker = $1 AND deleted_at IS NULL`

	account, err := scanAccount(r.db.conn(ctx).QueryRowContext(ctx, query, broker))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("broker %s: %w", broker, domain.ErrAccountNotFound)
		}
		return nil, storeError("failed to get account by broker", err)
	}

	return account, nil
}

// List retrieves all active accounts ordered by broker
func (r *accountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	query := accountSelect + `WHERE deleted_at IS NULL ORDER BY broker`

	rows, err := r.db.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, storeError("failed to list accounts", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, storeError("failed to scan account", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("error iterating accounts", err)
	}

	return accounts, nil
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var balanceStr string
	var deletedAt sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.Broker,
		&balanceStr,
		&account.CreatedAt,
		&account.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	// Parse balance (NUMERIC)
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	account.Balance = balance

	if deletedAt.Valid {
		d := deletedAt.Time
		account.DeletedAt = &d
	}

	return &account, nil
}
