package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/simaogato/folio-backend/internal/domain"
)

// transactionColumns maps sortable properties to their column
var transactionColumns = map[string]string{
	"id":       "id",
	"date":     "trade_date",
	"type":     "type",
	"asset":    "asset",
	"price":    "price",
	"quantity": "quantity",
	"fee":      "fee",
	"broker":   "broker",
}

const transactionSelect = `
	SELECT id, trade_date, type, asset, price, quantity, fee, broker, created_at, deleted_at
	FROM transactions
`

// transactionRepository implements domain.TransactionRepository
type transactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

// Insert stores a new transaction; the id and created_at are assigned by the database.
// Price and fee are read back as stored so deltas are computed from the persisted values.
func (r *transactionRepository) Insert(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (trade_date, type, asset, price, quantity, fee, broker)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, price, fee, created_at
	`

	stored := *t
	stored.DeletedAt = nil

	var priceStr, feeStr string

	err := r.db.conn(ctx).QueryRowContext(ctx, query,
		t.Date.String(),
		string(t.Type),
		t.Asset,
		t.Price.String(),
		t.Quantity,
		t.Fee.String(),
		t.Broker,
	).Scan(&stored.ID, &priceStr, &feeStr, &stored.CreatedAt)
	if err != nil {
		return nil, storeError("failed to insert transaction", err)
	}

	if stored.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("failed to parse stored price: %w", err)
	}
	if stored.Fee, err = decimal.NewFromString(feeStr); err != nil {
		return nil, fmt.Errorf("failed to parse stored fee: %w", err)
	}

	return &stored, nil
}

// FindByID retrieves an active transaction by its ID
func (r *transactionRepository) FindByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := transactionSelect + `WHERE id = $1 AND deleted_at IS NULL`

	t, err := scanTransaction(r.db.conn(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewTransactionNotFound(id)
		}
		return nil, storeError("failed to get transaction by ID", err)
	}

	return t, nil
}

// SoftDelete sets deleted_at on an active transaction
func (r *transactionRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `
		UPDATE transactions
		SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.conn(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return storeError("failed to delete transaction", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to read affected rows", err)
	}
	if rows == 0 {
		return domain.NewTransactionNotFound(id)
	}

	return nil
}

// List retrieves one page of active transactions
func (r *transactionRepository) List(ctx context.Context, q domain.ListQuery) (*domain.Page[domain.Transaction], error) {
	where, args := listWhere(q)

	orderBy, err := listOrderBy(q)
	if err != nil {
		return nil, err
	}

	conn := r.db.conn(ctx)

	var total int64
	countQuery := `SELECT COUNT(*) FROM transactions ` + where
	if err := conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, storeError("failed to count transactions", err)
	}

	if total == 0 || int64(q.Offset()) >= total {
		return domain.NewPage[domain.Transaction](nil, total, q.PageNumber, q.PageSize), nil
	}

	pageQuery := fmt.Sprintf("%s %s %s LIMIT $%d OFFSET $%d",
		transactionSelect, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, q.PageSize, q.Offset())

	rows, err := conn.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, storeError("failed to list transactions", err)
	}
	defer rows.Close()

	content := make([]domain.Transaction, 0, q.PageSize)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, storeError("failed to scan transaction", err)
		}
		content = append(content, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("error iterating transactions", err)
	}

	return domain.NewPage(content, total, q.PageNumber, q.PageSize), nil
}

func listWhere(q domain.ListQuery) (string, []any) {
	switch q.Filter {
	case domain.FilterBroker:
		return "WHERE deleted_at IS NULL AND broker = $1", []any{q.FilterValue}
	case domain.FilterAsset:
		return "WHERE deleted_at IS NULL AND asset = $1", []any{q.FilterValue}
	default:
		return "WHERE deleted_at IS NULL", nil
	}
}

// listOrderBy only ever interpolates whitelisted column names
func listOrderBy(q domain.ListQuery) (string, error) {
	column, ok := transactionColumns[q.SortProperty]
	if !ok {
		return "", domain.NewValidationError("property", "Property is not sortable.")
	}

	direction := "ASC"
	if q.SortDirection == domain.SortDesc {
		direction = "DESC"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ORDER BY %s %s", column, direction)
	if column != "id" {
		fmt.Fprintf(&b, ", id %s", direction)
	}

	return b.String(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var tradeDate time.Time
	var priceStr, feeStr string
	var deletedAt sql.NullTime

	err := row.Scan(
		&t.ID,
		&tradeDate,
		&t.Type,
		&t.Asset,
		&priceStr,
		&t.Quantity,
		&feeStr,
		&t.Broker,
		&t.CreatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Date = civil.DateOf(tradeDate)

	// Parse price and fee (NUMERIC)
	if t.Price, err = decimal.NewFromString(priceStr); err != nil {
		return nil, fmt.Errorf("failed to parse price: %w", err)
	}
	if t.Fee, err = decimal.NewFromString(feeStr); err != nil {
		return nil, fmt.Errorf("failed to parse fee: %w", err)
	}

	if deletedAt.Valid {
		d := deletedAt.Time
		t.DeletedAt = &d
	}

	return &t, nil
}
