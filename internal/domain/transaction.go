package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TransactionType represents the side of a stock transaction
type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// IsValid reports whether the type is BUY or SELL
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeBuy || t == TransactionTypeSell
}

const (
	AssetMinLength  = 5
	AssetMaxLength  = 6
	BrokerMinLength = 5
	BrokerMaxLength = 10
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// MoneyScale is the number of decimal places allowed for prices and fees.
// It matches BalanceScale so every delta lands in an account balance unrounded.
const MoneyScale = BalanceScale

// MaxMoney is the exclusive upper bound for a price, a fee and a transaction total.
// It is the largest magnitude an account balance column can hold.
var MaxMoney = decimal.New(1, 13)

// Transaction represents a stock transaction record in the domain layer.
// A transaction is never mutated after creation; deleting it only sets DeletedAt.
type Transaction struct {
	ID        int64
	Date      civil.Date
	Type      TransactionType
	Asset     string
	Price     decimal.Decimal
	Quantity  int64
	Fee       decimal.Decimal
	Broker    string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// IsDeleted reports whether the transaction was soft-deleted
func (t *Transaction) IsDeleted() bool {
	return t.DeletedAt != nil
}

// Normalize trims and upper-cases the asset symbol, broker code and type
func (t *Transaction) Normalize() {
	t.Asset = NormalizeCode(t.Asset)
	t.Broker = NormalizeCode(t.Broker)
	t.Type = TransactionType(NormalizeCode(string(t.Type)))
}

// Validate ensures the transaction adheres to domain rules.
// today is passed in so callers control the clock.
// Returns a *ValidationError naming the first offending field.
func (t *Transaction) Validate(today civil.Date) error {
	if t.Date == (civil.Date{}) {
		return NewValidationError("date", "Date cannot be null.")
	}
	if !t.Date.IsValid() {
		return NewValidationError("date", "Date is not a valid calendar date.")
	}
	if t.Date.After(today) {
		return NewValidationError("date", "Date must be today or in the past.")
	}

	if t.Type == "" {
		return NewValidationError("type", "Type cannot be null.")
	}
	if !t.Type.IsValid() {
		return NewValidationError("type", "Type must be BUY or SELL.")
	}

	if err := validateCode("asset", "Asset", t.Asset, AssetMinLength, AssetMaxLength); err != nil {
		return err
	}

	if t.Price.IsNegative() {
		return NewValidationError("price", "Price must be zero or positive number.")
	}
	if err := validateMoney("price", "Price", t.Price); err != nil {
		return err
	}
	if t.Quantity < 0 {
		return NewValidationError("quantity", "Quantity must be zero or positive number.")
	}
	if t.Fee.IsNegative() {
		return NewValidationError("fee", "Fee must be zero or positive number.")
	}
	if err := validateMoney("fee", "Fee", t.Fee); err != nil {
		return err
	}

	// the largest delta either operation can produce is price x quantity + fee
	total := t.Price.Mul(decimal.NewFromInt(t.Quantity)).Add(t.Fee)
	if total.GreaterThanOrEqual(MaxMoney) {
		return NewValidationError("quantity", fmt.Sprintf("Price times quantity plus fee must be less than %s.", MaxMoney))
	}

	return validateCode("broker", "Broker", t.Broker, BrokerMinLength, BrokerMaxLength)
}

// NormalizeCode trims surrounding whitespace and upper-cases a broker or asset code.
// A new Caser is built per call since casers are not safe for concurrent use.
func NormalizeCode(code string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(code))
}

// ValidateBroker checks an already-normalized broker code
func ValidateBroker(broker string) error {
	return validateCode("broker", "Broker", broker, BrokerMinLength, BrokerMaxLength)
}

func validateMoney(field, label string, v decimal.Decimal) error {
	if !v.Equal(v.Round(MoneyScale)) {
		return NewValidationError(field, fmt.Sprintf("%s must have at most %d decimal places.", label, MoneyScale))
	}
	if v.Abs().GreaterThanOrEqual(MaxMoney) {
		return NewValidationError(field, fmt.Sprintf("%s must be less than %s.", label, MaxMoney))
	}
	return nil
}

func validateCode(field, label, value string, minLen, maxLen int) error {
	if value == "" {
		return NewValidationError(field, label+" cannot be null.")
	}

	n := utf8.RuneCountInString(value)
	if n < minLen || n > maxLen {
		return NewValidationError(field, fmt.Sprintf("%s must have at least %d and max %d characters.", label, minLen, maxLen))
	}

	if !codePattern.MatchString(value) {
		return NewValidationError(field, label+" must contain only letters and digits.")
	}

	return nil
}
