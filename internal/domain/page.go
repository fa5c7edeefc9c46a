package domain

import (
	"fmt"
	"strings"
)

// SortDirection is the ordering applied to a list query
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ParseSortDirection accepts asc/desc in any case
func ParseSortDirection(raw string) (SortDirection, error) {
	switch SortDirection(strings.ToUpper(strings.TrimSpace(raw))) {
	case SortAsc:
		return SortAsc, nil
	case SortDesc:
		return SortDesc, nil
	default:
		return "", NewValidationError("direction", "Direction must be asc or desc.")
	}
}

// FilterKind selects which of the mutually exclusive list filters applies
type FilterKind string

const (
	FilterNone   FilterKind = "none"
	FilterBroker FilterKind = "broker"
	FilterAsset  FilterKind = "asset"
)

// TransactionSortFields lists the properties a transaction list can be ordered by
var TransactionSortFields = []string{"id", "date", "type", "asset", "price", "quantity", "fee", "broker"}

// IsTransactionSortField reports whether property is sortable
func IsTransactionSortField(property string) bool {
	for _, f := range TransactionSortFields {
		if f == property {
			return true
		}
	}
	return false
}

// ListQuery is a fully resolved transaction list request
type ListQuery struct {
	Filter        FilterKind
	FilterValue   string
	PageNumber    int
	PageSize      int
	SortProperty  string
	SortDirection SortDirection
}

// Offset returns the number of rows to skip
func (q ListQuery) Offset() int {
	return q.PageNumber * q.PageSize
}

// CacheKey identifies the query by its full filter/sort/page tuple
func (q ListQuery) CacheKey() string {
	return fmt.Sprintf("%s=%s:size=%d:page=%d:sort=%s:%s",
		q.Filter, q.FilterValue, q.PageSize, q.PageNumber, q.SortProperty, q.SortDirection)
}

// Page is one slice of an ordered result set
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// NewPage creates a page and derives the page count from the total
func NewPage[T any](content []T, total int64, number, size int) *Page[T] {
	if content == nil {
		content = []T{}
	}

	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}

	return &Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Number:        number,
		Size:          size,
	}
}

// IsEmpty reports whether the page carries no elements
func (p *Page[T]) IsEmpty() bool {
	return p == nil || len(p.Content) == 0
}
