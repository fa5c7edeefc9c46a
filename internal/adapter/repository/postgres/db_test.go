package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/simaogato/folio-backend/internal/domain"
)

func TestStoreError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantRejected bool
	}{
		{"numeric overflow", &pq.Error{Code: "22003", Message: "numeric field overflow"}, true},
		{"invalid text representation", &pq.Error{Code: "22P02"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"connection refused", errors.New("dial tcp: connection refused"), false},
		{"connection done", sql.ErrConnDone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storeError("failed to update account balance", tt.err)

			assert.ErrorIs(t, err, tt.err)
			if tt.wantRejected {
				assert.ErrorIs(t, err, domain.ErrValueRejected)
				assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
			} else {
				assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
				assert.NotErrorIs(t, err, domain.ErrValueRejected)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "22003"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
