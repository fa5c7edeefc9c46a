package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/folio-backend/internal/domain"
)

func TestRegisterHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "all healthy",
			checks:     map[string]HealthCheck{"postgres": ok, "rabbitmq": ok},
			wantStatus: fiber.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: fiber.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "one dependency down",
			checks:     map[string]HealthCheck{"postgres": ok, "rabbitmq": down},
			wantStatus: fiber.StatusServiceUnavailable,
			wantBody:   `{"status":"unavailable","checks":{"rabbitmq":"connection refused"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewApp("health-test", zerolog.Nop())
			RegisterHealth(app, tt.checks)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.JSONEq(t, tt.wantBody, readBody(t, resp))
		})
	}
}

func TestRequestIDHeader(t *testing.T) {
	app := NewApp("request-id-test", zerolog.Nop())
	RegisterHealth(app, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"fiber not found", fiber.ErrNotFound, fiber.StatusNotFound},
		{"method not allowed", fiber.ErrMethodNotAllowed, fiber.StatusMethodNotAllowed},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError},
		{"value rejected by store", fmt.Errorf("insert: %w", domain.ErrValueRejected), fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	app := NewApp("serve-test", zerolog.Nop())
	RegisterHealth(app, nil)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Serve(ctx, app, lis, time.Second) }()

	url := "http://" + lis.Addr().String() + "/health"
	assert.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
