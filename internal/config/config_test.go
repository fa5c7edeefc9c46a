package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/folio-backend/internal/logger"
)

// chdir changes the working directory for the duration of the test,
// equivalent to testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(ServiceTransactions)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.GRPCAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, logger.FormatJSON, cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, NotificationModeOutbox, cfg.Notification.Mode)
	assert.Equal(t, time.Second, cfg.Notification.PollInterval)
	assert.Equal(t, time.Minute, cfg.Notification.MaxRetryDelay)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "folio.accounts", cfg.RabbitMQ.Exchange)
	assert.Equal(t, "accounts", cfg.RabbitMQ.RoutingKey)
	assert.Equal(t, "accounts", cfg.RabbitMQ.Queue)
	assert.Equal(t, "folio.accounts.dlx", cfg.RabbitMQ.DeadLetterExch)
	assert.Equal(t, "accounts.dlq", cfg.RabbitMQ.DeadLetterQueue)
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=postgres dbname=folio_transactions sslmode=disable",
		cfg.Database.ConnStr)
	assert.Empty(t, cfg.Accounts.SeedBrokers)
}

func TestLoad_AccountsDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(ServiceAccounts)
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, ":9091", cfg.GRPCAddr)
	assert.Contains(t, cfg.Database.ConnStr, "dbname=folio_accounts")
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_CONN_STR", "postgres://u:p@db:5432/folio?sslmode=disable")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("NOTIFICATION_MODE", "DIRECT")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("RABBITMQ_PREFETCH", "50")
	t.Setenv("ACCOUNTS_SEED_BROKERS", " XPINV , CLEAR,,")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load(ServiceAccounts)
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@db:5432/folio?sslmode=disable", cfg.Database.ConnStr)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, NotificationModeDirect, cfg.Notification.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 50, cfg.RabbitMQ.Prefetch)
	assert.Equal(t, []string{"XPINV", "CLEAR"}, cfg.Accounts.SeedBrokers)
	assert.Equal(t, logger.FormatConsole, cfg.LogFormat)
}

func TestLoad_DSNFromParts(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_HOST", "postgres")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "folio")

	cfg, err := Load(ServiceTransactions)
	require.NoError(t, err)

	assert.Equal(t,
		"host=postgres port=6543 user=postgres password=postgres dbname=folio sslmode=disable",
		cfg.Database.ConnStr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "bad duration", key: "CACHE_TTL", value: "soon", wantErr: "invalid CACHE_TTL"},
		{name: "bad integer", key: "RABBITMQ_PREFETCH", value: "many", wantErr: "invalid RABBITMQ_PREFETCH"},
		{name: "zero prefetch", key: "RABBITMQ_PREFETCH", value: "0", wantErr: "RABBITMQ_PREFETCH must be at least 1"},
		{name: "bad bool", key: "CACHE_ENABLED", value: "maybe", wantErr: "invalid CACHE_ENABLED"},
		{name: "unknown mode", key: "NOTIFICATION_MODE", value: "kafka", wantErr: "invalid NOTIFICATION_MODE"},
		{name: "unknown log format", key: "LOG_FORMAT", value: "xml", wantErr: "invalid LOG_FORMAT"},
		{name: "zero ttl", key: "CACHE_TTL", value: "0s", wantErr: "CACHE_TTL must be positive"},
		{name: "retry delay below poll interval", key: "OUTBOX_MAX_RETRY_DELAY", value: "100ms", wantErr: "OUTBOX_MAX_RETRY_DELAY must not be shorter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tt.key, tt.value)

			cfg, err := Load(ServiceTransactions)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_UnknownService(t *testing.T) {
	_, err := Load("ledger")
	require.Error(t, err)
}
