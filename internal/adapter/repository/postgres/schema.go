package postgres

// Schema is a set of idempotent DDL statements
type Schema string

// TransactionsSchema holds the tables owned by the transactions service
const TransactionsSchema Schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id          BIGSERIAL PRIMARY KEY,
	trade_date  DATE           NOT NULL,
	type        VARCHAR(4)     NOT NULL CHECK (type IN ('BUY', 'SELL')),
	asset       VARCHAR(6)     NOT NULL,
	price       NUMERIC(15, 2) NOT NULL CHECK (price >= 0),
	quantity    BIGINT         NOT NULL CHECK (quantity >= 0),
	fee         NUMERIC(15, 2) NOT NULL CHECK (fee >= 0),
	broker      VARCHAR(10)    NOT NULL,
	created_at  TIMESTAMPTZ    NOT NULL DEFAULT now(),
	deleted_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_transactions_broker_active ON transactions (broker) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_transactions_asset_active ON transactions (asset) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS outbox_events (
	id              UUID PRIMARY KEY,
	event_type      VARCHAR(64) NOT NULL,
	broker          VARCHAR(10) NOT NULL,
	payload         JSONB       NOT NULL,
	status          VARCHAR(16) NOT NULL DEFAULT 'PENDING',
	attempts        INTEGER     NOT NULL DEFAULT 0,
	last_error      TEXT,
	next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at    TIMESTAMPTZ
);

ALTER TABLE outbox_events ADD COLUMN IF NOT EXISTS next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now();

CREATE INDEX IF NOT EXISTS idx_outbox_events_pending ON outbox_events (created_at) WHERE status = 'PENDING';
`

// AccountsSchema holds the tables owned by the accounts service
const AccountsSchema Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id          UUID PRIMARY KEY,
	broker      VARCHAR(10)    NOT NULL,
	balance     NUMERIC(15, 2) NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ    NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ    NOT NULL DEFAULT now(),
	deleted_at  TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_accounts_broker_active ON accounts (broker) WHERE deleted_at IS NULL;
`
