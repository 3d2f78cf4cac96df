package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the full DDL for the local stores. Statements are idempotent so
// Migrate can run on every startup; integration tests reuse the same DDL
// against throwaway containers.
const Schema = `
CREATE TABLE IF NOT EXISTS principals (
	id                  BIGSERIAL PRIMARY KEY,
	company_name        TEXT        NOT NULL,
	ledger_address      VARCHAR(42) NOT NULL UNIQUE,
	email               TEXT        NOT NULL UNIQUE,
	phone               TEXT,
	registration_number TEXT,
	postal_address      TEXT,
	subscription_tier   VARCHAR(50) NOT NULL DEFAULT 'basic',
	api_key_hash        VARCHAR(64) NOT NULL,
	is_active           BOOLEAN     NOT NULL DEFAULT TRUE,
	registered_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS records (
	token_id        VARCHAR(255) PRIMARY KEY,
	principal_id    BIGINT       NOT NULL REFERENCES principals(id),
	tx_type         VARCHAR(100) NOT NULL,
	amount_cents    BIGINT       NOT NULL,
	currency        VARCHAR(10)  NOT NULL DEFAULT 'USD',
	description     TEXT         NOT NULL DEFAULT '',
	data_hash       VARCHAR(66)  NOT NULL,
	content_hash    VARCHAR(66)  NOT NULL,
	content_locator TEXT,
	file_name       TEXT,
	file_size       BIGINT,
	ledger_tx_ref   VARCHAR(66),
	ledger_block    BIGINT,
	gas_used        BIGINT,
	status          VARCHAR(20)  NOT NULL DEFAULT 'pending',
	failure_kind    VARCHAR(40),
	is_verified     BOOLEAN      NOT NULL DEFAULT FALSE,
	verified_at     TIMESTAMPTZ,
	created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_principal_created
	ON records (principal_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_status ON records (status);

CREATE TABLE IF NOT EXISTS audit_events (
	id           UUID         PRIMARY KEY,
	occurred_at  TIMESTAMPTZ  NOT NULL,
	action       VARCHAR(100) NOT NULL,
	action_type  VARCHAR(50)  NOT NULL,
	entity_type  VARCHAR(50)  NOT NULL,
	entity_id    VARCHAR(255) NOT NULL DEFAULT '',
	actor        VARCHAR(255) NOT NULL DEFAULT '',
	principal_id BIGINT,
	token_id     VARCHAR(255),
	status       VARCHAR(20)  NOT NULL DEFAULT 'success',
	notes        TEXT         NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_events_principal
	ON audit_events (principal_id, occurred_at DESC);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
