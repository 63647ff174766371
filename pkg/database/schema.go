package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the loyalty core's slice of the storefront database. Applied
// idempotently at startup; ledger columns carry defaults so users created
// before loyalty tracking get a zeroed ledger for free.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                     UUID PRIMARY KEY,
	email                  TEXT NOT NULL,
	name                   TEXT NOT NULL DEFAULT '',
	stamps                 INT NOT NULL DEFAULT 0,
	cycles_completed       INT NOT NULL DEFAULT 0,
	welcome_coupon_granted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS claimed_coupons (
	code            TEXT PRIMARY KEY,
	user_id         UUID NOT NULL REFERENCES users (id),
	description     TEXT NOT NULL,
	discount_type   TEXT NOT NULL,
	value           NUMERIC(12,2) NOT NULL,
	min_order_value NUMERIC(12,2) NOT NULL DEFAULT 0,
	rarity          TEXT NOT NULL,
	claimed_at      TIMESTAMPTZ NOT NULL,
	expires_at      TIMESTAMPTZ NOT NULL,
	applied_at      TIMESTAMPTZ,
	applied_total   NUMERIC(12,2),
	used_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_claimed_coupons_user ON claimed_coupons (user_id);

CREATE TABLE IF NOT EXISTS loyalty_history (
	id          BIGSERIAL PRIMARY KEY,
	user_id     UUID NOT NULL REFERENCES users (id),
	cycle       INT NOT NULL,
	description TEXT NOT NULL,
	code        TEXT NOT NULL,
	rarity      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_loyalty_history_user ON loyalty_history (user_id);

CREATE TABLE IF NOT EXISTS orders (
	id                  UUID PRIMARY KEY,
	user_id             UUID NOT NULL REFERENCES users (id),
	status              TEXT NOT NULL,
	total               NUMERIC(12,2) NOT NULL DEFAULT 0,
	is_delivered        BOOLEAN NOT NULL DEFAULT FALSE,
	delivered_at        TIMESTAMPTZ,
	return_status       TEXT,
	coupon_code         TEXT,
	total_quantity      INT NOT NULL DEFAULT 0,
	loyalty_stamp_added BOOLEAN NOT NULL DEFAULT FALSE,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_orders_stampable
	ON orders (delivered_at)
	WHERE is_delivered AND NOT loyalty_stamp_added;
`

// EnsureSchema applies the schema. Safe to run on every boot.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
