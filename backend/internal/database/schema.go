package database

import (
	"context"
)

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		balance       NUMERIC(20, 2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS portfolio (
		id            BIGSERIAL PRIMARY KEY,
		user_id       UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		symbol        TEXT NOT NULL,
		quantity      BIGINT NOT NULL CHECK (quantity > 0),
		average_price NUMERIC(28, 8) NOT NULL CHECK (average_price > 0),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS watchlist (
		id         BIGSERIAL PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		symbol     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, symbol)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id          UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		symbol           TEXT NOT NULL,
		quantity         BIGINT NOT NULL CHECK (quantity > 0),
		price            NUMERIC(20, 2) NOT NULL CHECK (price > 0),
		transaction_type TEXT NOT NULL CHECK (transaction_type IN ('BUY', 'SELL')),
		timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions (user_id, timestamp DESC)`,
}

// Migrate creates any missing tables in a single transaction.
func (s *PGStore) Migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return persistErr("begin migration", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return persistErr("apply schema", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return persistErr("commit migration", err)
	}

	s.log.Info().Int("statements", len(schema)).Msg("Database migrations applied")
	return nil
}
