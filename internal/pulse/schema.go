package pulse

import (
	"context"

	"github.com/ecashpulse/pulse/internal/platform/db"

	"github.com/pkg/errors"
	"github.com/tokenized/logger"
	"go.opencensus.io/trace"
)

// schema is applied in order. Every statement runs on both Postgres and SQLite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users (id),
		expires_at TIMESTAMP NOT NULL,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS sessions_user_id ON sessions (user_id)`,

	`CREATE TABLE IF NOT EXISTS auth_transactions (
		tx_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users (id),
		address TEXT NOT NULL,
		amount BIGINT NOT NULL,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		yes_pool BIGINT NOT NULL DEFAULT 0,
		no_pool BIGINT NOT NULL DEFAULT 0,
		total_volume BIGINT NOT NULL DEFAULT 0,
		bet_count INTEGER NOT NULL DEFAULT 0,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS outcomes (
		id TEXT PRIMARY KEY,
		prediction_id TEXT NOT NULL REFERENCES predictions (id),
		label TEXT NOT NULL,
		pool BIGINT NOT NULL DEFAULT 0,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS bets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users (id),
		prediction_id TEXT NOT NULL REFERENCES predictions (id),
		outcome_id TEXT REFERENCES outcomes (id),
		position TEXT NOT NULL,
		amount BIGINT NOT NULL,
		paid_amount BIGINT NOT NULL DEFAULT 0,
		tx_hash TEXT UNIQUE,
		status TEXT NOT NULL,
		confirmed_at TIMESTAMP,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS bets_prediction_id ON bets (prediction_id)`,

	`CREATE TABLE IF NOT EXISTS raffles (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		entry_cost BIGINT NOT NULL,
		total_pot BIGINT NOT NULL DEFAULT 0,
		entries_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS raffle_entries (
		id TEXT PRIMARY KEY,
		raffle_id TEXT NOT NULL REFERENCES raffles (id),
		user_id TEXT NOT NULL REFERENCES users (id),
		amount BIGINT NOT NULL,
		paid_amount BIGINT NOT NULL DEFAULT 0,
		tx_hash TEXT UNIQUE,
		status TEXT NOT NULL,
		confirmed_at TIMESTAMP,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS platform_fees (
		id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		amount BIGINT NOT NULL,
		rate TEXT NOT NULL,
		date_created TIMESTAMP NOT NULL,
		UNIQUE (source_type, source_id)
	)`,

	`CREATE TABLE IF NOT EXISTS used_transactions (
		tx_hash TEXT PRIMARY KEY,
		record_type TEXT NOT NULL,
		record_id TEXT NOT NULL,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS attribution_changes (
		id TEXT PRIMARY KEY,
		record_type TEXT NOT NULL,
		record_id TEXT NOT NULL,
		from_user_id TEXT NOT NULL,
		to_user_id TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		sender_address TEXT NOT NULL,
		date_created TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS attribution_changes_record ON attribution_changes (record_type, record_id)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, dbConn *db.DB) error {
	ctx, span := trace.StartSpan(ctx, "internal.pulse.Migrate")
	defer span.End()

	for i, sql := range schema {
		if err := dbConn.Execute(ctx, sql); err != nil {
			return errors.Wrapf(err, "schema statement %d", i)
		}
	}

	logger.Info(ctx, "Applied %d schema statements", len(schema))
	return nil
}
