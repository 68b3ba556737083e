package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS linking_entry (
		supplier_product_identifier TEXT NOT NULL,
		supplier_name               TEXT NOT NULL,
		chosen_amazon_asin          TEXT NOT NULL,
		match_method                TEXT NOT NULL,
		confidence_score            DOUBLE PRECISION NOT NULL,
		linked_at                   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (supplier_name, supplier_product_identifier)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_linking_entry_asin
		ON linking_entry (chosen_amazon_asin)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		target_stream  TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending',
		retry_count    INT NOT NULL DEFAULT 0,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		processed_at   TIMESTAMPTZ,
		next_retry_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_pending
		ON outbox_event (status, next_retry_at)`,
}

// Migrate applies the schema. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
