package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for the sqlite driver used in
// local dev and tests. Keep it in step with migrations/.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS quotes (
		id            text PRIMARY KEY,
		customer_id   text NOT NULL,
		title         text NOT NULL,
		status        text NOT NULL DEFAULT 'draft',
		currency      text NOT NULL DEFAULT 'USD',
		tax_rate      numeric NOT NULL DEFAULT 0,
		subtotal      numeric NOT NULL DEFAULT 0,
		tax_amount    numeric NOT NULL DEFAULT 0,
		total_amount  numeric NOT NULL DEFAULT 0,
		version       integer NOT NULL DEFAULT 1,
		created_by    text,
		created_at    datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (status IN ('draft','sent','accepted','declined','expired')),
		CHECK (tax_rate >= 0 AND tax_rate <= 1)
	)`,
	`CREATE INDEX IF NOT EXISTS quotes_customer_created_idx ON quotes (customer_id, created_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS parts_lists (
		id            text PRIMARY KEY,
		ticket_id     text NOT NULL UNIQUE,
		tax_rate      numeric NOT NULL DEFAULT 0,
		subtotal      numeric NOT NULL DEFAULT 0,
		tax_amount    numeric NOT NULL DEFAULT 0,
		total_amount  numeric NOT NULL DEFAULT 0,
		version       integer NOT NULL DEFAULT 1,
		created_at    datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		id               text PRIMARY KEY,
		owner_type       text NOT NULL,
		owner_id         text NOT NULL,
		description      text NOT NULL DEFAULT '',
		category         text NOT NULL DEFAULT '',
		section_name     text NOT NULL DEFAULT '',
		part_number      text NOT NULL DEFAULT '',
		supplier         text NOT NULL DEFAULT '',
		quantity         numeric NOT NULL,
		unit_cost        numeric,
		unit_price       numeric,
		discount_rate    numeric NOT NULL DEFAULT 0,
		discount_amount  numeric NOT NULL DEFAULT 0,
		total_price      numeric NOT NULL DEFAULT 0,
		is_optional      boolean NOT NULL DEFAULT 0,
		is_alternate     boolean NOT NULL DEFAULT 0,
		sort_order       integer NOT NULL,
		created_at       datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (owner_type IN ('quote','parts_list')),
		CHECK (quantity >= 0),
		CHECK (total_price >= 0),
		UNIQUE (owner_type, owner_id, sort_order)
	)`,
	`CREATE TABLE IF NOT EXISTS review_jobs (
		id            text PRIMARY KEY,
		quote_id      text NOT NULL,
		customer_id   text NOT NULL,
		status        text NOT NULL,
		health_score  integer,
		suggestions   text,
		error         text,
		created_at    datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
		started_at    datetime,
		finished_at   datetime
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS review_jobs_one_open_idx ON review_jobs (quote_id) WHERE status IN ('pending','running')`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id              text PRIMARY KEY,
		event_type      text NOT NULL,
		aggregate_type  text NOT NULL,
		aggregate_id    text NOT NULL,
		payload         text NOT NULL,
		created_at      datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
		published_at    datetime,
		attempt_count   integer NOT NULL DEFAULT 0,
		last_error      text
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id              text PRIMARY KEY,
		event_id        text NOT NULL,
		event_type      text NOT NULL,
		aggregate_type  text NOT NULL,
		aggregate_id    text NOT NULL,
		payload_json    text NOT NULL,
		error_reason    text NOT NULL,
		error_message   text,
		attempt_count   integer NOT NULL DEFAULT 0,
		failed_at       datetime NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// ApplySQLiteSchema creates the tables on a sqlite connection. Ids have no
// database default there, so repositories assign them before insert.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
