package database

import "fmt"

// Bootstrap DDL. Kept portable across sqlite/postgres/mysql: no serial
// columns, timestamps written by the application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		id TEXT PRIMARY KEY,
		type INTEGER NOT NULL,
		serial INTEGER NOT NULL,
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		closed BOOLEAN NOT NULL DEFAULT FALSE,
		pending BOOLEAN NOT NULL DEFAULT TRUE,
		fresh BOOLEAN NOT NULL DEFAULT TRUE,
		channel_name TEXT NOT NULL DEFAULT '',
		welcome_message_id TEXT NOT NULL DEFAULT '',
		before_archive_name TEXT NOT NULL DEFAULT '',
		before_archived_pending BOOLEAN NOT NULL DEFAULT FALSE,
		selected_service TEXT NOT NULL DEFAULT '',
		invoice_id TEXT NOT NULL DEFAULT '',
		manager_id TEXT NOT NULL DEFAULT '',
		freelancer_id TEXT NOT NULL DEFAULT '',
		complete BOOLEAN NOT NULL DEFAULT FALSE,
		delivery_accepted BOOLEAN NOT NULL DEFAULT FALSE,
		log_message_id TEXT NOT NULL DEFAULT '',
		quote_channel_id TEXT NOT NULL DEFAULT '',
		deadline TIMESTAMP NULL,
		deadline_message_id TEXT NOT NULL DEFAULT '',
		last_quoted TIMESTAMP NULL,
		deniers TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ticket_serial_counter (
		guild_id TEXT NOT NULL,
		ticket_type INTEGER NOT NULL,
		counter INTEGER NOT NULL,
		PRIMARY KEY (guild_id, ticket_type)
	)`,
	`CREATE TABLE IF NOT EXISTS prompt_sessions (
		id TEXT PRIMARY KEY,
		ticket_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		current_question_idx INTEGER NOT NULL DEFAULT 0,
		done BOOLEAN NOT NULL DEFAULT FALSE,
		message_id TEXT NOT NULL DEFAULT '',
		error_message_id TEXT NOT NULL DEFAULT '',
		responses TEXT NOT NULL DEFAULT '',
		attachments TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		ticket_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		amount REAL NOT NULL,
		tax REAL NOT NULL DEFAULT 0,
		gateway_id TEXT NOT NULL DEFAULT '',
		gateway_reference TEXT NOT NULL DEFAULT '',
		payment_url TEXT NOT NULL DEFAULT '',
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		paid_amount REAL NOT NULL DEFAULT 0,
		manual BOOLEAN NOT NULL DEFAULT FALSE,
		started BOOLEAN NOT NULL DEFAULT FALSE,
		cancelled BOOLEAN NOT NULL DEFAULT FALSE,
		message_channel_id TEXT NOT NULL DEFAULT '',
		message_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS banks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		balance REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS service_cuts (
		id TEXT PRIMARY KEY,
		guild_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		percentage REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS quotes (
		id TEXT PRIMARY KEY,
		commission_id TEXT NOT NULL,
		freelancer_id TEXT NOT NULL,
		price REAL NOT NULL,
		status INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		message_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS archive_timers (
		id TEXT PRIMARY KEY,
		ticket_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		archive_after TIMESTAMP NOT NULL,
		message_cancels BOOLEAN NOT NULL DEFAULT TRUE,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cooldowns (
		author_id TEXT PRIMARY KEY,
		expires_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_guild_type ON tickets (guild_id, type)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_reference ON invoices (gateway_reference)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id)`,
}

func (db *DB) ensureSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
