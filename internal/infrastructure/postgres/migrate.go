package postgres

import (
	"context"
	"fmt"
)

// Migrate creates the schema if it does not exist yet. Statements are
// idempotent so the server can run them on every start.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,

		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT,
			oauth_provider TEXT,
			oauth_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_oauth_idx
			ON users (oauth_provider, oauth_id)
			WHERE oauth_provider IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS monthly_incomes (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			month DATE NOT NULL,
			base_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
			external_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
			total_income NUMERIC(18,2) NOT NULL DEFAULT 0,
			import_notes TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, month)
		)`,

		`CREATE TABLE IF NOT EXISTS income_import_entries (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			external_id TEXT NOT NULL,
			imported_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, external_id)
		)`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			month DATE NOT NULL,
			category TEXT NOT NULL,
			item_name TEXT NOT NULL,
			amount NUMERIC(18,2) NOT NULL,
			source TEXT NOT NULL DEFAULT 'manual',
			bucket TEXT NOT NULL DEFAULT 'essential_needs',
			external_id TEXT,
			import_note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS expenses_external_id_idx
			ON expenses (user_id, external_id)
			WHERE source = 'misa' AND external_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS expenses_user_month_idx
			ON expenses (user_id, month)`,

		`CREATE TABLE IF NOT EXISTS provider_configs (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			position INT NOT NULL,
			username TEXT NOT NULL,
			encrypted_password TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			is_configured BOOLEAN NOT NULL DEFAULT FALSE,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			last_validated TIMESTAMPTZ,
			validation_status TEXT NOT NULL DEFAULT 'pending',
			error_message TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, position)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
