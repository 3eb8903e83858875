package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ExpensesChannel is the NOTIFY channel raised after any write to expenses.
const ExpensesChannel = "expenses_changed"

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS expenses (
			id TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
			name TEXT NOT NULL,
			payer TEXT NOT NULL DEFAULT '',
			amount NUMERIC(14, 2) NOT NULL,
			paided TEXT[] NOT NULL DEFAULT '{}',
			date_created TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_expenses_date_created ON expenses(date_created)`,

		`CREATE TABLE IF NOT EXISTS push_tokens (
			id BIGSERIAL PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE OR REPLACE FUNCTION notify_expenses_changed() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('` + ExpensesChannel + `', TG_OP);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql`,

		`CREATE OR REPLACE TRIGGER expenses_changed
			AFTER INSERT OR UPDATE OR DELETE OR TRUNCATE ON expenses
			FOR EACH STATEMENT EXECUTE FUNCTION notify_expenses_changed()`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
