package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The unique index on email closes the duplicate-registration race that an
// application-level existence check alone cannot.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                  UUID PRIMARY KEY,
		username            TEXT NOT NULL,
		email               TEXT NOT NULL,
		password_hash       TEXT NOT NULL,
		is_google_user      BOOLEAN NOT NULL DEFAULT FALSE,
		age                 INT,
		height              INT,
		weight              INT,
		gender              TEXT,
		fitness_goal        TEXT,
		dietary_preferences TEXT,
		latest_plan         JSONB,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (email)`,
	`CREATE TABLE IF NOT EXISTS diet_plans (
		id          UUID PRIMARY KEY,
		user_id     UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title       TEXT NOT NULL,
		goal        TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		data        JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS diet_plans_user_idx ON diet_plans (user_id, created_at, id)`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
