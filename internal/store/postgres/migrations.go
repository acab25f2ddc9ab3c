package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type migration struct {
	version int
	name    string
	sql     string
}

// migrations are applied in order; each runs once and is recorded in
// schema_migrations.
var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		sql: `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			email      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (lower(email)) WHERE email <> '';

		CREATE TABLE IF NOT EXISTS organizations (
			id          TEXT PRIMARY KEY,
			name        VARCHAR(100) NOT NULL,
			slug        TEXT NOT NULL,
			description TEXT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_organizations_slug ON organizations (slug);

		CREATE TABLE IF NOT EXISTS org_memberships (
			org_id    TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role      TEXT NOT NULL CHECK (role IN ('ADMIN', 'MEMBER')),
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (org_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_org_memberships_user ON org_memberships (user_id);

		CREATE TABLE IF NOT EXISTS invitations (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			email           TEXT NOT NULL,
			role            TEXT NOT NULL DEFAULT 'MEMBER' CHECK (role IN ('ADMIN', 'MEMBER')),
			invited_by      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status          TEXT NOT NULL DEFAULT 'PENDING'
			                CHECK (status IN ('PENDING', 'ACCEPTED', 'EXPIRED', 'CANCELLED')),
			expires_at      TIMESTAMPTZ NOT NULL,
			accepted_at     TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_invitations_pending
			ON invitations (organization_id, lower(email)) WHERE status = 'PENDING';
		CREATE INDEX IF NOT EXISTS idx_invitations_email
			ON invitations (lower(email)) WHERE status = 'PENDING';

		CREATE TABLE IF NOT EXISTS expense_categories (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			name            VARCHAR(50) NOT NULL,
			description     VARCHAR(200),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_expense_categories_name
			ON expense_categories (organization_id, lower(name));`,
	},
	{
		version: 2,
		name:    "category_dependents",
		sql: `
		CREATE TABLE IF NOT EXISTS expenses (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			category_id     TEXT REFERENCES expense_categories(id),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_expenses_category ON expenses (category_id);

		CREATE TABLE IF NOT EXISTS policies (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
			category_id     TEXT REFERENCES expense_categories(id),
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_policies_category ON policies (category_id);`,
	},
}

// runMigrations applies pending migrations inside one transaction each.
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("checking migration %d: %w", m.version, err)
		}
		if applied {
			continue
		}

		if err := applyMigration(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d_%s failed: %w", m.version, m.name, err)
		}
		logger.Info("applied migration", "version", m.version, "name", m.name)
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return mapPostgresError(err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name,
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}
