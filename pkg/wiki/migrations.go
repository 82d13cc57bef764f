package wiki

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the wiki schema migrations in order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL DEFAULT '',
					image TEXT NOT NULL DEFAULT '',
					role VARCHAR(20) NOT NULL DEFAULT 'STAFF',
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			`,
		},
		{
			Version:     2,
			Description: "Create pages and page_versions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS pages (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(500) NOT NULL,
					slug VARCHAR(500) NOT NULL UNIQUE,
					path TEXT NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'DRAFT',
					summary TEXT NOT NULL DEFAULT '',
					view_count BIGINT NOT NULL DEFAULT 0,
					current_version_id BIGINT,
					parent_id BIGINT REFERENCES pages(id),
					created_by_id BIGINT NOT NULL REFERENCES users(id),
					updated_by_id BIGINT REFERENCES users(id),
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS page_versions (
					id BIGSERIAL PRIMARY KEY,
					page_id BIGINT NOT NULL REFERENCES pages(id),
					title VARCHAR(500) NOT NULL,
					content TEXT NOT NULL DEFAULT '',
					markdown TEXT NOT NULL DEFAULT '',
					change_note TEXT NOT NULL DEFAULT '',
					minor_edit BOOLEAN NOT NULL DEFAULT FALSE,
					created_by_id BIGINT NOT NULL REFERENCES users(id),
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_pages_slug ON pages(slug);
				CREATE INDEX IF NOT EXISTS idx_pages_parent_id ON pages(parent_id);
				CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(status);
				CREATE INDEX IF NOT EXISTS idx_page_versions_page_id ON page_versions(page_id);
				CREATE INDEX IF NOT EXISTS idx_page_versions_created_at ON page_versions(created_at DESC);
			`,
		},
		{
			Version:     3,
			Description: "Create page_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS page_permissions (
					id BIGSERIAL PRIMARY KEY,
					page_id BIGINT NOT NULL REFERENCES pages(id),
					user_id BIGINT REFERENCES users(id),
					role VARCHAR(20),
					can_read BOOLEAN NOT NULL DEFAULT FALSE,
					can_write BOOLEAN NOT NULL DEFAULT FALSE,
					can_admin BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_page_permissions_page_id ON page_permissions(page_id);
				CREATE INDEX IF NOT EXISTS idx_page_permissions_user_id ON page_permissions(user_id);
			`,
		},
		{
			Version:     4,
			Description: "Create tags, page_tags and attachments tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS tags (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS page_tags (
					page_id BIGINT NOT NULL REFERENCES pages(id),
					tag_id BIGINT NOT NULL REFERENCES tags(id),
					PRIMARY KEY (page_id, tag_id)
				);

				CREATE TABLE IF NOT EXISTS attachments (
					id BIGSERIAL PRIMARY KEY,
					page_id BIGINT NOT NULL REFERENCES pages(id),
					file_name VARCHAR(500) NOT NULL,
					object_key TEXT NOT NULL,
					size BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_attachments_page_id ON attachments(page_id);
			`,
		},
	}
}

// RunMigrations applies all pending wiki migrations, tracking progress in
// schema_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	for _, m := range Migrations() {
		var applied bool
		err := db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", m.Version, err)
		}
		if applied {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
