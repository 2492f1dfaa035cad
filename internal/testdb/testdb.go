// Package testdb opens in-memory sqlite databases mirroring the production
// schema, including the credits reason/meta trigger, for service tests.
package testdb

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		github_id TEXT NOT NULL,
		github_username TEXT NOT NULL DEFAULT '',
		github_organizations TEXT NOT NULL DEFAULT '[]',
		adoption_token TEXT NOT NULL,
		default_prefix TEXT NOT NULL DEFAULT '',
		user_type TEXT NOT NULL DEFAULT 'member',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_users_github_id ON users (github_id)`,
	`CREATE UNIQUE INDEX ux_users_adoption_token ON users (adoption_token)`,

	`CREATE TABLE probes (
		id INTEGER PRIMARY KEY,
		probe_uuid TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL,
		name TEXT,
		version TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT,
		latitude REAL,
		longitude REAL,
		custom_location TEXT,
		status TEXT NOT NULL DEFAULT 'offline',
		is_outdated INTEGER NOT NULL DEFAULT 0,
		user_id INTEGER,
		tags TEXT NOT NULL DEFAULT '[]',
		last_sync_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		search_index TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_probes_ip ON probes (ip)`,

	`CREATE TABLE credits (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		amount INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_credits_user_id ON credits (user_id)`,

	`CREATE TABLE credits_additions (
		id INTEGER PRIMARY KEY,
		github_id TEXT,
		user_id INTEGER,
		amount INTEGER NOT NULL,
		reason TEXT NOT NULL,
		meta TEXT NOT NULL DEFAULT '{}',
		adopted_probe INTEGER,
		consumed INTEGER NOT NULL DEFAULT 0,
		dedup_key TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_credits_additions_dedup ON credits_additions (dedup_key)`,

	`CREATE TABLE credits_deductions (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	// Mirrors the production trigger pairing reason with meta.
	`CREATE TRIGGER trg_credits_additions_check
	BEFORE INSERT ON credits_additions
	FOR EACH ROW
	BEGIN
		SELECT CASE
			WHEN NEW.reason = 'adopted_probe'
				AND (NEW.adopted_probe IS NULL
					OR CAST(NEW.adopted_probe AS TEXT) IS NOT json_extract(NEW.meta, '$.id'))
				THEN RAISE(ABORT, 'adopted_probe must equal meta.id when reason is adopted_probe')
			WHEN NEW.reason IN ('one_time_sponsorship', 'recurring_sponsorship', 'tier_changed')
				AND json_extract(NEW.meta, '$.amountInDollars') IS NULL
				THEN RAISE(ABORT, 'meta.amountInDollars is required for sponsorship reasons')
		END;
	END`,

	`CREATE TABLE sponsors (
		id INTEGER PRIMARY KEY,
		github_id INTEGER NOT NULL,
		github_login TEXT NOT NULL,
		monthly_amount INTEGER NOT NULL,
		last_earning_date DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_sponsors_github_id ON sponsors (github_id)`,

	`CREATE TABLE apps (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		owner_name TEXT NOT NULL DEFAULT '',
		owner_url TEXT NOT NULL DEFAULT '',
		secrets TEXT NOT NULL DEFAULT '[]',
		grants TEXT NOT NULL DEFAULT '[]',
		redirect_urls TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE tokens (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		app_id INTEGER,
		name TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL,
		origins TEXT NOT NULL DEFAULT '[]',
		expire DATE,
		token_type TEXT NOT NULL DEFAULT 'access',
		last_used DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX ux_tokens_value ON tokens (value)`,

	`CREATE TABLE notifications (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		item TEXT NOT NULL,
		subject TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Open returns an isolated in-memory database with the full schema applied.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}
