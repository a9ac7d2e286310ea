package storage

import (
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version     string    `db:"version"`
	Description string    `db:"description"`
	SQL         string    `db:"sql"`
	AppliedAt   time.Time `db:"applied_at"`
}

// GetSQLiteMigrations returns SQLite migration scripts
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create targets table",
			SQL: `
				CREATE TABLE IF NOT EXISTS targets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					host TEXT NOT NULL,
					port INTEGER NOT NULL DEFAULT 161,
					community TEXT NOT NULL DEFAULT 'public',
					snmp_version TEXT NOT NULL DEFAULT '2c',
					enabled BOOLEAN DEFAULT TRUE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_targets_enabled ON targets(enabled);
			`,
		},
		{
			Version:     "002",
			Description: "Create poll_results table",
			SQL: `
				CREATE TABLE IF NOT EXISTS poll_results (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					target_id INTEGER NOT NULL,
					status TEXT NOT NULL,
					latency_ms INTEGER,
					message TEXT NOT NULL DEFAULT '',
					polled_at DATETIME NOT NULL,
					FOREIGN KEY (target_id) REFERENCES targets (id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_poll_results_target_time ON poll_results(target_id, polled_at);
			`,
		},
		{
			Version:     "003",
			Description: "Create alert_rules and alert_channels tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS alert_channels (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					config TEXT NOT NULL DEFAULT '{}', -- JSON
					enabled BOOLEAN DEFAULT TRUE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS alert_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					target_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					rule_type TEXT NOT NULL DEFAULT 'status_change',
					severity TEXT NOT NULL DEFAULT 'warning',
					enabled BOOLEAN DEFAULT TRUE,
					channels TEXT NOT NULL DEFAULT '[]', -- JSON array of channel ids
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (target_id) REFERENCES targets (id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_alert_rules_target ON alert_rules(target_id, enabled);
			`,
		},
		{
			Version:     "004",
			Description: "Create alert_history table with active-alert uniqueness",
			SQL: `
				CREATE TABLE IF NOT EXISTS alert_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					target_id INTEGER NOT NULL,
					rule_id INTEGER NOT NULL,
					alert_type TEXT NOT NULL,
					severity TEXT NOT NULL,
					message TEXT NOT NULL DEFAULT '',
					fired_at DATETIME NOT NULL,
					resolved_at DATETIME,
					FOREIGN KEY (target_id) REFERENCES targets (id) ON DELETE CASCADE,
					FOREIGN KEY (rule_id) REFERENCES alert_rules (id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_alert_history_target ON alert_history(target_id, fired_at);
				-- At most one active alert per (target, rule) pair
				CREATE UNIQUE INDEX IF NOT EXISTS idx_alert_history_active
					ON alert_history(target_id, rule_id) WHERE resolved_at IS NULL;
			`,
		},
		{
			Version:     "005",
			Description: "Create alert_suppressions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS alert_suppressions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					target_id INTEGER, -- NULL means global
					start_time DATETIME NOT NULL,
					end_time DATETIME NOT NULL,
					recurrence TEXT,
					days_of_week TEXT NOT NULL DEFAULT '[]', -- JSON array of weekday numbers
					enabled BOOLEAN DEFAULT TRUE,
					reason TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (target_id) REFERENCES targets (id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_alert_suppressions_enabled ON alert_suppressions(enabled);
			`,
		},
		{
			Version:     "006",
			Description: "Create alert_deliveries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS alert_deliveries (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					alert_history_id INTEGER NOT NULL,
					channel_id INTEGER NOT NULL,
					attempt INTEGER NOT NULL DEFAULT 1,
					outcome TEXT NOT NULL,
					detail TEXT NOT NULL DEFAULT '',
					delivered_at DATETIME NOT NULL,
					FOREIGN KEY (alert_history_id) REFERENCES alert_history (id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_alert_deliveries_alert ON alert_deliveries(alert_history_id);
			`,
		},
	}
}

// GetPostgresMigrations returns PostgreSQL migration scripts
func GetPostgresMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create targets table",
			SQL: `
				CREATE TABLE IF NOT EXISTS targets (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					host TEXT NOT NULL,
					port INTEGER NOT NULL DEFAULT 161,
					community TEXT NOT NULL DEFAULT 'public',
					snmp_version TEXT NOT NULL DEFAULT '2c',
					enabled BOOLEAN DEFAULT TRUE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_targets_enabled ON targets(enabled);
			`,
		},
		{
			Version:     "002",
			Description: "Create poll_results table",
			SQL: `
				CREATE TABLE IF NOT EXISTS poll_results (
					id BIGSERIAL PRIMARY KEY,
					target_id BIGINT NOT NULL REFERENCES targets (id) ON DELETE CASCADE,
					status TEXT NOT NULL,
					latency_ms INTEGER,
					message TEXT NOT NULL DEFAULT '',
					polled_at TIMESTAMP WITH TIME ZONE NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_poll_results_target_time ON poll_results(target_id, polled_at);
			`,
		},
		{
			Version:     "003",
			Description: "Create alert_rules and alert_channels tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS alert_channels (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					config JSONB NOT NULL DEFAULT '{}',
					enabled BOOLEAN DEFAULT TRUE,
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS alert_rules (
					id BIGSERIAL PRIMARY KEY,
					target_id BIGINT NOT NULL REFERENCES targets (id) ON DELETE CASCADE,
					name TEXT NOT NULL,
					rule_type TEXT NOT NULL DEFAULT 'status_change',
					severity TEXT NOT NULL DEFAULT 'warning',
					enabled BOOLEAN DEFAULT TRUE,
					channels JSONB NOT NULL DEFAULT '[]',
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_alert_rules_target ON alert_rules(target_id, enabled);
			`,
		},
		{
			Version:     "004",
			Description: "Create alert_history table with active-alert uniqueness",
			SQL: `
				CREATE TABLE IF NOT EXISTS alert_history (
					id BIGSERIAL PRIMARY KEY,
					target_id BIGINT NOT NULL REFERENCES targets (id) ON DELETE CASCADE,
					rule_id BIGINT NOT NULL REFERENCES alert_rules (id) ON DELETE CASCADE,
					alert_type TEXT NOT NULL,
					severity TEXT NOT NULL,
					message TEXT NOT NULL DEFAULT '',
					fired_at TIMESTAMP WITH TIME ZONE NOT NULL,
					resolved_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX IF NOT EXISTS idx_alert_history_target ON alert_history(target_id, fired_at);
				-- At most one active alert per (target, rule) pair
				CREATE UNIQUE INDEX IF NOT EXISTS idx_alert_history_active
					ON alert_history(target_id, rule_id) WHERE resolved_at IS NULL;
			`,
		},
		{
			Version:     "005",
			Description: "Create alert_suppressions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS alert_suppressions (
					id BIGSERIAL PRIMARY KEY,
					name TEXT NOT NULL,
					target_id BIGINT REFERENCES targets (id) ON DELETE CASCADE,
					start_time TIMESTAMP WITH TIME ZONE NOT NULL,
					end_time TIMESTAMP WITH TIME ZONE NOT NULL,
					recurrence TEXT,
					days_of_week JSONB NOT NULL DEFAULT '[]',
					enabled BOOLEAN DEFAULT TRUE,
					reason TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_alert_suppressions_enabled ON alert_suppressions(enabled);
			`,
		},
		{
			Version:     "006",
			Description: "Create alert_deliveries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS alert_deliveries (
					id BIGSERIAL PRIMARY KEY,
					alert_history_id BIGINT NOT NULL REFERENCES alert_history (id) ON DELETE CASCADE,
					channel_id BIGINT NOT NULL,
					attempt INTEGER NOT NULL DEFAULT 1,
					outcome TEXT NOT NULL,
					detail TEXT NOT NULL DEFAULT '',
					delivered_at TIMESTAMP WITH TIME ZONE NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_alert_deliveries_alert ON alert_deliveries(alert_history_id);
			`,
		},
	}
}
