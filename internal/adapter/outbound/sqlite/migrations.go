package sqlite

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order inside one transaction each. The schema
// version is tracked in schema_migrations so existing databases upgrade in
// place.
var migrations = []struct {
	version int
	stmts   []string
}{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				session_id  TEXT PRIMARY KEY,
				agent_goal  TEXT NOT NULL DEFAULT '',
				framework   TEXT NOT NULL DEFAULT '',
				event_count INTEGER NOT NULL DEFAULT 0,
				started_at  TEXT NOT NULL,
				last_seen   TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS events (
				event_id    TEXT PRIMARY KEY,
				session_id  TEXT NOT NULL,
				tool_name   TEXT NOT NULL DEFAULT '',
				action_type TEXT NOT NULL DEFAULT '',
				decision    TEXT NOT NULL,
				risk_score  REAL NOT NULL DEFAULT 0,
				created_at  TEXT NOT NULL,
				event_json  TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
			`CREATE INDEX IF NOT EXISTS idx_events_decision ON events(decision)`,
			`CREATE INDEX IF NOT EXISTS idx_events_risk ON events(risk_score)`,
			`CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_events_action_type ON events(action_type)`,
			`CREATE INDEX IF NOT EXISTS idx_events_session_decision ON events(session_id, decision)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON sessions(last_seen)`,
		},
	},
	{
		version: 2,
		stmts: []string{
			`ALTER TABLE events ADD COLUMN agent_id TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE sessions ADD COLUMN agent_id TEXT NOT NULL DEFAULT ''`,
			`CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id)`,
			`CREATE INDEX IF NOT EXISTS idx_events_agent_created ON events(agent_id, created_at)`,
		},
	},
}

// migrate brings the database schema up to the latest version.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if current.Valid && int64(m.version) <= current.Int64 {
			continue
		}
		if err := applyMigration(db, m.version, m.stmts); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, version int, stmts []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", version, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("record migration %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", version, err)
	}
	return nil
}
