package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Init opens the application database and ensures all tables exist.
func Init(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	schemas := []string{
		`CREATE TABLE IF NOT EXISTS kids (
	          id INTEGER PRIMARY KEY AUTOINCREMENT,
	          name TEXT NOT NULL,
	          active INTEGER NOT NULL DEFAULT 1
	      );`,
		`CREATE TABLE IF NOT EXISTS privileges (
	          kid_id INTEGER PRIMARY KEY,
	          phone_locked INTEGER NOT NULL DEFAULT 0,
	          games_locked INTEGER NOT NULL DEFAULT 0,
	          other_locked INTEGER NOT NULL DEFAULT 0,
	          phone_locked_until TEXT,
	          games_locked_until TEXT,
	          other_locked_until TEXT,
	          bank_phone_min INTEGER NOT NULL DEFAULT 0,
	          bank_games_min INTEGER NOT NULL DEFAULT 0,
	          bank_other_min INTEGER NOT NULL DEFAULT 0
	      );`,
		`CREATE TABLE IF NOT EXISTS infraction_defs (
	          id INTEGER PRIMARY KEY AUTOINCREMENT,
	          code TEXT NOT NULL UNIQUE,
	          label TEXT NOT NULL,
	          active INTEGER NOT NULL DEFAULT 1,
	          mode TEXT NOT NULL DEFAULT 'set',
	          days INTEGER NOT NULL DEFAULT 0,
	          ladder_json TEXT NOT NULL DEFAULT '[]',
	          blocks_json TEXT NOT NULL DEFAULT '{}',
	          review_days INTEGER NOT NULL DEFAULT 0,
	          sort_order INTEGER NOT NULL DEFAULT 0
	      );`,
		`CREATE TABLE IF NOT EXISTS infraction_strikes (
	          kid_id INTEGER NOT NULL,
	          infraction_def_id INTEGER NOT NULL,
	          strike_count INTEGER NOT NULL DEFAULT 0,
	          updated_at TEXT NOT NULL DEFAULT '',
	          PRIMARY KEY (kid_id, infraction_def_id)
	      );`,
		`CREATE TABLE IF NOT EXISTS infraction_events (
	          id INTEGER PRIMARY KEY AUTOINCREMENT,
	          kid_id INTEGER NOT NULL,
	          infraction_def_id INTEGER NOT NULL,
	          ts TEXT NOT NULL,
	          actor TEXT NOT NULL DEFAULT 'admin',
	          strike_before INTEGER NOT NULL,
	          strike_after INTEGER NOT NULL,
	          days_applied INTEGER NOT NULL,
	          mode TEXT NOT NULL,
	          blocks_json TEXT NOT NULL DEFAULT '{}',
	          computed_until_json TEXT NOT NULL DEFAULT '{}',
	          review_on TEXT,
	          note TEXT NOT NULL DEFAULT '',
	          reviewed_at TEXT,
	          reviewed_by TEXT,
	          review_note TEXT,
	          review_action TEXT,
	          review_resolved_until_json TEXT
	      );`,
		`CREATE TABLE IF NOT EXISTS bonus_defs (
	          id INTEGER PRIMARY KEY AUTOINCREMENT,
	          label TEXT NOT NULL,
	          phone_min INTEGER NOT NULL DEFAULT 0,
	          games_min INTEGER NOT NULL DEFAULT 0,
	          active INTEGER NOT NULL DEFAULT 1
	      );`,
		`CREATE TABLE IF NOT EXISTS bonus_instances (
	          id INTEGER PRIMARY KEY AUTOINCREMENT,
	          bonus_def_id INTEGER NOT NULL,
	          week_start TEXT NOT NULL,
	          status TEXT NOT NULL DEFAULT 'available',
	          claimed_by_kid INTEGER,
	          claimed_at TEXT,
	          resolved_at TEXT
	      );`,
		`CREATE TABLE IF NOT EXISTS audit_log (
	          id INTEGER PRIMARY KEY AUTOINCREMENT,
	          ts TEXT NOT NULL,
	          actor TEXT NOT NULL,
	          action TEXT NOT NULL,
	          detail TEXT NOT NULL DEFAULT '{}'
	      );`,
		`CREATE TABLE IF NOT EXISTS app_state (
	          key TEXT PRIMARY KEY,
	          value TEXT NOT NULL
	      );`,
	}

	for _, schema := range schemas {
		if _, err := db.Exec(schema); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Add columns introduced after the first release (for migration from old schema)
	alterStatements := []string{
		`ALTER TABLE privileges ADD COLUMN phone_locked_until TEXT`,
		`ALTER TABLE privileges ADD COLUMN games_locked_until TEXT`,
		`ALTER TABLE privileges ADD COLUMN other_locked_until TEXT`,
		`ALTER TABLE infraction_events ADD COLUMN reviewed_at TEXT`,
		`ALTER TABLE infraction_events ADD COLUMN reviewed_by TEXT`,
		`ALTER TABLE infraction_events ADD COLUMN review_note TEXT`,
		`ALTER TABLE infraction_events ADD COLUMN review_action TEXT`,
		`ALTER TABLE infraction_events ADD COLUMN review_resolved_until_json TEXT`,
	}

	for _, stmt := range alterStatements {
		_, err = db.Exec(stmt)
		if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			return nil, fmt.Errorf("failed to execute ALTER statement %s: %w", stmt, err)
		}
	}

	return db, nil
}

// GetState reads a value from the app_state key/value table. Missing keys
// return an empty string.
func GetState(q sqlx.Ext, key string) (string, error) {
	var value string
	err := sqlx.Get(q, &value, "SELECT value FROM app_state WHERE key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read app state %s: %w", key, err)
	}
	return value, nil
}

// SetState writes a value into the app_state key/value table.
func SetState(q sqlx.Ext, key, value string) error {
	_, err := q.Exec(`INSERT INTO app_state(key, value) VALUES(?, ?)
	                  ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write app state %s: %w", key, err)
	}
	return nil
}
