// Package db provides the SQLite-backed persistence gateway for profiles,
// recordings, and chunks, with optional FTS5 full-text search over chunks.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/models"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS profiles (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	title       TEXT NOT NULL,
	recorded_at DATETIME NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS recordings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id INTEGER NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
	file_path  TEXT NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	duration   REAL NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chunks (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	recording_id INTEGER NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	title        TEXT NOT NULL,
	transcript   TEXT NOT NULL,
	start_time   REAL NOT NULL,
	end_time     REAL NOT NULL,
	audio_path   TEXT NOT NULL,
	user_note    TEXT NOT NULL DEFAULT '',
	bookmarked   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_recordings_profile ON recordings(profile_id);
CREATE INDEX IF NOT EXISTS idx_chunks_recording ON chunks(recording_id, position);
`

// DB wraps a sql.DB with gateway-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
// Legacy databases created before the status column existed are backfilled
// once at open time: recordings with chunks become completed, the rest failed.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: apply core schema: %w", err)
	}
	if err := backfillStatus(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: backfill status: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// backfillStatus is the one-time migration for databases written by the
// pre-status schema: it adds the column and derives a terminal status from
// the stored chunk set, so status becomes the single source of truth.
func backfillStatus(conn *sql.DB) error {
	rows, err := conn.Query(`PRAGMA table_info(recordings)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return err
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Legacy schema also predates the checksum and duration columns.
	if !cols["checksum"] {
		if _, err := conn.Exec(`ALTER TABLE recordings ADD COLUMN checksum TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}
	if !cols["duration"] {
		if _, err := conn.Exec(`ALTER TABLE recordings ADD COLUMN duration REAL NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	if cols["status"] {
		return nil
	}

	if _, err := conn.Exec(`ALTER TABLE recordings ADD COLUMN status TEXT NOT NULL DEFAULT 'pending'`); err != nil {
		return err
	}
	_, err = conn.Exec(`
		UPDATE recordings SET status = CASE
			WHEN EXISTS (SELECT 1 FROM chunks WHERE chunks.recording_id = recordings.id)
			THEN ? ELSE ?
		END
	`, models.StatusCompleted, models.StatusFailed)
	return err
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
