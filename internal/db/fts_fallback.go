//go:build !sqlite_fts5

package db

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on the chunks table.
	return nil
}

func ftsUpsertChunk(_ *sql.Tx, _, _ int64, _, _ string) error {
	// Chunks are already stored in the chunks table; nothing extra to do.
	return nil
}

func ftsDeleteRecording(_ *sql.Tx, _ int64) error { return nil }

func ftsDeleteProfile(_ *sql.Tx, _ int64) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id, recording_id, title, substr(transcript, 1, 200)
		FROM chunks
		WHERE title LIKE ? OR transcript LIKE ?
		ORDER BY recording_id, position
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("db: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.RecordingID, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
