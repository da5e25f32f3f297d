//go:build sqlite_fts5

package db

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			chunk_id UNINDEXED,
			recording_id UNINDEXED,
			title,
			transcript,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsertChunk(tx *sql.Tx, chunkID, recordingID int64, title, transcript string) error {
	_, _ = tx.Exec(`DELETE FROM chunks_fts WHERE chunk_id = ?`, chunkID)
	_, err := tx.Exec(`INSERT INTO chunks_fts (chunk_id, recording_id, title, transcript) VALUES (?, ?, ?, ?)`,
		chunkID, recordingID, title, transcript)
	if err != nil {
		return fmt.Errorf("db: upsert fts: %w", err)
	}
	return nil
}

func ftsDeleteRecording(tx *sql.Tx, recordingID int64) error {
	_, _ = tx.Exec(`DELETE FROM chunks_fts WHERE recording_id = ?`, recordingID)
	return nil
}

func ftsDeleteProfile(tx *sql.Tx, profileID int64) error {
	_, _ = tx.Exec(`
		DELETE FROM chunks_fts WHERE recording_id IN
			(SELECT id FROM recordings WHERE profile_id = ?)
	`, profileID)
	return nil
}

// Search performs an FTS5 full-text search over chunk titles and transcripts.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT chunk_id,
		       recording_id,
		       title,
		       snippet(chunks_fts, 3, '<b>', '</b>', '...', 64)
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
