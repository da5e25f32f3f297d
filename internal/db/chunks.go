package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// ReplaceChunks atomically swaps the recording's entire chunk set for the
// given one and marks the recording completed, all in one transaction, so a
// reader never observes a mixed old/new set or completed-with-empty-chunks.
// It returns the audio artifact paths of the replaced chunks so the caller
// can remove the now-orphaned files after commit.
func (db *DB) ReplaceChunks(recordingID int64, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("db: replace chunks: empty chunk set")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM recordings WHERE id = ?`, recordingID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("db: replace chunks: %w", err)
	}
	if exists == 0 {
		return nil, apperr.ErrNotFound
	}

	var prior []string
	rows, err := tx.Query(`SELECT audio_path FROM chunks WHERE recording_id = ?`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("db: replace chunks: %w", err)
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		if p != "" {
			prior = append(prior, p)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := ftsDeleteRecording(tx, recordingID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`DELETE FROM chunks WHERE recording_id = ?`, recordingID); err != nil {
		return nil, fmt.Errorf("db: delete old chunks: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (recording_id, position, title, transcript, start_time, end_time, audio_path, user_note, bookmarked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("db: prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i := range chunks {
		c := &chunks[i]
		res, err := stmt.Exec(recordingID, i, c.Title, c.Transcript, c.StartTime, c.EndTime, c.AudioPath, c.UserNote, c.Bookmarked)
		if err != nil {
			return nil, fmt.Errorf("db: insert chunk: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("db: insert chunk id: %w", err)
		}
		c.ID = id
		c.RecordingID = recordingID
		if err := ftsUpsertChunk(tx, id, recordingID, c.Title, c.Transcript); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(`UPDATE recordings SET status = ? WHERE id = ?`, models.StatusCompleted, recordingID); err != nil {
		return nil, fmt.Errorf("db: mark completed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("db: commit: %w", err)
	}
	return prior, nil
}

// GetChunk returns a single chunk by id.
func (db *DB) GetChunk(id int64) (*models.Chunk, error) {
	var c models.Chunk
	err := db.conn.QueryRow(`
		SELECT id, recording_id, title, transcript, start_time, end_time, audio_path, user_note, bookmarked
		FROM chunks WHERE id = ?
	`, id).Scan(&c.ID, &c.RecordingID, &c.Title, &c.Transcript, &c.StartTime, &c.EndTime, &c.AudioPath, &c.UserNote, &c.Bookmarked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: get chunk: %w", err)
	}
	return &c, nil
}

// UpdateChunk applies field-level updates to the only user-mutable chunk
// fields. Nil parameters leave the field untouched.
func (db *DB) UpdateChunk(id int64, note *string, bookmarked *bool) (*models.Chunk, error) {
	if note == nil && bookmarked == nil {
		return db.GetChunk(id)
	}

	query := `UPDATE chunks SET `
	args := []any{}
	if note != nil {
		query += `user_note = ?`
		args = append(args, *note)
	}
	if bookmarked != nil {
		if note != nil {
			query += `, `
		}
		query += `bookmarked = ?`
		args = append(args, *bookmarked)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := db.conn.Exec(query, args...)
	if err != nil {
		return nil, fmt.Errorf("db: update chunk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.ErrNotFound
	}
	return db.GetChunk(id)
}

// chunksForRecording loads the ordered chunk set of a recording.
func (db *DB) chunksForRecording(recordingID int64) ([]models.Chunk, error) {
	rows, err := db.conn.Query(`
		SELECT id, recording_id, title, transcript, start_time, end_time, audio_path, user_note, bookmarked
		FROM chunks WHERE recording_id = ?
		ORDER BY position
	`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("db: chunks for recording: %w", err)
	}
	defer rows.Close()

	out := []models.Chunk{}
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.RecordingID, &c.Title, &c.Transcript, &c.StartTime, &c.EndTime, &c.AudioPath, &c.UserNote, &c.Bookmarked); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
