package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// CreateRecording inserts a recording in pending status and fills in its ID.
func (db *DB) CreateRecording(r *models.Recording) error {
	now := time.Now().UTC()
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	res, err := db.conn.Exec(`
		INSERT INTO recordings (profile_id, file_path, checksum, duration, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ProfileID, r.FilePath, r.Checksum, r.Duration, r.Status, now)
	if err != nil {
		return fmt.Errorf("db: create recording: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("db: create recording id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	return nil
}

// GetRecording returns a recording with its ordered chunk set.
func (db *DB) GetRecording(id int64) (*models.Recording, error) {
	var r models.Recording
	err := db.conn.QueryRow(`
		SELECT id, profile_id, file_path, checksum, duration, status, created_at
		FROM recordings WHERE id = ?
	`, id).Scan(&r.ID, &r.ProfileID, &r.FilePath, &r.Checksum, &r.Duration, &r.Status, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: get recording: %w", err)
	}

	chunks, err := db.chunksForRecording(r.ID)
	if err != nil {
		return nil, err
	}
	r.Chunks = chunks
	return &r, nil
}

// ClaimProcessing atomically transitions a recording into processing.
// The compare-and-swap succeeds from pending, failed, or completed with an
// empty chunk set; any other state (a run already in flight, or completed
// with chunks) is a conflict. This is the per-recording retry guard.
func (db *DB) ClaimProcessing(id int64) error {
	res, err := db.conn.Exec(`
		UPDATE recordings SET status = ?
		WHERE id = ?
		  AND (status IN (?, ?)
		       OR (status = ? AND NOT EXISTS (SELECT 1 FROM chunks WHERE recording_id = recordings.id)))
	`, models.StatusProcessing, id,
		models.StatusPending, models.StatusFailed, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("db: claim processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db: claim processing: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM recordings WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("db: claim processing: %w", err)
	}
	if exists == 0 {
		return apperr.ErrNotFound
	}
	return apperr.ErrConflict
}

// SetStatus persists a status transition.
func (db *DB) SetStatus(id int64, status models.Status) error {
	res, err := db.conn.Exec(`UPDATE recordings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("db: set status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetDuration fills in the recording duration. A known duration never
// decreases, so smaller values are ignored.
func (db *DB) SetDuration(id int64, duration float64) error {
	_, err := db.conn.Exec(`
		UPDATE recordings SET duration = ? WHERE id = ? AND duration < ?
	`, duration, id, duration)
	if err != nil {
		return fmt.Errorf("db: set duration: %w", err)
	}
	return nil
}

// recordingsForProfile loads recordings with their chunk sets.
func (db *DB) recordingsForProfile(profileID int64) ([]models.Recording, error) {
	recs, err := db.recordingSummaries(profileID)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		chunks, err := db.chunksForRecording(recs[i].ID)
		if err != nil {
			return nil, err
		}
		recs[i].Chunks = chunks
	}
	return recs, nil
}

// recordingSummaries loads recordings without chunk bodies.
func (db *DB) recordingSummaries(profileID int64) ([]models.Recording, error) {
	rows, err := db.conn.Query(`
		SELECT id, profile_id, file_path, checksum, duration, status, created_at
		FROM recordings WHERE profile_id = ?
		ORDER BY created_at, id
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("db: recordings for profile: %w", err)
	}
	defer rows.Close()

	out := []models.Recording{}
	for rows.Next() {
		var r models.Recording
		if err := rows.Scan(&r.ID, &r.ProfileID, &r.FilePath, &r.Checksum, &r.Duration, &r.Status, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Chunks = []models.Chunk{}
		out = append(out, r)
	}
	return out, rows.Err()
}
