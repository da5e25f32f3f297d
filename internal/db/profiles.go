package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// CreateProfile inserts a profile and fills in its ID and CreatedAt.
func (db *DB) CreateProfile(p *models.Profile) error {
	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		INSERT INTO profiles (title, recorded_at, summary, created_at)
		VALUES (?, ?, ?, ?)
	`, p.Title, p.RecordedAt.UTC(), p.Summary, now)
	if err != nil {
		return fmt.Errorf("db: create profile: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("db: create profile id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	return nil
}

// GetProfile returns a profile with its recordings and their chunks.
func (db *DB) GetProfile(id int64) (*models.Profile, error) {
	var p models.Profile
	err := db.conn.QueryRow(`
		SELECT id, title, recorded_at, summary, created_at
		FROM profiles WHERE id = ?
	`, id).Scan(&p.ID, &p.Title, &p.RecordedAt, &p.Summary, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db: get profile: %w", err)
	}

	recs, err := db.recordingsForProfile(p.ID)
	if err != nil {
		return nil, err
	}
	p.Recordings = recs
	return &p, nil
}

// ListProfiles returns paginated profiles (recordings without chunk bodies)
// ordered by recorded_at descending, plus the total profile count.
func (db *DB) ListProfiles(limit, offset int) ([]models.Profile, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("db: count profiles: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, title, recorded_at, summary, created_at
		FROM profiles
		ORDER BY recorded_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("db: list profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.ID, &p.Title, &p.RecordedAt, &p.Summary, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		recs, err := db.recordingSummaries(out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Recordings = recs
	}
	return out, total, nil
}

// DeleteProfile removes a profile with all its recordings and chunks, and
// returns every artifact path that is now orphaned so the caller can remove
// the files (no orphaned artifacts on cascade delete).
func (db *DB) DeleteProfile(id int64) ([]string, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM profiles WHERE id = ?`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("db: delete profile: %w", err)
	}
	if exists == 0 {
		return nil, apperr.ErrNotFound
	}

	paths, err := collectArtifacts(tx, `
		SELECT file_path FROM recordings WHERE profile_id = ?
	`, `
		SELECT audio_path FROM chunks
		WHERE recording_id IN (SELECT id FROM recordings WHERE profile_id = ?)
	`, id)
	if err != nil {
		return nil, err
	}

	if err := ftsDeleteProfile(tx, id); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`DELETE FROM profiles WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("db: delete profile: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("db: commit: %w", err)
	}
	return paths, nil
}

// collectArtifacts gathers artifact paths from the given queries, skipping blanks.
func collectArtifacts(tx *sql.Tx, recQuery, chunkQuery string, id int64) ([]string, error) {
	var paths []string
	for _, q := range []string{recQuery, chunkQuery} {
		rows, err := tx.Query(q, id)
		if err != nil {
			return nil, fmt.Errorf("db: collect artifacts: %w", err)
		}
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return nil, err
			}
			if p != "" {
				paths = append(paths, p)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return paths, nil
}
