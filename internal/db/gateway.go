package db

import "github.com/starford/ansuz/internal/models"

// Gateway defines the persistence operations consumed by the pipeline and
// the profile service.
type Gateway interface {
	CreateProfile(p *models.Profile) error
	GetProfile(id int64) (*models.Profile, error)
	ListProfiles(limit, offset int) ([]models.Profile, int, error)
	DeleteProfile(id int64) ([]string, error)

	CreateRecording(r *models.Recording) error
	GetRecording(id int64) (*models.Recording, error)
	ClaimProcessing(id int64) error
	SetStatus(id int64, status models.Status) error
	SetDuration(id int64, duration float64) error
	ReplaceChunks(recordingID int64, chunks []models.Chunk) ([]string, error)

	GetChunk(id int64) (*models.Chunk, error)
	UpdateChunk(id int64, note *string, bookmarked *bool) (*models.Chunk, error)
	Search(query string, limit int) ([]SearchResult, error)

	Close() error
}

// Verify *DB satisfies Gateway at compile time.
var _ Gateway = (*DB)(nil)
