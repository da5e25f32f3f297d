package profileservice

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/db"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// Runner executes the processing pipeline for a recording.
type Runner interface {
	Run(ctx context.Context, recordingID int64) (*models.Recording, error)
}

// allowedExtensions are the audio container formats accepted for upload.
var allowedExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".wav":  true,
	".webm": true,
	".ogg":  true,
	".flac": true,
}

// AllowedExtension reports whether the file name carries a supported
// audio extension.
func AllowedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// UploadInput carries the metadata of a new profile upload.
type UploadInput struct {
	Title      string
	RecordedAt time.Time
	Summary    string
}

// Validate validates the upload metadata.
func (in *UploadInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.RecordedAt, validation.Required),
		validation.Field(&in.Summary, validation.Length(0, 4000)),
	)
}

// Service coordinates storage, persistence and the processing pipeline.
type Service struct {
	db     db.Gateway
	files  storage.Provider
	pipe   Runner
	logger *slog.Logger
}

// NewService creates a new profile service.
func NewService(gw db.Gateway, files storage.Provider, pipe Runner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: gw, files: files, pipe: pipe, logger: logger}
}

// Upload stores the audio, creates the profile with its recording and runs
// the processing pipeline. The profile is created even when processing
// fails; the recording is then left in failed status and can be retried.
func (s *Service) Upload(ctx context.Context, in UploadInput, filename string, data []byte) (*models.Profile, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedMedia, ext)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", apperr.ErrUnsupportedMedia)
	}

	path, err := s.files.Store(ext, data)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{
		Title:      in.Title,
		RecordedAt: in.RecordedAt,
		Summary:    in.Summary,
	}
	if err := s.db.CreateProfile(profile); err != nil {
		s.discard(path)
		return nil, err
	}
	rec := &models.Recording{
		ProfileID: profile.ID,
		FilePath:  path,
		Checksum:  checksum.Sum(data),
	}
	if err := s.db.CreateRecording(rec); err != nil {
		s.discard(path)
		return nil, err
	}

	if _, err := s.pipe.Run(ctx, rec.ID); err != nil {
		// The profile and its source survive; only the run is lost.
		s.logger.Error("processing run rejected", "recording_id", rec.ID, "error", err)
	}
	return s.db.GetProfile(profile.ID)
}

// IngestFile uploads a file dropped on the local filesystem, deriving the
// profile title from the file name and the recorded-at time from the file
// modification time. The source file is removed after a successful ingest.
func (s *Service) IngestFile(ctx context.Context, path string) (*models.Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	in := UploadInput{
		Title:      strings.TrimSuffix(name, filepath.Ext(name)),
		RecordedAt: info.ModTime().UTC(),
	}
	profile, err := s.Upload(ctx, in, name, data)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("could not remove ingested file", "path", path, "error", err)
	}
	return profile, nil
}

// Retry reruns the pipeline for a failed recording, or a completed recording
// that produced no chunks. Any other state yields apperr.ErrConflict.
func (s *Service) Retry(ctx context.Context, recordingID int64) (*models.Recording, error) {
	return s.pipe.Run(ctx, recordingID)
}

// GetProfile returns a profile with its recordings and chunks.
func (s *Service) GetProfile(_ context.Context, id int64) (*models.Profile, error) {
	return s.db.GetProfile(id)
}

// GetRecording returns a recording with its chunks.
func (s *Service) GetRecording(_ context.Context, id int64) (*models.Recording, error) {
	return s.db.GetRecording(id)
}

// ListProfiles returns paginated profiles, most recently recorded first.
func (s *Service) ListProfiles(_ context.Context, limit, offset int) ([]models.Profile, int, error) {
	return s.db.ListProfiles(limit, offset)
}

// DeleteProfile removes a profile with its recordings and chunks, then
// cleans up the orphaned media artifacts.
func (s *Service) DeleteProfile(_ context.Context, id int64) error {
	paths, err := s.db.DeleteProfile(id)
	if err != nil {
		return err
	}
	for _, p := range paths {
		s.discard(p)
	}
	return nil
}

// UpdateChunk patches the user-editable fields of a chunk. Nil fields are
// left unchanged.
func (s *Service) UpdateChunk(_ context.Context, id int64, note *string, bookmarked *bool) (*models.Chunk, error) {
	return s.db.UpdateChunk(id, note, bookmarked)
}

// Search runs full-text search over chunk titles and transcripts.
func (s *Service) Search(_ context.Context, query string, limit int) ([]db.SearchResult, error) {
	return s.db.Search(query, limit)
}

func (s *Service) discard(path string) {
	if err := s.files.Delete(path); err != nil {
		s.logger.Warn("could not delete artifact", "path", path, "error", err)
	}
}
