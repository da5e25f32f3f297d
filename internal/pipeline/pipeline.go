// Package pipeline orchestrates the recording processing run: transcription,
// semantic segmentation, chunk assembly, artifact materialization, and the
// status state machine with its retry guarantees.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/db"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/segment"
	"github.com/starford/ansuz/internal/slicer"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/transcribe"
)

// Notify is called after each persisted status transition, e.g. to feed the
// SSE broker. It must not block.
type Notify func(recordingID int64, status models.Status)

// Config carries the pipeline's collaborators and retry policy.
type Config struct {
	DB          *db.DB
	Files       storage.Provider
	Transcriber transcribe.Client
	Segmenter   segment.Client
	Slicer      slicer.Slicer
	Logger      *slog.Logger
	Notify      Notify
	MaxAttempts int           // external-call attempts per service
	Backoff     time.Duration // initial backoff, doubled per attempt
}

// Pipeline turns one uploaded audio file into a durable, ordered chunk set.
// At most one run (initial or retry) is in flight per recording id.
type Pipeline struct {
	db          *db.DB
	files       storage.Provider
	transcriber transcribe.Client
	segmenter   segment.Client
	slicer      slicer.Slicer
	logger      *slog.Logger
	notify      Notify
	maxAttempts int
	backoff     time.Duration

	mu       sync.Mutex
	inflight map[int64]struct{}
}

// New creates a pipeline from the given configuration.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2 * time.Second
	}
	return &Pipeline{
		db:          cfg.DB,
		files:       cfg.Files,
		transcriber: cfg.Transcriber,
		segmenter:   cfg.Segmenter,
		slicer:      cfg.Slicer,
		logger:      cfg.Logger,
		notify:      cfg.Notify,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
}

// Run executes the full pipeline for one recording and returns its final
// state. Internal processing errors are converted into a terminal failed
// status and logged, not returned; the error return covers guard rejections
// (apperr.ErrConflict, apperr.ErrNotFound) and persistence faults only.
//
// A run in flight for the same recording id, or a recording already in
// processing status, is rejected with apperr.ErrConflict.
func (p *Pipeline) Run(ctx context.Context, recordingID int64) (*models.Recording, error) {
	if err := p.acquire(recordingID); err != nil {
		return nil, err
	}
	defer p.release(recordingID)

	if err := p.db.ClaimProcessing(recordingID); err != nil {
		return nil, err
	}
	p.publish(recordingID, models.StatusProcessing)

	// The triggering request may be aborted mid-run; the recording must still
	// reach a terminal state, so the run body detaches from the caller's
	// cancellation.
	runCtx := context.WithoutCancel(ctx)

	rec, err := p.db.GetRecording(recordingID)
	if err != nil {
		p.fail(recordingID, err)
		return nil, err
	}

	if err := p.process(runCtx, rec); err != nil {
		p.fail(recordingID, err)
		return p.db.GetRecording(recordingID)
	}

	p.publish(recordingID, models.StatusCompleted)
	return p.db.GetRecording(recordingID)
}

// process runs transcription → segmentation → assembly → atomic persist.
func (p *Pipeline) process(ctx context.Context, rec *models.Recording) error {
	if err := p.verifySource(rec); err != nil {
		return err
	}

	srcAbs, err := p.files.Abs(rec.FilePath)
	if err != nil {
		return err
	}

	transcript, err := retryExternal(ctx, p.logger, p.maxAttempts, p.backoff, func() (*transcribe.Transcript, error) {
		return p.transcriber.Transcribe(ctx, srcAbs)
	})
	if err != nil {
		return err
	}

	if err := p.db.SetDuration(rec.ID, transcript.Duration); err != nil {
		return err
	}
	p.logger.Info("pipeline: transcribed",
		slog.Int64("recording_id", rec.ID),
		slog.Int("segments", len(transcript.Segments)),
		slog.Float64("duration", transcript.Duration))

	proposals, err := retryExternal(ctx, p.logger, p.maxAttempts, p.backoff, func() ([]segment.Proposal, error) {
		return p.segmenter.Segment(ctx, transcript)
	})
	if err != nil {
		return err
	}

	chunks, err := p.assemble(ctx, rec, proposals, transcript.Duration)
	if err != nil {
		return err
	}

	prior, err := p.db.ReplaceChunks(rec.ID, chunks)
	if err != nil {
		p.discard(chunkPaths(chunks))
		return err
	}

	// The new set is committed; artifacts of the replaced set are orphans now.
	p.discard(prior)

	p.logger.Info("pipeline: completed",
		slog.Int64("recording_id", rec.ID),
		slog.Int("chunks", len(chunks)))
	return nil
}

// verifySource checks the stored source artifact against the checksum taken
// at upload time, so a retry never feeds a corrupted file to transcription.
func (p *Pipeline) verifySource(rec *models.Recording) error {
	if rec.Checksum == "" {
		return nil
	}
	data, err := p.files.Read(rec.FilePath)
	if err != nil {
		return fmt.Errorf("pipeline: read source: %w", err)
	}
	if checksum.Sum(data) != rec.Checksum {
		return fmt.Errorf("pipeline: source artifact checksum mismatch for recording %d", rec.ID)
	}
	return nil
}

// fail converts any pipeline-internal error into the terminal failed status.
// The source audio stays untouched so a manual retry remains possible.
func (p *Pipeline) fail(recordingID int64, cause error) {
	p.logger.Error("pipeline: run failed",
		slog.Int64("recording_id", recordingID),
		slog.String("error", cause.Error()))
	if err := p.db.SetStatus(recordingID, models.StatusFailed); err != nil {
		p.logger.Error("pipeline: mark failed",
			slog.Int64("recording_id", recordingID),
			slog.String("error", err.Error()))
		return
	}
	p.publish(recordingID, models.StatusFailed)
}

// discard removes artifacts best-effort; a leftover file is logged, never fatal.
func (p *Pipeline) discard(paths []string) {
	for _, path := range paths {
		if err := p.files.Delete(path); err != nil {
			p.logger.Warn("pipeline: discard artifact", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
}

func (p *Pipeline) publish(recordingID int64, status models.Status) {
	if p.notify != nil {
		p.notify(recordingID, status)
	}
}

// acquire registers an in-flight run for the recording id.
func (p *Pipeline) acquire(recordingID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight == nil {
		p.inflight = make(map[int64]struct{})
	}
	if _, busy := p.inflight[recordingID]; busy {
		return apperr.ErrConflict
	}
	p.inflight[recordingID] = struct{}{}
	return nil
}

func (p *Pipeline) release(recordingID int64) {
	p.mu.Lock()
	delete(p.inflight, recordingID)
	p.mu.Unlock()
}

// retryExternal calls an external service with bounded attempts and
// exponential backoff on transient failures. Permanent failures and
// exhausted budgets return the last error unchanged.
func retryExternal[T any](ctx context.Context, logger *slog.Logger, attempts int, backoff time.Duration, call func() (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var v T
		v, err = call()
		if err == nil {
			return v, nil
		}
		if !apperr.IsTransient(err) || attempt == attempts {
			break
		}
		delay := backoff * time.Duration(1<<uint(attempt-1))
		logger.Warn("pipeline: transient external failure, backing off",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, err
}

func chunkPaths(chunks []models.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.AudioPath)
	}
	return out
}
