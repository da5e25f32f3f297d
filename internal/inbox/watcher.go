// Package inbox ingests audio files dropped into a local directory.
package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/profileservice"
)

// Ingestor turns a dropped file into a profile with a processed recording.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (*models.Profile, error)
}

// Watch starts an fsnotify watcher on the inbox directory and ingests audio
// files dropped into it until ctx is cancelled. Files already present at
// startup are picked up as well.
//
// A file is ingested only after it has been quiet for the settle interval,
// so partially copied files are not picked up mid-transfer. Files with an
// unsupported extension are ignored.
func Watch(ctx context.Context, ing Ingestor, dir string, settle time.Duration, logger *slog.Logger) error {
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("inbox: started", slog.String("dir", dir))

	// Pending files wait out their settle timer, then arrive on settledCh.
	timers := make(map[string]*time.Timer)
	settledCh := make(chan string, 16)

	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Reset(settle)
			return
		}
		timers[path] = time.AfterFunc(settle, func() {
			select {
			case settledCh <- path:
			case <-ctx.Done():
			}
		})
	}

	// Sweep files that were dropped while the watcher was down.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() && profileservice.AllowedExtension(entry.Name()) {
			schedule(filepath.Join(dir, entry.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			for _, t := range timers {
				t.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case path := <-settledCh:
			delete(timers, path)
			if info, statErr := os.Stat(path); statErr != nil || info.IsDir() {
				continue
			}
			profile, ingErr := ing.IngestFile(ctx, path)
			if ingErr != nil {
				logger.Warn("inbox: ingest failed",
					slog.String("path", path),
					slog.String("error", ingErr.Error()))
				continue
			}
			logger.Info("inbox: ingested",
				slog.String("path", path),
				slog.Int64("profile_id", profile.ID))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !profileservice.AllowedExtension(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if t, okT := timers[ev.Name]; okT {
					t.Stop()
					delete(timers, ev.Name)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}
