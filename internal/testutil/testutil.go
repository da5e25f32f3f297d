// Package testutil provides shared test helpers for setting up databases,
// media directories, and fake pipeline collaborators.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/db"
	"github.com/starford/ansuz/internal/segment"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/transcribe"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ansuz-test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// TestMedia creates a temporary media directory with a storage.Provider.
func TestMedia(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// FakeTranscriber implements transcribe.Client with a test-supplied function.
type FakeTranscriber struct {
	Fn    func(ctx context.Context, audioPath string) (*transcribe.Transcript, error)
	Calls int
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, audioPath string) (*transcribe.Transcript, error) {
	f.Calls++
	return f.Fn(ctx, audioPath)
}

// FakeSegmenter implements segment.Client with a test-supplied function.
type FakeSegmenter struct {
	Fn    func(ctx context.Context, tr *transcribe.Transcript) ([]segment.Proposal, error)
	Calls int
}

func (f *FakeSegmenter) Segment(ctx context.Context, tr *transcribe.Transcript) ([]segment.Proposal, error) {
	f.Calls++
	return f.Fn(ctx, tr)
}

// FakeSlicer implements slicer.Slicer. When Fn is nil it writes a small
// placeholder artifact at dst, mimicking a successful ffmpeg cut.
type FakeSlicer struct {
	Fn    func(ctx context.Context, src, dst string, start, end float64) error
	Calls int
}

func (f *FakeSlicer) Slice(ctx context.Context, src, dst string, start, end float64) error {
	f.Calls++
	if f.Fn != nil {
		return f.Fn(ctx, src, dst, start, end)
	}
	return os.WriteFile(dst, []byte("sliced"), 0o644)
}
