package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, dir
}

func TestStoreAndRead(t *testing.T) {
	fs, dir := newTestFS(t)

	path, err := fs.Store(".mp3", []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.HasSuffix(path, ".mp3") {
		t.Errorf("path = %q, want .mp3 suffix", path)
	}
	if strings.Contains(path, string(os.PathSeparator)) {
		t.Errorf("path = %q, want flat file name", path)
	}

	got, err := fs.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "audio-bytes" {
		t.Errorf("content = %q", got)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".ansuz-tmp-") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestStoreNormalizesExtension(t *testing.T) {
	fs, _ := newTestFS(t)

	path, err := fs.Store("WAV", []byte("x"))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !strings.HasSuffix(path, ".wav") {
		t.Errorf("path = %q, want .wav suffix", path)
	}
}

func TestStoreUniqueNames(t *testing.T) {
	fs, _ := newTestFS(t)

	a, err := fs.Store(".mp3", []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := fs.Store(".mp3", []byte("b"))
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("Store returned duplicate name %q", a)
	}
}

func TestReserve(t *testing.T) {
	fs, dir := newTestFS(t)

	rel, abs, err := fs.Reserve(".m4a")
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if filepath.Dir(abs) != dir {
		t.Errorf("abs = %q, want file under %q", abs, dir)
	}
	if filepath.Base(abs) != rel {
		t.Errorf("rel = %q does not match abs %q", rel, abs)
	}
	if _, statErr := os.Stat(abs); !os.IsNotExist(statErr) {
		t.Errorf("Reserve must not create the file")
	}
}

func TestDelete(t *testing.T) {
	fs, _ := newTestFS(t)

	path, err := fs.Store(".mp3", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.Delete(path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := fs.Read(path); err == nil {
		t.Error("Read after Delete should fail")
	}
	if err := fs.Delete(path); err == nil {
		t.Error("second Delete should fail")
	}
}

func TestPathTraversalRejected(t *testing.T) {
	fs, _ := newTestFS(t)

	for _, p := range []string{"../escape.mp3", "/etc/passwd", "a/../../b.mp3", ""} {
		if _, err := fs.Read(p); err == nil {
			t.Errorf("Read(%q) should be rejected", p)
		}
		if err := fs.Delete(p); err == nil {
			t.Errorf("Delete(%q) should be rejected", p)
		}
	}
}

func TestStoreRejectsBadExtension(t *testing.T) {
	fs, _ := newTestFS(t)

	if _, err := fs.Store("../x", []byte("x")); err == nil {
		t.Error("Store with traversal extension should fail")
	}
}

func TestNewFSMissingRoot(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("NewFS on missing dir should fail")
	}
}

func TestAbs(t *testing.T) {
	fs, dir := newTestFS(t)

	path, err := fs.Store(".ogg", []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	abs, err := fs.Abs(path)
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}
	if abs != filepath.Join(dir, path) {
		t.Errorf("abs = %q", abs)
	}
	if _, err := fs.Abs("../oops"); err == nil {
		t.Error("Abs with traversal should fail")
	}
}
