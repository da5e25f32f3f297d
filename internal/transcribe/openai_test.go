package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
)

func testAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.mp3")
	if err := os.WriteFile(path, []byte("fake-audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribeDecodesVerboseJSON(t *testing.T) {
	var gotAuth, gotFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("multipart parse: %v", err)
		}
		gotFormat = r.FormValue("response_format")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"text": "hello world",
			"duration": 12.5,
			"segments": [
				{"text": "hello", "start": 0, "end": 5.5},
				{"text": "world", "start": 5.5, "end": 12.5}
			]
		}`))
	}))
	defer srv.Close()

	c := NewOpenAI("test-key", "whisper-1", srv.URL, 0)
	tr, err := c.Transcribe(context.Background(), testAudioFile(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotFormat != "verbose_json" {
		t.Errorf("response_format = %q", gotFormat)
	}
	if tr.Text != "hello world" || tr.Duration != 12.5 {
		t.Errorf("transcript = %+v", tr)
	}
	if len(tr.Segments) != 2 || tr.Segments[1].Start != 5.5 {
		t.Errorf("segments = %+v", tr.Segments)
	}
}

func TestTranscribeDurationFallsBackToLastSegment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"text": "x", "segments": [{"text": "x", "start": 0, "end": 42}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("k", "", srv.URL, 0)
	tr, err := c.Transcribe(context.Background(), testAudioFile(t))
	if err != nil {
		t.Fatal(err)
	}
	if tr.Duration != 42 {
		t.Errorf("duration = %v, want 42", tr.Duration)
	}
}

func TestTranscribeErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
		{"payload too large", http.StatusRequestEntityTooLarge, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := NewOpenAI("k", "", srv.URL, 0)
			_, err := c.Transcribe(context.Background(), testAudioFile(t))
			if err == nil {
				t.Fatal("want error")
			}
			if apperr.IsTransient(err) != tt.transient {
				t.Errorf("IsTransient = %v, want %v (err: %v)", apperr.IsTransient(err), tt.transient, err)
			}
		})
	}
}

func TestTranscribeMissingFileIsPermanent(t *testing.T) {
	c := NewOpenAI("k", "", "http://127.0.0.1:0", 0)
	_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	if err == nil {
		t.Fatal("want error")
	}
	if apperr.IsTransient(err) {
		t.Errorf("missing source file must be permanent: %v", err)
	}
}

func TestTranscribeEmptySegmentsIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"text": "x", "duration": 3, "segments": []}`))
	}))
	defer srv.Close()

	c := NewOpenAI("k", "", srv.URL, 0)
	_, err := c.Transcribe(context.Background(), testAudioFile(t))
	if err == nil {
		t.Fatal("want error")
	}
	if apperr.IsTransient(err) {
		t.Errorf("empty segment list must be permanent: %v", err)
	}
}
