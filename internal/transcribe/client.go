// Package transcribe wraps the external speech-to-text service behind a
// narrow client interface with a transient/permanent failure taxonomy.
package transcribe

import "context"

// Segment is one timestamped slice of the transcript, in seconds relative
// to the source artifact.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcript is the full result of one transcription call.
type Transcript struct {
	Text     string
	Segments []Segment
	Duration float64 // seconds
}

// Client converts an audio artifact into a timestamped transcript.
// Failures are reported as *apperr.ExternalError: transient errors
// (rate limits, network) may be retried with backoff, permanent ones
// (unsupported format, corrupt audio) must not be retried automatically.
type Client interface {
	Transcribe(ctx context.Context, audioPath string) (*Transcript, error)
}
