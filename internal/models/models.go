// Package models defines the domain types for Ansuz.
package models

import "time"

// Status tracks a recording through its processing state machine.
type Status string

// Recording statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further automatic transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Profile is the user-facing container for one captured session.
type Profile struct {
	ID         int64       `json:"id"`
	Title      string      `json:"title"`
	RecordedAt time.Time   `json:"recorded_at"`
	Summary    string      `json:"summary,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	Recordings []Recording `json:"recordings"`
}

// Recording is one processing run over one uploaded audio file.
type Recording struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profile_id"`
	FilePath  string    `json:"file_path"`
	Checksum  string    `json:"checksum"`
	Duration  float64   `json:"duration"` // seconds; 0 until transcription fills it in
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Chunks    []Chunk   `json:"chunks"`
}

// Chunk is one titled, time-bounded semantic segment of a recording.
// Within a recording, chunks are strictly ordered and non-overlapping.
type Chunk struct {
	ID          int64   `json:"id"`
	RecordingID int64   `json:"recording_id"`
	Title       string  `json:"title"`
	Transcript  string  `json:"transcript"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	AudioPath   string  `json:"audio_path"`
	UserNote    string  `json:"user_note,omitempty"`
	Bookmarked  bool    `json:"bookmarked"`
}
