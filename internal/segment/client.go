// Package segment wraps the semantic-segmentation and title-generation
// service that turns a timestamped transcript into chunk proposals.
package segment

import (
	"context"
	"errors"

	"github.com/starford/ansuz/internal/transcribe"
)

// ErrEmpty is returned when segmentation yields no usable proposals.
var ErrEmpty = errors.New("segment: empty proposal set")

// Proposal is a candidate chunk boundary and title, unvalidated: start/end
// may overlap neighbours or exceed the recording duration until the
// assembler reconciles them.
type Proposal struct {
	Title      string  `json:"title"`
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Transcript string  `json:"transcript"`
}

// Client converts a timestamped transcript into ordered chunk proposals.
// Failures are reported as *apperr.ExternalError with the same
// transient/permanent taxonomy as transcription.
type Client interface {
	Segment(ctx context.Context, t *transcribe.Transcript) ([]Proposal, error)
}
