package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// defaultSplitThreshold is the source size above which a recording no
// longer fits in one transcription request.
const defaultSplitThreshold = 20 << 20

// Cutter is the audio tooling the splitter needs: probing a source's
// duration and cutting a time window into a standalone file.
type Cutter interface {
	Probe(ctx context.Context, src string) (float64, error)
	Slice(ctx context.Context, src, dst string, start, end float64) error
}

// Splitting wraps a transcription client with a size threshold. Sources at
// or below the threshold pass through untouched; larger ones are cut into
// equal time windows, transcribed window by window, and merged back into a
// single transcript with each window's segments offset by its start time.
type Splitting struct {
	inner     Client
	cutter    Cutter
	threshold int64
}

// NewSplitting wraps inner with size-based splitting. A threshold of 0
// selects the default.
func NewSplitting(inner Client, cutter Cutter, threshold int64) *Splitting {
	if threshold <= 0 {
		threshold = defaultSplitThreshold
	}
	return &Splitting{inner: inner, cutter: cutter, threshold: threshold}
}

var _ Client = (*Splitting)(nil)

// Transcribe implements Client. Window cutting failures are permanent; a
// failed window transcription keeps the inner client's classification.
func (s *Splitting) Transcribe(ctx context.Context, audioPath string) (*Transcript, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, permanent(fmt.Errorf("stat audio: %w", err))
	}
	if info.Size() <= s.threshold {
		return s.inner.Transcribe(ctx, audioPath)
	}

	duration, err := s.cutter.Probe(ctx, audioPath)
	if err != nil {
		return nil, permanent(fmt.Errorf("probe duration: %w", err))
	}

	pieces := int(info.Size()/s.threshold) + 1
	pieceDur := duration / float64(pieces)

	dir, err := os.MkdirTemp("", "transcribe-split-")
	if err != nil {
		return nil, permanent(err)
	}
	defer os.RemoveAll(dir)

	merged := &Transcript{Duration: duration}
	ext := filepath.Ext(audioPath)
	for i := 0; i < pieces; i++ {
		start := float64(i) * pieceDur
		end := start + pieceDur
		if i == pieces-1 {
			end = duration
		}

		dst := filepath.Join(dir, fmt.Sprintf("piece-%03d%s", i, ext))
		if err := s.cutter.Slice(ctx, audioPath, dst, start, end); err != nil {
			return nil, permanent(fmt.Errorf("cut piece %d: %w", i, err))
		}

		part, err := s.inner.Transcribe(ctx, dst)
		if err != nil {
			return nil, fmt.Errorf("piece %d of %d: %w", i+1, pieces, err)
		}
		if merged.Text != "" && part.Text != "" {
			merged.Text += " "
		}
		merged.Text += part.Text
		for _, seg := range part.Segments {
			merged.Segments = append(merged.Segments, Segment{
				Text:  seg.Text,
				Start: seg.Start + start,
				End:   seg.End + start,
			})
		}
	}
	return merged, nil
}
