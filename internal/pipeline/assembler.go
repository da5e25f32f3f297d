package pipeline

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/segment"
)

// alignProposals reconciles raw segmentation proposals against the
// authoritative recording duration:
//
//   - degenerate proposals (end ≤ start) are dropped up front, so a clamp
//     never widens a zero-length proposal into a real chunk,
//   - the survivors are ordered by start time,
//   - the first start is clamped to 0 and the last end to the duration,
//   - overlaps are resolved by shrinking the earlier proposal's end to the
//     later one's start (the model's sense of "where the next topic begins"
//     wins),
//   - proposals made degenerate by the clamps are dropped as well.
//
// Zero survivors is a segmentation failure.
func alignProposals(proposals []segment.Proposal, duration float64) ([]segment.Proposal, error) {
	out := make([]segment.Proposal, 0, len(proposals))
	for _, pr := range proposals {
		if pr.End > pr.Start {
			out = append(out, pr)
		}
	}
	if len(out) == 0 {
		return nil, segment.ErrEmpty
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	for i := range out {
		if out[i].Start < 0 {
			out[i].Start = 0
		}
		if duration > 0 && out[i].End > duration {
			out[i].End = duration
		}
	}
	out[0].Start = 0
	if duration > 0 {
		out[len(out)-1].End = duration
	}

	for i := 0; i+1 < len(out); i++ {
		if out[i].End > out[i+1].Start {
			out[i].End = out[i+1].Start
		}
	}

	kept := make([]segment.Proposal, 0, len(out))
	for _, pr := range out {
		if pr.End > pr.Start {
			kept = append(kept, pr)
		}
	}
	if len(kept) == 0 {
		return nil, segment.ErrEmpty
	}
	return kept, nil
}

// assemble turns proposals into validated chunk records, each with its own
// materialized audio artifact. A slicing failure on any chunk discards every
// artifact produced in this attempt and aborts the whole assembly, so a
// partial chunk set is never handed to persistence.
func (p *Pipeline) assemble(ctx context.Context, rec *models.Recording, proposals []segment.Proposal, duration float64) ([]models.Chunk, error) {
	aligned, err := alignProposals(proposals, duration)
	if err != nil {
		return nil, err
	}

	srcAbs, err := p.files.Abs(rec.FilePath)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(rec.FilePath)

	chunks := make([]models.Chunk, 0, len(aligned))
	var created []string
	for _, pr := range aligned {
		rel, abs, err := p.files.Reserve(ext)
		if err != nil {
			p.discard(created)
			return nil, err
		}
		if err := p.slicer.Slice(ctx, srcAbs, abs, pr.Start, pr.End); err != nil {
			p.discard(created)
			return nil, err
		}
		created = append(created, rel)

		title := pr.Title
		if title == "" {
			title = "Untitled"
		}
		chunks = append(chunks, models.Chunk{
			RecordingID: rec.ID,
			Title:       title,
			Transcript:  pr.Transcript,
			StartTime:   pr.Start,
			EndTime:     pr.End,
			AudioPath:   rel,
		})
	}
	return chunks, nil
}
