package pipeline

import (
	"errors"
	"testing"

	"github.com/starford/ansuz/internal/segment"
)

func TestAlignProposals(t *testing.T) {
	tests := []struct {
		name     string
		in       []segment.Proposal
		duration float64
		want     [][2]float64
		wantErr  bool
	}{
		{
			name: "overlap resolved by shrinking the earlier chunk",
			in: []segment.Proposal{
				{Title: "Intro", Start: 0, End: 120},
				{Title: "Body", Start: 115, End: 400},
				{Title: "Outro", Start: 400, End: 600},
			},
			duration: 600,
			want:     [][2]float64{{0, 115}, {115, 400}, {400, 600}},
		},
		{
			name: "first start clamped to zero, last end to duration",
			in: []segment.Proposal{
				{Start: 3.5, End: 100},
				{Start: 100, End: 550},
			},
			duration: 600,
			want:     [][2]float64{{0, 100}, {100, 600}},
		},
		{
			name: "end beyond duration clamped",
			in: []segment.Proposal{
				{Start: 0, End: 700},
			},
			duration: 600,
			want:     [][2]float64{{0, 600}},
		},
		{
			name: "degenerate proposal dropped",
			in: []segment.Proposal{
				{Start: 0, End: 100},
				{Start: 100, End: 100},
				{Start: 100, End: 200},
			},
			duration: 200,
			want:     [][2]float64{{0, 100}, {100, 200}},
		},
		{
			name: "proposal swallowed by overlap is dropped",
			in: []segment.Proposal{
				{Start: 0, End: 300},
				{Start: 200, End: 210},
				{Start: 200, End: 600},
			},
			duration: 600,
			want:     [][2]float64{{0, 200}, {200, 600}},
		},
		{
			name: "unordered proposals are sorted first",
			in: []segment.Proposal{
				{Start: 300, End: 600},
				{Start: 0, End: 300},
			},
			duration: 600,
			want:     [][2]float64{{0, 300}, {300, 600}},
		},
		{
			name: "negative start clamped",
			in: []segment.Proposal{
				{Start: -5, End: 60},
				{Start: 60, End: 120},
			},
			duration: 120,
			want:     [][2]float64{{0, 60}, {60, 120}},
		},
		{
			name: "degenerate proposal not widened by the first-start clamp",
			in: []segment.Proposal{
				{Start: 50, End: 50},
				{Start: 60, End: 90},
			},
			duration: 0,
			want:     [][2]float64{{0, 90}},
		},
		{
			name:     "no proposals",
			in:       nil,
			duration: 600,
			wantErr:  true,
		},
		{
			name: "all proposals degenerate",
			in: []segment.Proposal{
				{Start: 50, End: 50},
			},
			duration: 0,
			wantErr:  true,
		},
		{
			name: "all proposals degenerate with known duration",
			in: []segment.Proposal{
				{Start: 50, End: 50},
				{Start: 80, End: 70},
			},
			duration: 600,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := alignProposals(tt.in, tt.duration)
			if tt.wantErr {
				if !errors.Is(err, segment.ErrEmpty) {
					t.Fatalf("err = %v, want ErrEmpty", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("alignProposals: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d proposals, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, w := range tt.want {
				if got[i].Start != w[0] || got[i].End != w[1] {
					t.Errorf("proposal %d = [%g, %g), want [%g, %g)", i, got[i].Start, got[i].End, w[0], w[1])
				}
			}
			// Non-overlap invariant holds for every output.
			for i := 0; i+1 < len(got); i++ {
				if got[i].End > got[i+1].Start {
					t.Errorf("overlap between %d and %d", i, i+1)
				}
			}
		})
	}
}
