// Package slicer cuts chunk-aligned segments out of a source audio artifact.
package slicer

import (
	"context"
	"fmt"
)

// Slicer produces a standalone, independently playable artifact covering
// exactly [start, end) of the source. The source is never mutated; each call
// writes a new file at dst.
type Slicer interface {
	Slice(ctx context.Context, src, dst string, start, end float64) error
}

// Error reports a failed slice operation.
type Error struct {
	Src        string
	Start, End float64
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("slicer: %s [%g, %g): %v", e.Src, e.Start, e.End, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
