package slicer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FFmpeg implements Slicer by shelling out to ffmpeg with stream copy, so
// the cut preserves the source encoding. Stream copy can fail on codecs
// that cannot be cut at arbitrary offsets; in that case the slice is
// retried with re-encoding.
type FFmpeg struct {
	bin      string
	probeBin string
}

// NewFFmpeg creates a slicer using the given ffmpeg binary ("ffmpeg" when
// empty). The ffprobe binary is taken from the same directory.
func NewFFmpeg(bin string) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	probe := "ffprobe"
	if dir := filepath.Dir(bin); dir != "." {
		probe = filepath.Join(dir, "ffprobe")
	}
	return &FFmpeg{bin: bin, probeBin: probe}
}

// Slice cuts [start, end) of src into a new artifact at dst.
func (f *FFmpeg) Slice(ctx context.Context, src, dst string, start, end float64) error {
	if start < 0 || end <= start {
		return &Error{Src: src, Start: start, End: end, Err: fmt.Errorf("invalid range")}
	}
	if _, err := os.Stat(src); err != nil {
		return &Error{Src: src, Start: start, End: end, Err: err}
	}

	if err := f.run(ctx, sliceArgs(src, dst, start, end, true)); err == nil {
		return nil
	}
	// Stream copy failed: remove the partial output and re-encode.
	_ = os.Remove(dst)
	if err := f.run(ctx, sliceArgs(src, dst, start, end, false)); err != nil {
		_ = os.Remove(dst)
		return &Error{Src: src, Start: start, End: end, Err: err}
	}
	return nil
}

// Probe returns the duration of the source in seconds, via ffprobe.
func (f *FFmpeg) Probe(ctx context.Context, src string) (float64, error) {
	if _, err := os.Stat(src); err != nil {
		return 0, &Error{Src: src, Err: err}
	}

	cmd := exec.CommandContext(ctx, f.probeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return 0, &Error{Src: src, Err: err}
	}

	d, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil || d <= 0 {
		return 0, &Error{Src: src, Err: fmt.Errorf("unparsable duration %q", strings.TrimSpace(stdout.String()))}
	}
	return d, nil
}

func sliceArgs(src, dst string, start, end float64, copyCodec bool) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", formatSeconds(start),
		"-to", formatSeconds(end),
		"-i", src,
	}
	if copyCodec {
		args = append(args, "-c", "copy")
	}
	return append(args, dst)
}

func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, f.bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
