package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// ExternalError wraps a failure from one of the network AI services and
// classifies it as transient (retryable with backoff) or permanent.
type ExternalError struct {
	Service   string // "transcription" or "segmentation"
	Transient bool
	Err       error
}

func (e *ExternalError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s error: %v", e.Service, kind, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable external-service failure.
func IsTransient(err error) bool {
	var ee *ExternalError
	return errors.As(err, &ee) && ee.Transient
}
