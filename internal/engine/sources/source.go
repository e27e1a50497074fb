// Package sources turns a content handle (YouTube URL, PDF upload or path)
// into plain text for the study pipeline.
package sources

import (
	"errors"
	"fmt"
)

// Reasons reported by SourceUnavailableError.
const (
	ReasonInvalid     = "invalid input"
	ReasonTooLarge    = "too large"
	ReasonUnreachable = "unreachable"
	ReasonNoText      = "no extractable text"
)

// SourceUnavailableError is returned when a source cannot produce text.
// Source is "youtube" or "pdf".
type SourceUnavailableError struct {
	Source string
	Reason string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Reason, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

func unavailable(source, reason string, err error) error {
	return &SourceUnavailableError{Source: source, Reason: reason, Err: err}
}

// IsUnavailable reports whether err carries a SourceUnavailableError.
func IsUnavailable(err error) bool {
	var se *SourceUnavailableError
	return errors.As(err, &se)
}
