package study

import (
	"errors"
	"fmt"
)

var (
	// ErrNoContent is returned for blank input text and for a guide requested
	// from zero summaries.
	ErrNoContent = errors.New("no content to study")

	// ErrFieldOverwrite is returned when an update targets a state field that is
	// already populated, or skips ahead of an unpopulated one.
	ErrFieldOverwrite = errors.New("state field already populated")
)

// PipelineError reports the stage that aborted a run.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
