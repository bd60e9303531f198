package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a request rejected before any work starts.
	ErrValidation = errors.New("invalid batch")
	// ErrSource marks a single clip that failed download or normalization.
	ErrSource = errors.New("source failed")
	// ErrEmptyBatch means no clip survived download and normalization.
	ErrEmptyBatch = errors.New("no videos were processed successfully")
	// ErrMerge means every merge path available for the mode failed.
	ErrMerge = errors.New("failed to merge videos")
)

// SourceError is a per-clip failure. It is recorded as an Exclusion and never
// aborts the job on its own.
type SourceError struct {
	Source VideoSource
	Stage  Stage
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s clip %d (%q): %v", e.Stage, e.Source.Index, e.Source.Title, e.Err)
}

func (e *SourceError) Unwrap() []error {
	return []error{ErrSource, e.Err}
}
