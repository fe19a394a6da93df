package scheduler

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrSchedulerNotFound indicates the submission binary was not found
	ErrSchedulerNotFound = errors.New("scheduler binary not found in PATH")

	// ErrAlreadyInJob indicates we're already inside a scheduler job
	ErrAlreadyInJob = errors.New("already inside a scheduler job")

	// ErrJobIDParseFailed indicates the submission output lacked the
	// expected marker, so no job ID could be extracted
	ErrJobIDParseFailed = errors.New("failed to parse job ID from scheduler output")
)

// SubmissionError represents a non-zero exit from the submission binary.
// The scheduler's stdout/stderr is carried verbatim; no attempt is made to
// interpret scheduler-specific error codes.
type SubmissionError struct {
	Script string // Script file name
	Output string // Combined scheduler output
	Err    error  // Underlying process error
}

func (e *SubmissionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("submission failed for %s: %v\nOutput: %s",
			e.Script, e.Err, e.Output)
	}
	return fmt.Sprintf("submission failed for %s: %v", e.Script, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewSubmissionError creates a new SubmissionError
func NewSubmissionError(script string, output string, err error) *SubmissionError {
	return &SubmissionError{
		Script: script,
		Output: output,
		Err:    err,
	}
}

// IsSubmissionError checks if an error is a SubmissionError
func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}
