package downloader

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every *TaskError matches exactly one of these with errors.Is.
var (
	// ErrNetwork covers connection failures, timeouts and non-success statuses.
	ErrNetwork = errors.New("network error")

	// ErrIntegrity means the transferred content did not match its digest.
	ErrIntegrity = errors.New("integrity error")

	// ErrFilesystem means local storage could not be read or written.
	// Filesystem errors are never retried.
	ErrFilesystem = errors.New("filesystem error")
)

// TaskError records a task that failed permanently.
type TaskError struct {
	Task     Task
	Kind     error   // ErrNetwork, ErrIntegrity or ErrFilesystem
	Attempts []error // one entry per failed attempt
}

func (e *TaskError) Error() string {
	var last error
	if len(e.Attempts) > 0 {
		last = e.Attempts[len(e.Attempts)-1]
	}
	return fmt.Sprintf("%s: %v after %d attempt(s): %v", e.Task.Key(), e.Kind, len(e.Attempts), last)
}

// Unwrap exposes the kind and every attempt error to errors.Is and errors.As.
func (e *TaskError) Unwrap() []error {
	return append([]error{e.Kind}, e.Attempts...)
}

// RunError is returned by Engine.Run when one or more tasks failed.
//
// Use errors.As to extract this error and inspect Failed for details.
type RunError struct {
	Total  int          // number of tasks in the run
	Failed []*TaskError // sorted by key
}

func (e *RunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d file(s) failed", len(e.Failed), e.Total)
	for _, f := range e.Failed {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes every task error.
func (e *RunError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errs
}

// kindOf returns the kind an attempt error was tagged with.
func kindOf(err error) error {
	switch {
	case errors.Is(err, ErrFilesystem):
		return ErrFilesystem
	case errors.Is(err, ErrIntegrity):
		return ErrIntegrity
	default:
		return ErrNetwork
	}
}
