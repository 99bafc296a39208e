package domain

import (
	"errors"
)

// ExitCoder defines errors that can be mapped to process exit codes.
// The CLI uses it to pick a status without inspecting error strings.
type ExitCoder interface {
	error
	ExitCode() int
}

// Exit codes used by the CLI
const (
	ExitFailure    = 1
	ExitValidation = 2
	ExitNotFound   = 3
)

// Domain error types implementing ExitCoder interface
type (
	// NotFoundError indicates a resource (preset, stream) was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}
)

// Error implementations
func (e *NotFoundError) Error() string   { return e.Message }
func (e *ValidationError) Error() string { return e.Message }

// ExitCode implementations (ExitCoder interface)
func (e *NotFoundError) ExitCode() int   { return ExitNotFound }
func (e *ValidationError) ExitCode() int { return ExitValidation }

// Is allows errors.Is() to match typed errors against their sentinels
func (e *NotFoundError) Is(target error) bool   { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrStreamActive = errors.New("stream already active")
	ErrStreamFailed = errors.New("streaming failed")
)

// ExitCodeFor returns the exit code for err, ExitFailure when err carries none.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrStreamActive) {
		return ExitValidation
	}
	return ExitFailure
}
