package cli

import (
	"errors"
	"fmt"

	"sprintgate/internal/review"
)

// Process exit codes.
const (
	// ExitOK means the review completed and the sprint was closed.
	ExitOK = 0

	// ExitFailure covers denial at the gate, a failed run and usage errors.
	ExitFailure = 1

	// ExitAuditFailure means the run ended but its audit record could not be
	// written. The record is the only compliance evidence, so this is reported
	// apart from ordinary failures.
	ExitAuditFailure = 2

	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// ExitError carries a process exit code from a Cobra RunE function up to
// [RunWithConfig] without calling os.Exit, so commands stay testable.
type ExitError struct {
	// Code is the exit code to return to the shell.
	Code int
}

// Error returns "exit status N", matching os/exec.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports whether err wraps an [ExitError] and returns its code.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// exitCodeFor maps a terminal run status onto the process exit code. Only a
// completed review exits zero.
func exitCodeFor(status review.Status) int {
	switch status {
	case review.StatusCompleted:
		return ExitOK
	case review.StatusInterrupted:
		return ExitInterrupted
	default:
		return ExitFailure
	}
}
