package transmit

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyTransmitting is returned by Start while another session is
	// non-terminal, including a Failed session that has not been cleared.
	ErrAlreadyTransmitting = errors.New("transmission already in progress")

	// ErrNotTransmitting is returned by Stop when no session is active.
	ErrNotTransmitting = errors.New("no transmission in progress")

	// ErrNoLocation is returned by Start before a location has been set.
	ErrNoLocation = errors.New("no location configured")

	// ErrInvalidParameters is returned when session parameters are outside
	// the ranges the external tools accept.
	ErrInvalidParameters = errors.New("invalid transmission parameters")
)

// stderrTailLimit bounds how much captured stderr a ProcessError carries.
const stderrTailLimit = 1024

// ProcessError reports an external tool failure with its exit code and a
// truncated stderr excerpt.
type ProcessError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.Stderr)
}

// newProcessError builds a ProcessError, keeping only the tail of stderr.
func newProcessError(tool string, exitCode int, stderr string) *ProcessError {
	if len(stderr) > stderrTailLimit {
		stderr = "..." + stderr[len(stderr)-stderrTailLimit:]
	}
	return &ProcessError{Tool: tool, ExitCode: exitCode, Stderr: stderr}
}
