package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawn is returned when the engine process cannot be started, or when
	// waiting on it fails for a reason other than the process exiting.
	ErrSpawn = errors.New("engine: spawn failed")

	// ErrInitialTimeout is returned when the engine produced no substantive
	// output before the first-output deadline.
	ErrInitialTimeout = errors.New("engine: no initial response before deadline")

	// ErrInactivityTimeout is returned when the gap between output chunks
	// exceeded the inactivity limit.
	ErrInactivityTimeout = errors.New("engine: output stalled past inactivity limit")
)

// ProcessError reports an engine process that ran to completion with a
// nonzero exit code. StderrPreview carries the leading slice of captured
// stderr, capped for log hygiene.
type ProcessError struct {
	ExitCode      int
	StderrPreview string
}

func (e *ProcessError) Error() string {
	if e.StderrPreview == "" {
		return fmt.Sprintf("engine: process exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("engine: process exited with code %d: %s", e.ExitCode, e.StderrPreview)
}
