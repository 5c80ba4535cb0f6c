package jobrunner

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Controller.Start while the current
	// job is still running. Starts are rejected, never queued.
	ErrAlreadyRunning = errors.New("a job is already running for this category")

	// ErrNotRunning is returned by Controller.Stop when there is nothing to
	// stop.
	ErrNotRunning = errors.New("no job is running for this category")

	// ErrUnknownCategory is returned for category names outside Categories.
	ErrUnknownCategory = errors.New("unknown job category")
)

// SpawnError is returned when the external program could not be started at
// all, e.g. the binary is missing or the working directory is invalid. The
// controller keeps its previous snapshot when a spawn fails.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %q: %s", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
