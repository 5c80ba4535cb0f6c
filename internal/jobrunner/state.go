package jobrunner

import "sync/atomic"

type State int

const (
	// StateIdle indicates no process has ever been started for a category.
	// It is also the zero value.
	StateIdle State = iota

	// StateRunning indicates the child process has started and not yet
	// exited.
	StateRunning

	// StateStopping indicates a stop was requested and the grace window is
	// running, e.g. SIGTERM sent but the process has not yet exited.
	StateStopping

	// StateSucceeded indicates the process exited on its own with the
	// success exit code.
	StateSucceeded

	// StateFailed indicates the process exited on its own with a non-zero
	// exit code, or the spawn itself failed after the handle was created.
	StateFailed

	// StateStopped indicates the process exited because a stop was
	// requested, whether it obeyed the termination signal or was killed
	// after the grace window.
	StateStopped
)

// NOTE: This slice needs to be kept in sync with any changes to the State
// values. States should only ever be added to keep the API stable.
var states = []string{
	"Idle",
	"Running",
	"Stopping",
	"Succeeded",
	"Failed",
	"Stopped",
}

// String implements the Stringer interface for State by using the int value
// to index into a slice.
func (s State) String() string {
	if int(s) < 0 || int(s) >= len(states) {
		return "Unknown"
	}

	return states[s]
}

// Terminal reports whether the process will not transition further. A
// terminal handle is replaced, never mutated, by the next start.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateStopped
}

// MarshalText makes State render as its name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a State from its name. Unrecognised names map to
// StateIdle so that clients built against a newer server degrade gracefully.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range states {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}

	*s = StateIdle

	return nil
}

// AtomicState is a wrapper around an atomic.Int32 to provide atomic
// operations on a State. CompareAndSwap keeps state transitions valid
// without a mutex on the hot path.
type AtomicState struct {
	v atomic.Int32
}

// Load atomically loads the State value.
func (a *AtomicState) Load() State {
	return State(a.v.Load())
}

// Store atomically stores the State value.
func (a *AtomicState) Store(s State) {
	a.v.Store(int32(s))
}

// CompareAndSwap performs an atomic compare-and-swap operation with an old
// and new State.
func (a *AtomicState) CompareAndSwap(o, n State) bool {
	return a.v.CompareAndSwap(int32(o), int32(n))
}
