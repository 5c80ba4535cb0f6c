package jobrunner

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nixpig/botpanel/internal/jobrunner/logbuf"
)

const (
	// scanBufferSize is the initial line-scanning buffer. 64KB matches the
	// bufio default.
	scanBufferSize = 64 * 1024

	// scanBufferMax bounds a single log line. Container build tools can
	// emit very long progress lines.
	scanBufferMax = 1024 * 1024
)

// Job wraps one spawned external process: its identity, lifecycle state and
// captured output. A Job is owned exclusively by its category's Controller
// and is replaced, not restarted, for each run.
type Job struct {
	id        string
	category  Category
	startedAt time.Time
	grace     time.Duration

	state         AtomicState
	stopRequested atomic.Bool
	processState  atomic.Pointer[os.ProcessState]

	cmd *exec.Cmd
	log *logbuf.Buffer

	done chan struct{}
}

// CommandSpec describes the external process to run for one job.
type CommandSpec struct {
	Program string
	Args    []string
	Dir     string
	Env     []string

	// Stdin, when set, is fed to the process. Used to pass registry
	// credentials to image publish jobs without exposing them in argv.
	Stdin io.Reader
}

// Snapshot is a point-in-time view of a category's current job, shared by
// the status endpoint and the terminal event of the log stream.
type Snapshot struct {
	Category  Category   `json:"category"`
	JobID     string     `json:"job_id,omitempty"`
	State     State      `json:"state"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	LogLines  int        `json:"log_lines"`
}

// spawn starts the external process described by spec and begins draining
// its combined stdout/stderr into log. On failure nothing is left behind and
// a SpawnError is returned.
func spawn(
	id string,
	category Category,
	spec CommandSpec,
	log *logbuf.Buffer,
	grace time.Duration,
) (*Job, error) {
	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Dir = spec.Dir

	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}

	// The child gets its own process group so stop signals reach any
	// grandchildren too. Shell-chained jobs do their real work in a
	// grandchild, and a surviving grandchild would also hold the inherited
	// write end of the output pipe open and stall the drain forever.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Combined stdout/stderr through a single pipe preserves arrival order
	// across both streams.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Program: spec.Program, Err: err}
	}

	cmd.Stdout = pw
	cmd.Stderr = pw

	j := &Job{
		id:       id,
		category: category,
		grace:    grace,
		cmd:      cmd,
		log:      log,
		done:     make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()

		return nil, &SpawnError{Program: spec.Program, Err: err}
	}

	// The parent's write end must be closed so the drain goroutine sees EOF
	// once the child exits.
	pw.Close()

	j.startedAt = time.Now()
	j.state.Store(StateRunning)

	drained := make(chan struct{})

	go j.drain(pr, drained)

	go func() {
		// Wait must only be called once; the exit code is read from the
		// recorded ProcessState afterwards.
		j.cmd.Wait()

		// The child's copy of the pipe closed on exit, so the drain
		// goroutine finishes once it has consumed the remaining output.
		// Waiting for it keeps the freeze after the last line.
		<-drained

		j.finalize()
	}()

	return j, nil
}

func (j *Job) drain(pr *os.File, drained chan<- struct{}) {
	defer func() {
		pr.Close()
		close(drained)
	}()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, scanBufferSize), scanBufferMax)

	for scanner.Scan() {
		j.log.Append(scanner.Text())
	}

	// A scanner error here means the pipe broke or a line exceeded the
	// buffer cap; either way the remaining output is unrecoverable and the
	// exit path still runs, so there is nothing further to do.
}

func (j *Job) finalize() {
	j.processState.Store(j.cmd.ProcessState)

	switch {
	case j.stopRequested.Load():
		j.state.Store(StateStopped)
	case j.cmd.ProcessState != nil && j.cmd.ProcessState.ExitCode() == 0:
		j.state.Store(StateSucceeded)
	default:
		j.state.Store(StateFailed)
	}

	j.log.Freeze()

	close(j.done)
}

// Stop requests termination of the process: SIGTERM immediately, escalating
// to SIGKILL if the process has not exited within the grace period. Both
// signals go to the process group so grandchildren are taken down with the
// child. It is a no-op on a job that is not running and never blocks
// waiting for the process to exit.
func (j *Job) Stop() error {
	if !j.state.CompareAndSwap(StateRunning, StateStopping) {
		return nil
	}

	j.stopRequested.Store(true)

	if err := j.signalGroup(syscall.SIGTERM); err != nil {
		// Signal delivery failed; fall straight through to the kill.
		return j.signalGroup(syscall.SIGKILL)
	}

	go func() {
		select {
		case <-j.done:
		case <-time.After(j.grace):
			j.signalGroup(syscall.SIGKILL)
		}
	}()

	return nil
}

// signalGroup delivers sig to the child's process group. A group that is
// already gone is not an error; the wait goroutine still observes the exit.
func (j *Job) signalGroup(sig syscall.Signal) error {
	err := syscall.Kill(-j.cmd.Process.Pid, sig)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}

	return nil
}

// ID returns the unique ID of the job.
func (j *Job) ID() string {
	return j.id
}

// State returns the current lifecycle state of the job.
func (j *Job) State() State {
	return j.state.Load()
}

// StartedAt returns when the process was started.
func (j *Job) StartedAt() time.Time {
	return j.startedAt
}

// ExitCode returns the exit code of the process, or -1 if it has not exited.
func (j *Job) ExitCode() int {
	ps := j.processState.Load()
	if ps == nil {
		return -1
	}

	return ps.ExitCode()
}

// Log returns the job's live log buffer. The same object is shared with all
// stream readers so new lines are visible without polling.
func (j *Job) Log() *logbuf.Buffer {
	return j.log
}

// Done returns a channel that is closed once the process has exited and its
// log buffer is frozen.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Snapshot returns the current status of the job.
func (j *Job) Snapshot() Snapshot {
	snap := Snapshot{
		Category: j.category,
		JobID:    j.id,
		State:    j.state.Load(),
		LogLines: j.log.Len(),
	}

	startedAt := j.startedAt
	snap.StartedAt = &startedAt

	if ps := j.processState.Load(); ps != nil {
		code := ps.ExitCode()
		snap.ExitCode = &code
	}

	return snap
}
