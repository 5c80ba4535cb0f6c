package jobrunner

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nixpig/botpanel/internal/jobrunner/logbuf"
)

// DefaultStopGrace is how long a stop waits for the process to exit before
// escalating to a kill.
const DefaultStopGrace = 5 * time.Second

// StartParams carries the caller-supplied parameters of a start request. A
// category's CommandFunc reads the fields relevant to it and ignores the
// rest.
type StartParams struct {
	// Model optionally pins the runtime server to a specific trained model
	// instead of the newest one.
	Model string `json:"model,omitempty"`

	// Image build parameters.
	ImageName     string `json:"image_name,omitempty"`
	Tag           string `json:"tag,omitempty"`
	RegistryUser  string `json:"registry_user,omitempty"`
	RegistryToken string `json:"registry_token,omitempty"`
	Push          bool   `json:"push,omitempty"`
}

// CommandFunc builds the external command for one start request. Returning
// an error aborts the start with no state change, e.g. when no trained model
// exists yet.
type CommandFunc func(params StartParams) (CommandSpec, error)

// Controller owns at most one active Job for its category and enforces
// single-flight execution: a start while the current job is running is
// rejected, not queued. Controllers for different categories share no state.
type Controller struct {
	category   Category
	newCommand CommandFunc
	retention  int
	grace      time.Duration
	logger     zerolog.Logger

	// mu serialises replacement of the current slot; status and log reads
	// take the read side so they never contend with each other.
	mu      sync.RWMutex
	current *Job
}

// NewController creates a Controller for category that builds its commands
// with newCommand. Non-positive retention or grace select the defaults.
func NewController(
	category Category,
	newCommand CommandFunc,
	retention int,
	grace time.Duration,
	logger zerolog.Logger,
) *Controller {
	if grace <= 0 {
		grace = DefaultStopGrace
	}

	return &Controller{
		category:   category,
		newCommand: newCommand,
		retention:  retention,
		grace:      grace,
		logger:     logger.With().Str("category", string(category)).Logger(),
	}
}

// Category returns the category this controller owns.
func (c *Controller) Category() Category {
	return c.category
}

// Start spawns a new job for the category and returns its ID immediately;
// progress is observed via Status and the log stream. It returns
// ErrAlreadyRunning while the current job has not reached a terminal state,
// and a SpawnError (with the previous snapshot intact) when the process
// cannot be started.
func (c *Controller) Start(params StartParams) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && !c.current.State().Terminal() {
		return "", ErrAlreadyRunning
	}

	spec, err := c.newCommand(params)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	job, err := spawn(id, c.category, spec, logbuf.New(c.retention), c.grace)
	if err != nil {
		c.logger.Error().Err(err).Str("program", spec.Program).Msg("spawn failed")
		return "", err
	}

	c.current = job

	c.logger.Info().
		Str("job_id", id).
		Str("program", spec.Program).
		Msg("job started")

	return id, nil
}

// Stop requests termination of the current job. It returns ErrNotRunning
// when there is nothing to stop.
func (c *Controller) Stop() error {
	job := c.Current()

	if job == nil || job.State().Terminal() {
		return ErrNotRunning
	}

	c.logger.Info().Str("job_id", job.ID()).Msg("stop requested")

	return job.Stop()
}

// Status returns the snapshot of the current job, or an Idle snapshot if no
// job has ever been started for the category.
func (c *Controller) Status() Snapshot {
	job := c.Current()

	if job == nil {
		return Snapshot{Category: c.category, State: StateIdle}
	}

	return job.Snapshot()
}

// Current returns the current job, or nil before the first start. The job
// may be terminal; callers stream its frozen log as replayed history.
func (c *Controller) Current() *Job {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}
