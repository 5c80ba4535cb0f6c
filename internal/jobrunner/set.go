package jobrunner

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Set holds the per-category controllers. It is created once at startup and
// lives for the process lifetime; in-flight jobs are lost on restart.
type Set struct {
	controllers map[Category]*Controller
}

// NewSet creates one Controller per entry in commands. Categories absent
// from the map are simply not served.
func NewSet(
	commands map[Category]CommandFunc,
	retention int,
	grace time.Duration,
	logger zerolog.Logger,
) *Set {
	controllers := make(map[Category]*Controller, len(commands))

	for category, newCommand := range commands {
		controllers[category] = NewController(
			category,
			newCommand,
			retention,
			grace,
			logger,
		)
	}

	return &Set{controllers: controllers}
}

// Controller returns the controller for category or ErrUnknownCategory.
func (s *Set) Controller(category Category) (*Controller, error) {
	controller, exists := s.controllers[category]
	if !exists {
		return nil, ErrUnknownCategory
	}

	return controller, nil
}

// Shutdown makes a best-effort attempt to stop every running job and waits
// for the stops to be dispatched. It does not wait out the grace windows;
// kill escalation continues in the background.
func (s *Set) Shutdown() {
	var wg sync.WaitGroup

	for _, controller := range s.controllers {
		wg.Go(func() {
			if err := controller.Stop(); err != nil {
				// Nothing running is the common case here; anything else is
				// best-effort during shutdown.
			}
		})
	}

	wg.Wait()
}
