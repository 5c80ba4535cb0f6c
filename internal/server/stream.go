package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nixpig/botpanel/internal/jobrunner"
	"github.com/nixpig/botpanel/internal/jobrunner/logbuf"
)

// logEvent is one Server-Sent-Events frame on the job log stream. Exactly
// one of the fields groups is set: a log line, a truncation marker, or the
// terminal event carrying the job's final state.
type logEvent struct {
	Log       string `json:"log,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`

	Done     bool             `json:"done,omitempty"`
	State    *jobrunner.State `json:"state,omitempty"`
	ExitCode *int             `json:"exit_code,omitempty"`
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, event logEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// handleJobLogs streams the current job's log as Server-Sent-Events: one
// event per line in arrival order, a truncation marker if the client fell
// behind the retention window, then a terminal event with the final state.
//
// A client connecting after the job finished replays the retained buffer
// and closes; connecting before any job ran gets an Idle terminal event and
// closes. `?tail=true` skips history and follows new lines only.
func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.controllerFor(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	job := controller.Current()
	if job == nil {
		idle := jobrunner.StateIdle
		sendEvent(w, flusher, logEvent{Done: true, State: &idle})

		return
	}

	tail := r.URL.Query().Get("tail") == "true"

	reader := job.Log().NewReader(tail)
	defer reader.Close()

	// Close the reader when the client goes away so the blocked Next call
	// returns. Detaching never affects the job or other readers.
	stop := context.AfterFunc(r.Context(), func() {
		reader.Close()
	})
	defer stop()

	for {
		lines, err := reader.Next()

		switch {
		case err == nil:
			for _, line := range lines {
				sendEvent(w, flusher, logEvent{Log: line})
			}

		case errors.Is(err, logbuf.ErrTruncated):
			sendEvent(w, flusher, logEvent{Truncated: true})

		case errors.Is(err, io.EOF):
			snap := job.Snapshot()
			sendEvent(w, flusher, logEvent{
				Done:     true,
				State:    &snap.State,
				ExitCode: snap.ExitCode,
			})

			return

		default:
			// Reader closed: the client disconnected.
			return
		}
	}
}
