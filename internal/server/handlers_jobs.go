package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nixpig/botpanel/internal/jobrunner"
	"github.com/nixpig/botpanel/internal/project"
)

func (s *Server) controllerFor(
	w http.ResponseWriter,
	r *http.Request,
) (*jobrunner.Controller, bool) {
	category, err := jobrunner.ParseCategory(mux.Vars(r)["category"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	controller, err := s.jobs.Controller(category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	return controller, true
}

func (s *Server) handleJobStart(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.controllerFor(w, r)
	if !ok {
		return
	}

	var params jobrunner.StartParams

	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	id, err := controller.Start(params)
	if err != nil {
		s.writeStartError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":   id,
		"category": string(controller.Category()),
	})
}

func (s *Server) writeStartError(w http.ResponseWriter, err error) {
	var spawnErr *jobrunner.SpawnError

	switch {
	case errors.Is(err, jobrunner.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &spawnErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, project.ErrNoModels):
		writeError(w, http.StatusBadRequest, err.Error()+"; train a model first")
	default:
		// Remaining start failures are bad parameters from the command
		// builder, e.g. a missing image name.
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleJobStop(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.controllerFor(w, r)
	if !ok {
		return
	}

	if err := controller.Stop(); err != nil {
		if errors.Is(err, jobrunner.ErrNotRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}

		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"category": string(controller.Category()),
		"message":  "stop requested",
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	controller, ok := s.controllerFor(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, controller.Status())
}
