package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nixpig/botpanel/internal/project"
)

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"files": files})
}

func (s *Server) handleFileRead(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]

	content, err := s.store.ReadFile(rel)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"path":    rel,
		"content": content,
	})
}

func (s *Server) handleFileWrite(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]

	var body struct {
		Content string `json:"content"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := s.store.WriteFile(rel, body.Content); err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"path":    rel,
		"message": "file saved",
	})
}

func (s *Server) handleModelList(w http.ResponseWriter, r *http.Request) {
	models, err := s.store.Models()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string][]project.Model{"models": models})
}

func (s *Server) handleModelDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteModel(mux.Vars(r)["name"]); err != nil {
		s.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "model deleted"})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, project.ErrInvalidPath),
		errors.Is(err, project.ErrEmptyContent),
		errors.Is(err, project.ErrInvalidYAML):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
