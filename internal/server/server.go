// Package server provides the panel's HTTP surface: job orchestration
// endpoints with live log streaming, project file editing, model management
// and the chat relay.
package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/nixpig/botpanel/internal/jobrunner"
	"github.com/nixpig/botpanel/internal/project"
)

// Config carries the server-level settings.
type Config struct {
	Addr        string
	FrontendDir string

	// RuntimePort is where the runtime server category listens; the chat
	// relay forwards to it.
	RuntimePort int

	// TLS, when set, makes the server listen over HTTPS.
	TLS *tls.Config
}

// Server routes panel requests to the job controllers and the project store.
type Server struct {
	cfg    Config
	jobs   *jobrunner.Set
	store  *project.Store
	chat   *chatRelay
	router *mux.Router
	http   *http.Server
	logger zerolog.Logger
}

// New creates a Server with its routes configured.
func New(
	cfg Config,
	jobs *jobrunner.Set,
	store *project.Store,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		cfg:    cfg,
		jobs:   jobs,
		store:  store,
		chat:   newChatRelay(cfg.RuntimePort, logger),
		router: mux.NewRouter(),
		logger: logger,
	}

	s.routes()

	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.router,

		// No WriteTimeout: log streams are long-lived by design and are
		// bounded by client disconnect or job completion instead.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.requestLogger)

	api.HandleFunc("/jobs/{category}/start", s.handleJobStart).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{category}/stop", s.handleJobStop).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{category}/status", s.handleJobStatus).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{category}/logs", s.handleJobLogs).Methods(http.MethodGet)

	api.HandleFunc("/files", s.handleFileList).Methods(http.MethodGet)
	api.HandleFunc("/files/{path:.+}", s.handleFileRead).Methods(http.MethodGet)
	api.HandleFunc("/files/{path:.+}", s.handleFileWrite).Methods(http.MethodPost)

	api.HandleFunc("/models", s.handleModelList).Methods(http.MethodGet)
	api.HandleFunc("/models/{name}", s.handleModelDelete).Methods(http.MethodDelete)

	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	if s.cfg.FrontendDir != "" {
		s.router.PathPrefix("/").
			Handler(http.FileServer(http.Dir(s.cfg.FrontendDir)))
	}
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called or the listener fails. TLS
// is used when the config carries a tls.Config.
func (s *Server) ListenAndServe() error {
	s.logger.Info().
		Str("addr", s.cfg.Addr).
		Bool("tls", s.cfg.TLS != nil).
		Msg("server listening")

	var err error

	if s.cfg.TLS != nil {
		s.http.TLSConfig = s.cfg.TLS
		err = s.http.ListenAndServeTLS("", "")
	} else {
		err = s.http.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown drains in-flight requests and then stops any running jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)

	s.jobs.Shutdown()

	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
