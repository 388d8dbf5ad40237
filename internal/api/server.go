// Package api provides the REST handlers for roles, templates and tasks.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// TaskRunner starts and controls task runs.
type TaskRunner interface {
	Start(ctx context.Context, templateID, input string) (*core.TaskRecord, error)
	Resume(ctx context.Context, id core.TaskID) (*core.TaskRecord, error)
	Pause(id core.TaskID) error
	Stop(id core.TaskID) error
	Get(ctx context.Context, id core.TaskID) (*core.TaskRecord, error)
	List(ctx context.Context) ([]*core.TaskRecord, error)
	Delete(ctx context.Context, id core.TaskID) error
	Active(id core.TaskID) bool
}

// Server serves the /api/v1 resources. It carries no middleware; the web
// server mounts it behind its own stack.
type Server struct {
	router chi.Router
	store  core.Store
	runner TaskRunner
	logger *logging.Logger
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates the API handlers.
func NewServer(store core.Store, runner TaskRunner, opts ...ServerOption) *Server {
	s := &Server{
		store:  store,
		runner: runner,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.handleAPIRoot)

	r.Route("/roles", func(r chi.Router) {
		r.Get("/", s.handleListRoles)
		r.Route("/{roleID}", func(r chi.Router) {
			r.Get("/", s.handleGetRole)
			r.Put("/", s.handlePutRole)
			r.Delete("/", s.handleDeleteRole)
		})
	})

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Route("/{templateID}", func(r chi.Router) {
			r.Get("/", s.handleGetTemplate)
			r.Put("/", s.handlePutTemplate)
			r.Delete("/", s.handleDeleteTemplate)
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.handleListTasks)
		r.Post("/", s.handleStartTask)
		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", s.handleGetTask)
			r.Delete("/", s.handleDeleteTask)
			r.Post("/pause", s.handlePauseTask)
			r.Post("/resume", s.handleResumeTask)
			r.Post("/stop", s.handleStopTask)
		})
	})

	return r
}

func (s *Server) handleAPIRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"version": "v1", "name": "rolechain"})
}

// decodeBody reads a single JSON object, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}
