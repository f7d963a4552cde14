package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/deployd/internal/logging"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/ports"
	"github.com/aretw0/deployd/pkg/supervisor"
	"github.com/go-chi/chi/v5"
)

// Supervisor defines what the admin API needs from the owning registry.
type Supervisor interface {
	List() []string
	Get(name string) (ports.Process, bool)
	Record(ctx context.Context, name string) (domain.DeploymentRecord, error)
	DeployModel(ctx context.Context, name, modelName string, backing domain.Backing, opts domain.SpawnOptions) (ports.Process, error)
	Kill(ctx context.Context, name string, status domain.Status) error
}

var _ Supervisor = (*supervisor.Supervisor)(nil)

// Server serves the deployd admin API.
type Server struct {
	Supervisor Supervisor
	Streams    *StreamManager
	Metrics    http.Handler
	Version    string
	Logger     *slog.Logger
}

// DeploymentView is the JSON representation of a live deployment.
type DeploymentView struct {
	Name    string            `json:"name"`
	Model   string            `json:"model"`
	State   string            `json:"state"`
	Backing domain.Backing    `json:"backing,omitempty"`
	HostID  string            `json:"host_id"`
	PID     int               `json:"pid"`
	Tasks   map[string]string `json:"tasks,omitempty"`
}

// SpawnRequest is the body of POST /deployments/{name}.
type SpawnRequest struct {
	// Model defaults to the deployment name.
	Model   string         `json:"model"`
	Backing domain.Backing `json:"backing"`
	Options map[string]any `json:"options"`
}

// KillResponse is returned by DELETE /deployments/{name}.
type KillResponse struct {
	Name        string   `json:"name"`
	Dead        bool     `json:"dead"`
	FailedTasks []string `json:"failed_tasks,omitempty"`
}

// NewHandler creates the HTTP handler of s.
func NewHandler(s *Server) http.Handler {
	if s.Logger == nil {
		s.Logger = logging.NewNop()
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.Logger)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	r.Route("/deployments", func(r chi.Router) {
		r.Get("/", s.ListDeployments)
		r.Get("/{name}", s.GetDeployment)
		r.Post("/{name}", s.SpawnDeployment)
		r.Delete("/{name}", s.KillDeployment)
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListDeployments handles the GET /deployments request.
func (s *Server) ListDeployments(w http.ResponseWriter, r *http.Request) {
	views := []DeploymentView{}
	for _, name := range s.Supervisor.List() {
		if view, ok := s.view(r.Context(), name); ok {
			views = append(views, view)
		}
	}
	s.writeJSON(w, http.StatusOK, views)
}

// GetDeployment handles the GET /deployments/{name} request.
func (s *Server) GetDeployment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	view, ok := s.view(r.Context(), name)
	if !ok {
		s.writeError(w, fmt.Errorf("%w: %s", domain.ErrDeploymentNotFound, name))
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// SpawnDeployment handles the POST /deployments/{name} request.
func (s *Server) SpawnDeployment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body SpawnRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			s.Logger.Warn("Spawn: Invalid request body", "err", err)
			return
		}
	}
	if body.Model == "" {
		body.Model = name
	}
	if body.Backing != "" && !body.Backing.Valid() {
		http.Error(w, fmt.Sprintf("Unknown backing %q", body.Backing), http.StatusBadRequest)
		return
	}

	opts, err := supervisor.DecodeSpawnOptions(body.Options)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.Supervisor.DeployModel(r.Context(), name, body.Model, body.Backing, opts); err != nil {
		s.Logger.Error("Spawn failed", "deployment", name, "model", body.Model, "err", err)
		s.writeError(w, err)
		return
	}

	view, ok := s.view(r.Context(), name)
	if !ok {
		// Already gone: the command exited right after spawning.
		view = DeploymentView{Name: name, Model: body.Model, State: domain.StateDead.String()}
	}
	s.writeJSON(w, http.StatusCreated, view)
}

// KillDeployment handles the DELETE /deployments/{name} request.
// The optional code and reason query parameters build the reported status.
func (s *Server) KillDeployment(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	status := domain.DefaultStatus()
	if code := r.URL.Query().Get("code"); code != "" {
		n, err := strconv.Atoi(code)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid code %q", code), http.StatusBadRequest)
			return
		}
		status = domain.ExitCode(n)
	}
	if reason := r.URL.Query().Get("reason"); reason != "" {
		status = status.WithReason(reason)
	}

	err := s.Supervisor.Kill(r.Context(), name, status)
	var disposal *domain.DisposalError
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, KillResponse{Name: name, Dead: true})
	case errors.As(err, &disposal):
		s.Logger.Warn("Kill left tasks undisposed", "deployment", name, "tasks", disposal.Tasks())
		s.writeJSON(w, http.StatusOK, KillResponse{Name: name, Dead: true, FailedTasks: disposal.Tasks()})
	default:
		s.writeError(w, err)
	}
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":         "deployd-http",
		"version":     s.Version,
		"deployments": len(s.Supervisor.List()),
	})
}

func (s *Server) view(ctx context.Context, name string) (DeploymentView, bool) {
	proc, ok := s.Supervisor.Get(name)
	if !ok {
		return DeploymentView{}, false
	}
	view := DeploymentView{
		Name:   name,
		Model:  proc.Model().Name,
		State:  proc.State().String(),
		HostID: proc.HostID(),
		PID:    proc.PID(),
	}
	if record, err := s.Supervisor.Record(ctx, name); err == nil {
		view.Backing = record.Backing
		view.Tasks = record.Tasks
	}
	return view, true
}

// statusCode maps domain errors to HTTP status codes.
func statusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrDeploymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyDeployed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidDeployment),
		errors.Is(err, domain.ErrNameCollision),
		errors.Is(err, domain.ErrUnsupported),
		errors.Is(err, supervisor.ErrNoCommand):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusCode(err), map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}
