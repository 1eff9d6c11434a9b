package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fentz26/studyplan/internal/generator"
	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/planstate"
)

// Server provides the HTTP API for studyplan.
type Server struct {
	service *Service
	addr    string
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string) *Server {
	return &Server{
		service: service,
		addr:    addr,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Plan endpoints
	mux.HandleFunc("/plan", s.handlePlan)
	mux.HandleFunc("/plan/generate", s.handleGenerate)
	mux.HandleFunc("/plan/rebalance", s.handleRebalance)
	mux.HandleFunc("/plan/variant", s.handleVariant)
	mux.HandleFunc("/plan/week", s.handleWeek)
	mux.HandleFunc("/plan/log", s.handleLog)
	mux.HandleFunc("/plan/tasks", s.handlePlanTasks)

	// Task endpoints
	mux.HandleFunc("/tasks/", s.handleTaskByID)

	mux.HandleFunc("/pdr", s.handleAudit)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		// Generation is a single long round-trip.
		WriteTimeout: 5 * time.Minute,
	}

	log.Printf("Starting studyplan daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var genErr *generator.GenerationError
	switch {
	case errors.As(err, &genErr):
		status = http.StatusBadGateway
	case errors.Is(err, models.ErrInvalidConstraints),
		errors.Is(err, planstate.ErrInvalidStatus),
		errors.Is(err, planstate.ErrInvalidVariant),
		errors.Is(err, ErrConfirmationRequired):
		status = http.StatusBadRequest
	case errors.Is(err, planstate.ErrNoPlan), errors.Is(err, ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, planstate.ErrRebalanceInFlight),
		errors.Is(err, planstate.ErrGenerationInFlight),
		errors.Is(err, planstate.ErrPlanReplaced):
		status = http.StatusConflict
	case errors.Is(err, ErrAuditUnavailable):
		status = http.StatusNotImplemented
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	h := s.service.Health(r.Context())
	status := http.StatusOK
	if !h.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

// --- Plan Handlers ---

// handlePlan handles GET /plan and DELETE /plan?confirm=true
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.service.Plan())
	case http.MethodDelete:
		if err := s.service.Reset(r.Context(), r.URL.Query().Get("confirm") == "true"); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req models.PlanConstraints
	if !decode(w, r, &req) {
		return
	}
	snap, err := s.service.Generate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	snap, err := s.service.Rebalance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type indexRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleVariant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req indexRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := s.service.SelectVariant(r.Context(), req.Index)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req indexRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.service.SelectWeek(r.Context(), req.Index))
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Logs())
}

// handleAudit handles GET /pdr?limit=N
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}
	entries, err := s.service.Audit(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type addTaskRequest struct {
	WeekIndex    int         `json:"week_index"`
	SessionIndex int         `json:"session_index"`
	Task         models.Task `json:"task"`
}

type addTaskResponse struct {
	Added bool        `json:"added"`
	Task  models.Task `json:"task"`
}

// handlePlanTasks handles GET /plan/tasks and POST /plan/tasks
func (s *Server) handlePlanTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.service.ListTasks(r.URL.Query().Get("status")))
	case http.MethodPost:
		var req addTaskRequest
		if !decode(w, r, &req) {
			return
		}
		task, added := s.service.AddTask(r.Context(), req.WeekIndex, req.SessionIndex, req.Task)
		status := http.StatusOK
		if added {
			status = http.StatusCreated
		}
		writeJSON(w, status, addTaskResponse{Added: added, Task: task})
	default:
		methodNotAllowed(w)
	}
}

// --- Task Handlers ---

// handleTaskByID handles /tasks/{id} and /tasks/{id}/status. The id is
// split off the escaped path so ids containing "/" can be addressed as %2F.
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/tasks/")
	parts := strings.SplitN(path, "/", 2)

	taskID, err := url.PathUnescape(parts[0])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid task id"})
		return
	}
	if taskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task id required"})
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTask(w, taskID)
	case action == "" && r.Method == http.MethodPut:
		s.updateTask(w, r, taskID)
	case action == "" && r.Method == http.MethodDelete:
		s.deleteTask(w, r, taskID)
	case action == "status" && r.Method == http.MethodPost:
		s.setStatus(w, r, taskID)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (s *Server) getTask(w http.ResponseWriter, taskID string) {
	entry, err := s.service.GetTask(taskID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request, taskID string) {
	var task models.Task
	if !decode(w, r, &task) {
		return
	}
	task.TaskID = taskID
	if err := s.service.UpdateTask(r.Context(), task); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request, taskID string) {
	if err := s.service.DeleteTask(r.Context(), taskID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type statusRequest struct {
	Status models.TaskStatus `json:"status"`
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request, taskID string) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.service.SetStatus(r.Context(), taskID, req.Status); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}
