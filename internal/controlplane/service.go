// Package controlplane provides the HTTP API and service layer for studyplan.
package controlplane

import (
	"context"
	"time"

	"github.com/fentz26/studyplan/internal/audit"
	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/plan"
	"github.com/fentz26/studyplan/internal/planstate"
)

// Version is reported by the health endpoint.
var Version = "dev"

// Pinger reports whether the persistence backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

// TaskEntry is a task together with its position in the plan.
type TaskEntry struct {
	models.Task
	WeekIndex    int    `json:"week_index"`
	SessionIndex int    `json:"session_index"`
	Date         string `json:"date"`
	TimeBlock    string `json:"time_block"`
}

// DefaultAuditLimit and MaxAuditLimit bound GET /pdr.
const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 1000
)

// Service provides the control plane business logic.
type Service struct {
	state *planstate.Store
	db    Pinger
	audit audit.Reader
}

// NewService creates a new control plane service. db may be nil; when it also
// implements audit.Reader its records are served by Audit.
func NewService(state *planstate.Store, db Pinger) *Service {
	s := &Service{state: state, db: db}
	if r, ok := db.(audit.Reader); ok {
		s.audit = r
	}
	return s
}

// Health checks the backend and reports the daemon version.
func (s *Service) Health(ctx context.Context) HealthResponse {
	h := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			h.OK = false
			h.DB = err.Error()
		}
	}
	return h
}

// --- Plan Operations ---

// Plan returns the current state snapshot.
func (s *Service) Plan() planstate.Snapshot {
	return s.state.Snapshot()
}

// Generate creates a new plan from constraints.
func (s *Service) Generate(ctx context.Context, c models.PlanConstraints) (planstate.Snapshot, error) {
	return s.state.Generate(ctx, c)
}

// Rebalance rebalances the current plan.
func (s *Service) Rebalance(ctx context.Context) (planstate.Snapshot, error) {
	return s.state.Rebalance(ctx)
}

// SelectVariant switches the current option.
func (s *Service) SelectVariant(ctx context.Context, index int) (planstate.Snapshot, error) {
	if err := s.state.SelectVariant(ctx, index); err != nil {
		return planstate.Snapshot{}, err
	}
	return s.state.Snapshot(), nil
}

// SelectWeek moves the week cursor.
func (s *Service) SelectWeek(ctx context.Context, index int) planstate.Snapshot {
	s.state.SelectWeek(ctx, index)
	return s.state.Snapshot()
}

// Reset discards the plan. confirm must be true.
func (s *Service) Reset(ctx context.Context, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	return s.state.Reset(ctx)
}

// Logs returns the rebalance log.
func (s *Service) Logs() []models.RebalanceLog {
	return s.state.Logs()
}

// Audit returns the most recent audit records, newest first.
func (s *Service) Audit(limit int) ([]models.PDREntry, error) {
	if s.audit == nil {
		return nil, ErrAuditUnavailable
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	entries, err := s.audit.ListPDR(limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.PDREntry{}
	}
	return entries, nil
}

// --- Task Operations ---

// ListTasks returns the tasks of the current option, optionally filtered by
// status, in plan order.
func (s *Service) ListTasks(status string) []TaskEntry {
	entries := []TaskEntry{}
	for _, e := range plan.Tasks(s.state.Snapshot().Document()) {
		if status != "" && string(e.Task.Status) != status {
			continue
		}
		entries = append(entries, toTaskEntry(e))
	}
	return entries
}

// GetTask returns one task of the current option with its position.
func (s *Service) GetTask(taskID string) (TaskEntry, error) {
	doc := s.state.Snapshot().Document()
	task, loc, ok := plan.FindTask(doc, taskID)
	if !ok {
		return TaskEntry{}, ErrTaskNotFound
	}
	session := doc.Weeks[loc.Week].Sessions[loc.Session]
	return toTaskEntry(plan.Entry{Task: task, Location: loc, Date: session.Date, TimeBlock: session.TimeBlock}), nil
}

func toTaskEntry(e plan.Entry) TaskEntry {
	return TaskEntry{
		Task:         e.Task,
		WeekIndex:    e.Location.Week,
		SessionIndex: e.Location.Session,
		Date:         e.Date,
		TimeBlock:    e.TimeBlock,
	}
}

// SetStatus changes a task's status.
func (s *Service) SetStatus(ctx context.Context, taskID string, status models.TaskStatus) error {
	applied, err := s.state.SetStatus(ctx, taskID, status)
	if err != nil {
		return err
	}
	if !applied {
		return ErrTaskNotFound
	}
	return nil
}

// UpdateTask replaces a task record.
func (s *Service) UpdateTask(ctx context.Context, task models.Task) error {
	if !s.state.UpdateTask(ctx, task) {
		return ErrTaskNotFound
	}
	return nil
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	if !s.state.DeleteTask(ctx, taskID) {
		return ErrTaskNotFound
	}
	return nil
}

// AddTask appends a task to a session. It reports whether the task was
// added; stale indices and duplicate ids are not errors.
func (s *Service) AddTask(ctx context.Context, weekIndex, sessionIndex int, task models.Task) (models.Task, bool) {
	return s.state.AddTask(ctx, weekIndex, sessionIndex, task)
}
