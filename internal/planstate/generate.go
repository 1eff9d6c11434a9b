package planstate

import (
	"context"

	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/plan"
	"github.com/fentz26/studyplan/internal/reconcile"
)

// Generate requests a new plan for c and, on success, replaces the whole
// state with it. On failure the previous state is kept.
func (s *Store) Generate(ctx context.Context, c models.PlanConstraints) (Snapshot, error) {
	if err := c.Validate(); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if s.initializing {
		s.mu.Unlock()
		return Snapshot{}, ErrGenerationInFlight
	}
	s.initializing = true
	s.mu.Unlock()

	callCtx, cancel := s.callContext(ctx)
	resp, err := s.gen.Generate(callCtx, c)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.initializing = false
	if err != nil {
		s.record("plan.generate", c, "failure", "", err.Error())
		return Snapshot{}, err
	}

	s.response = resp
	s.constraints = &c
	s.selected = 0
	s.week = 0
	s.log = nil
	s.epoch++
	s.record("plan.generate", c, "success", "", "")
	s.persistLocked(ctx)
	return s.snapshotLocked(), nil
}

type rebalanceJob struct {
	trigger     string
	epoch       int
	snapshot    models.PlanDocument
	outbound    models.PlanDocument
	constraints models.PlanConstraints
}

// Rebalance sends the current plan to the generator and reconciles the
// result with the configured policy. A second call while one is in flight
// returns ErrRebalanceInFlight without touching state.
func (s *Store) Rebalance(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	job, err := s.beginRebalanceLocked(TriggerManual)
	s.mu.Unlock()
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.runRebalance(ctx, job); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// beginRebalanceLocked captures the snapshot and raises the rebalancing flag.
func (s *Store) beginRebalanceLocked(trigger string) (*rebalanceJob, error) {
	if s.response == nil || s.constraints == nil {
		return nil, ErrNoPlan
	}
	if s.rebalancing {
		return nil, ErrRebalanceInFlight
	}
	s.rebalancing = true

	doc := plan.Clone(s.documentLocked())
	return &rebalanceJob{
		trigger:     trigger,
		epoch:       s.epoch,
		snapshot:    doc,
		outbound:    s.opts.Policy.Outbound(doc),
		constraints: *s.constraints,
	}, nil
}

// runRebalance performs the generator round-trip and applies the result to
// the state as it is when the call returns. Local edits made meanwhile are
// subject to the policy: last write wins at document level.
func (s *Store) runRebalance(ctx context.Context, job *rebalanceJob) error {
	callCtx, cancel := s.callContext(ctx)
	resp, err := s.gen.Rebalance(callCtx, job.outbound, job.constraints)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebalancing = false
	if err != nil {
		s.record("plan.rebalance", job.trigger, "failure", "", err.Error())
		return err
	}
	if s.response == nil {
		return ErrNoPlan
	}
	if s.epoch != job.epoch {
		return ErrPlanReplaced
	}

	previous := plan.CountTasks(s.documentLocked())
	state := s.opts.Policy.Apply(reconcile.State{
		Response: *s.response,
		Selected: s.selected,
		Week:     s.week,
	}, job.snapshot, *resp)

	s.response = &state.Response
	s.selected = state.Selected
	s.week = state.Week

	s.log = append(s.log, models.RebalanceLog{
		ID:                s.opts.NewID(),
		Timestamp:         s.opts.Clock().UTC(),
		Reason:            resp.Rationale,
		PreviousTaskCount: previous,
		NewTaskCount:      plan.CountTasks(s.documentLocked()),
		Policy:            s.opts.Policy.Name(),
		Trigger:           job.trigger,
	})
	if n := len(s.log); n > MaxLogEntries {
		s.log = append([]models.RebalanceLog(nil), s.log[n-MaxLogEntries:]...)
	}

	s.record("plan.rebalance", job.trigger, "success", "", resp.Rationale)
	s.persistLocked(ctx)
	return nil
}
