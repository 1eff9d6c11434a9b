// Package planstate owns the current study plan and is its single writer.
//
// Every method takes the store mutex for its critical section only. Generator
// round-trips run without the lock; the initializing and rebalancing flags
// gate re-entry instead.
package planstate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fentz26/studyplan/internal/generator"
	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/plan"
	"github.com/fentz26/studyplan/internal/reconcile"
	"github.com/google/uuid"
)

// MaxLogEntries bounds the rebalance log.
const MaxLogEntries = 50

// Rebalance triggers recorded in the log.
const (
	TriggerManual = "manual"
	TriggerMissed = "missed"
)

// Options configures a Store. Zero values are usable defaults.
type Options struct {
	Policy   reconcile.Policy
	Mirror   Mirror
	Recorder Recorder
	// AutoRebalance starts a rebalance whenever a task is marked missed.
	AutoRebalance bool
	// Timeout bounds each generator call; zero means no bound.
	Timeout time.Duration
	// BaseContext is used for background rebalances. It defaults to
	// context.Background().
	BaseContext context.Context
	Clock       func() time.Time
	NewID       func() string
}

// Store holds the plan response, selection and constraints.
type Store struct {
	mu   sync.Mutex
	gen  generator.Generator
	opts Options
	wg   sync.WaitGroup

	response     *models.PlanResponse
	constraints  *models.PlanConstraints
	selected     int
	week         int
	initializing bool
	rebalancing  bool
	log          []models.RebalanceLog
	// epoch changes whenever the plan is replaced or reset, so a rebalance
	// result computed against an older plan can be discarded.
	epoch int
}

// Snapshot is a deep copy of the store state.
type Snapshot struct {
	Response        *models.PlanResponse    `json:"response"`
	Constraints     *models.PlanConstraints `json:"constraints"`
	SelectedVariant int                     `json:"selected_variant"`
	SelectedWeek    int                     `json:"selected_week"`
	Initializing    bool                    `json:"initializing"`
	Rebalancing     bool                    `json:"rebalancing"`
	Policy          string                  `json:"policy"`
	Summary         plan.Summary            `json:"summary"`
	CurrentWeek     *models.Week            `json:"current_week"`
}

// HasPlan reports whether the snapshot holds a plan.
func (s Snapshot) HasPlan() bool {
	return s.Response != nil && len(s.Response.Options) > 0
}

// Document returns the selected option's document.
func (s Snapshot) Document() models.PlanDocument {
	if !s.HasPlan() || s.SelectedVariant >= len(s.Response.Options) {
		return models.PlanDocument{}
	}
	return s.Response.Options[s.SelectedVariant].Plan
}

// New creates a store backed by gen.
func New(gen generator.Generator, opts Options) *Store {
	if opts.Policy == nil {
		opts.Policy = reconcile.NewSplice(nil)
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Store{gen: gen, opts: opts}
}

// Policy returns the configured reconcile policy name.
func (s *Store) Policy() string {
	return s.opts.Policy.Name()
}

// Load restores state from the mirror. It reports false, leaving the store
// empty, when any required record is missing.
func (s *Store) Load(ctx context.Context) (bool, error) {
	if s.opts.Mirror == nil {
		return false, nil
	}
	records, err := s.opts.Mirror.Read(ctx, Keys...)
	if err != nil {
		return false, err
	}
	p, ok, err := decodeRecords(records)
	if err != nil || !ok {
		return false, err
	}
	if len(p.response.Options) == 0 {
		return false, nil
	}
	generator.Normalize(&p.response)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = &p.response
	s.constraints = &p.constraints
	s.selected = plan.ClampOption(p.response, p.selected)
	s.week = 0
	s.log = p.log
	s.epoch++
	return true, nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		SelectedVariant: s.selected,
		SelectedWeek:    s.week,
		Initializing:    s.initializing,
		Rebalancing:     s.rebalancing,
		Policy:          s.opts.Policy.Name(),
	}
	if s.constraints != nil {
		c := *s.constraints
		snap.Constraints = &c
	}
	if s.response != nil {
		resp := plan.CloneResponse(*s.response)
		snap.Response = &resp
		doc := snap.Document()
		snap.Summary = plan.Summarize(doc)
		if s.week < len(doc.Weeks) {
			week := doc.Weeks[s.week]
			snap.CurrentWeek = &week
		}
	}
	return snap
}

// Logs returns the rebalance log, newest last.
func (s *Store) Logs() []models.RebalanceLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RebalanceLog, len(s.log))
	copy(out, s.log)
	return out
}

// Wait blocks until background rebalances have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Reset discards the in-memory and persisted plan.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response = nil
	s.constraints = nil
	s.selected = 0
	s.week = 0
	s.log = nil
	s.epoch++
	s.record("plan.reset", nil, "success", "", "")
	if s.opts.Mirror == nil {
		return nil
	}
	return s.opts.Mirror.Delete(ctx, Keys...)
}

// SelectVariant switches the current option and resets the week.
func (s *Store) SelectVariant(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.response == nil {
		return ErrNoPlan
	}
	if index < 0 || index >= len(s.response.Options) {
		return ErrInvalidVariant
	}
	s.selected = index
	s.week = 0
	s.record("plan.variant", map[string]int{"index": index}, "success", "", s.response.Options[index].Name)
	s.persistLocked(ctx)
	return nil
}

// SelectWeek moves the week cursor, clamped to the current option, and
// returns the index actually selected.
func (s *Store) SelectWeek(ctx context.Context, index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.week = plan.ClampWeek(s.documentLocked(), index)
	return s.week
}

func (s *Store) documentLocked() models.PlanDocument {
	if s.response == nil || s.selected >= len(s.response.Options) {
		return models.PlanDocument{}
	}
	return s.response.Options[s.selected].Plan
}

// setDocumentLocked stores doc as the selected option's plan. The options
// slice is copied so earlier snapshots are unaffected.
func (s *Store) setDocumentLocked(doc models.PlanDocument) {
	resp := *s.response
	resp.Options = append([]models.PlanOption(nil), resp.Options...)
	resp.Options[s.selected].Plan = doc
	s.response = &resp
	s.week = plan.ClampWeek(doc, s.week)
}

// persistLocked writes the mirror. Mirror failures are logged and do not
// roll back the in-memory state. The write outlives a cancelled request.
func (s *Store) persistLocked(ctx context.Context) {
	if s.opts.Mirror == nil || s.response == nil || s.constraints == nil {
		return
	}
	records, err := encodeRecords(persisted{
		response:    *s.response,
		selected:    s.selected,
		constraints: *s.constraints,
		log:         s.log,
	})
	if err == nil {
		err = s.opts.Mirror.Write(context.WithoutCancel(ctx), records)
	}
	if err != nil {
		log.Printf("Warning: failed to persist plan: %v", err)
	}
}

func (s *Store) record(action string, inputs interface{}, outcome, taskID, details string) {
	if s.opts.Recorder == nil {
		return
	}
	if _, err := s.opts.Recorder.Record(action, inputs, outcome, taskID, details); err != nil {
		log.Printf("Warning: failed to write PDR for %s: %v", action, err)
	}
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}
