package planstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fentz26/studyplan/internal/generator"
	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/plan"
	"github.com/fentz26/studyplan/internal/reconcile"
)

var constraints = models.PlanConstraints{
	Syllabus:     "Limits\nDerivatives\nIntegrals",
	HoursPerWeek: 6,
	StartDate:    "2025-01-06",
	DeadlineDate: "2025-01-20",
}

// fakeGenerator wraps the stub and records rebalance calls. When block is
// set, Rebalance waits for a value on it.
type fakeGenerator struct {
	stub  *generator.Stub
	block chan struct{}
	err   error

	mu         sync.Mutex
	rebalances []models.PlanDocument
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{stub: generator.NewStub()}
}

func (f *fakeGenerator) Generate(ctx context.Context, c models.PlanConstraints) (*models.PlanResponse, error) {
	if f.err != nil {
		return nil, &generator.GenerationError{Op: generator.OpGenerate, Err: f.err}
	}
	return f.stub.Generate(ctx, c)
}

func (f *fakeGenerator) Rebalance(ctx context.Context, doc models.PlanDocument, c models.PlanConstraints) (*models.PlanResponse, error) {
	f.mu.Lock()
	f.rebalances = append(f.rebalances, doc)
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, &generator.GenerationError{Op: generator.OpRebalance, Err: f.err}
	}
	return f.stub.Rebalance(ctx, doc, c)
}

func (f *fakeGenerator) calls() []models.PlanDocument {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PlanDocument(nil), f.rebalances...)
}

// memMirror is an in-memory Mirror.
type memMirror struct {
	mu      sync.Mutex
	records map[string]string
	writes  int
}

func newMemMirror() *memMirror {
	return &memMirror{records: make(map[string]string)}
}

func (m *memMirror) Read(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := m.records[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memMirror) Write(_ context.Context, records map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range records {
		m.records[k] = v
	}
	m.writes++
	return nil
}

func (m *memMirror) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.records, k)
	}
	return nil
}

type memRecorder struct {
	mu      sync.Mutex
	actions []string
}

func (r *memRecorder) Record(action string, _ interface{}, outcome, _, _ string) (*models.PDREntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action+":"+outcome)
	return &models.PDREntry{Action: action, Outcome: outcome}, nil
}

func newTestStore(t *testing.T, gen generator.Generator, opts Options) *Store {
	t.Helper()
	n := 0
	opts.NewID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	opts.Clock = func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC) }
	return New(gen, opts)
}

func generated(t *testing.T, s *Store) Snapshot {
	t.Helper()
	snap, err := s.Generate(context.Background(), constraints)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return snap
}

func TestGenerate_ReplacesState(t *testing.T) {
	s := newTestStore(t, newFakeGenerator(), Options{})
	snap := generated(t, s)

	if !snap.HasPlan() {
		t.Fatal("Expected a plan")
	}
	if snap.SelectedVariant != 0 || snap.SelectedWeek != 0 {
		t.Errorf("Expected selection reset, got %d/%d", snap.SelectedVariant, snap.SelectedWeek)
	}
	if snap.Constraints == nil || snap.Constraints.Syllabus != constraints.Syllabus {
		t.Error("Expected constraints to be stored")
	}
	if snap.Initializing {
		t.Error("Expected initializing to be cleared")
	}
	if snap.Summary.Total == 0 {
		t.Error("Expected summary to count tasks")
	}
}

func TestGenerate_InvalidConstraints(t *testing.T) {
	s := newTestStore(t, newFakeGenerator(), Options{})
	_, err := s.Generate(context.Background(), models.PlanConstraints{HoursPerWeek: 5})
	if !errors.Is(err, models.ErrInvalidConstraints) {
		t.Fatalf("Expected ErrInvalidConstraints, got %v", err)
	}
}

func TestGenerate_FailureKeepsPlan(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestStore(t, gen, Options{})
	before := generated(t, s)

	gen.err = errors.New("upstream down")
	_, err := s.Generate(context.Background(), constraints)
	var genErr *generator.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected GenerationError, got %v", err)
	}

	after := s.Snapshot()
	if after.Summary.Total != before.Summary.Total || after.Initializing {
		t.Error("Expected previous plan kept and flag cleared")
	}
}

func TestSetStatus_SnapshotsAreIsolated(t *testing.T) {
	s := newTestStore(t, newFakeGenerator(), Options{})
	before := generated(t, s)

	applied, err := s.SetStatus(context.Background(), "stub-1", models.TaskStatusCompleted)
	if err != nil || !applied {
		t.Fatalf("SetStatus = %v, %v", applied, err)
	}

	task, _, _ := plan.FindTask(before.Document(), "stub-1")
	if task.Status != models.TaskStatusPlanned {
		t.Error("earlier snapshot was mutated")
	}
	task, _, _ = plan.FindTask(s.Snapshot().Document(), "stub-1")
	if task.Status != models.TaskStatusCompleted {
		t.Errorf("Expected completed, got %s", task.Status)
	}
}

func TestSetStatus_UnknownAndInvalid(t *testing.T) {
	s := newTestStore(t, newFakeGenerator(), Options{})

	applied, err := s.SetStatus(context.Background(), "stub-1", models.TaskStatusCompleted)
	if err != nil || applied {
		t.Errorf("Expected no-op without a plan, got %v, %v", applied, err)
	}

	generated(t, s)
	applied, _ = s.SetStatus(context.Background(), "nope", models.TaskStatusCompleted)
	if applied {
		t.Error("Expected unknown id to be a no-op")
	}
	if _, err := s.SetStatus(context.Background(), "stub-1", "finished"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus, got %v", err)
	}
}

func TestSetStatusMissed_TriggersOneRebalance(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestStore(t, gen, Options{AutoRebalance: true})
	generated(t, s)

	if _, err := s.SetStatus(context.Background(), "stub-1", models.TaskStatusMissed); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	s.Wait()

	calls := gen.calls()
	if len(calls) != 1 {
		t.Fatalf("Expected exactly 1 rebalance, got %d", len(calls))
	}
	task, _, ok := plan.FindTask(calls[0], "stub-1")
	if !ok || task.Status != models.TaskStatusMissed {
		t.Error("Expected rebalance to see the post-mutation document")
	}

	snap := s.Snapshot()
	if snap.Rebalancing {
		t.Error("Expected rebalancing flag cleared")
	}
	task, _, _ = plan.FindTask(snap.Document(), "stub-1")
	if task.Status != models.TaskStatusRescheduled {
		t.Errorf("Expected rescheduled after rebalance, got %s", task.Status)
	}
	logs := s.Logs()
	if len(logs) != 1 || logs[0].Trigger != TriggerMissed || logs[0].Policy != reconcile.PolicySplice {
		t.Errorf("unexpected log: %+v", logs)
	}
}

func TestSetStatusMissed_NoAutoRebalance(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestStore(t, gen, Options{})
	generated(t, s)

	s.SetStatus(context.Background(), "stub-1", models.TaskStatusMissed)
	s.Wait()
	if n := len(gen.calls()); n != 0 {
		t.Errorf("Expected no rebalance, got %d", n)
	}
}

func TestRebalance_InFlightIsRejected(t *testing.T) {
	gen := newFakeGenerator()
	gen.block = make(chan struct{})
	s := newTestStore(t, gen, Options{AutoRebalance: true})
	generated(t, s)

	s.SetStatus(context.Background(), "stub-1", models.TaskStatusMissed)
	if !s.Snapshot().Rebalancing {
		t.Fatal("Expected rebalancing flag set synchronously")
	}

	before := s.Snapshot()
	if _, err := s.Rebalance(context.Background()); !errors.Is(err, ErrRebalanceInFlight) {
		t.Fatalf("Expected ErrRebalanceInFlight, got %v", err)
	}
	// A second missed task while in flight does not start another call.
	s.SetStatus(context.Background(), "stub-2", models.TaskStatusMissed)

	close(gen.block)
	s.Wait()

	if n := len(gen.calls()); n != 1 {
		t.Errorf("Expected 1 generator call, got %d", n)
	}
	if before.SelectedVariant != s.Snapshot().SelectedVariant {
		t.Error("rejected rebalance changed selection")
	}
}

func TestRebalance_FailureKeepsPlan(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestStore(t, gen, Options{})
	before := generated(t, s)

	gen.err = errors.New("timeout")
	_, err := s.Rebalance(context.Background())
	var genErr *generator.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Expected GenerationError, got %v", err)
	}

	after := s.Snapshot()
	if after.Rebalancing {
		t.Error("Expected rebalancing flag reset")
	}
	if plan.CountTasks(after.Document()) != plan.CountTasks(before.Document()) {
		t.Error("failed rebalance changed the plan")
	}
	if len(s.Logs()) != 0 {
		t.Error("failed rebalance was logged")
	}
}

func TestRebalance_NoPlan(t *testing.T) {
	s := newTestStore(t, newFakeGenerator(), Options{})
	if _, err := s.Rebalance(context.Background()); !errors.Is(err, ErrNoPlan) {
		t.Errorf("Expected ErrNoPlan, got %v", err)
	}
}

func TestRebalance_SplicePreservesCompleted(t *testing.T) {
	gen := newFakeGenerator()
	s := newTestStore(t, gen, Options{})
	generated(t, s)
	s.SetStatus(context.Background(), "stub-1", models.TaskStatusCompleted)

	snap, err := s.Rebalance(context.Background())
	if err != nil {
		t.Fatalf("Rebalance failed: %v", err)
	}

	if _, _, ok := plan.FindTask(gen.calls()[0], "stub-1"); ok {
		t.Error("completed task was sent to the generator")
	}
	task, _, ok := plan.FindTask(snap.Document(), "stub-1")
	if !ok || task.Status != models.TaskStatusCompleted {
		t.Error("completed task was not preserved")
	}
}

func TestRebalance_ResetDuringFlight(t *testing.T) {
	gen := newFakeGenerator()
	gen.block = make(chan struct{})
	s := newTestStore(t, gen, Options{})
	generated(t, s)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Rebalance(context.Background())
		errc <- err
	}()
	for !s.Snapshot().Rebalancing {
		time.Sleep(time.Millisecond)
	}
	s.Reset(context.Background())
	close(gen.block)

	if err := <-errc; !errors.Is(err, ErrNoPlan) {
		t.Errorf("Expected ErrNoPlan, got %v", err)
	}
	if s.Snapshot().HasPlan() {
		t.Error("Expected reset to win")
	}
}

// startBlockedRebalance runs Rebalance in the background and returns once
// the store reports it in flight.
func startBlockedRebalance(t *testing.T, s *Store) <-chan error {
	t.Helper()
	errc := make(chan error, 1)
	go func() {
		_, err := s.Rebalance(context.Background())
		errc <- err
	}()
	for !s.Snapshot().Rebalancing {
		time.Sleep(time.Millisecond)
	}
	return errc
}

func TestRebalance_LocalEditDuringFlight(t *testing.T) {
	gen := newFakeGenerator()
	gen.block = make(chan struct{})
	s := newTestStore(t, gen, Options{})
	generated(t, s)
	ctx := context.Background()
	original, _, _ := plan.FindTask(s.Snapshot().Document(), "stub-2")

	errc := startBlockedRebalance(t, s)

	edited := original
	edited.Title = "Edited while rebalancing"
	if !s.UpdateTask(ctx, edited) {
		t.Fatal("UpdateTask failed during rebalance")
	}
	added, ok := s.AddTask(ctx, 0, 0, models.Task{Title: "Office hours"})
	if !ok {
		t.Fatal("AddTask failed during rebalance")
	}
	if got, _, _ := plan.FindTask(s.Snapshot().Document(), "stub-2"); got.Title != edited.Title {
		t.Fatalf("Expected local edit visible while in flight, got %q", got.Title)
	}

	close(gen.block)
	if err := <-errc; err != nil {
		t.Fatalf("Rebalance failed: %v", err)
	}

	// The result lands last and wins over the edits made meanwhile.
	doc := s.Snapshot().Document()
	if got, _, _ := plan.FindTask(doc, "stub-2"); got.Title != original.Title {
		t.Errorf("Expected title %q from the rebalance result, got %q", original.Title, got.Title)
	}
	if _, _, ok := plan.FindTask(doc, added.TaskID); ok {
		t.Error("Expected task added during the rebalance to be overwritten")
	}
	logs := s.Logs()
	if len(logs) != 1 || logs[0].Policy != reconcile.PolicySplice || logs[0].Trigger != TriggerManual {
		t.Errorf("unexpected log: %+v", logs)
	}
	if s.Snapshot().Rebalancing {
		t.Error("Expected rebalancing flag cleared")
	}
}

func TestRebalance_GenerateDuringFlight(t *testing.T) {
	gen := newFakeGenerator()
	gen.block = make(chan struct{})
	s := newTestStore(t, gen, Options{})
	generated(t, s)

	errc := startBlockedRebalance(t, s)

	replacement := constraints
	replacement.Syllabus = "Vectors\nMatrices"
	if _, err := s.Generate(context.Background(), replacement); err != nil {
		t.Fatalf("Generate during rebalance failed: %v", err)
	}
	close(gen.block)

	if err := <-errc; !errors.Is(err, ErrPlanReplaced) {
		t.Fatalf("Expected ErrPlanReplaced, got %v", err)
	}
	snap := s.Snapshot()
	if snap.Rebalancing {
		t.Error("Expected rebalancing flag cleared")
	}
	if snap.Constraints == nil || snap.Constraints.Syllabus != replacement.Syllabus {
		t.Error("Expected the new plan to survive")
	}
	if task, _, _ := plan.FindTask(snap.Document(), "stub-1"); task.Title != "Vectors" {
		t.Errorf("Expected task from the new plan, got %q", task.Title)
	}
	if len(s.Logs()) != 0 {
		t.Error("discarded rebalance was logged")
	}
}

func TestLogIsBounded(t *testing.T) {
	s := newTestStore(t, newFakeGenerator(), Options{})
	generated(t, s)
	for i := 0; i < MaxLogEntries+5; i++ {
		if _, err := s.Rebalance(context.Background()); err != nil {
			t.Fatalf("Rebalance %d failed: %v", i, err)
		}
	}
	logs := s.Logs()
	if len(logs) != MaxLogEntries {
		t.Fatalf("Expected %d entries, got %d", MaxLogEntries, len(logs))
	}
	if logs[len(logs)-1].ID == "id-1" {
		t.Error("Expected the oldest entries to be dropped")
	}
}

func TestSelectVariantAndWeek(t *testing.T) {
	s := newTestStore(t, newFakeGenerator(), Options{})
	generated(t, s)

	if got := s.SelectWeek(context.Background(), 99); got != 2 {
		t.Errorf("Expected week clamped to 2, got %d", got)
	}
	if err := s.SelectVariant(context.Background(), 1); err != nil {
		t.Fatalf("SelectVariant failed: %v", err)
	}
	snap := s.Snapshot()
	if snap.SelectedVariant != 1 || snap.SelectedWeek != 0 {
		t.Errorf("Expected variant 1 week 0, got %d/%d", snap.SelectedVariant, snap.SelectedWeek)
	}
	if err := s.SelectVariant(context.Background(), 5); !errors.Is(err, ErrInvalidVariant) {
		t.Errorf("Expected ErrInvalidVariant, got %v", err)
	}
	if s.Snapshot().SelectedVariant != 1 {
		t.Error("invalid variant changed selection")
	}
}

func TestAddUpdateDeleteTask(t *testing.T) {
	s := newTestStore(t, newFakeGenerator(), Options{})
	generated(t, s)
	ctx := context.Background()

	task, ok := s.AddTask(ctx, 0, 0, models.Task{Title: "Office hours", Type: models.TaskTypeAdmin, EstMinutes: 30})
	if !ok {
		t.Fatal("AddTask failed")
	}
	if task.TaskID != "manual-id-1" || task.Status != models.TaskStatusPlanned {
		t.Errorf("unexpected task: %+v", task)
	}
	if _, ok := s.AddTask(ctx, 0, 0, task); ok {
		t.Error("Expected duplicate id to be rejected")
	}
	if _, ok := s.AddTask(ctx, 9, 0, models.Task{Title: "x"}); ok {
		t.Error("Expected out-of-range week to be rejected")
	}

	task.Title = "Office hours (room 4)"
	if !s.UpdateTask(ctx, task) {
		t.Fatal("UpdateTask failed")
	}
	got, _, _ := plan.FindTask(s.Snapshot().Document(), task.TaskID)
	if got.Title != "Office hours (room 4)" {
		t.Errorf("Expected updated title, got %q", got.Title)
	}

	if !s.DeleteTask(ctx, task.TaskID) {
		t.Fatal("DeleteTask failed")
	}
	if s.DeleteTask(ctx, task.TaskID) {
		t.Error("Expected second delete to be a no-op")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	mirror := newMemMirror()
	rec := &memRecorder{}
	s := newTestStore(t, newFakeGenerator(), Options{Mirror: mirror, Recorder: rec})
	generated(t, s)
	s.SelectVariant(context.Background(), 1)
	s.SetStatus(context.Background(), "stub-1", models.TaskStatusCompleted)
	if _, err := s.Rebalance(context.Background()); err != nil {
		t.Fatalf("Rebalance failed: %v", err)
	}
	want := s.Snapshot()

	restored := newTestStore(t, newFakeGenerator(), Options{Mirror: mirror})
	ok, err := restored.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("Load = %v, %v", ok, err)
	}
	got := restored.Snapshot()
	if got.SelectedVariant != want.SelectedVariant {
		t.Errorf("Expected variant %d, got %d", want.SelectedVariant, got.SelectedVariant)
	}
	if got.Summary.Completed != want.Summary.Completed || got.Summary.Total != want.Summary.Total {
		t.Errorf("summary mismatch: got %+v want %+v", got.Summary, want.Summary)
	}
	if len(restored.Logs()) != 1 {
		t.Errorf("Expected rebalance log restored, got %d", len(restored.Logs()))
	}
	if len(rec.actions) == 0 {
		t.Error("Expected audit records")
	}
}

func TestLoad_MissingRecordMeansNoPlan(t *testing.T) {
	mirror := newMemMirror()
	s := newTestStore(t, newFakeGenerator(), Options{Mirror: mirror})
	generated(t, s)
	mirror.Delete(context.Background(), KeyConstraints)

	restored := newTestStore(t, newFakeGenerator(), Options{Mirror: mirror})
	ok, err := restored.Load(context.Background())
	if err != nil || ok {
		t.Errorf("Load = %v, %v; want false, nil", ok, err)
	}
	if restored.Snapshot().HasPlan() {
		t.Error("Expected no plan")
	}
}

func TestReset_ClearsMirror(t *testing.T) {
	mirror := newMemMirror()
	s := newTestStore(t, newFakeGenerator(), Options{Mirror: mirror})
	generated(t, s)

	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	records, _ := mirror.Read(context.Background(), Keys...)
	if len(records) != 0 {
		t.Errorf("Expected empty mirror, got %v", records)
	}
	if s.Snapshot().HasPlan() {
		t.Error("Expected no plan")
	}
}
