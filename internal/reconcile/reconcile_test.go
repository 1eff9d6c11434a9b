package reconcile

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/plan"
)

func task(id string, status models.TaskStatus) models.Task {
	return models.Task{TaskID: id, Title: "Task " + id, Type: models.TaskTypeReview, EstMinutes: 30, Status: status}
}

func snapshotDoc() models.PlanDocument {
	return models.PlanDocument{
		Weeks: []models.Week{
			{WeekStart: "2025-01-06", Goals: []string{"Foundations"}, Sessions: []models.Session{
				{Date: "2025-01-06", TimeBlock: "evening", Tasks: []models.Task{
					task("c1", models.TaskStatusCompleted),
					task("p1", models.TaskStatusPlanned),
				}},
				{Date: "2025-01-08", TimeBlock: "evening", Tasks: []models.Task{
					task("c2", models.TaskStatusCompleted),
					task("m1", models.TaskStatusMissed),
				}},
			}},
			{WeekStart: "2025-01-13", Sessions: []models.Session{
				{Date: "2025-01-13", TimeBlock: "morning", Tasks: []models.Task{
					task("p2", models.TaskStatusPlanned),
				}},
			}},
		},
	}
}

func resultResponse(tasks ...models.Task) models.PlanResponse {
	return models.PlanResponse{
		Rationale: "moved missed work forward",
		Options: []models.PlanOption{{
			Name: "default",
			Plan: models.PlanDocument{Weeks: []models.Week{
				{WeekStart: "2025-01-13", Sessions: []models.Session{
					{Date: "2025-01-13", TimeBlock: "morning", Tasks: tasks},
				}},
			}},
		}},
	}
}

func currentState(doc models.PlanDocument) State {
	return State{Response: models.PlanResponse{Options: []models.PlanOption{{Name: "default", Plan: doc}}}}
}

func TestByName(t *testing.T) {
	for _, name := range []string{PolicyReplace, PolicySplice, PolicyEnvelope} {
		p, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%s) failed: %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Expected %s, got %s", name, p.Name())
		}
	}
	if p, _ := ByName(""); p.Name() != PolicySplice {
		t.Error("empty name should default to splice")
	}
	if _, err := ByName("merge"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("Expected ErrUnknownPolicy, got %v", err)
	}
}

func TestSpliceOutbound_StripsCompleted(t *testing.T) {
	snap := snapshotDoc()
	out := NewSplice(nil).Outbound(snap)

	for _, e := range plan.Tasks(out) {
		if e.Task.Status == models.TaskStatusCompleted {
			t.Errorf("completed task %s was sent", e.Task.TaskID)
		}
	}
	if plan.CountTasks(out) != 3 {
		t.Errorf("Expected 3 outstanding tasks, got %d", plan.CountTasks(out))
	}
	if plan.CountTasks(snap) != 5 {
		t.Error("Outbound mutated the snapshot")
	}
}

func TestSpliceApply_PreservesCompletedHistory(t *testing.T) {
	snap := snapshotDoc()
	returned := []models.Task{
		task("m1", ""),
		task("p1", models.TaskStatusRescheduled),
		task("p2", ""),
	}

	next := NewSplice(nil).Apply(currentState(snap), snap, resultResponse(returned...))
	doc := next.Document()

	if got := plan.CountTasks(doc); got != 2+len(returned) {
		t.Fatalf("Expected %d tasks, got %d", 2+len(returned), got)
	}

	for _, id := range []string{"c1", "c2"} {
		got, _, ok := plan.FindTask(doc, id)
		if !ok {
			t.Fatalf("completed task %s lost", id)
		}
		want, _, _ := plan.FindTask(snap, id)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("completed task %s changed: %+v", id, got)
		}
	}

	for _, id := range []string{"m1", "p2"} {
		got, _, _ := plan.FindTask(doc, id)
		if got.Status != models.TaskStatusPlanned {
			t.Errorf("Expected %s to default to planned, got %q", id, got.Status)
		}
	}
	if got, _, _ := plan.FindTask(doc, "p1"); got.Status != models.TaskStatusRescheduled {
		t.Errorf("Expected p1 to keep its status, got %s", got.Status)
	}
	if next.Response.Rationale != "moved missed work forward" {
		t.Error("envelope should come from the result")
	}
}

func TestSpliceApply_RestoresContainersInDateOrder(t *testing.T) {
	snap := snapshotDoc()
	next := NewSplice(nil).Apply(currentState(snap), snap, resultResponse(task("p2", "")))
	doc := next.Document()

	if len(doc.Weeks) != 2 {
		t.Fatalf("Expected 2 weeks, got %d", len(doc.Weeks))
	}
	if doc.Weeks[0].WeekStart != "2025-01-06" {
		t.Errorf("Expected recreated week first, got %s", doc.Weeks[0].WeekStart)
	}
	if !reflect.DeepEqual(doc.Weeks[0].Goals, []string{"Foundations"}) {
		t.Errorf("Expected goals copied from snapshot, got %v", doc.Weeks[0].Goals)
	}
	sessions := doc.Weeks[0].Sessions
	if len(sessions) != 2 || sessions[0].Date != "2025-01-06" || sessions[1].Date != "2025-01-08" {
		t.Fatalf("unexpected recreated sessions: %+v", sessions)
	}
	if sessions[0].Tasks[0].TaskID != "c1" || sessions[1].Tasks[0].TaskID != "c2" {
		t.Error("completed tasks not restored to their sessions")
	}
}

func TestSpliceApply_PrependsIntoExistingSession(t *testing.T) {
	snap := models.PlanDocument{Weeks: []models.Week{{WeekStart: "2025-01-13", Sessions: []models.Session{
		{Date: "2025-01-13", TimeBlock: "morning", Tasks: []models.Task{task("done", models.TaskStatusCompleted)}},
	}}}}
	next := NewSplice(nil).Apply(currentState(snap), snap, resultResponse(task("a", ""), task("b", "")))

	tasks := next.Document().Weeks[0].Sessions[0].Tasks
	var ids []string
	for _, tk := range tasks {
		ids = append(ids, tk.TaskID)
	}
	if !reflect.DeepEqual(ids, []string{"done", "a", "b"}) {
		t.Errorf("Expected [done a b], got %v", ids)
	}
}

func TestSpliceApply_RekeysCollidingIDs(t *testing.T) {
	snap := snapshotDoc()
	n := 0
	p := NewSplice(func() string { n++; return fmt.Sprintf("rekeyed-%d", n) })

	next := p.Apply(currentState(snap), snap, resultResponse(task("c1", "")))
	doc := next.Document()

	if plan.CountTasks(doc) != 3 {
		t.Fatalf("Expected 3 tasks, got %d", plan.CountTasks(doc))
	}
	if _, _, ok := plan.FindTask(doc, "rekeyed-1"); !ok {
		t.Error("colliding task was not re-keyed")
	}
	if len(plan.BuildIndex(doc)) != 3 {
		t.Error("task identifiers are not unique")
	}
}

func TestSpliceApply_AppliesToEveryOptionAndClamps(t *testing.T) {
	snap := snapshotDoc()
	current := currentState(snap)
	current.Selected = 3
	current.Week = 7

	result := resultResponse(task("x", ""))
	result.Options = append(result.Options, models.PlanOption{Name: "weekend-heavy", Plan: models.PlanDocument{}})

	next := NewSplice(nil).Apply(current, snap, result)
	if next.Selected != 1 {
		t.Errorf("Expected selected clamped to 1, got %d", next.Selected)
	}
	if next.Week != 0 {
		t.Errorf("Expected week clamped to 0, got %d", next.Week)
	}
	for _, opt := range next.Response.Options {
		if _, _, ok := plan.FindTask(opt.Plan, "c1"); !ok {
			t.Errorf("option %s lost completed history", opt.Name)
		}
	}
}

func TestReplaceApply(t *testing.T) {
	snap := snapshotDoc()
	current := currentState(snap)
	current.Response.Assumptions = []string{"kept"}
	current.Week = 1

	next := Replace{}.Apply(current, snap, resultResponse(task("only", "")))
	doc := next.Document()

	if plan.CountTasks(doc) != 1 {
		t.Errorf("Expected completed history to be discarded, got %d tasks", plan.CountTasks(doc))
	}
	if !reflect.DeepEqual(next.Response.Assumptions, []string{"kept"}) {
		t.Error("replace should keep the envelope")
	}
	if next.Week != 0 {
		t.Errorf("Expected week clamped to 0, got %d", next.Week)
	}
	if plan.CountTasks(current.Document()) != 5 {
		t.Error("Replace mutated the current state")
	}
}

func TestEnvelopeApply_ResetsPositions(t *testing.T) {
	snap := snapshotDoc()
	current := currentState(snap)
	current.Week = 1

	result := resultResponse(task("only", ""))
	result.Assumptions = []string{"fresh"}
	next := Envelope{}.Apply(current, snap, result)

	if next.Selected != 0 || next.Week != 0 {
		t.Errorf("Expected positions reset, got %d/%d", next.Selected, next.Week)
	}
	if !reflect.DeepEqual(next.Response, result) {
		t.Error("Expected response replaced wholesale")
	}
}
