// Package reconcile decides what local plan state survives a rebalance.
//
// Three policies are available and exactly one is selected by configuration:
//
//   - replace: the current option's document is replaced by the generator's;
//     local edits the generator did not echo back are lost.
//   - splice: completed tasks are withheld from the generator and merged back
//     into every returned option, so finished work is never rewritten.
//   - envelope: the whole response envelope is replaced and position state is
//     reset.
package reconcile

import (
	"errors"
	"fmt"

	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/plan"
	"github.com/google/uuid"
)

// Policy names accepted by ByName.
const (
	PolicyReplace  = "replace"
	PolicySplice   = "splice"
	PolicyEnvelope = "envelope"
)

// ErrUnknownPolicy is returned by ByName for an unrecognised policy name.
var ErrUnknownPolicy = errors.New("unknown reconcile policy")

// State is the part of the store state a policy may rewrite.
type State struct {
	Response models.PlanResponse
	Selected int
	Week     int
}

// Document returns the currently selected option's document.
func (s State) Document() models.PlanDocument {
	if s.Selected < 0 || s.Selected >= len(s.Response.Options) {
		return models.PlanDocument{}
	}
	return s.Response.Options[s.Selected].Plan
}

// Policy reconciles a generator result with local state.
type Policy interface {
	// Name returns the configuration name of the policy.
	Name() string
	// Outbound returns the document that is sent to the generator.
	Outbound(doc models.PlanDocument) models.PlanDocument
	// Apply produces the new state. snapshot is the document captured when
	// the rebalance started; current is the state at the time the result
	// arrived.
	Apply(current State, snapshot models.PlanDocument, result models.PlanResponse) State
}

// ByName returns the policy registered under name.
func ByName(name string) (Policy, error) {
	switch name {
	case PolicyReplace:
		return Replace{}, nil
	case PolicySplice, "":
		return NewSplice(nil), nil
	case PolicyEnvelope:
		return Envelope{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// Replace swaps the current option's document for the generator's.
type Replace struct{}

func (Replace) Name() string { return PolicyReplace }

func (Replace) Outbound(doc models.PlanDocument) models.PlanDocument { return doc }

func (Replace) Apply(current State, _ models.PlanDocument, result models.PlanResponse) State {
	if len(result.Options) == 0 || len(current.Response.Options) == 0 {
		return current
	}
	src := result.Options[plan.ClampOption(result, current.Selected)]

	next := current
	next.Response.Options = make([]models.PlanOption, len(current.Response.Options))
	copy(next.Response.Options, current.Response.Options)
	next.Selected = plan.ClampOption(current.Response, current.Selected)
	next.Response.Options[next.Selected].Plan = src.Plan
	next.Week = plan.ClampWeek(src.Plan, current.Week)
	return next
}

// Envelope replaces the whole response and resets position state.
type Envelope struct{}

func (Envelope) Name() string { return PolicyEnvelope }

func (Envelope) Outbound(doc models.PlanDocument) models.PlanDocument { return doc }

func (Envelope) Apply(_ State, _ models.PlanDocument, result models.PlanResponse) State {
	return State{Response: result}
}

// Splice preserves completed history across rebalances.
type Splice struct {
	newID func() string
}

// NewSplice creates a splice policy. newID generates identifiers for returned
// tasks that collide with preserved ones; nil uses random UUIDs.
func NewSplice(newID func() string) *Splice {
	if newID == nil {
		newID = func() string { return "task-" + uuid.New().String() }
	}
	return &Splice{newID: newID}
}

func (*Splice) Name() string { return PolicySplice }

// Outbound strips completed tasks; only outstanding work is sent for
// rescheduling.
func (*Splice) Outbound(doc models.PlanDocument) models.PlanDocument {
	out := plan.Clone(doc)
	for w := range out.Weeks {
		for s := range out.Weeks[w].Sessions {
			session := &out.Weeks[w].Sessions[s]
			kept := session.Tasks[:0]
			for _, task := range session.Tasks {
				if task.Status != models.TaskStatusCompleted {
					kept = append(kept, task)
				}
			}
			session.Tasks = kept
		}
	}
	return out
}

func (p *Splice) Apply(current State, snapshot models.PlanDocument, result models.PlanResponse) State {
	history := completedTasks(snapshot)

	next := State{Response: plan.CloneResponse(result)}
	for i := range next.Response.Options {
		next.Response.Options[i].Plan = p.merge(history, next.Response.Options[i].Plan)
	}
	next.Selected = plan.ClampOption(next.Response, current.Selected)
	next.Week = plan.ClampWeek(next.Document(), current.Week)
	return next
}

// placed is a completed task together with the containers it was found in.
type placed struct {
	week    models.Week
	session models.Session
	task    models.Task
}

func completedTasks(doc models.PlanDocument) []placed {
	var out []placed
	for _, week := range doc.Weeks {
		for _, session := range week.Sessions {
			for _, task := range session.Tasks {
				if task.Status == models.TaskStatusCompleted {
					out = append(out, placed{week: week, session: session, task: plan.CloneTask(task)})
				}
			}
		}
	}
	return out
}

// merge places history into doc, which must be private to the caller.
// Completed tasks go back to the session with the same date and time block in
// the week with the same start date; missing containers are recreated from the
// snapshot and kept in date order.
func (p *Splice) merge(history []placed, doc models.PlanDocument) models.PlanDocument {
	kept := make(map[string]bool, len(history))
	for _, h := range history {
		kept[h.task.TaskID] = true
	}

	for w := range doc.Weeks {
		for s := range doc.Weeks[w].Sessions {
			tasks := doc.Weeks[w].Sessions[s].Tasks
			for i := range tasks {
				if tasks[i].Status == "" {
					tasks[i].Status = models.TaskStatusPlanned
				}
				if kept[tasks[i].TaskID] {
					tasks[i].TaskID = p.newID()
				}
			}
		}
	}

	type sessionKey struct{ weekStart, date, block string }
	prepend := make(map[sessionKey][]models.Task)
	var order []placed
	for _, h := range history {
		key := sessionKey{h.week.WeekStart, h.session.Date, h.session.TimeBlock}
		if _, ok := prepend[key]; !ok {
			order = append(order, h)
		}
		prepend[key] = append(prepend[key], h.task)
	}

	for _, h := range order {
		key := sessionKey{h.week.WeekStart, h.session.Date, h.session.TimeBlock}
		w := findOrInsertWeek(&doc, h.week)
		s := findOrInsertSession(&doc.Weeks[w], h.session)
		session := &doc.Weeks[w].Sessions[s]
		session.Tasks = append(append([]models.Task{}, prepend[key]...), session.Tasks...)
	}
	return doc
}

func findOrInsertWeek(doc *models.PlanDocument, header models.Week) int {
	at := len(doc.Weeks)
	for i, week := range doc.Weeks {
		if week.WeekStart == header.WeekStart {
			return i
		}
		if at == len(doc.Weeks) && week.WeekStart > header.WeekStart {
			at = i
		}
	}
	week := models.Week{WeekStart: header.WeekStart, Goals: append([]string{}, header.Goals...)}
	doc.Weeks = append(doc.Weeks, models.Week{})
	copy(doc.Weeks[at+1:], doc.Weeks[at:])
	doc.Weeks[at] = week
	return at
}

func findOrInsertSession(week *models.Week, header models.Session) int {
	at := len(week.Sessions)
	for i, session := range week.Sessions {
		if session.Date == header.Date && session.TimeBlock == header.TimeBlock {
			return i
		}
		if at == len(week.Sessions) && session.Date > header.Date {
			at = i
		}
	}
	session := header
	session.Tasks = nil
	week.Sessions = append(week.Sessions, models.Session{})
	copy(week.Sessions[at+1:], week.Sessions[at:])
	week.Sessions[at] = session
	return at
}
