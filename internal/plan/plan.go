// Package plan implements identifier-scoped, copy-on-write operations on a
// plan document.
//
// Every operation returns a new document value and reports whether it changed
// anything. Only the weeks, sessions and task slices on the path to the
// affected task are copied; the rest of the structure is shared with the
// input, which is never written to. Absent collections at any nesting level
// behave as empty sequences.
package plan

import "github.com/fentz26/studyplan/internal/models"

// Location addresses a task inside the nested week/session/task structure.
type Location struct {
	Week     int
	Session  int
	Position int
}

// Index maps task identifiers to their current location.
type Index map[string]Location

// BuildIndex walks the document once and records where each task lives. If an
// identifier appears more than once the first occurrence wins.
func BuildIndex(doc models.PlanDocument) Index {
	ix := make(Index)
	for w, week := range doc.Weeks {
		for s, session := range week.Sessions {
			for p, task := range session.Tasks {
				if _, seen := ix[task.TaskID]; !seen {
					ix[task.TaskID] = Location{Week: w, Session: s, Position: p}
				}
			}
		}
	}
	return ix
}

// Lookup returns the location of a task.
func (ix Index) Lookup(taskID string) (Location, bool) {
	loc, ok := ix[taskID]
	return loc, ok
}

// SetStatus replaces the status of the task with the given identifier.
func SetStatus(doc models.PlanDocument, taskID string, status models.TaskStatus) (models.PlanDocument, bool) {
	loc, ok := BuildIndex(doc).Lookup(taskID)
	if !ok {
		return doc, false
	}
	return rebuild(doc, loc, func(tasks []models.Task) []models.Task {
		tasks[loc.Position].Status = status
		return tasks
	}), true
}

// UpdateTask replaces the whole record matching task.TaskID.
func UpdateTask(doc models.PlanDocument, task models.Task) (models.PlanDocument, bool) {
	loc, ok := BuildIndex(doc).Lookup(task.TaskID)
	if !ok {
		return doc, false
	}
	return rebuild(doc, loc, func(tasks []models.Task) []models.Task {
		tasks[loc.Position] = task
		return tasks
	}), true
}

// DeleteTask removes the task from its session. The session itself is kept
// even when it becomes empty.
func DeleteTask(doc models.PlanDocument, taskID string) (models.PlanDocument, bool) {
	loc, ok := BuildIndex(doc).Lookup(taskID)
	if !ok {
		return doc, false
	}
	return rebuild(doc, loc, func(tasks []models.Task) []models.Task {
		return append(tasks[:loc.Position], tasks[loc.Position+1:]...)
	}), true
}

// AddTask appends a task to the session at the given week and session
// position. Out-of-range positions and identifiers already present in the
// document leave it unchanged.
func AddTask(doc models.PlanDocument, weekIndex, sessionIndex int, task models.Task) (models.PlanDocument, bool) {
	if weekIndex < 0 || weekIndex >= len(doc.Weeks) {
		return doc, false
	}
	if sessionIndex < 0 || sessionIndex >= len(doc.Weeks[weekIndex].Sessions) {
		return doc, false
	}
	if _, exists := BuildIndex(doc).Lookup(task.TaskID); exists {
		return doc, false
	}
	loc := Location{Week: weekIndex, Session: sessionIndex}
	return rebuild(doc, loc, func(tasks []models.Task) []models.Task {
		return append(tasks, task)
	}), true
}

// rebuild copies the path to loc's session and hands fn a private copy of that
// session's task slice.
func rebuild(doc models.PlanDocument, loc Location, fn func([]models.Task) []models.Task) models.PlanDocument {
	weeks := make([]models.Week, len(doc.Weeks))
	copy(weeks, doc.Weeks)

	week := weeks[loc.Week]
	sessions := make([]models.Session, len(week.Sessions))
	copy(sessions, week.Sessions)

	session := sessions[loc.Session]
	tasks := make([]models.Task, len(session.Tasks), len(session.Tasks)+1)
	copy(tasks, session.Tasks)
	session.Tasks = fn(tasks)

	sessions[loc.Session] = session
	week.Sessions = sessions
	weeks[loc.Week] = week
	doc.Weeks = weeks
	return doc
}

// FindTask returns the task with the given identifier and its location.
func FindTask(doc models.PlanDocument, taskID string) (models.Task, Location, bool) {
	loc, ok := BuildIndex(doc).Lookup(taskID)
	if !ok {
		return models.Task{}, Location{}, false
	}
	return doc.Weeks[loc.Week].Sessions[loc.Session].Tasks[loc.Position], loc, true
}

// Entry is a task together with its location and the session it is in.
type Entry struct {
	Task      models.Task
	Location  Location
	Date      string
	TimeBlock string
}

// Tasks flattens the document in week, session, position order.
func Tasks(doc models.PlanDocument) []Entry {
	var out []Entry
	for w, week := range doc.Weeks {
		for s, session := range week.Sessions {
			for p, task := range session.Tasks {
				out = append(out, Entry{
					Task:      task,
					Location:  Location{Week: w, Session: s, Position: p},
					Date:      session.Date,
					TimeBlock: session.TimeBlock,
				})
			}
		}
	}
	return out
}

// CountTasks returns the number of tasks in the document.
func CountTasks(doc models.PlanDocument) int {
	n := 0
	for _, week := range doc.Weeks {
		for _, session := range week.Sessions {
			n += len(session.Tasks)
		}
	}
	return n
}

// ClampWeek maps a week position onto [0, len(weeks)-1], or 0 for an empty
// document.
func ClampWeek(doc models.PlanDocument, index int) int {
	return clamp(index, len(doc.Weeks))
}

// ClampOption maps a variant position onto the options of a response.
func ClampOption(resp models.PlanResponse, index int) int {
	return clamp(index, len(resp.Options))
}

func clamp(index, n int) int {
	if n == 0 || index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}
