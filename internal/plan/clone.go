package plan

import "github.com/fentz26/studyplan/internal/models"

// Clone returns a deep copy of doc that shares no slices with it.
func Clone(doc models.PlanDocument) models.PlanDocument {
	out := doc
	out.Assumptions = cloneStrings(doc.Assumptions)
	out.NextActions = cloneStrings(doc.NextActions)
	out.Health.Notes = cloneStrings(doc.Health.Notes)
	if doc.Weeks == nil {
		return out
	}
	out.Weeks = make([]models.Week, len(doc.Weeks))
	for w, week := range doc.Weeks {
		week.Goals = cloneStrings(week.Goals)
		if week.Sessions != nil {
			sessions := make([]models.Session, len(week.Sessions))
			for s, session := range week.Sessions {
				if session.Tasks != nil {
					tasks := make([]models.Task, len(session.Tasks))
					for p, task := range session.Tasks {
						tasks[p] = CloneTask(task)
					}
					session.Tasks = tasks
				}
				sessions[s] = session
			}
			week.Sessions = sessions
		}
		out.Weeks[w] = week
	}
	return out
}

// CloneTask returns a deep copy of a task.
func CloneTask(task models.Task) models.Task {
	task.DependsOn = cloneStrings(task.DependsOn)
	if task.Deadline != nil {
		d := *task.Deadline
		task.Deadline = &d
	}
	return task
}

// CloneResponse returns a deep copy of a response envelope.
func CloneResponse(resp models.PlanResponse) models.PlanResponse {
	out := resp
	out.Assumptions = cloneStrings(resp.Assumptions)
	out.NextActions = cloneStrings(resp.NextActions)
	out.Health.Notes = cloneStrings(resp.Health.Notes)
	if resp.Options != nil {
		out.Options = make([]models.PlanOption, len(resp.Options))
		for i, opt := range resp.Options {
			opt.Plan = Clone(opt.Plan)
			out.Options[i] = opt
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
