package plan

import (
	"math"

	"github.com/fentz26/studyplan/internal/models"
)

// Summary holds dashboard statistics for a document.
type Summary struct {
	Total            int   `json:"total"`
	Completed        int   `json:"completed"`
	Missed           int   `json:"missed"`
	Progress         int   `json:"progress"`
	RemainingMinutes int   `json:"remaining_minutes"`
	WeekMinutes      []int `json:"week_minutes"`
}

// Summarize computes progress and remaining workload. Planned and rescheduled
// tasks count as remaining work.
func Summarize(doc models.PlanDocument) Summary {
	sum := Summary{WeekMinutes: make([]int, len(doc.Weeks))}
	for w, week := range doc.Weeks {
		for _, session := range week.Sessions {
			for _, task := range session.Tasks {
				sum.Total++
				sum.WeekMinutes[w] += task.EstMinutes
				switch task.Status {
				case models.TaskStatusCompleted:
					sum.Completed++
				case models.TaskStatusMissed:
					sum.Missed++
				case models.TaskStatusPlanned, models.TaskStatusRescheduled:
					sum.RemainingMinutes += task.EstMinutes
				}
			}
		}
	}
	if sum.Total > 0 {
		sum.Progress = int(math.Round(float64(sum.Completed) * 100 / float64(sum.Total)))
	}
	return sum
}
