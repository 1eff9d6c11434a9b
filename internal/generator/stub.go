package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/plan"
)

// Stub is a deterministic Generator for tests and offline demos. Plans are
// aligned to the start date: week N starts 7*N days after it and the first
// session of every option falls on the start date itself.
type Stub struct{}

// NewStub creates a deterministic generator.
func NewStub() *Stub {
	return &Stub{}
}

// Generate builds a balanced and a weekend-heavy option from syllabus lines.
func (s *Stub) Generate(ctx context.Context, c models.PlanConstraints) (*models.PlanResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fail(OpGenerate, err)
	}
	start, err := time.Parse(models.DateLayout, c.StartDate)
	if err != nil {
		return nil, fail(OpGenerate, fmt.Errorf("start date: %w", err))
	}
	deadline, err := time.Parse(models.DateLayout, c.DeadlineDate)
	if err != nil {
		return nil, fail(OpGenerate, fmt.Errorf("deadline date: %w", err))
	}
	topics := syllabusTopics(c.Syllabus)
	if len(topics) == 0 {
		return nil, fail(OpGenerate, errors.New("syllabus has no topics"))
	}

	weeks := int(deadline.Sub(start).Hours()/24)/7 + 1
	sessionMinutes := int(c.HoursPerWeek * 60 / 2)

	resp := &models.PlanResponse{
		Options: []models.PlanOption{
			{Name: "balanced", Strategy: "balanced", Plan: stubDocument(start, deadline, weeks, []int{0, 2}, sessionMinutes, topics)},
			{Name: "weekend-heavy", Strategy: "weekend-heavy", Plan: stubDocument(start, deadline, weeks, []int{0, 5}, sessionMinutes, topics)},
		},
		Health:      models.Health{Status: models.HealthOnTrack},
		Assumptions: []string{fmt.Sprintf("%.0f hours available each week", c.HoursPerWeek)},
		NextActions: []string{"Start with " + topics[0]},
		Rationale:   "Topics are spread evenly across the available weeks.",
	}
	Normalize(resp)
	return resp, nil
}

// Rebalance moves missed tasks into the last session of the plan as
// rescheduled work and leaves everything else in place.
func (s *Stub) Rebalance(ctx context.Context, doc models.PlanDocument, c models.PlanConstraints) (*models.PlanResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fail(OpRebalance, err)
	}
	out := plan.Clone(doc)

	var moved []models.Task
	for w := range out.Weeks {
		for si := range out.Weeks[w].Sessions {
			session := &out.Weeks[w].Sessions[si]
			kept := session.Tasks[:0]
			for _, task := range session.Tasks {
				if task.Status == models.TaskStatusMissed {
					task.Status = models.TaskStatusRescheduled
					moved = append(moved, task)
					continue
				}
				kept = append(kept, task)
			}
			session.Tasks = kept
		}
	}
	// Sessions are emptied, never removed, so any moved task has a home.
	if last := lastSession(&out); last != nil {
		last.Tasks = append(last.Tasks, moved...)
	}

	out.Rationale = fmt.Sprintf("Rescheduled %d missed task(s) to the end of the plan.", len(moved))
	resp := &models.PlanResponse{
		Options:   []models.PlanOption{{Name: "rebalanced", Strategy: "balanced", Plan: out}},
		Health:    models.Health{Status: models.HealthOnTrack},
		Rationale: out.Rationale,
	}
	if len(moved) > 0 {
		resp.Health.Status = models.HealthAtRisk
	}
	Normalize(resp)
	return resp, nil
}

func stubDocument(start, deadline time.Time, weeks int, offsets []int, minutes int, topics []string) models.PlanDocument {
	doc := models.PlanDocument{HorizonWeeks: weeks}
	n := 0
	for w := 0; w < weeks; w++ {
		weekStart := start.AddDate(0, 0, 7*w)
		week := models.Week{
			WeekStart: weekStart.Format(models.DateLayout),
			Goals:     []string{topics[w%len(topics)]},
		}
		for _, off := range offsets {
			day := weekStart.AddDate(0, 0, off)
			if day.After(deadline) {
				continue
			}
			n++
			topic := topics[(n-1)%len(topics)]
			week.Sessions = append(week.Sessions, models.Session{
				Date:           day.Format(models.DateLayout),
				TimeBlock:      "evening",
				PlannedMinutes: minutes,
				Tasks: []models.Task{{
					TaskID:     fmt.Sprintf("stub-%d", n),
					Title:      topic,
					Course:     "Syllabus",
					Type:       models.TaskTypeReading,
					EstMinutes: minutes,
					Difficulty: 3,
					Priority:   3,
					Status:     models.TaskStatusPlanned,
				}},
			})
		}
		doc.Weeks = append(doc.Weeks, week)
	}
	return doc
}

func lastSession(doc *models.PlanDocument) *models.Session {
	for w := len(doc.Weeks) - 1; w >= 0; w-- {
		if n := len(doc.Weeks[w].Sessions); n > 0 {
			return &doc.Weeks[w].Sessions[n-1]
		}
	}
	return nil
}

func syllabusTopics(syllabus string) []string {
	var topics []string
	for _, line := range strings.Split(syllabus, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if line != "" {
			topics = append(topics, line)
		}
	}
	return topics
}
