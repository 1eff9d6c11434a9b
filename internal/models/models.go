// Package models defines the core domain types for studyplan.
package models

import "time"

// TaskStatus represents the current state of a study task.
type TaskStatus string

const (
	TaskStatusPlanned     TaskStatus = "planned"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusMissed      TaskStatus = "missed"
	TaskStatusRescheduled TaskStatus = "rescheduled"
	TaskStatusDropped     TaskStatus = "dropped"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPlanned, TaskStatusCompleted, TaskStatusMissed, TaskStatusRescheduled, TaskStatusDropped:
		return true
	}
	return false
}

// TaskType classifies the kind of study work.
type TaskType string

const (
	TaskTypeReading      TaskType = "reading"
	TaskTypeProblemSet   TaskType = "problem_set"
	TaskTypeProject      TaskType = "project"
	TaskTypeReview       TaskType = "review"
	TaskTypePracticeExam TaskType = "practice_exam"
	TaskTypeAdmin        TaskType = "admin"
)

// TaskTypes lists every task type in display order.
var TaskTypes = []TaskType{
	TaskTypeReading,
	TaskTypeProblemSet,
	TaskTypeProject,
	TaskTypeReview,
	TaskTypePracticeExam,
	TaskTypeAdmin,
}

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// HealthStatus is the generator's classification of how achievable a plan is.
type HealthStatus string

const (
	HealthOnTrack    HealthStatus = "on_track"
	HealthAtRisk     HealthStatus = "at_risk"
	HealthOverloaded HealthStatus = "overloaded"
)

// PlanConstraints is the user-supplied input a plan is generated from.
type PlanConstraints struct {
	Syllabus     string  `json:"syllabus"`
	HoursPerWeek float64 `json:"hours_per_week"`
	StartDate    string  `json:"start_date"`
	DeadlineDate string  `json:"deadline_date"`
	Preferences  string  `json:"preferences,omitempty"`
}

// Task is the atomic unit of study work.
type Task struct {
	TaskID      string     `json:"task_id"`
	Title       string     `json:"title"`
	Course      string     `json:"course"`
	Type        TaskType   `json:"type"`
	Deliverable string     `json:"deliverable,omitempty"`
	EstMinutes  int        `json:"est_minutes"`
	Difficulty  int        `json:"difficulty_1to5"`
	Priority    int        `json:"priority_1to5"`
	Deadline    *string    `json:"deadline"`
	Status      TaskStatus `json:"status"`
	DependsOn   []string   `json:"depends_on"`
	Reasoning   string     `json:"reasoning,omitempty"`
}

// Session is a dated block of study time.
type Session struct {
	Date           string `json:"date"`
	TimeBlock      string `json:"time_block"`
	StartTime      string `json:"start_time,omitempty"`
	EndTime        string `json:"end_time,omitempty"`
	PlannedMinutes int    `json:"planned_minutes"`
	Tasks          []Task `json:"tasks"`
}

// Week groups the sessions that start on or after WeekStart.
type Week struct {
	WeekStart string    `json:"week_start"`
	Goals     []string  `json:"goals"`
	Sessions  []Session `json:"sessions"`
}

// Health carries the plan health classification and optional notes.
type Health struct {
	Status HealthStatus `json:"status"`
	Notes  []string     `json:"notes,omitempty"`
}

// PlanDocument is a full multi-week schedule.
type PlanDocument struct {
	HorizonWeeks int      `json:"plan_horizon_weeks"`
	Assumptions  []string `json:"assumptions"`
	BacklogHours float64  `json:"backlog_hours"`
	Health       Health   `json:"health"`
	Rationale    string   `json:"rationale"`
	NextActions  []string `json:"next_actions"`
	Weeks        []Week   `json:"study_plan"`
}

// PlanOption is one named variant of a plan.
type PlanOption struct {
	Name     string       `json:"name"`
	Strategy string       `json:"strategy"`
	Plan     PlanDocument `json:"plan"`
}

// PlanResponse is the generator's reply envelope. Health, assumptions and
// next actions at this level apply to every option.
type PlanResponse struct {
	Options     []PlanOption `json:"options"`
	Health      Health       `json:"health"`
	Assumptions []string     `json:"assumptions"`
	NextActions []string     `json:"next_actions"`
	Rationale   string       `json:"rationale"`
}

// RebalanceLog records one applied rebalance.
type RebalanceLog struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Reason            string    `json:"reason"`
	PreviousTaskCount int       `json:"previous_task_count"`
	NewTaskCount      int       `json:"new_task_count"`
	Policy            string    `json:"policy"`
	Trigger           string    `json:"trigger"`
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
