package main

import (
	"github.com/fatih/color"
	"github.com/fentz26/studyplan/internal/models"
)

// Sprint color functions for building styled strings.
var (
	bold      = color.New(color.Bold).SprintFunc()
	dim       = color.New(color.Faint).SprintFunc()
	cyan      = color.New(color.FgCyan).SprintFunc()
	green     = color.New(color.FgGreen).SprintFunc()
	red       = color.New(color.FgRed).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	blue      = color.New(color.FgBlue).SprintFunc()
	boldCyan  = color.New(color.Bold, color.FgCyan).SprintFunc()
	boldGreen = color.New(color.Bold, color.FgGreen).SprintFunc()
)

// colorStatus renders a task status in its dashboard color.
func colorStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPlanned:
		return blue(string(status))
	case models.TaskStatusCompleted:
		return green(string(status))
	case models.TaskStatusMissed:
		return red(string(status))
	case models.TaskStatusRescheduled:
		return yellow(string(status))
	case models.TaskStatusDropped:
		return dim(string(status))
	}
	return string(status)
}

// colorHealth renders a plan health classification.
func colorHealth(h models.HealthStatus) string {
	switch h {
	case models.HealthOnTrack:
		return green(string(h))
	case models.HealthAtRisk:
		return yellow(string(h))
	case models.HealthOverloaded:
		return red(string(h))
	}
	return string(h)
}
