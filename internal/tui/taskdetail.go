package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/studyplan/internal/models"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))
)

// renderTaskDetail draws the side panel for the selected task.
func renderTaskDetail(row TaskRow, width int) string {
	t := row.Task
	var b strings.Builder

	b.WriteString(sectionStyle.Render(t.Title) + "\n")
	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label+": ") + valueStyle.Render(value) + "\n")
	}
	field("ID", t.TaskID)
	field("Course", t.Course)
	field("Type", string(t.Type))
	field("Status", string(t.Status))
	field("Session", strings.TrimSpace(row.Date+" "+row.TimeBlock))
	field("Estimate", fmt.Sprintf("%d min", t.EstMinutes))
	field("Difficulty", fmt.Sprintf("%d/5", t.Difficulty))
	field("Priority", fmt.Sprintf("%d/5", t.Priority))
	if t.Deadline != nil {
		field("Deadline", *t.Deadline)
	}
	field("Deliverable", t.Deliverable)
	if len(t.DependsOn) > 0 {
		field("Depends on", strings.Join(t.DependsOn, ", "))
	}
	if t.Reasoning != "" {
		b.WriteString("\n" + helpStyle.Render(t.Reasoning) + "\n")
	}

	return panelStyle.Width(max(width, 24)).Render(strings.TrimRight(b.String(), "\n"))
}

// renderLog draws the rebalance log, newest first.
func renderLog(entries []models.RebalanceLog) string {
	if len(entries) == 0 {
		return "\n  No rebalances yet.\n"
	}
	var b strings.Builder
	b.WriteString("\n  " + sectionStyle.Render("Rebalance log") + "\n\n")
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		b.WriteString(fmt.Sprintf("  %s  %s  %s  %d -> %d tasks\n",
			labelStyle.Render(e.Timestamp.Local().Format("2006-01-02 15:04")),
			valueStyle.Render(e.Trigger),
			labelStyle.Render(e.Policy),
			e.PreviousTaskCount, e.NewTaskCount))
		if e.Reason != "" {
			b.WriteString("    " + helpStyle.Render(e.Reason) + "\n")
		}
	}
	return b.String()
}
