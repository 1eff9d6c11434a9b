package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/studyplan/internal/models"
)

var (
	statusPlanned     = lipgloss.NewStyle().Foreground(lipgloss.Color("4")) // Blue
	statusCompleted   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // Green
	statusMissed      = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // Red
	statusRescheduled = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // Yellow
	statusDropped     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // Grey

	sessionStyle = lipgloss.NewStyle().
			Foreground(cyanColor).
			Bold(true)
)

func formatStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusPlanned:
		return statusPlanned.Render("● planned")
	case models.TaskStatusCompleted:
		return statusCompleted.Render("● completed")
	case models.TaskStatusMissed:
		return statusMissed.Render("● missed")
	case models.TaskStatusRescheduled:
		return statusRescheduled.Render("● rescheduled")
	case models.TaskStatusDropped:
		return statusDropped.Render("● dropped")
	default:
		return string(status)
	}
}

func formatStatusPlain(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusCompleted:
		return "[x]"
	case models.TaskStatusMissed:
		return "[!]"
	case models.TaskStatusRescheduled:
		return "[>]"
	case models.TaskStatusDropped:
		return "[-]"
	default:
		return "[ ]"
	}
}

// renderTaskList draws the week's tasks grouped under session headers,
// keeping the selected row in view.
func renderTaskList(rows []TaskRow, selected, height int) string {
	if len(rows) == 0 {
		return "\n  No tasks this week. Type: /add <title> to create one.\n"
	}

	var lines []string
	selectedLine := 0
	lastSession := -1
	for i, row := range rows {
		if row.SessionIndex != lastSession {
			lastSession = row.SessionIndex
			header := fmt.Sprintf(" %s  %s", row.Date, row.TimeBlock)
			lines = append(lines, sessionStyle.Render(strings.TrimRight(header, " ")))
		}
		t := row.Task
		meta := lipgloss.NewStyle().Foreground(mutedColor).Render(fmt.Sprintf("%s · %dm · P%d", t.Type, t.EstMinutes, t.Priority))
		if i == selected {
			selectedLine = len(lines)
			lines = append(lines, selectedStyle.Render(fmt.Sprintf("▶ %s  %s", formatStatusPlain(t.Status), t.Title)))
		} else {
			lines = append(lines, taskItemStyle.Render(fmt.Sprintf("  %s  %s  %s", formatStatus(t.Status), t.Title, meta)))
		}
	}

	// Limit visible lines
	if height > 0 && len(lines) > height {
		start := selectedLine - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}
