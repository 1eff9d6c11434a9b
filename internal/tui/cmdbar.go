package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/studyplan/internal/models"
)

// manualTask builds the task created by "/add <title>".
func manualTask(title string) models.Task {
	return models.Task{
		Title:      title,
		Course:     "manual",
		Type:       models.TaskTypeReview,
		EstMinutes: 30,
		Difficulty: 3,
		Priority:   3,
		Status:     models.TaskStatusPlanned,
	}
}

// executeCommand runs a command typed into the input box. The leading "/"
// is optional.
func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return nil
	}
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "quit", "q":
		return tea.Quit

	case "add":
		if len(args) < 1 {
			return result("Usage: add <title>")
		}
		if a.snap == nil || a.snap.CurrentWeek == nil {
			return result("No plan loaded")
		}
		week := a.snap.SelectedWeek
		session := 0
		if row, ok := a.selectedRow(); ok {
			session = row.SessionIndex
		}
		task := manualTask(strings.Join(args, " "))
		return func() tea.Msg {
			created, added, err := a.client.AddTask(week, session, task)
			if err != nil {
				return errMsg{err}
			}
			if !added {
				return commandResultMsg{"Session no longer exists; task not added"}
			}
			return commandResultMsg{fmt.Sprintf("✓ Added %s", created.TaskID)}
		}

	case "complete", "done":
		return a.setStatus(models.TaskStatusCompleted)
	case "miss":
		return a.setStatus(models.TaskStatusMissed)
	case "drop":
		return a.setStatus(models.TaskStatusDropped)
	case "planned":
		return a.setStatus(models.TaskStatusPlanned)

	case "delete":
		return a.deleteSelected()

	case "rebalance":
		return a.rebalance()

	case "variant", "week":
		if len(args) != 1 {
			return result(fmt.Sprintf("Usage: %s <n>", cmd))
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return result(fmt.Sprintf("Invalid %s: %s", cmd, args[0]))
		}
		if cmd == "variant" {
			return a.selectVariant(n - 1)
		}
		return a.selectWeek(n - 1)

	case "log":
		a.mode = "log"
		return a.fetchLogs()

	default:
		return result(fmt.Sprintf("Unknown command: %s", cmd))
	}
}

func result(message string) tea.Cmd {
	return func() tea.Msg { return commandResultMsg{message} }
}
