// Package tui provides the interactive terminal dashboard for studyplan.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/planstate"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// PollInterval is how often the dashboard refreshes while the daemon is
// generating or rebalancing in the background.
const PollInterval = 2 * time.Second

// App is the main TUI application model.
type App struct {
	client       *Client
	snap         *planstate.Snapshot
	rows         []TaskRow
	selectedIdx  int
	input        textinput.Model
	viewport     viewport.Model
	width        int
	height       int
	mode         string // "week", "log"
	logs         []models.RebalanceLog
	message      string
	loading      bool
	polling      bool
	daemonOnline bool
	suggestions  *Suggestions
	// pendingDelete holds the task id awaiting a second "d".
	pendingDelete string
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "/add <title> | /week <n> | /variant <n> | /rebalance | /log"
	ti.CharLimit = 256
	ti.Width = 80

	return &App{
		client:      NewClient(apiAddr),
		input:       ti,
		viewport:    viewport.New(80, 20),
		mode:        "week",
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchPlan(),
		a.checkDaemon(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.input.Focused() {
			return a.updateInput(msg)
		}
		return a, a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = max(msg.Height-10, 5)

	case planLoadedMsg:
		a.loading = false
		a.setSnapshot(msg.snap)
		if msg.message != "" {
			a.message = msg.message
		}
		if a.busy() && !a.polling {
			a.polling = true
			return a, a.tickCmd()
		}

	case logsLoadedMsg:
		a.logs = msg.entries
		a.viewport.SetContent(renderLog(a.logs))
		a.viewport.GotoTop()

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case tickMsg:
		a.polling = false
		if a.busy() {
			return a, a.fetchPlan()
		}

	case commandResultMsg:
		a.message = msg.message
		return a, a.fetchPlan()

	case errMsg:
		a.loading = false
		a.message = "Error: " + msg.err.Error()
	}

	return a, nil
}

// handleKey processes shortcuts while the command input is not focused.
func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key != "d" {
		a.pendingDelete = ""
	}

	if a.mode == "log" {
		switch key {
		case "ctrl+c", "q":
			return tea.Quit
		case "esc", "L":
			a.mode = "week"
		default:
			var cmd tea.Cmd
			a.viewport, cmd = a.viewport.Update(msg)
			return cmd
		}
		return nil
	}

	switch key {
	case "ctrl+c", "q":
		return tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.rows)-1 {
			a.selectedIdx++
		}

	case "left", "h":
		if a.snap != nil && a.snap.SelectedWeek > 0 {
			return a.selectWeek(a.snap.SelectedWeek - 1)
		}

	case "right", "l":
		if a.snap != nil {
			return a.selectWeek(a.snap.SelectedWeek + 1)
		}

	case "c":
		return a.setStatus(models.TaskStatusCompleted)

	case "m":
		return a.setStatus(models.TaskStatusMissed)

	case "p":
		return a.setStatus(models.TaskStatusPlanned)

	case "d":
		return a.deleteSelected()

	case "R":
		return a.rebalance()

	case "v":
		if a.snap != nil && a.snap.HasPlan() {
			return a.selectVariant((a.snap.SelectedVariant + 1) % len(a.snap.Response.Options))
		}

	case "L":
		a.mode = "log"
		return a.fetchLogs()

	case "r":
		return tea.Batch(a.fetchPlan(), a.checkDaemon())

	case "/", ":":
		a.input.SetValue("/")
		a.input.CursorEnd()
		a.suggestions.Update(a.input.Value())
		return a.input.Focus()
	}
	return nil
}

// updateInput routes keys to the command input and its suggestions.
func (a *App) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "esc":
		a.input.SetValue("")
		a.input.Blur()
		a.suggestions.Update("")
		return a, nil

	case "up":
		a.suggestions.Prev()
		return a, nil

	case "down":
		a.suggestions.Next()
		return a, nil

	case "tab", "enter":
		if selected := a.suggestions.Selected(); selected != nil && a.input.Value() != "/"+selected.Text {
			a.input.SetValue("/" + selected.Text + " ")
			a.input.CursorEnd()
			a.suggestions.Update(a.input.Value())
			return a, nil
		}
		if msg.String() == "tab" {
			return a, nil
		}
		cmd := strings.TrimSpace(a.input.Value())
		a.input.SetValue("")
		a.input.Blur()
		a.suggestions.Update("")
		return a, a.executeCommand(cmd)
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	a.suggestions.Update(a.input.Value())
	return a, cmd
}

func (a *App) setSnapshot(snap *planstate.Snapshot) {
	a.snap = snap
	a.rows = weekRows(snap)
	if a.selectedIdx >= len(a.rows) {
		a.selectedIdx = max(0, len(a.rows)-1)
	}
}

func (a *App) busy() bool {
	return a.snap != nil && (a.snap.Rebalancing || a.snap.Initializing)
}

func (a *App) selectedRow() (TaskRow, bool) {
	if a.selectedIdx < 0 || a.selectedIdx >= len(a.rows) {
		return TaskRow{}, false
	}
	return a.rows[a.selectedIdx], true
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	// Header with daemon status
	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}
	header := titleStyle.Render("studyplan") + "  " + daemonStatus
	if a.snap != nil && a.snap.HasPlan() {
		header += "  " + a.renderSummary()
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	// Main content area
	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch {
	case a.mode == "log":
		b.WriteString(a.viewport.View())
	case a.loading && a.snap == nil:
		b.WriteString("\n  Loading plan...\n")
	case a.snap == nil || !a.snap.HasPlan():
		b.WriteString("\n  No plan yet. Run: studyplan plan generate --syllabus-file <file> ...\n")
	default:
		b.WriteString(a.renderWeekHeader() + "\n")
		list := renderTaskList(a.rows, a.selectedIdx, contentHeight-1)
		if row, ok := a.selectedRow(); ok && a.width >= 100 {
			detail := renderTaskDetail(row, a.width/3)
			list = lipgloss.JoinHorizontal(lipgloss.Top, lipgloss.NewStyle().Width(a.width-a.width/3-4).Render(list), detail)
		}
		b.WriteString(list)
	}

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	// Input box
	if a.input.Focused() {
		b.WriteString("\n")
		b.WriteString(inputBoxStyle.Render(a.input.View()))
		if a.suggestions.IsVisible() {
			b.WriteString("\n")
			b.WriteString(a.suggestions.Render(a.width))
		}
	}
	b.WriteString("\n")

	// Status bar
	var status string
	switch a.mode {
	case "log":
		status = fmt.Sprintf(" Rebalances: %d | ↑↓:scroll | Esc:back | q:quit", len(a.logs))
	default:
		status = fmt.Sprintf(" Tasks: %d | ↑↓:nav | ←→:week | c:complete | m:miss | d:delete | R:rebalance | v:variant | L:log | /:command | q:quit", len(a.rows))
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 1)).Render(status))

	return b.String()
}

func (a *App) renderSummary() string {
	sum := a.snap.Summary
	healthStyle := lipgloss.NewStyle().Foreground(successColor)
	health := a.snap.Document().Health.Status
	switch health {
	case models.HealthAtRisk:
		healthStyle = lipgloss.NewStyle().Foreground(warningColor)
	case models.HealthOverloaded:
		healthStyle = lipgloss.NewStyle().Foreground(errorColor)
	}

	parts := []string{
		lipgloss.NewStyle().Foreground(cyanColor).Render(fmt.Sprintf("[%d%% done]", sum.Progress)),
		fmt.Sprintf("%d/%d tasks", sum.Completed, sum.Total),
		fmt.Sprintf("%dm left", sum.RemainingMinutes),
	}
	if health != "" {
		parts = append(parts, healthStyle.Render(string(health)))
	}
	if a.snap.Rebalancing {
		parts = append(parts, lipgloss.NewStyle().Foreground(warningColor).Render("rebalancing..."))
	}
	return strings.Join(parts, "  ")
}

func (a *App) renderWeekHeader() string {
	snap := a.snap
	weeks := len(snap.Document().Weeks)
	variant := ""
	if snap.SelectedVariant < len(snap.Response.Options) {
		variant = snap.Response.Options[snap.SelectedVariant].Name
	}
	label := fmt.Sprintf(" Week %d/%d", snap.SelectedWeek+1, weeks)
	if snap.CurrentWeek != nil && snap.CurrentWeek.WeekStart != "" {
		label += " · " + snap.CurrentWeek.WeekStart
	}
	if len(snap.Response.Options) > 1 {
		label += fmt.Sprintf("  Option %d/%d: %s", snap.SelectedVariant+1, len(snap.Response.Options), variant)
	}
	line := lipgloss.NewStyle().Foreground(mutedColor).Render(label)
	if snap.CurrentWeek != nil && len(snap.CurrentWeek.Goals) > 0 {
		line += "\n" + helpStyle.Render("  Goals: "+strings.Join(snap.CurrentWeek.Goals, "; "))
	}
	return line
}

// --- Commands ---

func (a *App) fetchPlan() tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		snap, err := a.client.Plan()
		if err != nil {
			return errMsg{err}
		}
		return planLoadedMsg{snap: snap}
	}
}

func (a *App) fetchLogs() tea.Cmd {
	return func() tea.Msg {
		entries, err := a.client.Logs()
		if err != nil {
			return errMsg{err}
		}
		return logsLoadedMsg{entries}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		return daemonStatusMsg{online: a.client.Health()}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(PollInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (a *App) setStatus(status models.TaskStatus) tea.Cmd {
	row, ok := a.selectedRow()
	if !ok {
		return result("No task selected")
	}
	id := row.Task.TaskID
	return func() tea.Msg {
		if err := a.client.SetStatus(id, status); err != nil {
			return errMsg{err}
		}
		msg := fmt.Sprintf("✓ %s marked %s", id, status)
		if status == models.TaskStatusMissed {
			msg += "; rebalance requested"
		}
		return commandResultMsg{msg}
	}
}

func (a *App) deleteSelected() tea.Cmd {
	row, ok := a.selectedRow()
	if !ok {
		return result("No task selected")
	}
	id := row.Task.TaskID
	if a.pendingDelete != id {
		a.pendingDelete = id
		a.message = fmt.Sprintf("Press d again to delete %q", row.Task.Title)
		return nil
	}
	a.pendingDelete = ""
	return func() tea.Msg {
		if err := a.client.DeleteTask(id); err != nil {
			return errMsg{err}
		}
		return commandResultMsg{fmt.Sprintf("✓ Deleted %s", id)}
	}
}

func (a *App) rebalance() tea.Cmd {
	a.message = "Rebalancing..."
	return func() tea.Msg {
		snap, err := a.client.Rebalance()
		if err != nil {
			return errMsg{err}
		}
		return planLoadedMsg{snap: snap, message: "✓ Plan rebalanced"}
	}
}

func (a *App) selectVariant(index int) tea.Cmd {
	return func() tea.Msg {
		snap, err := a.client.SelectVariant(index)
		if err != nil {
			return errMsg{err}
		}
		return planLoadedMsg{snap: snap}
	}
}

func (a *App) selectWeek(index int) tea.Cmd {
	a.selectedIdx = 0
	return func() tea.Msg {
		snap, err := a.client.SelectWeek(index)
		if err != nil {
			return errMsg{err}
		}
		return planLoadedMsg{snap: snap}
	}
}
