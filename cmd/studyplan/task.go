package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/fentz26/studyplan/internal/controlplane"
	"github.com/fentz26/studyplan/internal/models"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage plan tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks of the selected plan option",
	RunE:  runTaskList,
}

var taskCompleteCmd = &cobra.Command{
	Use:   "complete [task-id]",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTaskStatus(args[0], models.TaskStatusCompleted)
	},
}

var taskMissCmd = &cobra.Command{
	Use:   "miss [task-id]",
	Short: "Mark a task missed (may trigger a rebalance)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTaskStatus(args[0], models.TaskStatusMissed)
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id] [status]",
	Short: "Set a task status (planned, completed, missed, rescheduled, dropped)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := models.TaskStatus(args[1])
		if !status.Valid() {
			return fmt.Errorf("invalid status %q", args[1])
		}
		return setTaskStatus(args[0], status)
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDelete,
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task to a session",
	RunE:  runTaskAdd,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit [task-id]",
	Short: "Edit a task's fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskEdit,
}

var (
	taskStatusFilter string
	taskWeek         int
	taskSession      int
	taskTitle        string
	taskCourse       string
	taskType         string
	taskMinutes      int
	taskDifficulty   int
	taskPriority     int
	taskDeadline     string
	taskDeliverable  string
)

func init() {
	taskCmd.AddCommand(taskListCmd, taskCompleteCmd, taskMissCmd, taskStatusCmd, taskDeleteCmd, taskAddCmd, taskEditCmd)

	taskListCmd.Flags().StringVar(&taskStatusFilter, "status", "", "Filter by status (planned, completed, missed, rescheduled, dropped)")

	taskAddCmd.Flags().IntVar(&taskWeek, "week", 1, "Week number (1-based)")
	taskAddCmd.Flags().IntVar(&taskSession, "session", 1, "Session number within the week (1-based)")

	for _, c := range []*cobra.Command{taskAddCmd, taskEditCmd} {
		c.Flags().StringVar(&taskTitle, "title", "", "Task title")
		c.Flags().StringVar(&taskCourse, "course", "", "Course or category")
		c.Flags().StringVar(&taskType, "type", string(models.TaskTypeReview), "Task type (reading, problem_set, project, review, practice_exam, admin)")
		c.Flags().IntVar(&taskMinutes, "minutes", 30, "Estimated minutes")
		c.Flags().IntVar(&taskDifficulty, "difficulty", 3, "Difficulty 1-5")
		c.Flags().IntVar(&taskPriority, "priority", 3, "Priority 1-5")
		c.Flags().StringVar(&taskDeadline, "deadline", "", "Deadline (YYYY-MM-DD)")
		c.Flags().StringVar(&taskDeliverable, "deliverable", "", "Expected deliverable")
	}
	taskAddCmd.MarkFlagRequired("title")
}

func runTaskList(cmd *cobra.Command, args []string) error {
	path := "/plan/tasks"
	if taskStatusFilter != "" {
		path += "?status=" + url.QueryEscape(taskStatusFilter)
	}

	resp, err := apiGet(path)
	if err != nil {
		return err
	}

	var tasks []controlplane.TaskEntry
	if err := json.Unmarshal(resp, &tasks); err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWEEK\tDATE\tTITLE\tTYPE\tMIN\tSTATUS")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
			t.TaskID, t.WeekIndex+1, t.Date, truncate(t.Title, 40), t.Type, t.EstMinutes, colorStatus(t.Status))
	}
	w.Flush()
	return nil
}

func setTaskStatus(id string, status models.TaskStatus) error {
	if _, err := apiPost(taskPath(id)+"/status", map[string]string{"status": string(status)}); err != nil {
		return err
	}
	fmt.Printf("Task %s marked %s\n", id, colorStatus(status))
	if status == models.TaskStatusMissed {
		fmt.Println(dim("A rebalance runs in the background when auto-rebalance is enabled; see: studyplan plan log"))
	}
	return nil
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	if _, err := apiDelete(taskPath(args[0])); err != nil {
		return err
	}
	fmt.Printf("Deleted task %s\n", args[0])
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	if taskWeek < 1 || taskSession < 1 {
		return fmt.Errorf("--week and --session are 1-based")
	}

	task := models.Task{
		Title:       taskTitle,
		Course:      taskCourse,
		Type:        models.TaskType(taskType),
		Deliverable: taskDeliverable,
		EstMinutes:  taskMinutes,
		Difficulty:  taskDifficulty,
		Priority:    taskPriority,
		Status:      models.TaskStatusPlanned,
	}
	if taskDeadline != "" {
		task.Deadline = &taskDeadline
	}

	body := map[string]interface{}{
		"week_index":    taskWeek - 1,
		"session_index": taskSession - 1,
		"task":          task,
	}
	resp, err := apiPost("/plan/tasks", body)
	if err != nil {
		return err
	}

	var result struct {
		Added bool        `json:"added"`
		Task  models.Task `json:"task"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}
	if !result.Added {
		return fmt.Errorf("week %d has no session %d", taskWeek, taskSession)
	}
	fmt.Printf("Created task: %s\n", result.Task.TaskID)
	return nil
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	current, err := findTask(args[0])
	if err != nil {
		return err
	}

	task := current.Task
	flags := cmd.Flags()
	if flags.Changed("title") {
		task.Title = taskTitle
	}
	if flags.Changed("course") {
		task.Course = taskCourse
	}
	if flags.Changed("type") {
		task.Type = models.TaskType(taskType)
	}
	if flags.Changed("minutes") {
		task.EstMinutes = taskMinutes
	}
	if flags.Changed("difficulty") {
		task.Difficulty = taskDifficulty
	}
	if flags.Changed("priority") {
		task.Priority = taskPriority
	}
	if flags.Changed("deliverable") {
		task.Deliverable = taskDeliverable
	}
	if flags.Changed("deadline") {
		if taskDeadline == "" {
			task.Deadline = nil
		} else {
			task.Deadline = &taskDeadline
		}
	}

	if _, err := apiPut(taskPath(task.TaskID), task); err != nil {
		return err
	}
	fmt.Printf("Updated task %s\n", task.TaskID)
	return nil
}

// findTask looks a task up by id in the selected option.
func findTask(id string) (*controlplane.TaskEntry, error) {
	resp, err := apiGet(taskPath(id))
	if err != nil {
		return nil, err
	}
	var entry controlplane.TaskEntry
	if err := json.Unmarshal(resp, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// --- Helpers ---

// taskPath escapes id so generator ids containing "/" stay one segment.
func taskPath(id string) string {
	return "/tasks/" + url.PathEscape(id)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
