package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/studyplan/internal/models"
	"github.com/fentz26/studyplan/internal/planstate"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate and inspect the study plan",
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new plan, replacing the current one",
	RunE:  runPlanGenerate,
}

var planShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the selected plan option",
	RunE:  runPlanShow,
}

var planRebalanceCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Rebalance the remaining work",
	RunE:  runPlanRebalance,
}

var planVariantCmd = &cobra.Command{
	Use:   "variant [n]",
	Short: "Switch to plan option n (1-based)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanVariant,
}

var planWeekCmd = &cobra.Command{
	Use:   "week [n]",
	Short: "Move the week cursor to week n (1-based)",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanWeek,
}

var planResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the plan and all persisted state",
	RunE:  runPlanReset,
}

var planLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the rebalance log",
	RunE:  runPlanLog,
}

var (
	syllabus     string
	syllabusFile string
	hoursPerWeek float64
	startDate    string
	deadlineDate string
	preferences  string
	showJSON     bool
	resetYes     bool
	logAudit     bool
	auditLimit   int
)

func init() {
	planCmd.AddCommand(planGenerateCmd, planShowCmd, planRebalanceCmd, planVariantCmd, planWeekCmd, planResetCmd, planLogCmd)

	planGenerateCmd.Flags().StringVar(&syllabus, "syllabus", "", "Syllabus or topic list")
	planGenerateCmd.Flags().StringVar(&syllabusFile, "syllabus-file", "", "Read the syllabus from a file (- for stdin)")
	planGenerateCmd.Flags().Float64Var(&hoursPerWeek, "hours", 10, "Study hours available per week")
	planGenerateCmd.Flags().StringVar(&startDate, "start", time.Now().Format(models.DateLayout), "Start date (YYYY-MM-DD)")
	planGenerateCmd.Flags().StringVar(&deadlineDate, "deadline", "", "Deadline date (YYYY-MM-DD, required)")
	planGenerateCmd.Flags().StringVar(&preferences, "preferences", "", "Free-text scheduling preferences")
	planGenerateCmd.MarkFlagRequired("deadline")

	planShowCmd.Flags().BoolVar(&showJSON, "json", false, "Print the raw snapshot as JSON")

	planResetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Confirm the reset")

	planLogCmd.Flags().BoolVar(&logAudit, "audit", false, "Show audit records of every plan change instead")
	planLogCmd.Flags().IntVar(&auditLimit, "limit", 20, "Number of audit records to show")
}

func runPlanGenerate(cmd *cobra.Command, args []string) error {
	text, err := readSyllabus(syllabus, syllabusFile)
	if err != nil {
		return err
	}
	c := models.PlanConstraints{
		Syllabus:     text,
		HoursPerWeek: hoursPerWeek,
		StartDate:    startDate,
		DeadlineDate: deadlineDate,
		Preferences:  preferences,
	}
	if err := c.Validate(); err != nil {
		return err
	}

	fmt.Println(dim("Generating plan, this can take a minute..."))
	resp, err := apiPostSlow("/plan/generate", c)
	if err != nil {
		return err
	}
	snap, err := decodeSnapshot(resp)
	if err != nil {
		return err
	}
	fmt.Printf("%s %d option(s), %d tasks\n\n", boldGreen("Plan generated:"), len(snap.Response.Options), snap.Summary.Total)
	printSnapshot(snap)
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/plan")
	if err != nil {
		return err
	}
	if showJSON {
		fmt.Println(string(resp))
		return nil
	}
	snap, err := decodeSnapshot(resp)
	if err != nil {
		return err
	}
	if !snap.HasPlan() {
		fmt.Println("No plan yet. Run: studyplan plan generate --deadline YYYY-MM-DD --syllabus-file <file>")
		return nil
	}
	printSnapshot(snap)
	return nil
}

func runPlanRebalance(cmd *cobra.Command, args []string) error {
	fmt.Println(dim("Rebalancing..."))
	resp, err := apiPostSlow("/plan/rebalance", nil)
	if err != nil {
		return err
	}
	snap, err := decodeSnapshot(resp)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n\n", boldGreen("Rebalanced:"), snap.Document().Rationale)
	printSnapshot(snap)
	return nil
}

func runPlanVariant(cmd *cobra.Command, args []string) error {
	n, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	resp, err := apiPost("/plan/variant", map[string]int{"index": n})
	if err != nil {
		return err
	}
	snap, err := decodeSnapshot(resp)
	if err != nil {
		return err
	}
	fmt.Printf("Selected option %d: %s\n", snap.SelectedVariant+1, snap.Response.Options[snap.SelectedVariant].Name)
	return nil
}

func runPlanWeek(cmd *cobra.Command, args []string) error {
	n, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	resp, err := apiPost("/plan/week", map[string]int{"index": n})
	if err != nil {
		return err
	}
	snap, err := decodeSnapshot(resp)
	if err != nil {
		return err
	}
	if snap.CurrentWeek == nil {
		fmt.Println("No plan yet")
		return nil
	}
	printWeek(snap.SelectedWeek, *snap.CurrentWeek, true)
	return nil
}

func runPlanReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return fmt.Errorf("reset discards the plan and its history; re-run with --yes to confirm")
	}
	if _, err := apiDelete("/plan?confirm=true"); err != nil {
		return err
	}
	fmt.Println("Plan reset")
	return nil
}

func runPlanLog(cmd *cobra.Command, args []string) error {
	if logAudit {
		return printAudit(auditLimit)
	}
	resp, err := apiGet("/plan/log")
	if err != nil {
		return err
	}
	var entries []models.RebalanceLog
	if err := json.Unmarshal(resp, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No rebalances yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTRIGGER\tPOLICY\tTASKS\tREASON")
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%d -> %d\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04"), e.Trigger, e.Policy,
			e.PreviousTaskCount, e.NewTaskCount, truncate(e.Reason, 60))
	}
	w.Flush()
	return nil
}

func printAudit(limit int) error {
	resp, err := apiGet(fmt.Sprintf("/pdr?limit=%d", limit))
	if err != nil {
		return err
	}
	var entries []models.PDREntry
	if err := json.Unmarshal(resp, &entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No audit records")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tOUTCOME\tTASK\tDETAILS")
	for _, e := range entries {
		outcome := green(e.Outcome)
		if e.Outcome != "success" {
			outcome = red(e.Outcome)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Action, outcome, e.TaskID, truncate(e.Details, 50))
	}
	w.Flush()
	return nil
}

// --- Helpers ---

// readSyllabus returns the inline syllabus or the contents of file.
func readSyllabus(inline, file string) (string, error) {
	if inline != "" && file != "" {
		return "", fmt.Errorf("use either --syllabus or --syllabus-file, not both")
	}
	if file == "" {
		return inline, nil
	}
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("read syllabus: %w", err)
	}
	return string(data), nil
}

// parseIndex converts a 1-based argument into a 0-based index.
func parseIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number %q, must be 1 or greater", arg)
	}
	return n - 1, nil
}

func decodeSnapshot(data []byte) (planstate.Snapshot, error) {
	var snap planstate.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode plan: %w", err)
	}
	return snap, nil
}

func printSnapshot(snap planstate.Snapshot) {
	doc := snap.Document()
	option := snap.Response.Options[snap.SelectedVariant]

	fmt.Printf("%s %s", bold("Option:"), boldCyan(option.Name))
	if len(snap.Response.Options) > 1 {
		fmt.Printf(" (%d of %d)", snap.SelectedVariant+1, len(snap.Response.Options))
	}
	fmt.Println()
	if option.Strategy != "" {
		fmt.Printf("%s %s\n", bold("Strategy:"), option.Strategy)
	}
	fmt.Printf("%s %s  %s %d%% (%d/%d done, %d missed, %dm remaining)\n",
		bold("Health:"), colorHealth(doc.Health.Status),
		bold("Progress:"), snap.Summary.Progress, snap.Summary.Completed, snap.Summary.Total,
		snap.Summary.Missed, snap.Summary.RemainingMinutes)
	for _, note := range doc.Health.Notes {
		fmt.Printf("  %s %s\n", yellow("!"), note)
	}
	if snap.Rebalancing {
		fmt.Println(yellow("A rebalance is in progress"))
	}
	fmt.Println()

	for i, week := range doc.Weeks {
		printWeek(i, week, i == snap.SelectedWeek)
	}

	if len(doc.NextActions) > 0 {
		fmt.Println(bold("Next actions:"))
		for _, a := range doc.NextActions {
			fmt.Printf("  - %s\n", a)
		}
	}
}

func printWeek(index int, week models.Week, current bool) {
	marker := "  "
	if current {
		marker = cyan("> ")
	}
	fmt.Printf("%s%s %s\n", marker, bold(fmt.Sprintf("Week %d", index+1)), dim(week.WeekStart))
	if len(week.Goals) > 0 {
		fmt.Printf("    %s %s\n", dim("Goals:"), strings.Join(week.Goals, "; "))
	}
	for _, session := range week.Sessions {
		fmt.Printf("    %s %s %s\n", session.Date, session.TimeBlock, dim(fmt.Sprintf("(%dm)", session.PlannedMinutes)))
		for _, t := range session.Tasks {
			fmt.Printf("      %s %s %s %s\n", dim(t.TaskID), colorStatus(t.Status), t.Title, dim(fmt.Sprintf("%s, %dm", t.Type, t.EstMinutes)))
		}
	}
	fmt.Println()
}
