package main

import (
	"fmt"
	"os"

	"github.com/fentz26/studyplan/internal/controlplane"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "studyplan",
	Short: "studyplan - adaptive study schedule planner",
	Long: `studyplan turns a syllabus, weekly hours and a deadline into a week-by-week study plan,
tracks task progress and rebalances the remaining work when tasks are missed.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the studyplan version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("studyplan %s\n", controlplane.Version)
	},
}

var (
	apiAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7466", "API server address")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
