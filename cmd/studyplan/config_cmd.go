package main

import (
	"fmt"
	"os"

	"github.com/fentz26/studyplan/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage daemon configuration",
	Long:  `Inspect and initialize the daemon configuration file (~/.studyplan/config.yaml).`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration (file plus environment)",
	RunE:  runConfigShow,
}

var (
	configFile  string
	configForce bool
)

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath(), "Path to config file")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configFile); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configFile)
	}
	if err := config.Save(configFile, config.Default()); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", configFile)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if cfg.Generator.APIKey != "" {
		cfg.Generator.APIKey = "********"
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n\n", dim("#"), dim(configFile))
	fmt.Print(string(out))
	return nil
}
