package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/studyplan/internal/audit"
	"github.com/fentz26/studyplan/internal/config"
	"github.com/fentz26/studyplan/internal/connectors/localexec"
	"github.com/fentz26/studyplan/internal/controlplane"
	"github.com/fentz26/studyplan/internal/generator"
	"github.com/fentz26/studyplan/internal/planstate"
	"github.com/fentz26/studyplan/internal/reconcile"
	"github.com/fentz26/studyplan/internal/store"
	"github.com/fentz26/studyplan/internal/store/pgstore"
	"github.com/fentz26/studyplan/internal/store/redisstore"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	listenAddr   string
	dbPath       string
	storeBackend string
	genBackend   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the studyplan daemon",
	Long:  `Starts the studyplan daemon which owns the plan state and serves the HTTP API.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", config.DefaultPath(), "Path to config file")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	serveCmd.Flags().StringVar(&storeBackend, "store", "", "Store backend: sqlite, postgres or redis (overrides config)")
	serveCmd.Flags().StringVar(&genBackend, "generator", "", "Generator backend: anthropic, cli or stub (overrides config)")
}

// backend is a persistence mirror that also keeps audit records.
type backend interface {
	planstate.Mirror
	audit.Sink
	audit.Reader
	Ping(ctx context.Context) error
	Close() error
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyServeFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log.Println("Starting studyplan daemon...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	s, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}

	// Initialize components
	gen, err := buildGenerator(cfg.Generator)
	if err != nil {
		s.Close()
		return err
	}
	policy, err := reconcile.ByName(cfg.ReconcilePolicy)
	if err != nil {
		s.Close()
		return err
	}

	state := planstate.New(gen, planstate.Options{
		Policy:        policy,
		Mirror:        s,
		Recorder:      audit.NewPDRWriter(s),
		AutoRebalance: cfg.AutoRebalance,
		Timeout:       cfg.Generator.Timeout,
		BaseContext:   ctx,
	})
	restored, err := state.Load(ctx)
	if err != nil {
		log.Printf("Warning: failed to restore plan: %v (starting empty)", err)
	} else if restored {
		log.Printf("Restored plan (%d tasks)", state.Snapshot().Summary.Total)
	}
	log.Printf("Store: %s, generator: %s, policy: %s", cfg.Store.Backend, cfg.Generator.Backend, state.Policy())

	// Create service and server
	server := controlplane.NewServer(controlplane.NewService(state, s), cfg.Listen)

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Waiting for background rebalances...")
	cancel()
	state.Wait()

	log.Println("Closing store...")
	if err := s.Close(); err != nil {
		log.Printf("Store close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func applyServeFlags(cfg *config.Config) {
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	if storeBackend != "" {
		cfg.Store.Backend = storeBackend
	}
	if genBackend != "" {
		cfg.Generator.Backend = genBackend
	}
}

// openBackend connects the configured persistence mirror.
func openBackend(ctx context.Context, cfg config.StoreConfig) (backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		return pgstore.Connect(ctx, cfg.DatabaseURL)
	case config.BackendRedis:
		return redisstore.Connect(ctx, cfg.RedisURL)
	case config.BackendSQLite:
		return store.New(cfg.Path)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// buildGenerator creates the configured plan generator.
func buildGenerator(cfg config.GeneratorConfig) (generator.Generator, error) {
	if cfg.Backend == config.GeneratorStub {
		return generator.NewStub(), nil
	}

	prompts, err := generator.LoadPrompts(cfg.PromptDir)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case config.GeneratorAnthropic:
		return generator.NewAnthropic(generator.AnthropicConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			BaseURL:   cfg.BaseURL,
		}, prompts)
	case config.GeneratorCLI:
		command := cfg.Command
		if command == "" {
			command = generator.DefaultCLICommand
		}
		workDir, _ := os.Getwd()
		return generator.NewCLI(localexec.New(workDir, localexec.ModelCLI(command)), command, prompts), nil
	}
	return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
}
