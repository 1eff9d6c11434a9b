// Package config loads studyplan settings from defaults, an optional YAML
// file and STUDYPLAN_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Generator backends.
const (
	GeneratorAnthropic = "anthropic"
	GeneratorCLI       = "cli"
	GeneratorStub      = "stub"
)

// DefaultListen is the daemon's default address.
const DefaultListen = "127.0.0.1:7466"

// Config holds all studyplan configuration.
type Config struct {
	// Listen is the API server address.
	Listen    string          `yaml:"listen"`
	Store     StoreConfig     `yaml:"store"`
	Generator GeneratorConfig `yaml:"generator"`
	// ReconcilePolicy is one of replace, splice or envelope.
	ReconcilePolicy string `yaml:"reconcile_policy"`
	// AutoRebalance starts a rebalance whenever a task is marked missed.
	AutoRebalance bool `yaml:"auto_rebalance"`
}

// StoreConfig selects and configures the persistence mirror.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url,omitempty"`
	RedisURL    string `yaml:"redis_url,omitempty"`
}

// GeneratorConfig selects and configures the plan generator.
type GeneratorConfig struct {
	Backend   string        `yaml:"backend"`
	Model     string        `yaml:"model,omitempty"`
	APIKey    string        `yaml:"api_key,omitempty"`
	BaseURL   string        `yaml:"base_url,omitempty"`
	MaxTokens int64         `yaml:"max_tokens,omitempty"`
	Command   string        `yaml:"command,omitempty"`
	PromptDir string        `yaml:"prompt_dir,omitempty"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Dir returns ~/.studyplan, or .studyplan when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".studyplan"
	}
	return filepath.Join(home, ".studyplan")
}

// DefaultPath is the config file read by Load.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen: DefaultListen,
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    filepath.Join(Dir(), "studyplan.db"),
		},
		Generator: GeneratorConfig{
			Backend: GeneratorAnthropic,
			Timeout: 2 * time.Minute,
		},
		ReconcilePolicy: "splice",
		AutoRebalance:   true,
	}
}

// Load reads path (a missing file is not an error), then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Listen = getEnv("STUDYPLAN_LISTEN", c.Listen)
	c.Store.Backend = getEnv("STUDYPLAN_STORE", c.Store.Backend)
	c.Store.Path = getEnv("STUDYPLAN_DB_PATH", c.Store.Path)
	c.Store.DatabaseURL = getEnv("STUDYPLAN_DATABASE_URL", c.Store.DatabaseURL)
	c.Store.RedisURL = getEnv("STUDYPLAN_REDIS_URL", c.Store.RedisURL)
	c.Generator.Backend = getEnv("STUDYPLAN_GENERATOR", c.Generator.Backend)
	c.Generator.Model = getEnv("STUDYPLAN_MODEL", c.Generator.Model)
	c.Generator.BaseURL = getEnv("STUDYPLAN_BASE_URL", c.Generator.BaseURL)
	c.Generator.Command = getEnv("STUDYPLAN_CLI_COMMAND", c.Generator.Command)
	c.Generator.PromptDir = getEnv("STUDYPLAN_PROMPT_DIR", c.Generator.PromptDir)
	c.ReconcilePolicy = getEnv("STUDYPLAN_RECONCILE_POLICY", c.ReconcilePolicy)

	if v := os.Getenv("STUDYPLAN_MAX_TOKENS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("STUDYPLAN_MAX_TOKENS: %w", err)
		}
		c.Generator.MaxTokens = n
	}
	if v := os.Getenv("STUDYPLAN_GENERATOR_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STUDYPLAN_GENERATOR_TIMEOUT: %w", err)
		}
		c.Generator.Timeout = d
	}
	if v := os.Getenv("STUDYPLAN_AUTO_REBALANCE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STUDYPLAN_AUTO_REBALANCE: %w", err)
		}
		c.AutoRebalance = b
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store.database_url is required for the postgres backend")
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid store backend %q, must be: sqlite, postgres, or redis", c.Store.Backend)
	}

	switch c.Generator.Backend {
	case GeneratorAnthropic, GeneratorCLI, GeneratorStub:
	default:
		return fmt.Errorf("invalid generator backend %q, must be: anthropic, cli, or stub", c.Generator.Backend)
	}

	switch c.ReconcilePolicy {
	case "replace", "splice", "envelope":
	default:
		return fmt.Errorf("invalid reconcile_policy %q, must be: replace, splice, or envelope", c.ReconcilePolicy)
	}

	if c.Generator.Timeout < 0 {
		return fmt.Errorf("generator.timeout must not be negative")
	}
	return nil
}

// Save writes cfg to path as YAML, creating parent directories if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
