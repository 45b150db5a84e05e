// Package config loads taskpilot configuration from TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// PathsConfig holds path configuration.
type PathsConfig struct {
	WorkflowDir string `toml:"workflow_dir"`
	StateDir    string `toml:"state_dir"`
	LogsDir     string `toml:"logs_dir"`
}

// ExecutorConfig holds command execution settings.
type ExecutorConfig struct {
	Shell          string        `toml:"shell"`
	DefaultTimeout time.Duration `toml:"default_timeout"`
}

// SandboxConfig holds sandbox profile settings.
type SandboxConfig struct {
	// MemoryMB is the per-sandbox memory ceiling. Values above the hard
	// maximum are clamped at profile construction.
	MemoryMB          int      `toml:"memory_mb"`
	ExtraAllowedPaths []string `toml:"extra_allowed_paths"`
}

// RecoveryConfig holds error recovery settings.
type RecoveryConfig struct {
	MaxRetries int `toml:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	File   string    `toml:"file"`
}

// Config is the main configuration struct for taskpilot.
type Config struct {
	Version  string         `toml:"version"`
	Paths    PathsConfig    `toml:"paths"`
	Executor ExecutorConfig `toml:"executor"`
	Sandbox  SandboxConfig  `toml:"sandbox"`
	Recovery RecoveryConfig `toml:"recovery"`
	Logging  LoggingConfig  `toml:"logging"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Paths: PathsConfig{
			WorkflowDir: ".taskpilot/workflows",
			StateDir:    ".taskpilot/state",
			LogsDir:     ".taskpilot/logs",
		},
		Executor: ExecutorConfig{
			Shell:          "/bin/sh",
			DefaultTimeout: 30 * time.Second,
		},
		Sandbox: SandboxConfig{
			MemoryMB: 512,
		},
		Recovery: RecoveryConfig{
			MaxRetries: 2,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatJSON,
		},
	}
}

// Load loads configuration from file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from the standard locations in a directory.
// Applies in order: defaults -> ~/.taskpilot/config.toml -> <dir>/.taskpilot/config.toml
// Later configs override earlier ones (project-level takes precedence).
func LoadFromDir(dir string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		globalConfig := filepath.Join(home, ".taskpilot", "config.toml")
		if data, err := os.ReadFile(globalConfig); err == nil {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	projectConfig := filepath.Join(dir, ".taskpilot", "config.toml")
	if data, err := os.ReadFile(projectConfig); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing project config: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("config version is required")
	}
	if c.Paths.WorkflowDir == "" {
		return fmt.Errorf("workflow_dir is required")
	}
	if c.Paths.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if c.Executor.Shell == "" {
		return fmt.Errorf("executor shell is required")
	}
	if c.Executor.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be positive")
	}
	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox memory_mb must be positive")
	}
	if c.Recovery.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	return nil
}

// WorkflowDir returns the absolute workflow directory path.
func (c *Config) WorkflowDir(baseDir string) string {
	return c.absPath(c.Paths.WorkflowDir, baseDir)
}

// StateDir returns the absolute state directory path.
func (c *Config) StateDir(baseDir string) string {
	return c.absPath(c.Paths.StateDir, baseDir)
}

// LogsDir returns the absolute logs directory path.
func (c *Config) LogsDir(baseDir string) string {
	return c.absPath(c.Paths.LogsDir, baseDir)
}

// LogFile returns the absolute log file path, or empty when file logging is
// disabled.
func (c *Config) LogFile(baseDir string) string {
	if c.Logging.File == "" {
		return ""
	}
	return c.absPath(c.Logging.File, baseDir)
}

func (c *Config) absPath(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
