package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Version != "1" {
		t.Errorf("Version = %s, want 1", cfg.Version)
	}
	if cfg.Paths.WorkflowDir != ".taskpilot/workflows" {
		t.Errorf("WorkflowDir = %s, want .taskpilot/workflows", cfg.Paths.WorkflowDir)
	}
	if cfg.Paths.StateDir != ".taskpilot/state" {
		t.Errorf("StateDir = %s, want .taskpilot/state", cfg.Paths.StateDir)
	}
	if cfg.Executor.Shell != "/bin/sh" {
		t.Errorf("Shell = %s, want /bin/sh", cfg.Executor.Shell)
	}
	if cfg.Executor.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v, want 30s", cfg.Executor.DefaultTimeout)
	}
	if cfg.Sandbox.MemoryMB != 512 {
		t.Errorf("MemoryMB = %d, want 512", cfg.Sandbox.MemoryMB)
	}
	if cfg.Recovery.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.Recovery.MaxRetries)
	}
	if cfg.Logging.Level != LogLevelInfo {
		t.Errorf("Logging.Level = %s, want info", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
version = "2"

[paths]
workflow_dir = "custom/workflows"
state_dir = "custom/state"
logs_dir = "custom/logs"

[executor]
shell = "/bin/bash"
default_timeout = "45s"

[sandbox]
memory_mb = 1024
extra_allowed_paths = ["/opt/tools"]

[recovery]
max_retries = 5

[logging]
level = "debug"
format = "text"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Version != "2" {
		t.Errorf("Version = %s, want 2", cfg.Version)
	}
	if cfg.Paths.WorkflowDir != "custom/workflows" {
		t.Errorf("WorkflowDir = %s, want custom/workflows", cfg.Paths.WorkflowDir)
	}
	if cfg.Executor.Shell != "/bin/bash" {
		t.Errorf("Shell = %s, want /bin/bash", cfg.Executor.Shell)
	}
	if cfg.Executor.DefaultTimeout != 45*time.Second {
		t.Errorf("DefaultTimeout = %v, want 45s", cfg.Executor.DefaultTimeout)
	}
	if cfg.Sandbox.MemoryMB != 1024 {
		t.Errorf("MemoryMB = %d, want 1024", cfg.Sandbox.MemoryMB)
	}
	if len(cfg.Sandbox.ExtraAllowedPaths) != 1 || cfg.Sandbox.ExtraAllowedPaths[0] != "/opt/tools" {
		t.Errorf("ExtraAllowedPaths = %v", cfg.Sandbox.ExtraAllowedPaths)
	}
	if cfg.Recovery.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.Recovery.MaxRetries)
	}
	if cfg.Logging.Format != LogFormatText {
		t.Errorf("Logging.Format = %s, want text", cfg.Logging.Format)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Version != "1" {
		t.Errorf("expected defaults, got version %s", cfg.Version)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("version = [broken"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing version", func(c *Config) { c.Version = "" }},
		{"missing workflow dir", func(c *Config) { c.Paths.WorkflowDir = "" }},
		{"missing state dir", func(c *Config) { c.Paths.StateDir = "" }},
		{"missing shell", func(c *Config) { c.Executor.Shell = "" }},
		{"zero timeout", func(c *Config) { c.Executor.DefaultTimeout = 0 }},
		{"zero memory", func(c *Config) { c.Sandbox.MemoryMB = 0 }},
		{"negative retries", func(c *Config) { c.Recovery.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := Default()

	if got := cfg.WorkflowDir("/base"); got != "/base/.taskpilot/workflows" {
		t.Errorf("WorkflowDir = %s", got)
	}
	if got := cfg.StateDir("/base"); got != "/base/.taskpilot/state" {
		t.Errorf("StateDir = %s", got)
	}

	cfg.Paths.StateDir = "/abs/state"
	if got := cfg.StateDir("/base"); got != "/abs/state" {
		t.Errorf("absolute StateDir = %s", got)
	}

	if got := cfg.LogFile("/base"); got != "" {
		t.Errorf("LogFile with no file = %s", got)
	}
	cfg.Logging.File = "logs/engine.log"
	if got := cfg.LogFile("/base"); got != "/base/logs/engine.log" {
		t.Errorf("LogFile = %s", got)
	}
}
