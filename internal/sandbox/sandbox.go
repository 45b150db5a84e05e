// Package sandbox classifies commands and builds isolated execution profiles.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskpilot/taskpilot/internal/types"
)

// Memory ceilings in MB. Profiles default to DefaultMemoryMB and may be
// configured upward, never past HardMaxMemoryMB.
const (
	DefaultMemoryMB = 512
	HardMaxMemoryMB = 2048
)

// systemDeniedPaths are always denied regardless of the command.
var systemDeniedPaths = []string{"/System", "/Library/System", "/private/var"}

// strippedEnvVars could re-enable elevated privilege and never cross the
// sandbox boundary.
var strippedEnvVars = map[string]bool{
	"SUDO_USER":             true,
	"SUDO_UID":              true,
	"SUDO_GID":              true,
	"SUDO_COMMAND":          true,
	"LD_PRELOAD":            true,
	"DYLD_INSERT_LIBRARIES": true,
}

// Profile is the concrete set of constraints applied to one command's
// execution.
type Profile struct {
	AllowedPaths  []string          `json:"allowed_paths"`
	DeniedPaths   []string          `json:"denied_paths"`
	NetworkAccess bool              `json:"network_access"`
	MaxMemoryMB   int               `json:"max_memory_mb"`
	Environment   map[string]string `json:"environment"`
}

// Sandbox is one registered profile, keyed by an opaque id.
type Sandbox struct {
	ID        string    `json:"id"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned when a sandbox id is unknown or already destroyed.
var ErrNotFound = fmt.Errorf("sandbox not found")

// Options tune profile construction.
type Options struct {
	// ExtraAllowedPaths extend the default allowed set.
	ExtraAllowedPaths []string

	// MemoryMB overrides DefaultMemoryMB. Clamped to HardMaxMemoryMB.
	MemoryMB int

	// HomeDir overrides the user home directory (primarily for tests).
	HomeDir string
}

// Manager owns the id-keyed sandbox registry. Safe for concurrent use so
// parallel workflow branches can each create their own sandbox.
type Manager struct {
	mu        sync.Mutex
	sandboxes map[string]*Sandbox
	opts      Options
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		sandboxes: make(map[string]*Sandbox),
		opts:      opts,
	}
}

// CreateSandbox classifies the command and, if it is safe, registers and
// returns a new sandbox. A dangerous classification returns the
// *ViolationError and no sandbox is created.
func (m *Manager) CreateSandbox(cmd *types.Command) (*Sandbox, error) {
	if violation := Classify(cmd.Script); violation != nil {
		return nil, violation
	}

	id := uuid.NewString()
	sb := &Sandbox{
		ID:        id,
		Profile:   m.buildProfile(id, cmd),
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.sandboxes[id] = sb
	m.mu.Unlock()

	return sb, nil
}

// GetSandbox looks up a sandbox by id.
func (m *Manager) GetSandbox(id string) (*Sandbox, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sb, ok := m.sandboxes[id]
	return sb, ok
}

// DestroySandbox removes a sandbox. Subsequent lookups of the id fail.
func (m *Manager) DestroySandbox(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sandboxes[id]; !ok {
		return fmt.Errorf("destroying sandbox %s: %w", id, ErrNotFound)
	}
	delete(m.sandboxes, id)
	return nil
}

// IsPathAllowed reports whether the sandbox permits access to path.
// Denied prefixes win over allowed prefixes.
func (m *Manager) IsPathAllowed(path, sandboxID string) bool {
	sb, ok := m.GetSandbox(sandboxID)
	if !ok {
		return false
	}
	for _, denied := range sb.Profile.DeniedPaths {
		if hasPathPrefix(path, denied) {
			return false
		}
	}
	for _, allowed := range sb.Profile.AllowedPaths {
		if hasPathPrefix(path, allowed) {
			return true
		}
	}
	return false
}

// buildProfile assembles the default profile for a command, enabling network
// access only when the script is a recognized network operation.
func (m *Manager) buildProfile(id string, cmd *types.Command) Profile {
	home := m.opts.HomeDir
	if home == "" {
		home, _ = os.UserHomeDir()
	}

	allowed := []string{home, "/tmp", "/usr/bin", "/bin"}
	allowed = append(allowed, m.opts.ExtraAllowedPaths...)

	memory := m.opts.MemoryMB
	if memory <= 0 {
		memory = DefaultMemoryMB
	}
	if memory > HardMaxMemoryMB {
		memory = HardMaxMemoryMB
	}

	return Profile{
		AllowedPaths:  allowed,
		DeniedPaths:   append([]string(nil), systemDeniedPaths...),
		NetworkAccess: isNetworkOperation(cmd.Script),
		MaxMemoryMB:   memory,
		Environment:   sanitizeEnvironment(os.Environ(), id),
	}
}

// sanitizeEnvironment strips privilege-adjacent variables and injects the
// sandbox id plus the restricted mode marker.
func sanitizeEnvironment(base []string, sandboxID string) map[string]string {
	env := make(map[string]string, len(base)+2)
	for _, kv := range base {
		name, value, found := strings.Cut(kv, "=")
		if !found || strippedEnvVars[name] {
			continue
		}
		env[name] = value
	}
	env["TASKPILOT_SANDBOX_ID"] = sandboxID
	env["TASKPILOT_MODE"] = "restricted"
	return env
}

// networkCommands are leading command names recognized as network operations.
var networkCommands = map[string]bool{
	"curl": true, "wget": true, "nc": true, "ssh": true,
	"scp": true, "rsync": true, "ping": true, "dig": true,
}

// isNetworkOperation recognizes HTTP client invocations and similar network
// commands so their sandboxes get network access.
func isNetworkOperation(script string) bool {
	if strings.Contains(script, "http://") || strings.Contains(script, "https://") {
		return true
	}
	fields := strings.Fields(script)
	if len(fields) == 0 {
		return false
	}
	if networkCommands[filepath.Base(fields[0])] {
		return true
	}
	if fields[0] == "git" && len(fields) > 1 {
		switch fields[1] {
		case "clone", "fetch", "pull", "push":
			return true
		}
	}
	return false
}

func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)
	return path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator))
}
