// Package permission tracks capability grants and gates elevated commands.
package permission

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/taskpilot/taskpilot/internal/types"
)

// DeniedError reports a command blocked before any process was spawned.
type DeniedError struct {
	Kind types.PermissionKind
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s capability not authorized", e.Kind)
}

// Requester resolves a pending permission request. Implementations may block
// until a human answers; the call must honor ctx cancellation.
type Requester interface {
	Request(ctx context.Context, kind types.PermissionKind, description string) (bool, error)
}

// RequesterFunc adapts a function to the Requester interface.
type RequesterFunc func(ctx context.Context, kind types.PermissionKind, description string) (bool, error)

func (f RequesterFunc) Request(ctx context.Context, kind types.PermissionKind, description string) (bool, error) {
	return f(ctx, kind, description)
}

// AutoDeny refuses every request. It is the default when no Requester is
// wired, so unattended runs fail closed.
var AutoDeny = RequesterFunc(func(context.Context, types.PermissionKind, string) (bool, error) {
	return false, nil
})

// AutoGrant approves every request. Intended for tests and trusted scripts.
var AutoGrant = RequesterFunc(func(context.Context, types.PermissionKind, string) (bool, error) {
	return true, nil
})

var (
	networkPattern    = regexp.MustCompile(`^\s*(curl|wget|nc|ssh|scp|rsync)\b|https?://`)
	filesystemPattern = regexp.MustCompile(`^\s*(rm|mv|chmod|chown|ln)\b|\brm\s|\bmv\s`)
)

// RequiredKind reports the capability a command needs, if any. A command
// needs a grant when it is flagged RequiresPermission or when its script
// matches a permission-requiring pattern.
func RequiredKind(cmd *types.Command) (types.PermissionKind, bool) {
	if cmd.PermissionKind != "" {
		return cmd.PermissionKind, true
	}
	if networkPattern.MatchString(cmd.Script) {
		return types.PermissionNetwork, true
	}
	if filesystemPattern.MatchString(cmd.Script) {
		return types.PermissionFilesystem, true
	}
	if cmd.RequiresPermission {
		return types.PermissionSystemCommand, true
	}
	return "", false
}

// Manager tracks which capability grants the user has authorized.
// All methods are safe for concurrent use.
type Manager struct {
	mu        sync.Mutex
	grants    map[types.PermissionKind]bool
	requester Requester
}

// NewManager creates a Manager. A nil requester falls back to AutoDeny.
func NewManager(requester Requester) *Manager {
	if requester == nil {
		requester = AutoDeny
	}
	return &Manager{
		grants:    make(map[types.PermissionKind]bool),
		requester: requester,
	}
}

// Grant records a capability as authorized.
func (m *Manager) Grant(kind types.PermissionKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[kind] = true
}

// Revoke withdraws a capability.
func (m *Manager) Revoke(kind types.PermissionKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.grants, kind)
}

// IsGranted reports whether a capability is currently authorized.
func (m *Manager) IsGranted(kind types.PermissionKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grants[kind]
}

// Authorize gates a command on its required capability. When the capability
// is not yet granted the call suspends on the Requester; an approval is
// remembered for subsequent commands, a refusal returns *DeniedError.
func (m *Manager) Authorize(ctx context.Context, cmd *types.Command) error {
	kind, required := RequiredKind(cmd)
	if !required {
		return nil
	}
	if m.IsGranted(kind) {
		return nil
	}

	granted, err := m.requester.Request(ctx, kind, cmd.Description)
	if err != nil {
		return fmt.Errorf("requesting %s permission: %w", kind, err)
	}
	if !granted {
		return &DeniedError{Kind: kind}
	}

	m.Grant(kind)
	return nil
}
