package permission

import (
	"testing"

	"agentcore/core"

	"github.com/stretchr/testify/assert"
)

func TestManager_TrustModeAlwaysAllows(t *testing.T) {
	m := New(DefaultCommandPolicy(), true)
	decision := m.RequestPermission(core.PermissionRequest{
		ToolName:      "shell",
		ActionDesc:    "rm -rf /",
		IsDestructive: true,
	})
	assert.Equal(t, DecisionAllow, decision)
}

func TestManager_NonDestructiveAlwaysAllowed(t *testing.T) {
	m := New(DefaultCommandPolicy(), false)
	decision := m.RequestPermission(core.PermissionRequest{
		ToolName:      "file_read",
		IsDestructive: false,
	})
	assert.Equal(t, DecisionAllow, decision)
}

func TestManager_ShellDenyPattern(t *testing.T) {
	m := New(DefaultCommandPolicy(), false)
	decision := m.RequestPermission(core.PermissionRequest{
		ToolName:      "shell",
		ActionDesc:    "rm -rf /",
		IsDestructive: true,
	})
	assert.Equal(t, DecisionDeny, decision)
}

func TestManager_ShellAutoApprovePattern(t *testing.T) {
	m := New(DefaultCommandPolicy(), false)
	decision := m.RequestPermission(core.PermissionRequest{
		ToolName:      "shell",
		ActionDesc:    "git status",
		IsDestructive: true,
	})
	assert.Equal(t, DecisionAllow, decision)
}

func TestManager_FallsBackToApproveHook(t *testing.T) {
	m := New(DefaultCommandPolicy(), false)
	m.Approve = func(req core.PermissionRequest) Decision {
		return DecisionAllowAlways
	}
	decision := m.RequestPermission(core.PermissionRequest{
		ToolName:      "file_edit",
		ActionDesc:    "overwrite main.go",
		IsDestructive: true,
	})
	assert.Equal(t, DecisionAllowAlways, decision)

	// Second call for the same tool short-circuits without consulting
	// Approve again.
	m.Approve = func(req core.PermissionRequest) Decision {
		t.Fatal("Approve should not be called once allow-always is recorded")
		return DecisionDeny
	}
	decision = m.RequestPermission(core.PermissionRequest{
		ToolName:      "file_edit",
		ActionDesc:    "overwrite other.go",
		IsDestructive: true,
	})
	assert.Equal(t, DecisionAllow, decision)
}

func TestManager_NilApproveDeniesAmbiguous(t *testing.T) {
	m := New(DefaultCommandPolicy(), false)
	decision := m.RequestPermission(core.PermissionRequest{
		ToolName:      "file_edit",
		ActionDesc:    "overwrite main.go",
		IsDestructive: true,
	})
	assert.Equal(t, DecisionDeny, decision)
}
