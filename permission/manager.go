package permission

import (
	"strings"
	"sync"

	"agentcore/core"
)

// Decision is the Permission Manager's answer to a single request.
type Decision int

const (
	DecisionDeny Decision = iota
	DecisionAllow
	DecisionAllowAlways
)

// Manager gates tool execution that the spec classifies as requiring
// consent. In normal state it consults a command policy for shell-like
// tools and otherwise falls back to RequireApproval for anything the
// tool itself flags as destructive; in trust state every request is
// auto-allowed. AllowAlways responses are remembered per tool name so a
// once-approved tool never prompts again for the lifetime of the
// Manager.
type Manager struct {
	mu       sync.Mutex
	trust    bool
	policy   CommandPolicy
	approved map[string]bool

	// Approve is the collaborator hook consulted for anything the
	// Manager cannot decide unilaterally (destructive file edits, shell
	// commands landing in RequireApproval). It returns the human's
	// choice. A nil Approve always denies ambiguous requests, which is
	// the safe default for unattended execution.
	Approve func(req core.PermissionRequest) Decision
}

// New returns a Manager using policy for shell-command classification,
// in trust state when trust is true and in normal state otherwise.
func New(policy CommandPolicy, trust bool) *Manager {
	return &Manager{
		policy:   policy,
		trust:    trust,
		approved: map[string]bool{},
	}
}

// RequestPermission implements the spec's request_permission contract:
// Allow, Deny, or AllowAlways(tool_name). Trust mode always returns
// Allow without consulting the policy or the Approve hook.
func (m *Manager) RequestPermission(req core.PermissionRequest) Decision {
	if m.trust {
		return DecisionAllow
	}

	m.mu.Lock()
	if m.approved[req.ToolName] {
		m.mu.Unlock()
		return DecisionAllow
	}
	m.mu.Unlock()

	if !req.IsDestructive {
		return DecisionAllow
	}

	decision := m.decide(req)

	if decision == DecisionAllowAlways {
		m.mu.Lock()
		m.approved[req.ToolName] = true
		m.mu.Unlock()
	}
	return decision
}

func (m *Manager) decide(req core.PermissionRequest) Decision {
	if strings.EqualFold(req.ToolName, "shell") || strings.EqualFold(req.ToolName, "bash") {
		result, _ := EvaluateCommand(m.policy, req.ActionDesc)
		switch result {
		case Deny:
			return DecisionDeny
		case AutoApprove:
			return DecisionAllow
		}
	}

	if m.Approve == nil {
		return DecisionDeny
	}
	return m.Approve(req)
}

// AllowAlwaysNames returns the set of tool names approved for the
// remainder of the Manager's lifetime. Exposed mainly for tests and
// diagnostics.
func (m *Manager) AllowAlwaysNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.approved))
	for name := range m.approved {
		names = append(names, name)
	}
	return names
}
