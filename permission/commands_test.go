package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateCommand_AbsolutePathDowngradesAutoApprove(t *testing.T) {
	policy := DefaultCommandPolicy()
	result, _ := EvaluateCommand(policy, "ls -la /tmp")
	assert.Equal(t, RequireApproval, result) // absolute path downgrade
}

func TestEvaluateCommand_AutoApproveNoPath(t *testing.T) {
	policy := DefaultCommandPolicy()
	result, _ := EvaluateCommand(policy, "git status")
	assert.Equal(t, AutoApprove, result)
}

func TestEvaluateCommand_Deny(t *testing.T) {
	policy := DefaultCommandPolicy()
	result, msg := EvaluateCommand(policy, "rm -rf /")
	assert.Equal(t, Deny, result)
	assert.Contains(t, msg, "dangerous")
}

func TestEvaluateCommand_RequireApproval(t *testing.T) {
	policy := DefaultCommandPolicy()
	result, _ := EvaluateCommand(policy, "curl https://example.com")
	assert.Equal(t, RequireApproval, result)
}

func TestEvaluateCommand_UnknownDefaultsToRequireApproval(t *testing.T) {
	policy := DefaultCommandPolicy()
	result, _ := EvaluateCommand(policy, "some-unknown-binary --flag")
	assert.Equal(t, RequireApproval, result)
}

func TestMatchPattern_PrefixMatch(t *testing.T) {
	matched, _ := matchPattern("git status", "git status --short")
	assert.True(t, matched)
}

func TestMatchPattern_RegexMatch(t *testing.T) {
	matched, matches := matchPattern(`.*\.env`, "cat config.env")
	assert.True(t, matched)
	assert.NotEmpty(t, matches)
}

func TestContainsAbsolutePath(t *testing.T) {
	assert.True(t, containsAbsolutePath("cat /etc/passwd"))
	assert.False(t, containsAbsolutePath("cat /dev/null"))
	assert.False(t, containsAbsolutePath("echo hello"))
}

func TestMerge_AccumulatesAcrossPolicies(t *testing.T) {
	base := DefaultCommandPolicy()
	extra := CommandPolicy{Deny: []Pattern{{Pattern: "my-dangerous-tool"}}}
	merged := Merge(base, extra)
	assert.Greater(t, len(merged.Deny), len(base.Deny))
	result, _ := EvaluateCommand(merged, "my-dangerous-tool --go")
	assert.Equal(t, Deny, result)
}

func TestEvaluateScript_DenyWinsAcrossCommands(t *testing.T) {
	policy := DefaultCommandPolicy()
	result, _ := EvaluateScript(policy, "git status && rm -rf /")
	assert.Equal(t, Deny, result)
}

func TestEvaluateScript_AllAutoApprove(t *testing.T) {
	policy := DefaultCommandPolicy()
	result, _ := EvaluateScript(policy, "git status && git log")
	assert.Equal(t, AutoApprove, result)
}
