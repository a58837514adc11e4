package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationValidate_WellFormed(t *testing.T) {
	var c Conversation
	c.Append(NewMessage(RoleAssistant, NewToolUseBlock("t1", "file_read", nil)))
	c.Append(NewMessage(RoleUser, NewToolResultBlock("t1", "contents", false)))
	require.NoError(t, c.Validate())
}

func TestConversationValidate_OrphanToolResult(t *testing.T) {
	var c Conversation
	c.Append(NewMessage(RoleUser, NewToolResultBlock("missing", "x", false)))
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no matching preceding tool_use")
}

func TestConversationValidate_DuplicateToolUse(t *testing.T) {
	var c Conversation
	c.Append(NewMessage(RoleAssistant, NewToolUseBlock("t1", "file_read", nil)))
	c.Append(NewMessage(RoleUser, NewToolResultBlock("t1", "x", false)))
	c.Append(NewMessage(RoleAssistant, NewToolUseBlock("t1", "file_read", nil)))
	require.NoError(t, c.Validate())
}

func TestAgentContextFinalize_Success(t *testing.T) {
	cfg := AgentConfig{ID: "a1", Name: "test"}
	ctx := NewAgentContext(cfg, nil)
	ctx.Iteration = 2
	result := ctx.Finalize("All done.")
	assert.True(t, result.Success)
	assert.Equal(t, "All done.", result.Summary)
}

func TestAgentContextFinalize_Failure(t *testing.T) {
	cfg := AgentConfig{ID: "a1", Name: "test"}
	ctx := NewAgentContext(cfg, nil)
	ctx.RecordError("Exceeded maximum iterations (2)")
	result := ctx.Finalize("")
	assert.False(t, result.Success)
	assert.Contains(t, result.Summary, "Agent failed:")
	assert.Contains(t, result.Summary, "Exceeded maximum iterations (2)")
}

func TestSummarizeTruncatesAt200Chars(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	s := summarize(string(long), nil, true)
	assert.Equal(t, 203, len(s))
	assert.Equal(t, "...", s[200:])
}

func TestValidToolName(t *testing.T) {
	assert.True(t, ValidToolName("file_read"))
	assert.True(t, ValidToolName("Grep2"))
	assert.False(t, ValidToolName("bad name"))
	assert.False(t, ValidToolName(""))
}
