package provider

import (
	"encoding/json"
	"testing"

	"agentcore/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagesToGoogle_FoldsAdjacentRoles(t *testing.T) {
	messages := []core.Message{
		core.NewMessage(core.RoleUser, core.NewTextBlock("hi")),
		core.NewMessage(core.RoleAssistant, core.NewTextBlock("hello")),
	}
	contents, err := messagesToGoogle("be terse", messages)
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "model", contents[1].Role)
}

func TestMessagesToGoogle_ToolResultForcesUserRole(t *testing.T) {
	messages := []core.Message{
		core.NewMessage(core.RoleAssistant, core.NewToolUseBlock("tu1", "reader", json.RawMessage(`{}`))),
		core.NewMessage(core.RoleUser, core.NewToolResultBlock("tu1", "ok", false)),
	}
	contents, err := messagesToGoogle("", messages)
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, "model", contents[0].Role)
	assert.Equal(t, "user", contents[1].Role)
	require.Len(t, contents[1].Parts, 1)
	require.NotNil(t, contents[1].Parts[0].FunctionResponse)
}

func TestToolChoiceToGoogle_Specific(t *testing.T) {
	cfg, err := toolChoiceToGoogle(core.ToolChoice{Type: core.ToolChoiceSpecific, Name: "reader"})
	require.NoError(t, err)
	assert.Equal(t, []string{"reader"}, cfg.FunctionCallingConfig.AllowedFunctionNames)
}

func TestToolsToGoogle_ConvertsSchema(t *testing.T) {
	tools := []core.ToolDefinition{
		{Name: "reader", Description: "reads a file", InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)},
	}
	out := toolsToGoogle(tools)
	require.Len(t, out, 1)
	require.Len(t, out[0].FunctionDeclarations, 1)
	decl := out[0].FunctionDeclarations[0]
	assert.Equal(t, "reader", decl.Name)
	require.NotNil(t, decl.Parameters)
	assert.Contains(t, decl.Parameters.Required, "path")
}

func TestGoogleFinishReasonToCore(t *testing.T) {
	assert.Equal(t, core.StopMaxTokens, googleFinishReasonToCore("MAX_TOKENS"))
	assert.Equal(t, core.StopEndTurn, googleFinishReasonToCore("STOP"))
}
