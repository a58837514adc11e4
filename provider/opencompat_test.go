package provider

import (
	"encoding/json"
	"testing"

	"agentcore/core"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagesToOpenAICompat_SplitsToolResultIntoToolMessage(t *testing.T) {
	messages := []core.Message{
		core.NewMessage(core.RoleAssistant, core.NewToolUseBlock("tu1", "reader", json.RawMessage(`{"path":"a.go"}`))),
		core.NewMessage(core.RoleUser, core.NewToolResultBlock("tu1", "contents", false)),
	}
	out, err := messagesToOpenAICompat("be helpful", messages)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, out[1].Role)
	require.Len(t, out[1].ToolCalls, 1)
	assert.Equal(t, openai.ChatMessageRoleTool, out[2].Role)
	assert.Equal(t, "tu1", out[2].ToolCallID)
}

func TestToolsToOpenAICompat_ConvertsSchema(t *testing.T) {
	tools := []core.ToolDefinition{
		{Name: "reader", Description: "reads", InputSchema: json.RawMessage(`{"type":"object"}`)},
	}
	out := toolsToOpenAICompat(tools)
	require.Len(t, out, 1)
	assert.Equal(t, "reader", out[0].Function.Name)
}

func TestOpenAICompatAdapter_NameDefaultsWhenLabelUnset(t *testing.T) {
	a := OpenAICompatAdapter{}
	assert.Equal(t, "openai_compat", a.Name())
	a.Label = "vllm"
	assert.Equal(t, "vllm", a.Name())
}
