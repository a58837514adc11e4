package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"agentcore/core"

	"github.com/invopop/jsonschema"
)

type spawnSubAgentInput struct {
	Name string `json:"name" jsonschema:"description=A short name for the sub-agent\\, used in logs and progress events"`
	Task string `json:"task" jsonschema:"description=The task description handed to the sub-agent as its own Agent Config Task"`
}

// SpawnFunc runs a sub-agent to completion and returns its
// core.AgentResult. It is supplied by the Runner composition root
// rather than imported directly, since runner necessarily imports tool
// to build its registry and a direct reverse import would cycle.
type SpawnFunc func(ctx context.Context, task, name string) (core.AgentResult, error)

// SpawnSubAgent runs a nested, bounded agent loop and returns its
// summary. It never requires permission itself; the destructive
// actions a sub-agent takes are gated by its own Permission Manager.
type SpawnSubAgent struct {
	Spawn SpawnFunc
}

func (SpawnSubAgent) Name() string { return "spawn_sub_agent" }

func (SpawnSubAgent) Definition() core.ToolDefinition {
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(&spawnSubAgentInput{})
	raw, _ := json.Marshal(schema)
	return core.ToolDefinition{
		Name:        "spawn_sub_agent",
		Description: "Delegate a bounded sub-task to a fresh agent run and return its summary.",
		InputSchema: raw,
	}
}

func (SpawnSubAgent) RequiresPermission() bool { return false }

func (SpawnSubAgent) PermissionRequest(json.RawMessage) *core.PermissionRequest { return nil }

func (s SpawnSubAgent) Execute(ctx context.Context, toolUseID string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	var in spawnSubAgentInput
	if err := json.Unmarshal(input, &in); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid input: %s", err))
	}
	if s.Spawn == nil {
		return core.ErrorResult(toolUseID, "sub-agent spawning is not configured")
	}

	result, err := s.Spawn(ctx, in.Task, in.Name)
	if err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("sub-agent failed: %s", err))
	}
	if !result.Success {
		return core.ErrorResult(toolUseID, result.Summary)
	}
	return core.SuccessResult(toolUseID, result.Summary)
}
