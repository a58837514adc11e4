package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"agentcore/core"
	"agentcore/permission"

	"github.com/invopop/jsonschema"
)

type shellInput struct {
	Command string `json:"command" jsonschema:"description=The shell command (or script) to execute"`
}

// Shell executes a command via /bin/sh -c, classifying it against a
// CommandPolicy to decide whether it is destructive for the Permission
// Manager's benefit. Grounded in common/command_permission.go's
// evaluate-then-run pattern.
type Shell struct {
	Policy  permission.CommandPolicy
	Timeout time.Duration
}

func (Shell) Name() string { return "shell" }

func (Shell) Definition() core.ToolDefinition {
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(&shellInput{})
	raw, _ := json.Marshal(schema)
	return core.ToolDefinition{
		Name:        "shell",
		Description: "Run a shell command in the agent's working directory and return its combined stdout/stderr.",
		InputSchema: raw,
	}
}

func (Shell) RequiresPermission() bool { return true }

func (s Shell) PermissionRequest(input json.RawMessage) *core.PermissionRequest {
	var in shellInput
	if err := json.Unmarshal(input, &in); err != nil {
		return &core.PermissionRequest{ActionDesc: "run shell command (unparseable input)", IsDestructive: true}
	}
	result, _ := permission.EvaluateScript(s.Policy, in.Command)
	return &core.PermissionRequest{
		ActionDesc:    in.Command,
		IsDestructive: result != permission.AutoApprove,
	}
}

func (s Shell) Execute(ctx context.Context, toolUseID string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	var in shellInput
	if err := json.Unmarshal(input, &in); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid input: %s", err))
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", in.Command)
	cmd.Dir = tctx.WorkingDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	tctx.EmitRecall(core.RecallEvent{ToolName: "shell"})

	if runCtx.Err() != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("command timed out after %s:\n%s", timeout, out.String()))
	}
	if err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("command failed: %s\n%s", err, out.String()))
	}
	return core.SuccessResult(toolUseID, out.String())
}
