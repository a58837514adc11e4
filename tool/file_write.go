package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"agentcore/core"

	"github.com/invopop/jsonschema"
)

type fileWriteInput struct {
	Path    string `json:"path" jsonschema:"description=Path to the file to write\\, relative to the working directory or absolute"`
	Content string `json:"content" jsonschema:"description=Full content to write to the file\\, replacing anything already there"`
}

// FileWrite creates or overwrites a file with literal content. It is
// destructive (can clobber existing files) and always requires
// permission.
type FileWrite struct{}

func (FileWrite) Name() string { return "file_write" }

func (FileWrite) Definition() core.ToolDefinition {
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(&fileWriteInput{})
	raw, _ := json.Marshal(schema)
	return core.ToolDefinition{
		Name:        "file_write",
		Description: "Create or overwrite a file with the given content.",
		InputSchema: raw,
	}
}

func (FileWrite) RequiresPermission() bool { return true }

func (FileWrite) PermissionRequest(input json.RawMessage) *core.PermissionRequest {
	var in fileWriteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return &core.PermissionRequest{ActionDesc: "write file (unparseable input)", IsDestructive: true}
	}
	_, err := os.Stat(in.Path)
	overwriting := err == nil
	desc := "create file " + in.Path
	if overwriting {
		desc = "overwrite existing file " + in.Path
	}
	return &core.PermissionRequest{
		ActionDesc:     desc,
		AffectedPaths:  []string{in.Path},
		IsDestructive:  overwriting,
	}
}

func (FileWrite) Execute(ctx context.Context, toolUseID string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	var in fileWriteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid input: %s", err))
	}

	path := resolvePath(tctx.WorkingDir, in.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("creating parent directories for %s: %s", in.Path, err))
	}
	if err := os.WriteFile(path, []byte(in.Content), 0644); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("writing %s: %s", in.Path, err))
	}

	tctx.EmitRecall(core.RecallEvent{ToolName: "file_write", FilesWritten: []string{in.Path}})
	return core.SuccessResult(toolUseID, fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path))
}
