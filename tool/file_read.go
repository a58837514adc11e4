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

type fileReadInput struct {
	Path string `json:"path" jsonschema:"description=Path to the file to read\\, relative to the agent's working directory or absolute"`
}

// FileRead reads a file's full contents. It never requires permission:
// reading is non-destructive.
type FileRead struct{}

func (FileRead) Name() string { return "file_read" }

func (FileRead) Definition() core.ToolDefinition {
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(&fileReadInput{})
	raw, _ := json.Marshal(schema)
	return core.ToolDefinition{
		Name:        "file_read",
		Description: "Read the full contents of a file as UTF-8 text.",
		InputSchema: raw,
	}
}

func (FileRead) RequiresPermission() bool { return false }

func (FileRead) PermissionRequest(json.RawMessage) *core.PermissionRequest { return nil }

func (FileRead) Execute(ctx context.Context, toolUseID string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	var in fileReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid input: %s", err))
	}

	path := resolvePath(tctx.WorkingDir, in.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("reading %s: %s", in.Path, err))
	}

	tctx.EmitRecall(core.RecallEvent{ToolName: "file_read", FilesRead: []string{in.Path}})
	return core.SuccessResult(toolUseID, string(data))
}

func resolvePath(workingDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workingDir, path)
}
