package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"agentcore/core"

	"github.com/invopop/jsonschema"
)

type fileEditInput struct {
	Path      string `json:"path" jsonschema:"description=Path to the file to edit"`
	OldString string `json:"old_string" jsonschema:"description=Exact text to find; must occur exactly once in the file"`
	NewString string `json:"new_string" jsonschema:"description=Replacement text"`
}

// FileEdit performs an exact find-and-replace, grounded in the
// teacher's edit_block find-and-replace matching: it fails if
// OldString does not appear, and fails if it appears more than once,
// rather than silently picking one occurrence.
type FileEdit struct{}

func (FileEdit) Name() string { return "file_edit" }

func (FileEdit) Definition() core.ToolDefinition {
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(&fileEditInput{})
	raw, _ := json.Marshal(schema)
	return core.ToolDefinition{
		Name:        "file_edit",
		Description: "Replace an exact, uniquely-occurring substring in a file.",
		InputSchema: raw,
	}
}

func (FileEdit) RequiresPermission() bool { return true }

func (FileEdit) PermissionRequest(input json.RawMessage) *core.PermissionRequest {
	var in fileEditInput
	if err := json.Unmarshal(input, &in); err != nil {
		return &core.PermissionRequest{ActionDesc: "edit file (unparseable input)", IsDestructive: true}
	}
	return &core.PermissionRequest{
		ActionDesc:    "edit " + in.Path,
		AffectedPaths: []string{in.Path},
		IsDestructive: true,
	}
}

func (FileEdit) Execute(ctx context.Context, toolUseID string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	var in fileEditInput
	if err := json.Unmarshal(input, &in); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid input: %s", err))
	}

	path := resolvePath(tctx.WorkingDir, in.Path)
	data, err := os.ReadFile(path)
	if err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("reading %s: %s", in.Path, err))
	}
	content := string(data)

	count := strings.Count(content, in.OldString)
	if count == 0 {
		return core.ErrorResult(toolUseID, fmt.Sprintf("old_string not found in %s", in.Path))
	}
	if count > 1 {
		return core.ErrorResult(toolUseID, fmt.Sprintf("old_string occurs %d times in %s; must be unique", count, in.Path))
	}

	updated := strings.Replace(content, in.OldString, in.NewString, 1)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("writing %s: %s", in.Path, err))
	}

	tctx.EmitRecall(core.RecallEvent{ToolName: "file_edit", FilesEdited: []string{in.Path}})
	return core.SuccessResult(toolUseID, fmt.Sprintf("edited %s", in.Path))
}
