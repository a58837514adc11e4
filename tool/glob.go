package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"agentcore/core"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/invopop/jsonschema"
)

type globInput struct {
	Pattern string `json:"pattern" jsonschema:"description=A doublestar glob pattern\\, e.g. **/*.go"`
}

// Glob lists files under the working directory matching a doublestar
// pattern, grounded in the teacher's bulk_search_repository.go use of
// doublestar for repository-wide file matching.
type Glob struct{}

func (Glob) Name() string { return "glob" }

func (Glob) Definition() core.ToolDefinition {
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(&globInput{})
	raw, _ := json.Marshal(schema)
	return core.ToolDefinition{
		Name:        "glob",
		Description: "Find files under the working directory matching a glob pattern (supports ** for recursive matching).",
		InputSchema: raw,
	}
}

func (Glob) RequiresPermission() bool { return false }

func (Glob) PermissionRequest(json.RawMessage) *core.PermissionRequest { return nil }

func (Glob) Execute(ctx context.Context, toolUseID string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	var in globInput
	if err := json.Unmarshal(input, &in); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid input: %s", err))
	}

	fsys := os.DirFS(tctx.WorkingDir)
	matches, err := doublestar.Glob(fsys, in.Pattern)
	if err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid pattern %q: %s", in.Pattern, err))
	}

	tctx.EmitRecall(core.RecallEvent{ToolName: "glob", SearchMatches: matches})
	if len(matches) == 0 {
		return core.SuccessResult(toolUseID, "no files matched")
	}
	return core.SuccessResult(toolUseID, strings.Join(sortedNames(matches), "\n"))
}
