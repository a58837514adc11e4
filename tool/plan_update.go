package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"agentcore/core"

	"github.com/invopop/jsonschema"
)

type planUpdateInput struct {
	Steps     []string `json:"steps" jsonschema:"description=Ordered list of remaining plan steps"`
	Completed []string `json:"completed,omitempty" jsonschema:"description=Steps just marked complete"`
}

// PlanStore is the in-memory record a PlanUpdate tool mutates. The
// Runner does not read it; whoever builds the registry holds the store.
type PlanStore struct {
	mu        sync.Mutex
	Steps     []string
	Completed []string
}

func (s *PlanStore) snapshot() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Steps...), append([]string(nil), s.Completed...)
}

// PlanUpdate records the agent's current step-by-step plan so observers
// (and a future session resume) can see progress without parsing free
// text. Non-destructive: it never requires permission.
type PlanUpdate struct {
	Store *PlanStore
}

func (PlanUpdate) Name() string { return "plan_update" }

func (PlanUpdate) Definition() core.ToolDefinition {
	schema := (&jsonschema.Reflector{DoNotReference: true}).Reflect(&planUpdateInput{})
	raw, _ := json.Marshal(schema)
	return core.ToolDefinition{
		Name:        "plan_update",
		Description: "Record the agent's current plan: remaining steps and steps just completed.",
		InputSchema: raw,
	}
}

func (PlanUpdate) RequiresPermission() bool { return false }

func (PlanUpdate) PermissionRequest(json.RawMessage) *core.PermissionRequest { return nil }

func (p PlanUpdate) Execute(ctx context.Context, toolUseID string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	var in planUpdateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return core.ErrorResult(toolUseID, fmt.Sprintf("invalid input: %s", err))
	}
	if p.Store == nil {
		return core.ErrorResult(toolUseID, "plan store not configured")
	}

	p.Store.mu.Lock()
	p.Store.Steps = in.Steps
	p.Store.Completed = append(p.Store.Completed, in.Completed...)
	p.Store.mu.Unlock()

	return core.SuccessResult(toolUseID, fmt.Sprintf("plan updated: %d remaining step(s)", len(in.Steps)))
}
