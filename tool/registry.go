// Package tool implements the Tool Registry & Dispatch component
// (spec §4.3): the uniform contract native Go tools satisfy, a registry
// that resolves a tool_use block's name to an implementation, the
// five-step dispatch algorithm, and the built-in tool set itself
// (file read/write/edit, shell, glob, grep, plan update, spawn
// sub-agent). Grounded in the teacher's dev/*.go activities, each of
// which generates its jsonschema input schema via
// github.com/invopop/jsonschema the same way.
package tool

import (
	"context"
	"fmt"
	"sort"

	"agentcore/core"
)

// Registry resolves tool names to implementations, preserving
// registration order for listings sent to a provider.
type Registry struct {
	order []string
	tools map[string]core.Tool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]core.Tool{}}
}

// Register adds t under t.Name(), replacing any previous registration
// under the same name without disturbing its position in Names().
func (r *Registry) Register(t core.Tool) {
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get resolves name to its Tool, or (nil, false) if unregistered.
func (r *Registry) Get(name string) (core.Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Definitions returns every tool's definition, filtered by perms,
// suitable for inclusion in a core.Request.
func (r *Registry) Definitions(perms core.ToolPermissions) []core.ToolDefinition {
	var defs []core.ToolDefinition
	for _, name := range r.order {
		if !perms.Allows(name) {
			continue
		}
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Dispatch implements the five-step dispatch algorithm: resolve the
// tool by name, check it is permitted for this agent, request
// permission if the tool demands it, execute, and return the result as
// a core.ToolResult keyed to the same tool_use id (its ToBlock method
// makes the tool_result content block). A tool that
// fails any step before execution returns an error-flagged ToolResult
// rather than propagating a Go error, since provider protocols require
// every tool_use to be answered.
func Dispatch(ctx context.Context, reg *Registry, block core.ContentBlock, tctx core.ToolContext, perms core.ToolPermissions, requestPermission func(core.PermissionRequest) bool) core.ToolResult {
	if block.Type != core.ContentBlockToolUse {
		return core.ErrorResult(block.ToolUseID, "dispatch called on non-tool_use block")
	}

	t, ok := reg.Get(block.ToolName)
	if !ok {
		return core.ErrorResult(block.ToolUseID, fmt.Sprintf("unknown tool %q", block.ToolName))
	}

	if !perms.Allows(block.ToolName) {
		return core.ErrorResult(block.ToolUseID, fmt.Sprintf("tool %q is not permitted for this agent", block.ToolName))
	}

	if t.RequiresPermission() {
		if req := t.PermissionRequest(block.ToolInput); req != nil {
			req.ToolName = block.ToolName
			if requestPermission == nil || !requestPermission(*req) {
				return core.ErrorResult(block.ToolUseID, "permission denied")
			}
		}
	}

	return t.Execute(ctx, block.ToolUseID, block.ToolInput, tctx)
}

// sortedNames is a small helper used by tools that must present
// deterministic output (directory listings, glob results).
func sortedNames(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
