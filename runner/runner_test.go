package runner

import (
	"context"
	"encoding/json"
	"testing"

	"agentcore/core"
	"agentcore/memory"
	"agentcore/provider"
	"agentcore/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers with a scripted sequence of Responses, one per
// call, so a test can script multi-iteration loops deterministically.
type fakeProvider struct {
	name      string
	responses []core.Response
	calls     int
}

func (f *fakeProvider) Name() string                      { return f.name }
func (f *fakeProvider) AvailableModels() []core.ModelInfo  { return nil }
func (f *fakeProvider) SupportsModel(model string) bool    { return true }
func (f *fakeProvider) CountTokens(req core.Request) int   { return 1 }
func (f *fakeProvider) CompleteStream(ctx context.Context, req core.Request, events chan<- core.StreamEvent) (core.Response, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	resp := f.responses[idx]
	for _, b := range resp.Content {
		block := b
		events <- core.StreamEvent{Type: core.EventContentBlockStart, Block: &block}
		events <- core.StreamEvent{Type: core.EventContentBlockStop}
	}
	events <- core.StreamEvent{Type: core.EventMessageStop}
	return resp, nil
}

func textResponse(text string) core.Response {
	sr := core.StopEndTurn
	return core.Response{Content: []core.ContentBlock{core.NewTextBlock(text)}, StopReason: &sr}
}

func toolUseResponse(toolName, toolUseID string) core.Response {
	sr := core.StopToolUse
	return core.Response{
		Content:    []core.ContentBlock{core.NewToolUseBlock(toolUseID, toolName, json.RawMessage(`{}`))},
		StopReason: &sr,
	}
}

// recallingTool emits a RecallEvent marking one file read, regardless of
// input, so dispatch-loop recall propagation can be asserted directly.
type recallingTool struct{}

func (recallingTool) Name() string { return "reader" }
func (recallingTool) Definition() core.ToolDefinition {
	return core.ToolDefinition{Name: "reader", Description: "reads a fixed file", InputSchema: json.RawMessage(`{"type":"object"}`)}
}
func (recallingTool) RequiresPermission() bool                                 { return false }
func (recallingTool) PermissionRequest(json.RawMessage) *core.PermissionRequest { return nil }
func (recallingTool) Execute(ctx context.Context, id string, input json.RawMessage, tctx core.ToolContext) core.ToolResult {
	tctx.EmitRecall(core.RecallEvent{ToolName: "reader", FilesRead: []string{"notes.txt"}})
	return core.SuccessResult(id, "read notes.txt")
}

func newTestRunner(p provider.Provider, tools *tool.Registry) *Runner {
	reg := provider.NewRegistry()
	reg.Register(p)
	return &Runner{
		Providers:         reg,
		Tools:             tools,
		RequestPermission: func(core.PermissionRequest) bool { return true },
	}
}

func TestRun_NaturalCompletionOnNoToolUse(t *testing.T) {
	p := &fakeProvider{name: "fake", responses: []core.Response{textResponse("all done")}}
	runner := newTestRunner(p, tool.NewRegistry())

	actx := core.NewAgentContext(core.AgentConfig{ID: "a1", MaxIterations: 10}, nil)
	result := runner.Run(context.Background(), actx, "any-model", "fake")

	assert.True(t, result.Success)
	assert.Equal(t, "all done", result.Output)
	assert.Equal(t, 1, result.Iterations)
}

func TestRun_StopsAtMaxIterations(t *testing.T) {
	p := &fakeProvider{name: "fake", responses: []core.Response{toolUseResponse("reader", "tu1")}}
	reg := tool.NewRegistry()
	reg.Register(recallingTool{})
	runner := newTestRunner(p, reg)

	actx := core.NewAgentContext(core.AgentConfig{ID: "a1", MaxIterations: 2}, nil)
	result := runner.Run(context.Background(), actx, "any-model", "fake")

	assert.Equal(t, 2, result.Iterations)
}

func TestRun_ToolDispatchPopulatesRecall(t *testing.T) {
	p := &fakeProvider{name: "fake", responses: []core.Response{
		toolUseResponse("reader", "tu1"),
		textResponse("finished reading"),
	}}
	reg := tool.NewRegistry()
	reg.Register(recallingTool{})
	runner := newTestRunner(p, reg)

	actx := core.NewAgentContext(core.AgentConfig{ID: "a1", MaxIterations: 10}, nil)
	result := runner.Run(context.Background(), actx, "any-model", "fake")

	require.True(t, result.Success)
	require.Len(t, result.FilesRead, 1)
	assert.Equal(t, "notes.txt", result.FilesRead[0])
	require.NoError(t, actx.Conversation.Validate())
}

func TestRun_UnknownProviderFails(t *testing.T) {
	runner := newTestRunner(&fakeProvider{name: "fake"}, tool.NewRegistry())
	actx := core.NewAgentContext(core.AgentConfig{ID: "a1", MaxIterations: 1}, nil)
	result := runner.Run(context.Background(), actx, "any-model", "other-provider")

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
}

func TestRun_MemoryCompactionRunsWhenOverBudget(t *testing.T) {
	p := &fakeProvider{name: "fake", responses: []core.Response{
		toolUseResponse("reader", "tu1"),
		toolUseResponse("reader", "tu2"),
		textResponse("done"),
	}}
	reg := tool.NewRegistry()
	reg.Register(recallingTool{})

	progress := make(chan ProgressEvent, 64)
	runner := newTestRunner(p, reg)
	runner.Memory = memory.Trimmed{KeepLast: 2}
	runner.Progress = progress

	actx := core.NewAgentContext(core.AgentConfig{ID: "a1", MaxIterations: 10, TokenBudget: 1}, nil)
	result := runner.Run(context.Background(), actx, "any-model", "fake")

	assert.True(t, result.Success)

	sawMemoryAction := false
	close(progress)
	for ev := range progress {
		if ev.Kind == ProgressMemoryAction {
			sawMemoryAction = true
		}
	}
	assert.True(t, sawMemoryAction)
}
