package accumulator

import (
	"encoding/json"
	"testing"

	"agentcore/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textStart(i int) core.StreamEvent {
	b := core.NewTextBlock("")
	return core.StreamEvent{Type: core.EventContentBlockStart, Index: i, Block: &b}
}

func textDelta(i int, s string) core.StreamEvent {
	return core.StreamEvent{Type: core.EventContentBlockDelta, Index: i, DeltaKind: core.DeltaText, DeltaText: s}
}

func blockStop(i int) core.StreamEvent {
	return core.StreamEvent{Type: core.EventContentBlockStop, Index: i}
}

func msgDelta(sr core.StopReason) core.StreamEvent {
	return core.StreamEvent{Type: core.EventMessageDelta, StopReason: &sr}
}

// Scenario 6 from the testable properties: streaming text accumulation.
func TestFinish_TextAccumulation(t *testing.T) {
	a := New()
	for _, ev := range []core.StreamEvent{
		textStart(0),
		textDelta(0, "Hello "),
		textDelta(0, "World"),
		blockStop(0),
		msgDelta(core.StopEndTurn),
		{Type: core.EventMessageStop},
	} {
		a.Push(ev)
	}
	blocks, stop, _ := a.Finish()
	require.Len(t, blocks, 1)
	assert.Equal(t, "Hello World", blocks[0].Text)
	require.NotNil(t, stop)
	assert.Equal(t, core.StopEndTurn, *stop)
	assert.True(t, a.HasTextOutput())
}

func TestFinish_ToolUseMalformedJSONFallsBackToEmptyObject(t *testing.T) {
	a := New()
	b := core.NewToolUseBlock("t1", "file_read", nil)
	a.Push(core.StreamEvent{Type: core.EventContentBlockStart, Index: 0, Block: &b})
	a.Push(core.StreamEvent{Type: core.EventContentBlockDelta, Index: 0, DeltaKind: core.DeltaInputJSON, DeltaText: `{"path": "x`})
	a.Push(blockStop(0))

	blocks, _, _ := a.Finish()
	require.Len(t, blocks, 1)
	assert.JSONEq(t, `{}`, string(blocks[0].ToolInput))
}

func TestFinish_ToolUseValidJSON(t *testing.T) {
	a := New()
	b := core.NewToolUseBlock("t1", "file_read", nil)
	a.Push(core.StreamEvent{Type: core.EventContentBlockStart, Index: 0, Block: &b})
	a.Push(core.StreamEvent{Type: core.EventContentBlockDelta, Index: 0, DeltaKind: core.DeltaInputJSON, DeltaText: `{"path":`})
	a.Push(core.StreamEvent{Type: core.EventContentBlockDelta, Index: 0, DeltaKind: core.DeltaInputJSON, DeltaText: `"/tmp/x"}`})
	a.Push(blockStop(0))

	blocks, _, _ := a.Finish()
	var got map[string]string
	require.NoError(t, json.Unmarshal(blocks[0].ToolInput, &got))
	assert.Equal(t, "/tmp/x", got["path"])
}

func TestDelta_OutOfRangeIndexTolerated(t *testing.T) {
	a := New()
	assert.NotPanics(t, func() {
		a.Push(textDelta(5, "ignored"))
	})
	blocks, _, _ := a.Finish()
	assert.Empty(t, blocks)
}
