// Package accumulator reconstructs a structured provider Response from an
// incoming sequence of core.StreamEvent values, the way
// llm2.accumulateAnthropicEventsToMessage does for a single adapter —
// generalized here into an adapter-agnostic, reusable state machine.
package accumulator

import (
	"bytes"
	"encoding/json"

	"agentcore/core"
)

// Accumulator holds the in-progress reconstruction of one streamed
// response. It is not safe for concurrent use; one Accumulator is created
// per in-flight completion.
type Accumulator struct {
	blocks     []core.ContentBlock
	textBuf    map[int]*bytes.Buffer
	jsonBuf    map[int]*bytes.Buffer
	hasText    bool
	stopReason *core.StopReason
	usage      core.Usage
}

// New returns an empty Accumulator ready to consume events.
func New() *Accumulator {
	return &Accumulator{
		textBuf: map[int]*bytes.Buffer{},
		jsonBuf: map[int]*bytes.Buffer{},
	}
}

// Push applies one Stream Event to the accumulator's state. It returns
// nothing; callers decide for themselves which events to forward to
// progress-event observers.
func (a *Accumulator) Push(ev core.StreamEvent) {
	switch ev.Type {
	case core.EventContentBlockStart:
		a.handleStart(ev)
	case core.EventContentBlockDelta:
		a.handleDelta(ev)
	case core.EventContentBlockStop:
		a.handleStop(ev)
	case core.EventMessageDelta:
		if ev.StopReason != nil {
			a.stopReason = ev.StopReason
		}
		if ev.Usage != nil {
			a.usage = *ev.Usage
		}
	case core.EventMessageStart, core.EventMessageStop, core.EventPing, core.EventErrorEvent:
		// Error events propagate to observers without altering accumulated
		// content; MessageStart/Stop/Ping carry no block-level state here.
	}
}

func (a *Accumulator) ensureLen(i int) {
	for len(a.blocks) <= i {
		a.blocks = append(a.blocks, core.ContentBlock{})
	}
}

func (a *Accumulator) handleStart(ev core.StreamEvent) {
	a.ensureLen(ev.Index)
	if ev.Block != nil {
		a.blocks[ev.Index] = *ev.Block
	}
	switch a.blocks[ev.Index].Type {
	case core.ContentBlockText:
		a.textBuf[ev.Index] = &bytes.Buffer{}
	case core.ContentBlockToolUse:
		a.jsonBuf[ev.Index] = &bytes.Buffer{}
		if len(a.blocks[ev.Index].ToolInput) == 0 {
			a.blocks[ev.Index].ToolInput = json.RawMessage(`{}`)
		}
	}
}

func (a *Accumulator) handleDelta(ev core.StreamEvent) {
	// Out-of-range indices are tolerated: the delta passes through with no
	// state change, per the accumulator's tolerance rule.
	if ev.Index < 0 || ev.Index >= len(a.blocks) {
		return
	}
	switch ev.DeltaKind {
	case core.DeltaText:
		buf, ok := a.textBuf[ev.Index]
		if !ok || a.blocks[ev.Index].Type != core.ContentBlockText {
			return
		}
		buf.WriteString(ev.DeltaText)
		a.blocks[ev.Index].Text = buf.String()
		a.hasText = true
	case core.DeltaInputJSON:
		buf, ok := a.jsonBuf[ev.Index]
		if !ok {
			return
		}
		buf.WriteString(ev.DeltaText)
	}
}

func (a *Accumulator) handleStop(ev core.StreamEvent) {
	if ev.Index < 0 || ev.Index >= len(a.blocks) {
		return
	}
	if a.blocks[ev.Index].Type == core.ContentBlockToolUse {
		if buf, ok := a.jsonBuf[ev.Index]; ok {
			raw := buf.Bytes()
			if len(raw) > 0 && json.Valid(raw) {
				a.blocks[ev.Index].ToolInput = append(json.RawMessage(nil), raw...)
			} else {
				// Parse failure never propagates as an error: the block's
				// input falls back to an empty object.
				a.blocks[ev.Index].ToolInput = json.RawMessage(`{}`)
			}
		}
		delete(a.jsonBuf, ev.Index)
	}
	delete(a.textBuf, ev.Index)
}

// HasTextOutput reports whether any text delta was observed.
func (a *Accumulator) HasTextOutput() bool { return a.hasText }

// Finish yields the assembled content blocks, stop reason, and usage
// observed so far.
func (a *Accumulator) Finish() ([]core.ContentBlock, *core.StopReason, core.Usage) {
	return append([]core.ContentBlock(nil), a.blocks...), a.stopReason, a.usage
}
