// Package background implements the Background Handle (spec §4.10):
// spawn-and-track fire-and-forget agent runs. Grounded in the general
// spawn/track idiom the teacher uses throughout dev/ for Temporal child
// workflows (start, poll non-blocking, await, propagate panics as
// errors), adapted to a plain goroutine plus channel since this core
// has no durable-execution engine to lean on.
package background

import (
	"context"
	"fmt"

	"agentcore/core"
)

// Handle tracks one agent run spawned onto its own goroutine.
type Handle struct {
	ID     string
	Name   string
	cancel context.CancelFunc
	done   chan struct{}
	result core.AgentResult
	err    error
}

// Spawn starts fn on its own goroutine and returns a Handle immediately.
// A panic inside fn is recovered and surfaced from Wait as an error
// prefixed "Agent task panicked", mirroring the teacher's Temporal
// activity panic-to-error convention for child workflows that otherwise
// have no caller able to observe a goroutine crash.
func Spawn(ctx context.Context, id, name string, fn func(context.Context) core.AgentResult) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{ID: id, Name: name, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				h.err = fmt.Errorf("Agent task panicked: %v", r)
			}
		}()
		h.result = fn(runCtx)
	}()

	return h
}

// IsRunning polls the underlying task without blocking.
func (h *Handle) IsRunning() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the task completes (or ctx is cancelled) and returns
// its result, or the panic-derived error if the task crashed.
func (h *Handle) Wait(ctx context.Context) (core.AgentResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return core.AgentResult{}, ctx.Err()
	}
}

// Cancel aborts the background task's context; cleanup beyond that is
// whatever the task's own suspension points provide, per spec.md §5's
// cancellation model.
func (h *Handle) Cancel() {
	h.cancel()
}
