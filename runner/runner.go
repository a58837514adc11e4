// Package runner implements the Agent Runner (spec §4.9): the bounded
// iterative loop that drives one agent from its initial task to
// completion, composing a Provider, the Stream Accumulator, the Tool
// Registry & Dispatch, a Permission Manager, a Rate Budget, and a
// Memory Strategy. Grounded in the teacher's dev_agent.go orchestration
// shape (a Go loop driving a provider call, then tool execution, then
// feeding results back), generalized away from Temporal workflow
// durability into a plain goroutine-driven loop, and in
// llm2.anthropic_provider.go's retry-on-rate-limit convention, now
// implemented with github.com/cenkalti/backoff/v5 instead of a
// hand-rolled sleep loop.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agentcore/core"
	"agentcore/logger"
	"agentcore/memory"
	"agentcore/permission"
	"agentcore/provider"
	"agentcore/tool"

	"github.com/cenkalti/backoff/v5"
)

// ProgressEventKind discriminates the coarse progress notifications a
// Runner emits to observers as the loop advances.
type ProgressEventKind string

const (
	ProgressIterationStart ProgressEventKind = "iteration_start"
	ProgressStreamEvent    ProgressEventKind = "stream_event"
	ProgressToolStart      ProgressEventKind = "tool_start"
	ProgressToolResult     ProgressEventKind = "tool_result"
	ProgressMemoryAction   ProgressEventKind = "memory_action"
	ProgressDone           ProgressEventKind = "done"
)

// ProgressEvent is one observable step of the loop, sent to the
// Runner's Progress channel if non-nil.
type ProgressEvent struct {
	Kind      ProgressEventKind
	Iteration int
	Stream    *core.StreamEvent
	ToolName  string
	ToolUseID string
	Memory    *memory.Action
}

// Runner drives Agent Contexts through the loop described in §4.9. One
// Runner can drive many sequential or concurrent agent runs; it holds
// no per-run state itself.
type Runner struct {
	Providers  *provider.Registry
	Tools      *tool.Registry
	Permission *permission.Manager
	Memory     memory.Strategy

	// Progress, if non-nil, receives every ProgressEvent emitted during
	// Run. The Runner never blocks indefinitely on a full channel: sends
	// use a non-blocking select so a slow or absent observer can never
	// stall the loop.
	Progress chan<- ProgressEvent

	// RequestPermission adapts a core.PermissionRequest through
	// Permission into the yes/no tool.Dispatch expects.
	RequestPermission func(core.PermissionRequest) bool
}

// Run drives one Agent Context from its initial task to completion,
// implementing the loop: call the provider (forwarding its stream
// events to Progress), dispatch any tool_use blocks, feed tool_results
// back as the next message, and, when a TokenBudget is set, let Memory
// compact the conversation after each tool-result turn. At the top of
// every iteration it stops if ctx is cancelled, then if MaxIterations
// is reached, then if the TokenBudget is exhausted, recording an error
// for each; after a response it stops on natural completion (no
// tool_use).
func (r *Runner) Run(ctx context.Context, actx *core.AgentContext, modelName string, providerName string) core.AgentResult {
	p, err := r.providerFor(providerName, modelName)
	if err != nil {
		actx.RecordError(err.Error())
		return actx.Finalize("")
	}

	log := logger.Get()

	for {
		select {
		case <-ctx.Done():
			actx.RecordError("cancelled: " + ctx.Err().Error())
			return actx.Finalize("")
		default:
		}

		if actx.Config.MaxIterations > 0 && actx.Iteration >= actx.Config.MaxIterations {
			actx.RecordError(fmt.Sprintf("Exceeded maximum iterations (%d)", actx.Config.MaxIterations))
			return actx.Finalize(lastAssistantText(actx.Conversation))
		}
		if actx.Config.TokenBudget > 0 && actx.TokensUsed >= actx.Config.TokenBudget {
			actx.RecordError("token budget exhausted")
			return actx.Finalize(lastAssistantText(actx.Conversation))
		}

		r.emit(ProgressEvent{Kind: ProgressIterationStart, Iteration: actx.Iteration})

		resp, err := r.callWithRetry(ctx, actx, p)
		if err != nil {
			actx.RecordError(err.Error())
			return actx.Finalize(lastAssistantText(actx.Conversation))
		}

		assistantMsg := core.NewMessage(core.RoleAssistant, resp.Content...)
		actx.Conversation.Append(assistantMsg)
		actx.TokensUsed += resp.Usage.InputTokens + resp.Usage.OutputTokens
		actx.Iteration++

		toolUses := assistantMsg.ToolUses()
		if len(toolUses) == 0 {
			return actx.Finalize(assistantMsg.Text())
		}

		recall := make(chan core.RecallEvent, 16)
		recallDone := make(chan struct{})
		go func() {
			defer close(recallDone)
			for ev := range recall {
				applyRecall(actx, ev)
			}
		}()

		var resultBlocks []core.ContentBlock
		for _, use := range toolUses {
			r.emit(ProgressEvent{Kind: ProgressToolStart, Iteration: actx.Iteration, ToolName: use.ToolName, ToolUseID: use.ToolUseID})

			tctx := core.ToolContext{
				Context:    ctx,
				WorkingDir: actx.Config.WorkingDir,
				AgentID:    actx.Config.ID,
				Trust:      actx.Config.Trust,
				Recall:     recall,
			}
			result := tool.Dispatch(ctx, r.Tools, use, tctx, actx.Config.ToolPerms, r.RequestPermission)
			resultBlocks = append(resultBlocks, result.ToBlock())

			r.emit(ProgressEvent{Kind: ProgressToolResult, Iteration: actx.Iteration, ToolName: use.ToolName, ToolUseID: use.ToolUseID})
		}
		close(recall)
		<-recallDone

		actx.Conversation.Append(core.NewMessage(core.RoleUser, resultBlocks...))

		if r.Memory != nil && actx.Config.TokenBudget > 0 {
			action := r.Memory.CompactToBudget(&actx.Conversation, actx.Config.TokenBudget)
			if action.Kind != memory.ActionNone {
				r.emit(ProgressEvent{Kind: ProgressMemoryAction, Iteration: actx.Iteration, Memory: &action})
				if action.Kind == memory.ActionNeedsSummarization {
					log.Warn().Int("iteration", actx.Iteration).Msg("conversation exceeds token budget and cannot be trimmed further without summarization")
				}
			}
		}
	}
}

func (r *Runner) providerFor(name, model string) (provider.Provider, error) {
	if name != "" {
		return r.Providers.Get(name)
	}
	return r.Providers.ProviderForModel(model)
}

// callWithRetry retries only rate-limited provider errors, up to the
// agent's configured retry ceiling: it waits the server-supplied
// retry-after when there is one and otherwise backs off per
// github.com/cenkalti/backoff/v5's default exponential policy. When the
// retries run out it returns the last provider error.
func (r *Runner) callWithRetry(ctx context.Context, actx *core.AgentContext, p provider.Provider) (core.Response, error) {
	maxRetries := actx.Config.MaxRateLimitRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	req := core.Request{
		Model:      actx.Config.Model,
		Messages:   actx.Conversation.Messages,
		System:     actx.Conversation.SystemPrompt,
		Tools:      r.Tools.Definitions(actx.Config.ToolPerms),
		ToolChoice: core.ToolChoice{Type: core.ToolChoiceAuto},
	}

	estTokens := p.CountTokens(req)
	if actx.RateAlloc != nil {
		if _, err := actx.RateAlloc.WaitForBudget(ctx, estTokens); err != nil {
			return core.Response{}, err
		}
	}

	var lastErr error
	operation := func() (core.Response, error) {
		events := make(chan core.StreamEvent, 16)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for ev := range events {
				r.emitStream(actx.Iteration, ev)
			}
		}()

		resp, err := p.CompleteStream(ctx, req, events)
		close(events)
		<-done

		if err != nil {
			lastErr = err
			if rerr, ok := err.(*core.Error); ok && rerr.IsRetryable() {
				if rerr.RetryAfterSeconds > 0 {
					return core.Response{}, &backoff.RetryAfterError{Duration: time.Duration(rerr.RetryAfterSeconds * float64(time.Second))}
				}
				return core.Response{}, err
			}
			return core.Response{}, backoff.Permanent(err)
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithMaxTries(uint(maxRetries+1)),
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
	)
	if err != nil {
		var retryAfter *backoff.RetryAfterError
		if errors.As(err, &retryAfter) && lastErr != nil {
			err = lastErr
		}
		return core.Response{}, err
	}

	if actx.RateAlloc != nil {
		actx.RateAlloc.RecordUsage(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	}
	return resp, nil
}

func (r *Runner) emit(ev ProgressEvent) {
	if r.Progress == nil {
		return
	}
	select {
	case r.Progress <- ev:
	default:
	}
}

func (r *Runner) emitStream(iteration int, ev core.StreamEvent) {
	if r.Progress == nil {
		return
	}
	select {
	case r.Progress <- ProgressEvent{Kind: ProgressStreamEvent, Iteration: iteration, Stream: &ev}:
	default:
	}
}

// applyRecall folds one RecallEvent into the Agent Context's file
// tracking sets. This is the first-class recall channel the design
// notes resolve in place of the original track_file_access call: tools
// report what they touched, and the Runner is the single consumer that
// aggregates it into AgentResult.
func applyRecall(actx *core.AgentContext, ev core.RecallEvent) {
	for _, f := range ev.FilesRead {
		actx.FilesRead[f] = struct{}{}
	}
	for _, f := range ev.FilesWritten {
		actx.FilesChanged[f] = struct{}{}
	}
	for _, f := range ev.FilesEdited {
		actx.FilesChanged[f] = struct{}{}
	}
}

func lastAssistantText(conv core.Conversation) string {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == core.RoleAssistant {
			if text := conv.Messages[i].Text(); text != "" {
				return text
			}
		}
	}
	return ""
}
