// Package memory implements the Memory Strategy component (spec §4.8):
// deciding how to keep a growing core.Conversation within an Agent
// Config's token budget without ever orphaning a tool_use/tool_result
// pair, grounded in the teacher's llm2.chat_history trimming
// conventions.
package memory

import "agentcore/core"

// ActionKind discriminates what CompactToBudget decided to do.
type ActionKind int

const (
	// ActionNone means the conversation already fits; no messages were
	// dropped.
	ActionNone ActionKind = iota
	// ActionTrimmed means the oldest Count messages (in well-formed
	// tool_use/tool_result pairs) were dropped.
	ActionTrimmed
	// ActionNeedsSummarization means trimming alone cannot bring the
	// conversation under budget; the caller should summarize Messages
	// before retrying. The core itself never summarizes — no
	// summarization provider is wired per the spec's design notes — so
	// this action is logged and surfaced to the caller, not acted on
	// automatically.
	ActionNeedsSummarization
)

// Action is the result of one CompactToBudget call.
type Action struct {
	Kind     ActionKind
	Count    int             // ActionTrimmed: number of messages removed
	Messages []core.Message  // ActionNeedsSummarization: the candidate messages to summarize
}

// Strategy decides how a conversation should be shrunk. Trimmed is the
// only strategy with a built-in implementation. AgentConfig's
// MemoryStrategy kind is not mapped to a Strategy anywhere: the Runner
// uses whichever Strategy it is given.
type Strategy interface {
	CompactToBudget(conv *core.Conversation, budget int) Action
}

// Trimmed drops the oldest messages, always removing a tool_use and its
// paired tool_result together so Conversation.Validate never sees an
// orphan, until the conversation's token estimate fits within budget or
// KeepLast messages remain, whichever comes first.
type Trimmed struct {
	// KeepLast is the minimum number of trailing messages CompactToBudget will
	// never remove, so the most recent turn always survives even if it
	// alone exceeds budget.
	KeepLast int
}

func (t Trimmed) CompactToBudget(conv *core.Conversation, budget int) Action {
	if conv.TokenEstimate <= budget {
		return Action{Kind: ActionNone}
	}

	keepLast := t.KeepLast
	if keepLast <= 0 {
		keepLast = 2
	}

	removed := 0
	for conv.TokenEstimate > budget && len(conv.Messages) > keepLast {
		n := removalSpan(conv.Messages)
		if n == 0 || len(conv.Messages)-n < keepLast {
			break
		}
		for i := 0; i < n; i++ {
			conv.TokenEstimate -= core.EstimateTokens(conv.Messages[0])
			conv.Messages = conv.Messages[1:]
			removed++
		}
	}

	if conv.TokenEstimate <= budget {
		if removed == 0 {
			return Action{Kind: ActionNone}
		}
		return Action{Kind: ActionTrimmed, Count: removed}
	}

	return Action{Kind: ActionNeedsSummarization, Messages: append([]core.Message(nil), conv.Messages...)}
}

// removalSpan returns how many leading messages must be dropped
// together to avoid orphaning a tool_use/tool_result pair: normally 1,
// but 2 when the leading message is an assistant turn whose tool_use
// id(s) are resolved by the very next message.
func removalSpan(messages []core.Message) int {
	if len(messages) == 0 {
		return 0
	}
	head := messages[0]
	if head.Role != core.RoleAssistant {
		return 1
	}
	uses := head.ToolUses()
	if len(uses) == 0 {
		return 1
	}
	if len(messages) < 2 {
		return 1
	}
	next := messages[1]
	pending := map[string]bool{}
	for _, u := range uses {
		pending[u.ToolUseID] = true
	}
	for _, b := range next.Content {
		if b.Type == core.ContentBlockToolResult {
			delete(pending, b.ToolUseResultID)
		}
	}
	if len(pending) == 0 {
		return 2
	}
	return 1
}
