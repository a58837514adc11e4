// Package core defines the canonical data model shared by every component
// of the agent execution engine: messages, content blocks, conversations,
// agent configuration/context, tool contracts, and the stream-event sum
// type produced by provider adapters.
package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentBlockType tags the variant held by a ContentBlock.
type ContentBlockType string

const (
	ContentBlockText       ContentBlockType = "text"
	ContentBlockToolUse    ContentBlockType = "tool_use"
	ContentBlockToolResult ContentBlockType = "tool_result"
)

// ContentBlock is a tagged union over Text, ToolUse, and ToolResult
// variants. Only the fields matching Type are meaningful.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	// Text variant.
	Text string `json:"text,omitempty"`

	// ToolUse variant.
	ToolUseID   string          `json:"id,omitempty"`
	ToolName    string          `json:"name,omitempty"`
	ToolInput   json.RawMessage `json:"input,omitempty"`

	// ToolResult variant.
	ToolUseResultID string `json:"tool_use_id,omitempty"`
	ToolResultText  string `json:"content,omitempty"`
	IsError         bool   `json:"is_error,omitempty"`
}

// NewTextBlock returns a Text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentBlockText, Text: text}
}

// NewToolUseBlock returns a ToolUse content block.
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return ContentBlock{Type: ContentBlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// NewToolResultBlock returns a ToolResult content block.
func NewToolResultBlock(toolUseID, text string, isError bool) ContentBlock {
	return ContentBlock{Type: ContentBlockToolResult, ToolUseResultID: toolUseID, ToolResultText: text, IsError: isError}
}

// Message is one append-only turn in a Conversation.
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    []ContentBlock `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	ToolUseID  string         `json:"tool_use_id,omitempty"`
	TokenCount int            `json:"token_count,omitempty"`
}

// NewMessage constructs a Message with a fresh id and the current time.
func NewMessage(role Role, content ...ContentBlock) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// ToolUses returns every ToolUse block in the message's content, in order.
func (m Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == ContentBlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Text concatenates every Text block's text in the message.
func (m Message) Text() string {
	var s string
	for _, b := range m.Content {
		if b.Type == ContentBlockText {
			s += b.Text
		}
	}
	return s
}

// Conversation is an ordered sequence of Messages plus an optional system
// prompt. The well-formedness invariant (every ToolResult's tool_use_id
// answers an earlier, still-unanswered ToolUse) is checked by Validate;
// Append does not enforce it.
type Conversation struct {
	SystemPrompt  string
	Messages      []Message
	TokenEstimate int
}

// Append adds a message and adds its cost to TokenEstimate using the
// ~chars/4 heuristic the Agent Runner relies on for budget checks.
func (c *Conversation) Append(m Message) {
	c.Messages = append(c.Messages, m)
	c.TokenEstimate += EstimateTokens(m)
}

// EstimateTokens approximates a message's token cost as serialized
// character count divided by four, the same heuristic used throughout
// the budget-sensitive paths of the Runner and Memory Strategy.
func EstimateTokens(m Message) int {
	n := len(m.Role) + len(m.ToolUseID)
	for _, b := range m.Content {
		switch b.Type {
		case ContentBlockText:
			n += len(b.Text)
		case ContentBlockToolUse:
			n += len(b.ToolName) + len(b.ToolInput)
		case ContentBlockToolResult:
			n += len(b.ToolResultText)
		}
	}
	return n / 4
}

// Validate checks the well-formedness invariant: every ToolResult's
// tool_use_id answers exactly one preceding, still-unanswered ToolUse,
// and no ToolUse id is repeated while it is still unanswered (an id may
// be reused once answered). ToolUses left unanswered at the end of the
// conversation are not reported.
func (c Conversation) Validate() error {
	pending := map[string]bool{}
	for _, m := range c.Messages {
		switch m.Role {
		case RoleAssistant:
			for _, b := range m.ToolUses() {
				if pending[b.ToolUseID] {
					return fmt.Errorf("duplicate tool_use id %q", b.ToolUseID)
				}
				pending[b.ToolUseID] = true
			}
		case RoleUser:
			for _, b := range m.Content {
				if b.Type != ContentBlockToolResult {
					continue
				}
				if !pending[b.ToolUseResultID] {
					return fmt.Errorf("tool_result %q has no matching preceding tool_use", b.ToolUseResultID)
				}
				delete(pending, b.ToolUseResultID)
			}
		}
	}
	return nil
}

// MemoryStrategyKind names a configured Memory Strategy implementation.
type MemoryStrategyKind string

const (
	MemoryStrategyNone    MemoryStrategyKind = "none"
	MemoryStrategyWindow  MemoryStrategyKind = "windowed"
	MemoryStrategySummary MemoryStrategyKind = "summarizing"
)

// ToolPermissions names the tool names an Agent Config permits. A nil slice
// means "all registered tools permitted".
type ToolPermissions struct {
	Allow []string
}

// Allows reports whether the permission set permits the named tool.
func (p ToolPermissions) Allows(name string) bool {
	if p.Allow == nil {
		return true
	}
	for _, n := range p.Allow {
		if n == name {
			return true
		}
	}
	return false
}

// AgentConfig is immutable after creation; it parameterizes one Runner
// invocation.
type AgentConfig struct {
	ID             string
	Name           string
	Type           string
	Task           string
	WorkingDir     string
	MaxIterations  int
	TokenBudget    int
	MemoryStrategy MemoryStrategyKind
	ToolPerms      ToolPermissions
	Model          string
	BeadID         string

	MaxRateLimitRetries int
	Trust               bool
}

// AgentResult is the finalized, read-only outcome of one run.
type AgentResult struct {
	ID           string
	Name         string
	Success      bool
	Output       string
	Summary      string
	Iterations   int
	TokensUsed   int
	FilesRead    []string
	FilesChanged []string
	BeadID       string
	StartedAt    time.Time
	Errors       []string
}

// AgentContext is mutable state owned exclusively by the Runner for the
// duration of one run.
type AgentContext struct {
	Config       AgentConfig
	Conversation Conversation

	Iteration    int
	TokensUsed   int
	FilesRead    map[string]struct{}
	FilesChanged map[string]struct{}
	RateAlloc    RateAllocation

	Done    bool
	Errors  []string
	StartAt time.Time
}

// NewAgentContext constructs a fresh, zeroed AgentContext for cfg.
func NewAgentContext(cfg AgentConfig, rate RateAllocation) *AgentContext {
	return &AgentContext{
		Config:       cfg,
		Conversation: Conversation{SystemPrompt: cfg.Task},
		FilesRead:    map[string]struct{}{},
		FilesChanged: map[string]struct{}{},
		RateAlloc:    rate,
		StartAt:      time.Now(),
	}
}

// RecordError appends a human-readable failure description.
func (a *AgentContext) RecordError(msg string) {
	a.Errors = append(a.Errors, msg)
}

// Finalize extracts the read-only AgentResult. success is false whenever
// any error was recorded during the run.
func (a *AgentContext) Finalize(output string) AgentResult {
	success := len(a.Errors) == 0
	summary := summarize(output, a.Errors, success)
	return AgentResult{
		ID:           a.Config.ID,
		Name:         a.Config.Name,
		Success:      success,
		Output:       output,
		Summary:      summary,
		Iterations:   a.Iteration,
		TokensUsed:   a.TokensUsed,
		FilesRead:    keys(a.FilesRead),
		FilesChanged: keys(a.FilesChanged),
		BeadID:       a.Config.BeadID,
		StartedAt:    a.StartAt,
		Errors:       append([]string(nil), a.Errors...),
	}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func summarize(output string, errs []string, success bool) string {
	if !success {
		joined := ""
		for i, e := range errs {
			if i > 0 {
				joined += "; "
			}
			joined += e
		}
		return "Agent failed: " + joined
	}
	const maxLen = 200
	trimmed := output
	if idx := indexOfParagraphBreak(trimmed); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return trimmed
}

func indexOfParagraphBreak(s string) int {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '\n' && s[i+1] == '\n' {
			return i
		}
	}
	return -1
}
