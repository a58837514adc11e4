package core

import (
	"context"
	"encoding/json"
	"regexp"
)

var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidToolName reports whether name satisfies the Tool Definition name
// constraint shared by built-in, external, and MCP tools.
func ValidToolName(name string) bool {
	return name != "" && toolNamePattern.MatchString(name)
}

// ToolDefinition describes a tool's public contract to a provider.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolResult is the outcome of one tool invocation, tagged Success/Error.
type ToolResult struct {
	ToolUseID string
	IsError   bool
	Text      string
}

// SuccessResult builds a non-error ToolResult.
func SuccessResult(toolUseID, text string) ToolResult {
	return ToolResult{ToolUseID: toolUseID, Text: text}
}

// ErrorResult builds an error ToolResult.
func ErrorResult(toolUseID, text string) ToolResult {
	return ToolResult{ToolUseID: toolUseID, IsError: true, Text: text}
}

// ToBlock converts a ToolResult into its ContentBlock wire shape.
func (r ToolResult) ToBlock() ContentBlock {
	return NewToolResultBlock(r.ToolUseID, r.Text, r.IsError)
}

// PermissionRequest describes one consent-gating decision point.
type PermissionRequest struct {
	ToolName         string
	ActionDesc       string
	AffectedPaths    []string
	IsDestructive    bool
}

// RecallEvent is a first-class signal emitted by a tool describing what it
// accessed, consumed by the Agent Runner, which folds its file lists into
// the Agent Context's FilesRead/FilesChanged sets (SearchMatches is not
// used there). This resolves the spec's
// track_file_access open question in favor of a dedicated channel rather
// than deriving recall from tool inputs after the fact.
type RecallEvent struct {
	ToolName     string
	FilesRead    []string
	FilesWritten []string
	FilesEdited  []string
	SearchMatches []string
}

// ToolContext is the borrowed, read-only view handed to a tool's execute
// method. Tools never see the full AgentContext.
type ToolContext struct {
	Context    context.Context
	WorkingDir string
	AgentID    string
	Trust      bool
	Recall     chan<- RecallEvent
}

// EmitRecall sends ev on the recall channel without blocking; it drops the
// event under backpressure, matching the spec's "non-blocking and lossy
// under load" requirement for the recall side-channel.
func (tc ToolContext) EmitRecall(ev RecallEvent) {
	if tc.Recall == nil {
		return
	}
	select {
	case tc.Recall <- ev:
	default:
	}
}

// Tool is the uniform contract every native, external-subprocess, and
// MCP-exposed tool implements.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	Execute(ctx context.Context, toolUseID string, input json.RawMessage, tctx ToolContext) ToolResult
	PermissionRequest(input json.RawMessage) *PermissionRequest
	RequiresPermission() bool
}

// StreamEventType tags the Stream Event sum type emitted by provider
// adapters while decoding server-sent deltas.
type StreamEventType string

const (
	EventMessageStart      StreamEventType = "message_start"
	EventContentBlockStart StreamEventType = "content_block_start"
	EventContentBlockDelta StreamEventType = "content_block_delta"
	EventContentBlockStop  StreamEventType = "content_block_stop"
	EventMessageDelta      StreamEventType = "message_delta"
	EventMessageStop       StreamEventType = "message_stop"
	EventPing              StreamEventType = "ping"
	EventErrorEvent        StreamEventType = "error"
)

// DeltaKind tags the ContentBlockDelta variant.
type DeltaKind string

const (
	DeltaText       DeltaKind = "text_delta"
	DeltaInputJSON  DeltaKind = "input_json_delta"
)

// StopReason enumerates why a provider stopped generating.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopMaxTokens    StopReason = "max_tokens"
	StopToolUse      StopReason = "tool_use"
	StopStopSequence StopReason = "stop_sequence"
)

// StreamEvent is the tagged variant decoded from a provider's streaming
// wire format into the canonical representation the Accumulator consumes.
type StreamEvent struct {
	Type  StreamEventType
	Index int

	// ContentBlockStart
	Block *ContentBlock

	// ContentBlockDelta
	DeltaKind DeltaKind
	DeltaText string

	// MessageDelta
	StopReason *StopReason
	Usage      *Usage

	// Error
	Err error
}

// Usage reports token accounting for one completion.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
}
