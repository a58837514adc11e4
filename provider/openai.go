package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"agentcore/accumulator"
	"agentcore/core"
	"agentcore/secretmanager"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"
)

const openaiDefaultModel = "gpt-5.2"

var openaiModels = []core.ModelInfo{
	{Provider: "openai", ID: "gpt-5.2", ContextWindow: 400000, MaxOutput: 128000},
	{Provider: "openai", ID: "gpt-5.2-mini", ContextWindow: 400000, MaxOutput: 128000},
}

// OpenAIAdapter translates the canonical Request/Response schema to and
// from the Chat Completions streaming API, grounded in
// llm2.OpenAIProvider.Stream. Unlike the Anthropic wire format, tool
// calls and their results live in separate role="tool" messages rather
// than inline content blocks, so messagesToOpenAI splits each
// core.Message accordingly.
type OpenAIAdapter struct {
	Secrets  secretmanager.Manager
	BaseURL  string
	EnvKey   string // defaults to "OPENAI_API_KEY"
}

func (a OpenAIAdapter) Name() string { return "openai" }

func (a OpenAIAdapter) AvailableModels() []core.ModelInfo {
	return append([]core.ModelInfo(nil), openaiModels...)
}

func (a OpenAIAdapter) SupportsModel(model string) bool {
	for _, m := range openaiModels {
		if m.ID == model {
			return true
		}
	}
	return false
}

func (a OpenAIAdapter) CountTokens(req core.Request) int {
	total := len(req.System) / 4
	for _, m := range req.Messages {
		total += core.EstimateTokens(m)
	}
	return total
}

func (a OpenAIAdapter) client() (openai.Client, error) {
	envKey := a.EnvKey
	if envKey == "" {
		envKey = "OPENAI_API_KEY"
	}
	token, err := a.Secrets.GetSecret(envKey)
	if err != nil {
		return openai.Client{}, fmt.Errorf("openai adapter: %w", err)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(token),
		option.WithHTTPClient(&http.Client{Timeout: 45 * time.Minute}),
	}
	if a.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.BaseURL))
	}
	return openai.NewClient(opts...), nil
}

func (a OpenAIAdapter) CompleteStream(ctx context.Context, req core.Request, events chan<- core.StreamEvent) (core.Response, error) {
	client, err := a.client()
	if err != nil {
		return core.Response{}, err
	}

	model := req.Model
	if model == "" {
		model = openaiDefaultModel
	}

	chatMessages, err := messagesToOpenAI(req.System, req.Messages)
	if err != nil {
		return core.Response{}, &core.Error{Kind: core.ErrInvalidInput, Message: err.Error(), Wrapped: err}
	}

	params := openai.ChatCompletionNewParams{
		Messages: chatMessages,
		Model:    shared.ChatModel(model),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools, err := toolsToOpenAI(req.Tools)
		if err != nil {
			return core.Response{}, &core.Error{Kind: core.ErrInvalidInput, Message: err.Error(), Wrapped: err}
		}
		params.Tools = tools
		params.ToolChoice = toolChoiceToOpenAI(req.ToolChoice)
	}

	stream := client.Chat.Completions.NewStreaming(ctx, params)

	// acc mirrors the events this adapter forwards to observers: Chat
	// Completions has no SDK-native accumulate step (the Anthropic adapter
	// uses its SDK's own message accumulation instead), so this is the
	// adapter-agnostic reconstruction the package exists for.
	acc := accumulator.New()
	toolCallBlockIndex := make(map[int64]int)
	var finishReason string
	var usage core.Usage
	responseModel := model
	hasTextBlock := false
	textBlockIdx := -1
	nextIdx := 0

	for stream.Next() {
		chunk := stream.Current()
		if chunk.Model != "" {
			responseModel = chunk.Model
		}
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage.InputTokens = int(chunk.Usage.PromptTokens)
			usage.OutputTokens = int(chunk.Usage.CompletionTokens)
			usage.CacheReadInputTokens = int(chunk.Usage.PromptTokensDetails.CachedTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
		delta := choice.Delta

		if delta.Content != "" {
			if !hasTextBlock {
				textBlockIdx = nextIdx
				nextIdx++
				hasTextBlock = true
				block := core.NewTextBlock("")
				ev := core.StreamEvent{Type: core.EventContentBlockStart, Index: textBlockIdx, Block: &block}
				acc.Push(ev)
				send(ctx, events, ev)
			}
			ev := core.StreamEvent{Type: core.EventContentBlockDelta, Index: textBlockIdx, DeltaKind: core.DeltaText, DeltaText: delta.Content}
			acc.Push(ev)
			send(ctx, events, ev)
		}

		for _, tc := range delta.ToolCalls {
			idx, exists := toolCallBlockIndex[tc.Index]
			if !exists {
				idx = nextIdx
				nextIdx++
				toolCallBlockIndex[tc.Index] = idx
				name := strings.TrimPrefix(tc.Function.Name, "functions.")
				name = strings.TrimPrefix(name, "function.")
				name = strings.TrimPrefix(name, "tools.")
				name = strings.TrimPrefix(name, "tool.")
				block := core.NewToolUseBlock(tc.ID, name, nil)
				ev := core.StreamEvent{Type: core.EventContentBlockStart, Index: idx, Block: &block}
				acc.Push(ev)
				send(ctx, events, ev)
			}
			if tc.Function.Arguments != "" {
				ev := core.StreamEvent{Type: core.EventContentBlockDelta, Index: idx, DeltaKind: core.DeltaInputJSON, DeltaText: tc.Function.Arguments}
				acc.Push(ev)
				send(ctx, events, ev)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return core.Response{}, classifyOpenAIError(err)
	}

	for idx := 0; idx < nextIdx; idx++ {
		ev := core.StreamEvent{Type: core.EventContentBlockStop, Index: idx}
		acc.Push(ev)
		send(ctx, events, ev)
	}

	stopReason := openaiFinishReasonToCore(finishReason)
	deltaEv := core.StreamEvent{Type: core.EventMessageDelta, StopReason: &stopReason, Usage: &usage}
	acc.Push(deltaEv)
	send(ctx, events, deltaEv)
	send(ctx, events, core.StreamEvent{Type: core.EventMessageStop})

	blocks, finalStopReason, finalUsage := acc.Finish()
	if finalStopReason == nil {
		finalStopReason = &stopReason
	}

	return core.Response{
		Model:      responseModel,
		Content:    blocks,
		StopReason: finalStopReason,
		Usage:      finalUsage,
	}, nil
}

func openaiFinishReasonToCore(reason string) core.StopReason {
	switch reason {
	case "length":
		return core.StopMaxTokens
	case "tool_calls":
		return core.StopToolUse
	case "stop_sequence":
		return core.StopStopSequence
	default:
		return core.StopEndTurn
	}
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if ok := errorsAsOpenAI(err, &apiErr); ok {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return core.NewRateLimitedError(0, apiErr.Error())
		case http.StatusUnauthorized, http.StatusForbidden:
			return &core.Error{Kind: core.ErrAuthenticationFailed, Message: apiErr.Error(), Status: apiErr.StatusCode, Wrapped: err}
		case http.StatusBadRequest:
			return &core.Error{Kind: core.ErrInvalidInput, Message: apiErr.Error(), Status: apiErr.StatusCode, Wrapped: err}
		default:
			return &core.Error{Kind: core.ErrServerError, Message: apiErr.Error(), Status: apiErr.StatusCode, Wrapped: err}
		}
	}
	return &core.Error{Kind: core.ErrNetwork, Message: err.Error(), Wrapped: err}
}

func errorsAsOpenAI(err error, target **openai.Error) bool {
	if apiErr, ok := err.(*openai.Error); ok {
		*target = apiErr
		return true
	}
	return false
}

// messagesToOpenAI splits each core.Message into Chat Completions
// messages: assistant text/tool_use stays on one assistant message (tool
// calls become ToolCalls entries), while tool_result blocks become
// separate role="tool" messages, since the Chat Completions wire format
// has no inline tool_result content block.
func messagesToOpenAI(system string, messages []core.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var out []openai.ChatCompletionMessageParamUnion
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}

	for _, msg := range messages {
		switch msg.Role {
		case core.RoleUser:
			var toolResults []core.ContentBlock
			var text strings.Builder
			for _, b := range msg.Content {
				if b.Type == core.ContentBlockToolResult {
					toolResults = append(toolResults, b)
				} else if b.Type == core.ContentBlockText {
					text.WriteString(b.Text)
				}
			}
			if text.Len() > 0 {
				out = append(out, openai.UserMessage(text.String()))
			}
			for _, tr := range toolResults {
				out = append(out, openai.ToolMessage(tr.ToolResultText, tr.ToolUseResultID))
			}

		case core.RoleAssistant:
			var text strings.Builder
			var toolCalls []openai.ChatCompletionMessageToolCallUnionParam
			for _, b := range msg.Content {
				switch b.Type {
				case core.ContentBlockText:
					text.WriteString(b.Text)
				case core.ContentBlockToolUse:
					input := b.ToolInput
					if len(input) == 0 {
						input = json.RawMessage(`{}`)
					}
					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: b.ToolUseID,
							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      b.ToolName,
								Arguments: string(input),
							},
						},
					})
				}
			}
			assistantMsg := openai.ChatCompletionAssistantMessageParam{}
			if text.Len() > 0 {
				assistantMsg.Content.OfString = param.NewOpt(text.String())
			}
			if len(toolCalls) > 0 {
				assistantMsg.ToolCalls = toolCalls
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantMsg})

		default:
			return nil, fmt.Errorf("unsupported role for openai chat messages: %s", msg.Role)
		}
	}
	return out, nil
}

func toolsToOpenAI(tools []core.ToolDefinition) ([]openai.ChatCompletionToolUnionParam, error) {
	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, t := range tools {
		var schema map[string]interface{}
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("tool %q has invalid input schema: %w", t.Name, err)
		}
		result[i] = openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  schema,
		})
	}
	return result, nil
}

func toolChoiceToOpenAI(choice core.ToolChoice) openai.ChatCompletionToolChoiceOptionUnionParam {
	switch choice.Type {
	case core.ToolChoiceRequired:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: param.NewOpt("required")}
	case core.ToolChoiceNone:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: param.NewOpt("none")}
	case core.ToolChoiceSpecific:
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfFunctionToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice.Name},
			},
		}
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: param.NewOpt("auto")}
	}
}
