package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"agentcore/accumulator"
	"agentcore/core"
	"agentcore/secretmanager"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatAdapter targets any OpenAI-compatible Chat Completions
// endpoint (vLLM, Groq, Together, OpenCode Zen, ...) by pointing
// go-openai's client at a custom BaseURL, grounded in the pack's
// provider.NewOpenCodeWithTemp/NewVLLMWithTemp construction pattern
// (openai.DefaultConfig(key) + BaseURL override). Where the pack hand-
// rolls its own SSE parser, this adapter uses go-openai's native
// CreateChatCompletionStream instead, since nothing about a compatible
// endpoint's wire format requires bypassing the client's own decoder.
type OpenAICompatAdapter struct {
	Secrets    secretmanager.Manager
	SecretName string // defaults to "OPENAI_API_KEY"
	BaseURL    string
	ModelList  []core.ModelInfo
	Label      string // provider Name(), e.g. "vllm", "opencode_zen"
}

func (a OpenAICompatAdapter) Name() string {
	if a.Label != "" {
		return a.Label
	}
	return "openai_compat"
}

func (a OpenAICompatAdapter) AvailableModels() []core.ModelInfo {
	return append([]core.ModelInfo(nil), a.ModelList...)
}

func (a OpenAICompatAdapter) SupportsModel(model string) bool {
	for _, m := range a.ModelList {
		if m.ID == model {
			return true
		}
	}
	return false
}

func (a OpenAICompatAdapter) CountTokens(req core.Request) int {
	total := len(req.System) / 4
	for _, m := range req.Messages {
		total += core.EstimateTokens(m)
	}
	return total
}

func (a OpenAICompatAdapter) client() (*openai.Client, error) {
	secretName := a.SecretName
	if secretName == "" {
		secretName = "OPENAI_API_KEY"
	}
	key, err := a.Secrets.GetSecret(secretName)
	if err != nil {
		return nil, fmt.Errorf("%s adapter: %w", a.Name(), err)
	}
	config := openai.DefaultConfig(key)
	if a.BaseURL != "" {
		config.BaseURL = a.BaseURL
	}
	client := openai.NewClientWithConfig(config)
	return client, nil
}

func (a OpenAICompatAdapter) CompleteStream(ctx context.Context, req core.Request, events chan<- core.StreamEvent) (core.Response, error) {
	client, err := a.client()
	if err != nil {
		return core.Response{}, err
	}

	chatMessages, err := messagesToOpenAICompat(req.System, req.Messages)
	if err != nil {
		return core.Response{}, &core.Error{Kind: core.ErrInvalidInput, Message: err.Error(), Wrapped: err}
	}

	ccReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: chatMessages,
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if req.Temperature != 0 {
		ccReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		ccReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		ccReq.Tools = toolsToOpenAICompat(req.Tools)
	}

	stream, err := client.CreateChatCompletionStream(ctx, ccReq)
	if err != nil {
		return core.Response{}, classifyOpenAICompatError(err)
	}
	defer stream.Close()

	acc := accumulator.New()
	toolCallBlockIndex := make(map[int]int)
	var usage core.Usage
	var finishReason string
	responseModel := req.Model
	hasTextBlock := false
	textBlockIdx := -1
	nextIdx := 0

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Response{}, classifyOpenAICompatError(err)
		}
		if chunk.Model != "" {
			responseModel = chunk.Model
		}
		if chunk.Usage != nil {
			usage.InputTokens = chunk.Usage.PromptTokens
			usage.OutputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finishReason = string(choice.FinishReason)
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
			tcIndex := 0
			if tc.Index != nil {
				tcIndex = *tc.Index
			}
			idx, exists := toolCallBlockIndex[tcIndex]
			if !exists {
				idx = nextIdx
				nextIdx++
				toolCallBlockIndex[tcIndex] = idx
				block := core.NewToolUseBlock(tc.ID, tc.Function.Name, nil)
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

func classifyOpenAICompatError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return core.NewRateLimitedError(0, apiErr.Message)
		case 401, 403:
			return &core.Error{Kind: core.ErrAuthenticationFailed, Message: apiErr.Message, Status: apiErr.HTTPStatusCode, Wrapped: err}
		case 400:
			return &core.Error{Kind: core.ErrInvalidInput, Message: apiErr.Message, Status: apiErr.HTTPStatusCode, Wrapped: err}
		default:
			return &core.Error{Kind: core.ErrServerError, Message: apiErr.Message, Status: apiErr.HTTPStatusCode, Wrapped: err}
		}
	}
	return &core.Error{Kind: core.ErrNetwork, Message: err.Error(), Wrapped: err}
}

func messagesToOpenAICompat(system string, messages []core.Message) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleUser:
			var text string
			var toolResults []core.ContentBlock
			for _, b := range msg.Content {
				if b.Type == core.ContentBlockToolResult {
					toolResults = append(toolResults, b)
				} else if b.Type == core.ContentBlockText {
					text += b.Text
				}
			}
			if text != "" {
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
			}
			for _, tr := range toolResults {
				out = append(out, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.ToolResultText,
					ToolCallID: tr.ToolUseResultID,
				})
			}
		case core.RoleAssistant:
			var text string
			var toolCalls []openai.ToolCall
			for _, b := range msg.Content {
				switch b.Type {
				case core.ContentBlockText:
					text += b.Text
				case core.ContentBlockToolUse:
					input := b.ToolInput
					if len(input) == 0 {
						input = json.RawMessage(`{}`)
					}
					toolCalls = append(toolCalls, openai.ToolCall{
						ID:   b.ToolUseID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      b.ToolName,
							Arguments: string(input),
						},
					})
				}
			}
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text, ToolCalls: toolCalls})
		default:
			return nil, fmt.Errorf("unsupported role for openai-compatible chat messages: %s", msg.Role)
		}
	}
	return out, nil
}

func toolsToOpenAICompat(tools []core.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		var schema map[string]interface{}
		_ = json.Unmarshal(t.InputSchema, &schema)
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		}
	}
	return out
}
