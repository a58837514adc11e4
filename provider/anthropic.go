package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agentcore/core"
	"agentcore/secretmanager"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

const (
	anthropicDefaultModel     = "claude-opus-4-5"
	anthropicDefaultMaxTokens = 16000
)

var anthropicModels = []core.ModelInfo{
	{Provider: "anthropic", ID: "claude-opus-4-5", ContextWindow: 200000, MaxOutput: 32000},
	{Provider: "anthropic", ID: "claude-sonnet-4-5", ContextWindow: 200000, MaxOutput: 64000},
	{Provider: "anthropic", ID: "claude-haiku-4-5", ContextWindow: 200000, MaxOutput: 16000},
}

// AnthropicAdapter translates the canonical Request/Response schema to
// and from the Anthropic Messages API, grounded in
// llm2.AnthropicProvider.Stream.
type AnthropicAdapter struct {
	Secrets secretmanager.Manager
}

func (a AnthropicAdapter) Name() string { return "anthropic" }

func (a AnthropicAdapter) AvailableModels() []core.ModelInfo {
	return append([]core.ModelInfo(nil), anthropicModels...)
}

func (a AnthropicAdapter) SupportsModel(model string) bool {
	for _, m := range anthropicModels {
		if m.ID == model {
			return true
		}
	}
	return false
}

func (a AnthropicAdapter) CountTokens(req core.Request) int {
	total := len(req.System) / 4
	for _, m := range req.Messages {
		total += core.EstimateTokens(m)
	}
	return total
}

func (a AnthropicAdapter) client() (anthropic.Client, error) {
	token, err := a.Secrets.GetSecret("ANTHROPIC_API_KEY")
	if err != nil {
		return anthropic.Client{}, fmt.Errorf("anthropic adapter: %w", err)
	}
	httpClient := &http.Client{Timeout: 45 * time.Minute}
	return anthropic.NewClient(
		option.WithHTTPClient(httpClient),
		option.WithAPIKey(token),
	), nil
}

func (a AnthropicAdapter) CompleteStream(ctx context.Context, req core.Request, events chan<- core.StreamEvent) (core.Response, error) {
	client, err := a.client()
	if err != nil {
		return core.Response{}, err
	}

	model := req.Model
	if model == "" {
		model = anthropicDefaultModel
	}

	maxTokens := int64(anthropicDefaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
	}
	if req.Temperature != 0 {
		params.Temperature = anthropic.Opt(float64(req.Temperature))
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msgs, err := messagesToAnthropic(req.Messages)
	if err != nil {
		return core.Response{}, &core.Error{Kind: core.ErrInvalidInput, Message: err.Error(), Wrapped: err}
	}
	params.Messages = msgs

	if len(req.Tools) > 0 {
		tools, err := toolsToAnthropic(req.Tools)
		if err != nil {
			return core.Response{}, &core.Error{Kind: core.ErrInvalidInput, Message: err.Error(), Wrapped: err}
		}
		params.Tools = tools
		params.ToolChoice = toolChoiceToAnthropic(req.ToolChoice)
	}

	stream := client.Messages.NewStreaming(ctx, params)

	var finalMessage anthropic.Message
	blockIndexMap := make(map[int64]int)
	nextBlockIndex := 0

	for stream.Next() {
		event := stream.Current()
		if err := finalMessage.Accumulate(event); err != nil {
			return core.Response{}, &core.Error{Kind: core.ErrStreamError, Message: "accumulating anthropic event", Wrapped: err}
		}

		switch evt := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			idx := nextBlockIndex
			blockIndexMap[evt.Index] = idx
			nextBlockIndex++

			var block core.ContentBlock
			switch evt.ContentBlock.Type {
			case "text":
				block = core.NewTextBlock("")
			case "tool_use":
				block = core.NewToolUseBlock(evt.ContentBlock.ID, evt.ContentBlock.Name, nil)
			default:
				block = core.NewTextBlock("")
			}
			send(ctx, events, core.StreamEvent{Type: core.EventContentBlockStart, Index: idx, Block: &block})

		case anthropic.ContentBlockDeltaEvent:
			idx, ok := blockIndexMap[evt.Index]
			if !ok {
				continue
			}
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				send(ctx, events, core.StreamEvent{Type: core.EventContentBlockDelta, Index: idx, DeltaKind: core.DeltaText, DeltaText: delta.Text})
			case anthropic.InputJSONDelta:
				send(ctx, events, core.StreamEvent{Type: core.EventContentBlockDelta, Index: idx, DeltaKind: core.DeltaInputJSON, DeltaText: delta.PartialJSON})
			}

		case anthropic.ContentBlockStopEvent:
			idx, ok := blockIndexMap[evt.Index]
			if !ok {
				continue
			}
			send(ctx, events, core.StreamEvent{Type: core.EventContentBlockStop, Index: idx})

		case anthropic.MessageDeltaEvent:
			sr := anthropicStopReasonToCore(string(evt.Delta.StopReason))
			usage := core.Usage{
				InputTokens:              int(finalMessage.Usage.InputTokens),
				OutputTokens:             int(evt.Usage.OutputTokens),
				CacheCreationInputTokens: int(finalMessage.Usage.CacheCreationInputTokens),
				CacheReadInputTokens:     int(finalMessage.Usage.CacheReadInputTokens),
			}
			send(ctx, events, core.StreamEvent{Type: core.EventMessageDelta, StopReason: &sr, Usage: &usage})
		}
	}

	if stream.Err() != nil {
		return core.Response{}, classifyAnthropicError(stream.Err())
	}
	send(ctx, events, core.StreamEvent{Type: core.EventMessageStop})

	responseModel := string(finalMessage.Model)
	if responseModel == "" {
		responseModel = model
	}
	usage := core.Usage{
		InputTokens:              int(finalMessage.Usage.InputTokens),
		OutputTokens:             int(finalMessage.Usage.OutputTokens),
		CacheCreationInputTokens: int(finalMessage.Usage.CacheCreationInputTokens),
		CacheReadInputTokens:     int(finalMessage.Usage.CacheReadInputTokens),
	}

	content, err := anthropicContentToBlocks(finalMessage.Content)
	if err != nil {
		return core.Response{}, &core.Error{Kind: core.ErrInvalidResponse, Message: err.Error(), Wrapped: err}
	}

	stopReason := anthropicStopReasonToCore(string(finalMessage.StopReason))
	return core.Response{
		ID:         finalMessage.ID,
		Model:      responseModel,
		Content:    content,
		StopReason: &stopReason,
		Usage:      usage,
	}, nil
}

func send(ctx context.Context, events chan<- core.StreamEvent, ev core.StreamEvent) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

func anthropicContentToBlocks(content []anthropic.ContentBlockUnion) ([]core.ContentBlock, error) {
	var blocks []core.ContentBlock
	for _, c := range content {
		switch c.Type {
		case "text":
			blocks = append(blocks, core.NewTextBlock(c.Text))
		case "tool_use":
			blocks = append(blocks, core.NewToolUseBlock(c.ID, c.Name, c.Input))
		}
	}
	return blocks, nil
}

func anthropicStopReasonToCore(reason string) core.StopReason {
	switch reason {
	case "max_tokens":
		return core.StopMaxTokens
	case "tool_use":
		return core.StopToolUse
	case "stop_sequence":
		return core.StopStopSequence
	default:
		return core.StopEndTurn
	}
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if ok := asAnthropicAPIError(err, &apiErr); ok {
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

func asAnthropicAPIError(err error, target **anthropic.Error) bool {
	if apiErr, ok := err.(*anthropic.Error); ok {
		*target = apiErr
		return true
	}
	return false
}

func messagesToAnthropic(messages []core.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	var currentRole anthropic.MessageParamRole
	var currentBlocks []anthropic.ContentBlockParamUnion
	started := false

	flush := func() {
		if len(currentBlocks) == 0 {
			return
		}
		if currentRole == anthropic.MessageParamRoleUser {
			result = append(result, anthropic.NewUserMessage(currentBlocks...))
		} else {
			result = append(result, anthropic.NewAssistantMessage(currentBlocks...))
		}
		currentBlocks = nil
	}

	for _, msg := range messages {
		role := anthropic.MessageParamRoleUser
		if msg.Role == core.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		if started && role != currentRole && len(currentBlocks) > 0 {
			flush()
		}
		currentRole = role
		started = true

		for _, block := range msg.Content {
			ab, err := contentBlockToAnthropic(block)
			if err != nil {
				return nil, err
			}
			currentBlocks = append(currentBlocks, ab)
		}
	}
	flush()
	return result, nil
}

func contentBlockToAnthropic(block core.ContentBlock) (anthropic.ContentBlockParamUnion, error) {
	switch block.Type {
	case core.ContentBlockText:
		return anthropic.NewTextBlock(block.Text), nil
	case core.ContentBlockToolUse:
		var argsMap map[string]interface{}
		if len(block.ToolInput) > 0 {
			if err := json.Unmarshal(block.ToolInput, &argsMap); err != nil {
				argsMap = map[string]interface{}{"invalid_json_stringified": string(block.ToolInput)}
			}
		} else {
			argsMap = map[string]interface{}{}
		}
		return anthropic.ContentBlockParamUnion{
			OfToolUse: &anthropic.ToolUseBlockParam{
				ID:    block.ToolUseID,
				Name:  block.ToolName,
				Input: argsMap,
			},
		}, nil
	case core.ContentBlockToolResult:
		return anthropic.ContentBlockParamUnion{
			OfToolResult: &anthropic.ToolResultBlockParam{
				ToolUseID: block.ToolUseResultID,
				Content: []anthropic.ToolResultBlockParamContentUnion{
					{OfText: &anthropic.TextBlockParam{Text: block.ToolResultText}},
				},
				IsError: anthropic.Bool(block.IsError),
			},
		}, nil
	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported content block type: %s", block.Type)
	}
}

func toolsToAnthropic(tools []core.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		var schema struct {
			Type       string                 `json:"type"`
			Properties map[string]interface{} `json:"properties"`
			Required   []string               `json:"required"`
		}
		if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("tool %q has invalid input schema: %w", t.Name, err)
		}
		result[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.Opt(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema.Properties,
					Required:   schema.Required,
					Type:       constant.Object(schema.Type),
				},
			},
		}
	}
	return result, nil
}

func toolChoiceToAnthropic(choice core.ToolChoice) anthropic.ToolChoiceUnionParam {
	switch choice.Type {
	case core.ToolChoiceRequired:
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case core.ToolChoiceSpecific:
		return anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: choice.Name}}
	case core.ToolChoiceNone:
		return anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	default:
		return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
}
