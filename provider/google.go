package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agentcore/accumulator"
	"agentcore/core"
	"agentcore/secretmanager"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

const googleDefaultModel = "gemini-3-pro-preview"

var googleModels = []core.ModelInfo{
	{Provider: "google", ID: "gemini-3-pro-preview", ContextWindow: 1000000, MaxOutput: 65536},
	{Provider: "google", ID: "gemini-3-flash", ContextWindow: 1000000, MaxOutput: 65536},
}

// GoogleAdapter translates the canonical Request/Response schema to and
// from the Gemini API, grounded in llm2.GoogleProvider.Stream. Unlike
// the Anthropic/OpenAI wire formats, genai's streamed Parts arrive whole
// rather than as incremental text deltas, so each part is pushed to the
// accumulator as a single ContentBlockStart/Delta/Stop triple instead of
// many small deltas.
type GoogleAdapter struct {
	Secrets secretmanager.Manager
}

func (a GoogleAdapter) Name() string { return "google" }

func (a GoogleAdapter) AvailableModels() []core.ModelInfo {
	return append([]core.ModelInfo(nil), googleModels...)
}

func (a GoogleAdapter) SupportsModel(model string) bool {
	for _, m := range googleModels {
		if m.ID == model {
			return true
		}
	}
	return false
}

func (a GoogleAdapter) CountTokens(req core.Request) int {
	total := len(req.System) / 4
	for _, m := range req.Messages {
		total += core.EstimateTokens(m)
	}
	return total
}

func (a GoogleAdapter) client(ctx context.Context) (*genai.Client, error) {
	apiKey, err := a.Secrets.GetSecret("GOOGLE_API_KEY")
	if err != nil {
		apiKey, err = a.Secrets.GetSecret("GEMINI_API_KEY")
		if err != nil {
			return nil, fmt.Errorf("google adapter: %w", err)
		}
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 45 * time.Minute},
	})
}

func (a GoogleAdapter) CompleteStream(ctx context.Context, req core.Request, events chan<- core.StreamEvent) (core.Response, error) {
	client, err := a.client(ctx)
	if err != nil {
		return core.Response{}, err
	}

	model := req.Model
	if model == "" {
		model = googleDefaultModel
	}

	contents, err := messagesToGoogle(req.System, req.Messages)
	if err != nil {
		return core.Response{}, &core.Error{Kind: core.ErrInvalidInput, Message: err.Error(), Wrapped: err}
	}

	config := &genai.GenerateContentConfig{}
	if req.Temperature != 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		toolConfig, err := toolChoiceToGoogle(req.ToolChoice)
		if err != nil {
			return core.Response{}, &core.Error{Kind: core.ErrInvalidInput, Message: err.Error(), Wrapped: err}
		}
		config.ToolConfig = toolConfig
		config.Tools = toolsToGoogle(req.Tools)
	}

	acc := accumulator.New()
	nextIdx := 0
	var lastResult *genai.GenerateContentResponse
	responseModel := model

	stream := client.Models.GenerateContentStream(ctx, model, contents, config)
	for result, err := range stream {
		if err != nil {
			return core.Response{}, classifyGoogleError(err)
		}
		lastResult = result
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			continue
		}
		for _, part := range result.Candidates[0].Content.Parts {
			idx := nextIdx
			nextIdx++

			var block core.ContentBlock
			switch {
			case part.FunctionCall != nil:
				argsBytes, marshalErr := json.Marshal(part.FunctionCall.Args)
				if marshalErr != nil {
					argsBytes = []byte("{}")
				}
				block = core.NewToolUseBlock(part.FunctionCall.ID, part.FunctionCall.Name, argsBytes)
			case part.Text != "":
				block = core.NewTextBlock("")
			default:
				continue
			}

			startEv := core.StreamEvent{Type: core.EventContentBlockStart, Index: idx, Block: &block}
			acc.Push(startEv)
			send(ctx, events, startEv)

			if part.Text != "" {
				deltaEv := core.StreamEvent{Type: core.EventContentBlockDelta, Index: idx, DeltaKind: core.DeltaText, DeltaText: part.Text}
				acc.Push(deltaEv)
				send(ctx, events, deltaEv)
			}

			stopEv := core.StreamEvent{Type: core.EventContentBlockStop, Index: idx}
			acc.Push(stopEv)
			send(ctx, events, stopEv)
		}
	}

	var usage core.Usage
	var finishReason string
	if lastResult != nil {
		responseModel = model
		if lastResult.UsageMetadata != nil {
			usage.InputTokens = int(lastResult.UsageMetadata.PromptTokenCount)
			usage.OutputTokens = int(lastResult.UsageMetadata.CandidatesTokenCount) + int(lastResult.UsageMetadata.ThoughtsTokenCount)
			usage.CacheReadInputTokens = int(lastResult.UsageMetadata.CachedContentTokenCount)
		}
		if len(lastResult.Candidates) > 0 {
			finishReason = string(lastResult.Candidates[0].FinishReason)
		}
	}

	stopReason := googleFinishReasonToCore(finishReason)
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

func googleFinishReasonToCore(reason string) core.StopReason {
	switch reason {
	case "MAX_TOKENS":
		return core.StopMaxTokens
	case "STOP":
		return core.StopEndTurn
	default:
		return core.StopEndTurn
	}
}

func classifyGoogleError(err error) error {
	return &core.Error{Kind: core.ErrServerError, Message: err.Error(), Wrapped: err}
}

// messagesToGoogle maps the canonical Message sequence to genai Contents,
// folding adjacent same-role messages together the way
// googleFromLlm2Messages does, since Gemini requires strictly alternating
// user/model roles.
func messagesToGoogle(system string, messages []core.Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	var currentRole string
	var currentParts []*genai.Part

	flush := func() {
		if len(currentParts) > 0 {
			contents = append(contents, &genai.Content{Parts: currentParts, Role: currentRole})
		}
	}

	if system != "" {
		currentRole = "user"
		currentParts = append(currentParts, &genai.Part{Text: system})
	}

	for _, msg := range messages {
		role := "user"
		if msg.Role == core.RoleAssistant {
			role = "model"
		}

		if role != currentRole && currentRole != "" {
			flush()
			currentParts = nil
		}
		currentRole = role

		for _, b := range msg.Content {
			switch b.Type {
			case core.ContentBlockText:
				if b.Text == "" {
					continue
				}
				currentParts = append(currentParts, &genai.Part{Text: b.Text})
			case core.ContentBlockToolUse:
				args := map[string]any{}
				if len(b.ToolInput) > 0 {
					if err := json.Unmarshal(b.ToolInput, &args); err != nil {
						args = map[string]any{"invalid_json_stringified": string(b.ToolInput)}
					}
				}
				currentParts = append(currentParts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: b.ToolUseID, Name: b.ToolName, Args: args},
				})
			case core.ContentBlockToolResult:
				if currentRole != "user" {
					flush()
					currentParts = nil
					currentRole = "user"
				}
				resp := map[string]any{"output": b.ToolResultText}
				if b.IsError {
					resp = map[string]any{"error": b.ToolResultText}
				}
				currentParts = append(currentParts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{ID: b.ToolUseResultID, Response: resp},
				})
			}
		}
	}
	flush()
	return contents, nil
}

func toolChoiceToGoogle(choice core.ToolChoice) (*genai.ToolConfig, error) {
	var mode genai.FunctionCallingConfigMode
	var allowed []string
	switch choice.Type {
	case core.ToolChoiceAuto, "":
		mode = genai.FunctionCallingConfigModeAuto
	case core.ToolChoiceRequired:
		mode = genai.FunctionCallingConfigModeAny
	case core.ToolChoiceSpecific:
		mode = genai.FunctionCallingConfigModeAny
		allowed = append(allowed, choice.Name)
	case core.ToolChoiceNone:
		mode = genai.FunctionCallingConfigModeNone
	default:
		return nil, fmt.Errorf("unknown tool choice type: %s", choice.Type)
	}
	return &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode, AllowedFunctionNames: allowed},
	}, nil
}

func toolsToGoogle(tools []core.ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		var schema jsonschema.Schema
		_ = json.Unmarshal(t.InputSchema, &schema)
		decls[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  googleSchemaFromJSONSchema(&schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func googleSchemaFromJSONSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(schema.Type),
		Description: schema.Description,
		Required:    schema.Required,
	}
	if schema.Enum != nil {
		for _, v := range schema.Enum {
			out.Enum = append(out.Enum, fmt.Sprintf("%v", v))
		}
	}
	if schema.Properties != nil {
		out.Properties = make(map[string]*genai.Schema)
		for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
			out.Properties[pair.Key] = googleSchemaFromJSONSchema(pair.Value)
		}
	}
	if schema.Items != nil {
		out.Items = googleSchemaFromJSONSchema(schema.Items)
	}
	return out
}
