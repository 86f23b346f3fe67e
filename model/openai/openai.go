// Package openai provides an implementation of model.Model using the OpenAI
// Chat Completions API (streaming + function/tool calling). It adapts the
// normalized planning Request into the SDK's message format and translates the
// streamed chunks back into model.StreamEvent values.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"

	"github.com/hupe1980/agentloop/model"
)

// aggCall aggregates partial tool call streaming deltas (id, name, arguments)
// allowing reconstruction of complete calls when the finish reason is emitted.
type aggCall struct{ id, name, args string }

// Options configure the OpenAI model adapter.
type Options struct {
	// Model overrides Request.ModelID when non-empty.
	Model               string
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.StreamEvent, error) {
	params, err := m.buildParams(req)
	if err != nil {
		return nil, err
	}
	out := make(chan model.StreamEvent, 32)
	go func() {
		defer close(out)
		m.handleStreaming(ctx, params, out)
	}()
	return out, nil
}

// BuildMessages converts the digest into OpenAI chat messages, prompt first.
func BuildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Conversation)+1)
	if req.Prompt != "" {
		messages = append(messages, openai.SystemMessage(req.Prompt))
	}
	for _, msg := range req.Conversation {
		switch msg.Role {
		case model.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case model.RoleAssistant:
			if len(msg.FunctionCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(msg.Content))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.FunctionCalls))
			for _, fc := range msg.FunctionCalls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   fc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      fc.Name,
						Arguments: fc.Arguments,
					},
				})
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
		case model.RoleFunction:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.FunctionCallID))
		}
	}
	return messages
}

// buildParams assembles the OpenAI request parameters including tool definitions.
// Tools are only attached when the request allows function calls.
func (m *Model) buildParams(req model.Request) (openai.ChatCompletionNewParams, error) {
	name := req.ModelID
	if m.opts.Model != "" {
		name = m.opts.Model
	}
	if name == "" {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("openai: model id is required")
	}
	params := openai.ChatCompletionNewParams{
		Messages:            BuildMessages(req),
		Model:               name,
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if req.FunctionCall == model.FunctionCallNone || len(req.Specifications) == 0 {
		return params, nil
	}
	tools := make([]openai.ChatCompletionToolParam, len(req.Specifications))
	for i, spec := range req.Specifications {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  spec.Parameters(),
			},
		}
	}
	params.Tools = tools
	return params, nil
}

// handleStreaming processes streaming responses and forwards normalized events.
func (m *Model) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.StreamEvent,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var textBuilder strings.Builder
	toolAgg := map[int64]*aggCall{}
	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content != "" {
				textBuilder.WriteString(ch.Delta.Content)
				if !send(ctx, out, model.TokensEvent(ch.Delta.Content)) {
					return
				}
			}
			if len(ch.Delta.ToolCalls) > 0 {
				if len(toolAgg) == 0 && !send(ctx, out, model.FunctionCallEvent()) {
					return
				}
				aggregateToolCalls(ch, toolAgg)
			}
			if ch.FinishReason != "" {
				for _, ev := range finalEvents(textBuilder.String(), toolAgg) {
					if !send(ctx, out, ev) {
						return
					}
				}
				return
			}
		}
	}
	if err := stream.Err(); err != nil {
		send(ctx, out, model.ErrorEvent(fmt.Errorf("openai streaming error: %w", err)))
		return
	}
	// Stream ended without a finish reason.
	for _, ev := range finalEvents(textBuilder.String(), toolAgg) {
		if !send(ctx, out, ev) {
			return
		}
	}
}

func aggregateToolCalls(ch openai.ChatCompletionChunkChoice, agg map[int64]*aggCall) {
	for _, tc := range ch.Delta.ToolCalls {
		ac, ok := agg[tc.Index]
		if !ok {
			ac = &aggCall{}
			agg[tc.Index] = ac
		}
		if tc.ID != "" {
			ac.id = tc.ID
		}
		if tc.Function.Name != "" {
			ac.name = tc.Function.Name
		}
		if tc.Function.Arguments != "" {
			ac.args += tc.Function.Arguments
		}
	}
}

// finalEvents turns the aggregated stream into the closing block events.
func finalEvents(text string, toolAgg map[int64]*aggCall) []model.StreamEvent {
	if len(toolAgg) == 0 {
		gen := text
		return []model.StreamEvent{
			{Type: model.StreamEventBlockExecution, Block: &model.BlockExecution{BlockName: model.BlockModel, Value: &model.Output{Generation: &gen}}},
			model.OutputEvent(model.Output{Generation: &gen}),
		}
	}
	indexes := make([]int64, 0, len(toolAgg))
	for idx := range toolAgg {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	actions := make([]model.OutputAction, 0, len(indexes))
	for _, idx := range indexes {
		ac := toolAgg[idx]
		args := map[string]any{}
		if strings.TrimSpace(ac.args) != "" {
			if err := json.Unmarshal([]byte(ac.args), &args); err != nil {
				return []model.StreamEvent{{
					Type:  model.StreamEventBlockExecution,
					Block: &model.BlockExecution{BlockName: model.BlockOutput, Error: fmt.Sprintf("invalid arguments for %s: %v", ac.name, err)},
				}}
			}
		}
		id := ac.id
		actions = append(actions, model.OutputAction{FunctionCallID: &id, Name: ac.name, Arguments: args})
	}
	out := model.Output{Actions: actions}
	if text != "" {
		out.Generation = &text
	}
	return []model.StreamEvent{model.OutputEvent(out)}
}

func send(ctx context.Context, out chan<- model.StreamEvent, ev model.StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		return true
	}
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     m.opts.Model,
		Provider: "openai",
	}
}
