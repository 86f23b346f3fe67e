// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// Options configures the Anthropic model adapter (max tokens, API key and an
// optional model override).
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		MaxTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{
		client: &client,
		opts:   opts,
	}
}

// NewModelFromClient creates a new Anthropic model from an existing client
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		MaxTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{
		client: client,
		opts:   opts,
	}
}

// Generate implements model.Model. The Messages call is not streamed: the
// text of the response is forwarded as a single tokens event followed by the
// function_call marker (when tools were used) and the OUTPUT block.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.StreamEvent, error) {
	modelID := anthropic.Model(req.ModelID)
	if m.opts.Model != "" {
		modelID = m.opts.Model
	}
	if modelID == "" {
		return nil, fmt.Errorf("anthropic: model id is required")
	}

	params := anthropic.MessageNewParams{
		Model:       modelID,
		Messages:    BuildMessages(req.Conversation),
		MaxTokens:   m.opts.MaxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.Prompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Prompt}}
	}
	if req.FunctionCall != model.FunctionCallNone && len(req.Specifications) > 0 {
		params.Tools = BuildTools(req.Specifications)
	}

	out := make(chan model.StreamEvent, 8)
	go func() {
		defer close(out)

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			send(ctx, out, model.ErrorEvent(fmt.Errorf("anthropic api error: %w", err)))
			return
		}

		var text strings.Builder
		var actions []model.OutputAction
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				text.WriteString(block.AsText().Text)
			case "tool_use":
				toolBlock := block.AsToolUse()
				args := map[string]any{}
				if len(toolBlock.Input) > 0 {
					if err := json.Unmarshal(toolBlock.Input, &args); err != nil {
						send(ctx, out, model.StreamEvent{
							Type:  model.StreamEventBlockExecution,
							Block: &model.BlockExecution{BlockName: model.BlockOutput, Error: fmt.Sprintf("invalid input for %s: %v", toolBlock.Name, err)},
						})
						return
					}
				}
				id := toolBlock.ID
				actions = append(actions, model.OutputAction{FunctionCallID: &id, Name: toolBlock.Name, Arguments: args})
			}
		}

		if text.Len() > 0 && !send(ctx, out, model.TokensEvent(text.String())) {
			return
		}
		if len(actions) > 0 {
			if !send(ctx, out, model.FunctionCallEvent()) {
				return
			}
			send(ctx, out, model.OutputEvent(model.Output{Actions: actions}))
			return
		}
		gen := text.String()
		if !send(ctx, out, model.StreamEvent{
			Type:  model.StreamEventBlockExecution,
			Block: &model.BlockExecution{BlockName: model.BlockModel, Value: &model.Output{Generation: &gen}},
		}) {
			return
		}
		send(ctx, out, model.OutputEvent(model.Output{Generation: &gen}))
	}()

	return out, nil
}

// BuildMessages converts the digest to Anthropic message format. Function
// results become tool_result blocks of a user message and consecutive blocks
// of the same role are merged, as the API requires alternating roles.
func BuildMessages(conversation []model.Message) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	var role anthropic.MessageParamRole
	var blocks []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(blocks) == 0 {
			return
		}
		if role == anthropic.MessageParamRoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		} else {
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		}
		blocks = nil
	}
	push := func(r anthropic.MessageParamRole, b ...anthropic.ContentBlockParamUnion) {
		if len(b) == 0 {
			return
		}
		if r != role {
			flush()
			role = r
		}
		blocks = append(blocks, b...)
	}

	for _, msg := range conversation {
		switch msg.Role {
		case model.RoleUser:
			if msg.Content != "" {
				push(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(msg.Content))
			}
		case model.RoleAssistant:
			var content []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				content = append(content, anthropic.NewTextBlock(msg.Content))
			}
			for _, fc := range msg.FunctionCalls {
				var input any = map[string]any{}
				if fc.Arguments != "" {
					if err := json.Unmarshal([]byte(fc.Arguments), &input); err != nil {
						input = fc.Arguments // fallback to string
					}
				}
				content = append(content, anthropic.NewToolUseBlock(fc.ID, input, fc.Name))
			}
			push(anthropic.MessageParamRoleAssistant, content...)
		case model.RoleFunction:
			push(anthropic.MessageParamRoleUser, anthropic.NewToolResultBlock(msg.FunctionCallID, msg.Content, false))
		}
	}
	flush()

	return messages
}

// BuildTools converts capability specifications to Anthropic tool format.
func BuildTools(specs []core.CapabilitySpecification) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(specs))

	for i, spec := range specs {
		params := spec.Parameters()
		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: params["properties"],
		}
		if required, ok := params["required"].([]string); ok {
			inputSchema.Required = required
		}

		tool := anthropic.ToolUnionParamOfTool(inputSchema, spec.Name)
		if spec.Description != "" && tool.OfTool != nil {
			tool.OfTool.Description = anthropic.String(spec.Description)
		}
		anthropicTools[i] = tool
	}

	return anthropicTools
}

func send(ctx context.Context, out chan<- model.StreamEvent, ev model.StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		return true
	}
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:     string(m.opts.Model),
		Provider: "anthropic",
	}
}
