// Package gemini provides an implementation of model.Model on top of the
// Google Gen AI SDK (Gemini models).
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// Client is the subset of the Gen AI SDK used by Model. It allows tests to
// substitute a fake.
type Client interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// SDKClient wraps the official SDK client to satisfy Client.
type SDKClient struct {
	client *genai.Client
}

// NewSDKClient creates a new SDKClient from an SDK client.
func NewSDKClient(client *genai.Client) *SDKClient {
	return &SDKClient{client: client}
}

// GenerateContent calls the SDK's GenerateContent method.
func (c *SDKClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.client.Models.GenerateContent(ctx, model, contents, config)
}

// Options configure the Gemini adapter.
type Options struct {
	// Model overrides Request.ModelID when non-empty.
	Model           string
	MaxOutputTokens int32
}

// Model wraps GenerateContent behind the generic model.Model interface.
type Model struct {
	client Client
	opts   Options
}

// NewModel creates a Gemini model backed by an API key.
func NewModel(ctx context.Context, apiKey string, optFns ...func(o *Options)) (*Model, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewModelFromClient(NewSDKClient(client), optFns...), nil
}

// NewModelFromClient creates a Gemini model from an existing client.
func NewModelFromClient(client Client, optFns ...func(o *Options)) *Model {
	opts := Options{MaxOutputTokens: 4096}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.StreamEvent, error) {
	name := req.ModelID
	if m.opts.Model != "" {
		name = m.opts.Model
	}
	if name == "" {
		return nil, fmt.Errorf("gemini: model id is required")
	}

	temperature := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}
	if req.Prompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(req.Prompt)}}
	}
	if req.FunctionCall != model.FunctionCallNone && len(req.Specifications) > 0 {
		config.Tools = ToTools(req.Specifications)
	}
	contents := ToContents(req.Conversation)

	out := make(chan model.StreamEvent, 8)
	go func() {
		defer close(out)

		resp, err := m.client.GenerateContent(ctx, name, contents, config)
		if err != nil {
			send(ctx, out, model.ErrorEvent(fmt.Errorf("gemini api error: %w", err)))
			return
		}
		for _, ev := range fromResponse(resp) {
			if !send(ctx, out, ev) {
				return
			}
		}
	}()
	return out, nil
}

// ToContents converts the digest to Gemini Content format.
func ToContents(conversation []model.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(conversation))
	for _, msg := range conversation {
		role := "user"
		if msg.Role == model.RoleAssistant {
			role = "model"
		}

		parts := make([]*genai.Part, 0)
		if msg.Content != "" && msg.Role != model.RoleFunction {
			parts = append(parts, genai.NewPartFromText(msg.Content))
		}
		for _, fc := range msg.FunctionCalls {
			args := map[string]any{}
			if fc.Arguments != "" {
				_ = json.Unmarshal([]byte(fc.Arguments), &args)
			}
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{ID: fc.ID, Name: fc.Name, Args: args},
			})
		}
		if msg.Role == model.RoleFunction {
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.FunctionCallID,
					Name:     msg.Name,
					Response: map[string]any{"content": msg.Content},
				},
			})
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// ToTools converts capability specifications to Gemini function declarations.
func ToTools(specs []core.CapabilitySpecification) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(specs))
	for _, spec := range specs {
		schema := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema, len(spec.Inputs)),
		}
		for _, in := range spec.Inputs {
			schema.Properties[in.Name] = &genai.Schema{
				Type:        toType(in.Type),
				Description: in.Description,
			}
			schema.Required = append(schema.Required, in.Name)
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func toType(t core.InputType) genai.Type {
	switch t {
	case core.InputTypeNumber:
		return genai.TypeNumber
	case core.InputTypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// fromResponse converts a Gemini response into normalized stream events.
func fromResponse(resp *genai.GenerateContentResponse) []model.StreamEvent {
	if resp == nil || len(resp.Candidates) == 0 {
		return []model.StreamEvent{model.ErrorEvent(fmt.Errorf("gemini: no candidates in response"))}
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return []model.StreamEvent{model.ErrorEvent(fmt.Errorf("gemini: content blocked by safety filters"))}
	}

	var text strings.Builder
	var actions []model.OutputAction
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.FunctionCall != nil {
				id := part.FunctionCall.ID
				if id == "" {
					// Gemini does not always provide ids.
					id = core.NewID()
				}
				args := part.FunctionCall.Args
				if args == nil {
					args = map[string]any{}
				}
				actions = append(actions, model.OutputAction{FunctionCallID: &id, Name: part.FunctionCall.Name, Arguments: args})
				continue
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}

	var events []model.StreamEvent
	if text.Len() > 0 {
		events = append(events, model.TokensEvent(text.String()))
	}
	if len(actions) > 0 {
		return append(events, model.FunctionCallEvent(), model.OutputEvent(model.Output{Actions: actions}))
	}
	gen := text.String()
	return append(events,
		model.StreamEvent{Type: model.StreamEventBlockExecution, Block: &model.BlockExecution{BlockName: model.BlockModel, Value: &model.Output{Generation: &gen}}},
		model.OutputEvent(model.Output{Generation: &gen}),
	)
}

func send(ctx context.Context, out chan<- model.StreamEvent, ev model.StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- ev:
		return true
	}
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "google_ai_studio"}
}
