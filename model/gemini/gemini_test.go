package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

type fakeClient struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeClient) GenerateContent(_ context.Context, m string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = m
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func collect(t *testing.T, ch <-chan model.StreamEvent) []model.StreamEvent {
	t.Helper()
	var out []model.StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{genai.NewPartFromText(text)}},
	}}}
}

func TestGenerate_Text(t *testing.T) {
	fc := &fakeClient{resp: textResponse("hello")}
	m := NewModelFromClient(fc)

	ch, err := m.Generate(context.Background(), model.Request{
		ModelID:     "gemini-1.5-pro-latest",
		Temperature: 0.5,
		Prompt:      "be nice",
		Conversation: []model.Message{
			{Role: model.RoleUser, Content: "hi"},
		},
		Specifications: []core.CapabilitySpecification{{Name: "search"}},
	})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 3)
	assert.Equal(t, "hello", events[0].Tokens)
	assert.Equal(t, model.BlockModel, events[1].Block.BlockName)
	assert.Equal(t, "hello", *events[2].Block.Value.Generation)

	assert.Equal(t, "gemini-1.5-pro-latest", fc.model)
	require.NotNil(t, fc.config.SystemInstruction)
	assert.Nil(t, fc.config.Tools, "no tools without function call mode")
	assert.InDelta(t, 0.5, float64(*fc.config.Temperature), 1e-6)
}

func TestGenerate_FunctionCalls(t *testing.T) {
	fc := &fakeClient{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: "model", Parts: []*genai.Part{
			genai.NewPartFromText("thinking"),
			{FunctionCall: &genai.FunctionCall{Name: "search", Args: map[string]any{"query": "go"}}},
		}},
	}}}}
	m := NewModelFromClient(fc)

	ch, err := m.Generate(context.Background(), model.Request{
		ModelID:      "gemini",
		FunctionCall: model.FunctionCallAuto,
		Specifications: []core.CapabilitySpecification{{
			Name:   "search",
			Inputs: []core.InputSpecification{{Name: "query", Type: core.InputTypeString}},
		}},
	})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 3)
	assert.Equal(t, model.StreamEventTokens, events[0].Type)
	assert.Equal(t, model.StreamEventFunctionCall, events[1].Type)
	actions := events[2].Block.Value.Actions
	require.Len(t, actions, 1)
	assert.Equal(t, "go", actions[0].Arguments["query"])
	require.NotNil(t, actions[0].FunctionCallID)
	assert.NotEmpty(t, *actions[0].FunctionCallID)

	require.Len(t, fc.config.Tools, 1)
	decl := fc.config.Tools[0].FunctionDeclarations[0]
	assert.Equal(t, "search", decl.Name)
	assert.Equal(t, []string{"query"}, decl.Parameters.Required)
}

func TestGenerate_Errors(t *testing.T) {
	m := NewModelFromClient(&fakeClient{err: errors.New("quota")})
	ch, err := m.Generate(context.Background(), model.Request{ModelID: "gemini"})
	require.NoError(t, err)
	events := collect(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, model.StreamEventError, events[0].Type)
	assert.ErrorContains(t, events[0].Err, "quota")

	m = NewModelFromClient(&fakeClient{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}})
	ch, err = m.Generate(context.Background(), model.Request{ModelID: "gemini"})
	require.NoError(t, err)
	events = collect(t, ch)
	require.Len(t, events, 1)
	assert.Equal(t, model.StreamEventError, events[0].Type)

	_, err = NewModelFromClient(&fakeClient{}).Generate(context.Background(), model.Request{})
	assert.Error(t, err, "model id required")
}

func TestToContents(t *testing.T) {
	contents := ToContents([]model.Message{
		{Role: model.RoleUser, Content: "question"},
		{Role: model.RoleAssistant, FunctionCalls: []model.FunctionCall{{ID: "c1", Name: "search", Arguments: `{"query":"x"}`}}},
		{Role: model.RoleFunction, Name: "search", FunctionCallID: "c1", Content: "result"},
		{Role: model.RoleAssistant, Content: "answer"},
		{Role: model.RoleAssistant},
	})
	require.Len(t, contents, 4)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "x", contents[1].Parts[0].FunctionCall.Args["query"])
	assert.Equal(t, "user", contents[2].Role)
	assert.Equal(t, "search", contents[2].Parts[0].FunctionResponse.Name)
	assert.Equal(t, "result", contents[2].Parts[0].FunctionResponse.Response["content"])
	assert.Equal(t, "answer", contents[3].Parts[0].Text)
}
