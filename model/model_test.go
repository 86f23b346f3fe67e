package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan StreamEvent) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestDefaultCatalog_FindMultiActions(t *testing.T) {
	c := DefaultCatalog()

	m, ok := c.FindMultiActions("openai", "gpt-4o")
	require.True(t, ok)
	assert.Equal(t, 128_000, m.ContextSize)
	assert.Nil(t, m.Delimiters)

	m, ok = c.FindMultiActions("anthropic", "claude-3-5-sonnet-20240620")
	require.True(t, ok)
	require.NotNil(t, m.Delimiters)
	assert.Len(t, m.Delimiters.Delimiters, 3)

	_, ok = c.FindMultiActions("anthropic", "claude-2.1")
	assert.False(t, ok, "entry without multi-actions support must not be returned")

	_, ok = c.FindMultiActions("openai", "unknown")
	assert.False(t, ok)
}

func TestCatalog_FindUnknown(t *testing.T) {
	_, err := DefaultCatalog().Find("nope", "nope")
	assert.ErrorIs(t, err, ErrModelNotFound)

	var nilCatalog *Catalog
	_, err = nilCatalog.Find("openai", "gpt-4o")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestLoadCatalog(t *testing.T) {
	doc := `
models:
  - provider_id: local
    model_id: tiny
    display_name: Tiny
    context_size: 4096
    recommended_top_k: 8
    supports_multi_actions: true
    delimiters:
      incomplete_delimiter_regex: "<\\/?[a-z]*$"
      delimiters:
        - opening_pattern: "<think>"
          closing_pattern: "</think>"
          is_chain_of_thought: true
`
	c, err := LoadCatalog(strings.NewReader(doc))
	require.NoError(t, err)
	m, ok := c.FindMultiActions("local", "tiny")
	require.True(t, ok)
	assert.Equal(t, 4096, m.ContextSize)
	require.NotNil(t, m.Delimiters)
	assert.Equal(t, "<think>", m.Delimiters.Delimiters[0].OpeningPattern)
	assert.True(t, m.Delimiters.Delimiters[0].IsChainOfThought)
}

func TestLoadCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing ids", "models:\n  - context_size: 10\n"},
		{"zero context", "models:\n  - provider_id: a\n    model_id: b\n"},
		{"duplicate delimiters", `
models:
  - provider_id: a
    model_id: b
    context_size: 10
    delimiters:
      delimiters:
        - opening_pattern: "<x>"
          closing_pattern: "<x>"
`},
		{"not yaml", "models: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestCatalog_Merge(t *testing.T) {
	base := DefaultCatalog()
	merged := base.Merge(&Catalog{Models: []Configuration{
		{ProviderID: "openai", ModelID: "gpt-4o", ContextSize: 1000, SupportsMultiActions: true},
		{ProviderID: "local", ModelID: "tiny", ContextSize: 10, SupportsMultiActions: true},
	}})

	m, ok := merged.FindMultiActions("openai", "gpt-4o")
	require.True(t, ok)
	assert.Equal(t, 1000, m.ContextSize)
	_, ok = merged.FindMultiActions("local", "tiny")
	assert.True(t, ok)
	assert.Len(t, merged.Models, len(base.Models)+1)

	orig, _ := base.FindMultiActions("openai", "gpt-4o")
	assert.Equal(t, 128_000, orig.ContextSize, "merge must not mutate the receiver")
}

func TestCatalog_MultiActions(t *testing.T) {
	filtered := DefaultCatalog().MultiActions()
	require.NotEmpty(t, filtered.Models)
	for _, m := range filtered.Models {
		assert.True(t, m.SupportsMultiActions, "%s/%s", m.ProviderID, m.ModelID)
	}
	_, err := filtered.Find("anthropic", "claude-2.1")
	assert.Error(t, err)
}

func TestScriptedModel_ReplaysRounds(t *testing.T) {
	m := NewScriptedModel("scripted", "test",
		ActionsRound("let me look", Call("c1", "search", map[string]any{"q": "x"})),
		GenerationRound("héllo", 2),
	)

	ch, err := m.Generate(context.Background(), Request{ModelID: "a"})
	require.NoError(t, err)
	events := drain(t, ch)
	require.Len(t, events, 3)
	assert.Equal(t, StreamEventTokens, events[0].Type)
	assert.Equal(t, StreamEventFunctionCall, events[1].Type)
	require.NotNil(t, events[2].Block)
	assert.Equal(t, BlockOutput, events[2].Block.BlockName)
	assert.Equal(t, "search", events[2].Block.Value.Actions[0].Name)

	ch, err = m.Generate(context.Background(), Request{ModelID: "b"})
	require.NoError(t, err)
	events = drain(t, ch)
	var text string
	for _, ev := range events {
		if ev.Type == StreamEventTokens {
			text += ev.Tokens
		}
	}
	assert.Equal(t, "héllo", text)
	last := events[len(events)-1]
	assert.Equal(t, "héllo", *last.Block.Value.Generation)

	_, err = m.Generate(context.Background(), Request{})
	assert.Error(t, err, "script exhausted")

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "a", reqs[0].ModelID)
	assert.Equal(t, "b", reqs[1].ModelID)
}

func TestScriptedModel_CallError(t *testing.T) {
	boom := errors.New("boom")
	m := NewScriptedModel("scripted", "test", Round{Err: boom})
	_, err := m.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)
}

func TestGenerationRound_NoTokens(t *testing.T) {
	r := GenerationRound("answer", 0)
	require.Len(t, r.Events, 2)
	assert.Equal(t, BlockModel, r.Events[0].Block.BlockName)
	assert.Equal(t, BlockOutput, r.Events[1].Block.BlockName)
}

func TestRouter_Dispatch(t *testing.T) {
	a := NewScriptedModel("a", "pa", GenerationRound("from a", 0))
	b := NewScriptedModel("b", "pb", GenerationRound("from b", 0))
	r := NewRouter()
	r.Register("pa", a)
	r.Register("pb", b)

	ch, err := r.Generate(context.Background(), Request{ProviderID: "pb"})
	require.NoError(t, err)
	events := drain(t, ch)
	assert.Equal(t, "from b", *events[len(events)-1].Block.Value.Generation)
	assert.Empty(t, a.Requests())
	assert.ElementsMatch(t, []string{"pa", "pb"}, r.Providers())

	_, err = r.Generate(context.Background(), Request{ProviderID: "missing"})
	assert.Error(t, err)
}
