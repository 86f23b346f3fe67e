package agentloop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

func websearchAgent() *core.AgentConfiguration {
	return &core.AgentConfiguration{
		SID:   "agent",
		Name:  "Helper",
		Model: core.ModelSelector{ProviderID: "openai", ModelID: "gpt-4o"},
		Actions: []core.ActionConfiguration{
			&core.WebsearchConfiguration{ActionBase: core.ActionBase{SID: "ws", Name: "web_search", Description: "Search the web."}},
		},
		MaxToolsUsePerRun: 2,
	}
}

func TestAgentLoop_RunAgentSync(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = true

	scripted := model.NewScriptedModel("mock", "openai",
		model.ActionsRound("", model.Call("fc-1", "web_search", map[string]any{"query": "weather"})),
		model.GenerationRound("Sunny.", 2),
	)
	loop, err := New(func(o *Options) {
		o.Config = cfg
		o.Logger = logging.NoOpLogger{}
		o.Model = scripted
		o.Registry = tool.NewRegistry(tool.EchoRunners()...)
	})
	require.NoError(t, err)
	defer loop.Close() //nolint:errcheck

	require.NoError(t, loop.RegisterAgent(websearchAgent()))

	user := &core.UserMessage{SID: "u1", Content: "Weather?", Context: core.UserContext{Username: "ada"}}
	events, err := loop.RunAgentSync(context.Background(), "agent", nil, user, nil)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, core.EventTypeAgentMessageSuccess, last.Header().Type)
	require.NotNil(t, loop.Metrics())
}

func TestAgentLoop_RunAgentSyncError(t *testing.T) {
	scripted := model.NewScriptedModel("mock", "openai",
		model.ActionsRound("", model.Call("fc-1", "teleport", nil)),
	)
	loop, err := New(func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Model = scripted
		o.Registry = tool.NewRegistry(tool.EchoRunners()...)
	})
	require.NoError(t, err)
	require.NoError(t, loop.RegisterAgent(websearchAgent()))

	user := &core.UserMessage{SID: "u1", Content: "Go", Context: core.UserContext{Username: "ada"}}
	events, err := loop.RunAgentSync(context.Background(), "agent", nil, user, nil)

	var aerr *core.AgentError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AgentError, got %v", err)
	}
	assert.Equal(t, core.ErrorCodeActionNotFound, aerr.Code)
	assert.Equal(t, core.EventTypeAgentError, events[len(events)-1].Header().Type)
	assert.Nil(t, loop.Metrics())
}

func TestAgentLoop_UnknownConfiguration(t *testing.T) {
	loop, err := New(func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Model = model.NewScriptedModel("mock", "openai")
	})
	require.NoError(t, err)

	_, err = loop.RunAgent(context.Background(), "missing", nil, &core.UserMessage{SID: "u"}, nil)
	require.Error(t, err)
}

func TestNewRouter(t *testing.T) {
	router, err := NewRouter(context.Background(), config.ProvidersConfig{
		OpenAI:    config.ProviderConfig{APIKey: "sk-test", BaseURL: "http://localhost:1"},
		Anthropic: config.ProviderConfig{APIKey: "sk-ant-test"},
	})
	require.NoError(t, err)

	providers := router.Providers()
	sort.Strings(providers)
	assert.Equal(t, []string{ProviderAnthropic, ProviderOpenAI}, providers)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  - provider_id: openai
    model_id: gpt-custom
    display_name: Custom
    context_size: 8000
    supports_multi_actions: true
`), 0o600))

	catalog, err := loadCatalog(path)
	require.NoError(t, err)
	_, ok := catalog.FindMultiActions("openai", "gpt-custom")
	assert.True(t, ok)
	_, ok = catalog.FindMultiActions("openai", "gpt-4o")
	assert.True(t, ok)

	_, err = loadCatalog(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestAgentLoop_Chat(t *testing.T) {
	scripted := model.NewScriptedModel("mock", "openai",
		model.GenerationRound("Hello Ada.", 4),
		model.GenerationRound("Still here.", 4),
	)
	loop, err := New(func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Model = scripted
	})
	require.NoError(t, err)
	require.NoError(t, loop.RegisterAgent(websearchAgent()))

	for i, text := range []string{"Hi", "Are you there?"} {
		user := &core.UserMessage{SID: core.NewID(), Content: text, Context: core.UserContext{Username: "ada"}}
		msg, events, err := loop.Chat(context.Background(), "conv-1", "agent", user)
		require.NoError(t, err)
		for range events {
		}
		assert.Equal(t, core.AgentMessageStatusSucceeded, msg.Status(), "turn %d", i)
	}

	conv := loop.Sessions().Get("conv-1")
	require.Len(t, conv.Latest(), 4)
	assert.Equal(t, "Still here.", conv.Latest()[3].(*core.AgentMessage).Content())

	reqs := scripted.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1].Conversation, 3, "second turn sees the first exchange")
}

func functionResultCount(req model.Request) int {
	n := 0
	for _, m := range req.Conversation {
		if m.Role == model.RoleFunction {
			n++
		}
	}
	return n
}

func TestAgentLoop_ActionResultsReachNextRound(t *testing.T) {
	rounds := func() []model.Round {
		return []model.Round{
			model.ActionsRound("", model.Call("fc-1", "web_search", map[string]any{"query": "weather"})),
			model.GenerationRound("Sunny.", 2),
		}
	}
	newLoop := func(t *testing.T, scripted *model.ScriptedModel) *AgentLoop {
		loop, err := New(func(o *Options) {
			o.Logger = logging.NoOpLogger{}
			o.Model = scripted
			o.Registry = tool.NewRegistry(tool.EchoRunners()...)
		})
		require.NoError(t, err)
		require.NoError(t, loop.RegisterAgent(websearchAgent()))
		return loop
	}

	t.Run("RunAgentSync", func(t *testing.T) {
		scripted := model.NewScriptedModel("mock", "openai", rounds()...)
		loop := newLoop(t, scripted)
		defer loop.Close() //nolint:errcheck

		user := &core.UserMessage{SID: "u1", Content: "Weather?", Context: core.UserContext{Username: "ada"}}
		_, err := loop.RunAgentSync(context.Background(), "agent", nil, user, nil)
		require.NoError(t, err)

		reqs := scripted.Requests()
		require.Len(t, reqs, 2)
		assert.Equal(t, 0, functionResultCount(reqs[0]))
		assert.Equal(t, 1, functionResultCount(reqs[1]))
	})

	t.Run("Chat", func(t *testing.T) {
		scripted := model.NewScriptedModel("mock", "openai", rounds()...)
		loop := newLoop(t, scripted)
		defer loop.Close() //nolint:errcheck

		user := &core.UserMessage{SID: "u1", Content: "Weather?", Context: core.UserContext{Username: "ada"}}
		msg, events, err := loop.Chat(context.Background(), "conv-1", "agent", user)
		require.NoError(t, err)
		for range events {
		}
		require.Equal(t, core.AgentMessageStatusSucceeded, msg.Status())

		reqs := scripted.Requests()
		require.Len(t, reqs, 2)
		assert.Equal(t, 1, functionResultCount(reqs[1]))
		assert.Len(t, loop.Sessions().Get("conv-1").Latest(), 2)
	})
}
