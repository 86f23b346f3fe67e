package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/tool"
)

func collect(ch <-chan core.Event) []core.Event {
	var out []core.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func strPtr(s string) *string { return &s }

// rawRunner exposes Run directly for tests that need a misbehaving runner.
type rawRunner struct {
	kind core.ActionKind
	run  func(ctx context.Context, req tool.RunRequest) <-chan tool.Event
}

func (r rawRunner) Kind() core.ActionKind { return r.kind }

func (r rawRunner) BuildSpecification(_ context.Context, action core.ActionConfiguration, name, description string) (*core.CapabilitySpecification, error) {
	return tool.NewSpecification(action, name, description), nil
}

func (r rawRunner) Run(ctx context.Context, req tool.RunRequest) <-chan tool.Event {
	return r.run(ctx, req)
}

func TestActionExecutor_SuccessAppendsRecord(t *testing.T) {
	runner := tool.NewFunctionRunner(core.ActionKindWebsearch, func(_ context.Context, req tool.RunRequest, emit tool.Emitter) (any, error) {
		emit(tool.ProgressEvent{Name: "websearch_progress", Payload: "fetching"})
		return map[string]any{"results": []string{"go.dev"}}, nil
	})
	turn := newTurn(t, "openai", "gpt-4o")
	action := websearch("web_search")
	spec := tool.NewSpecification(action, "web_search", "Search the web.")

	events := collect(NewActionExecutor(tool.NewRegistry(runner)).Execute(turn, core.PlannedAction{
		Action:         action,
		Inputs:         map[string]any{"query": "go"},
		Specification:  spec,
		FunctionCallID: strPtr("fc-1"),
	}, 2, 0))

	require.Len(t, events, 2)
	progress, ok := events[0].(core.ActionProgressEvent)
	require.True(t, ok, "expected progress event, got %T", events[0])
	assert.Equal(t, "websearch_progress", progress.Name)
	assert.Equal(t, core.ActionKindWebsearch, progress.Kind)

	success, ok := events[1].(core.AgentActionSuccessEvent)
	require.True(t, ok, "expected success event, got %T", events[1])
	assert.Equal(t, 2, success.Action.Step)
	assert.Nil(t, success.Action.FunctionCallID, "web search runs without a function call id")
	assert.Equal(t, "web_search", success.Action.Name)

	actions := turn.AgentMessage.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, success.Action.ID, actions[0].ID)
}

func TestActionExecutor_RetrievalRefsOffset(t *testing.T) {
	turn := newTurn(t, "openai", "gpt-4o")
	retrieval := &core.RetrievalConfiguration{
		ActionBase: core.ActionBase{SID: "r1", Name: "search_docs", Description: "Search docs."},
		Query:      core.RetrievalQuery{Mode: "auto"},
	}

	events := collect(NewActionExecutor(tool.NewRegistry(tool.EchoRunners()...)).Execute(turn, core.PlannedAction{
		Action: retrieval,
		Inputs: map[string]any{"query": "release notes"},
	}, 0, 2))

	require.Len(t, events, 2)
	params, ok := events[0].(core.ActionParamsEvent)
	require.True(t, ok, "expected params event, got %T", events[0])
	assert.Equal(t, "retrieval_params", params.Name)
	assert.Equal(t, 2*RefsPerRetrieval, params.Payload["refs_offset"])
	assert.Equal(t, core.EventTypeAgentActionSuccess, events[1].Header().Type)
}

func TestActionExecutor_Failures(t *testing.T) {
	appRun := &core.AppRunConfiguration{ActionBase: core.ActionBase{SID: "app", Name: "run_report", Description: "Run."}}
	tables := &core.TablesQueryConfiguration{ActionBase: core.ActionBase{SID: "tq", Name: "query", Description: "Query."}}

	failing := tool.NewFunctionRunner(core.ActionKindProcess, func(context.Context, tool.RunRequest, tool.Emitter) (any, error) {
		return nil, tool.NewRunnerError("process", "process_quota_exceeded", "quota exceeded")
	})
	plain := tool.NewFunctionRunner(core.ActionKindTablesQuery, func(context.Context, tool.RunRequest, tool.Emitter) (any, error) {
		return nil, errors.New("boom")
	})
	silent := rawRunner{kind: core.ActionKindAppRun, run: func(context.Context, tool.RunRequest) <-chan tool.Event {
		ch := make(chan tool.Event)
		close(ch)
		return ch
	}}
	panicking := rawRunner{kind: core.ActionKindWebsearch, run: func(context.Context, tool.RunRequest) <-chan tool.Event {
		panic("runner exploded")
	}}

	tests := []struct {
		name     string
		registry *tool.Registry
		action   core.PlannedAction
		code     core.ErrorCode
	}{
		{
			name:     "app run without specification",
			registry: tool.NewRegistry(silent),
			action:   core.PlannedAction{Action: appRun},
			code:     core.ErrorCodeParametersGeneration,
		},
		{
			name:     "no runner for kind",
			registry: tool.NewRegistry(),
			action:   core.PlannedAction{Action: tables},
			code:     core.ErrorCodeUnknownActionKind,
		},
		{
			name:     "nil action",
			registry: tool.NewRegistry(),
			action:   core.PlannedAction{},
			code:     core.ErrorCodeUnknownActionKind,
		},
		{
			name:     "runner code preserved",
			registry: tool.NewRegistry(failing),
			action:   core.PlannedAction{Action: &core.ProcessConfiguration{ActionBase: core.ActionBase{SID: "p", Name: "extract", Description: "x"}}},
			code:     "process_quota_exceeded",
		},
		{
			name:     "plain error mapped to kind code",
			registry: tool.NewRegistry(plain),
			action:   core.PlannedAction{Action: tables},
			code:     "tables_query_error",
		},
		{
			name:     "stream without terminal event",
			registry: tool.NewRegistry(silent),
			action:   core.PlannedAction{Action: appRun, Specification: &core.CapabilitySpecification{Name: "run_report"}},
			code:     core.ErrorCodeMultiActions,
		},
		{
			name:     "panicking runner",
			registry: tool.NewRegistry(panicking),
			action:   core.PlannedAction{Action: websearch("web_search")},
			code:     core.ErrorCodeMultiActions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turn := newTurn(t, "openai", "gpt-4o")
			events := collect(NewActionExecutor(tt.registry).Execute(turn, tt.action, 0, 0))

			require.Len(t, events, 1)
			errEv, ok := events[0].(core.AgentErrorEvent)
			if !ok {
				t.Fatalf("expected agent_error, got %T", events[0])
			}
			assert.Equal(t, tt.code, errEv.Error.Code)
			assert.Empty(t, turn.AgentMessage.Actions())
		})
	}
}

type actionHooks struct {
	core.NoOpHooks
	before, after int
	lastErr       *core.AgentError
}

func (h *actionHooks) BeforeAction(*core.TurnContext, core.PlannedAction) { h.before++ }

func (h *actionHooks) AfterAction(_ *core.TurnContext, _ core.PlannedAction, _ time.Duration, err *core.AgentError) {
	h.after++
	h.lastErr = err
}

func TestActionExecutor_NotifiesHooks(t *testing.T) {
	hooks := &actionHooks{}
	turn := newTurn(t, "openai", "gpt-4o").WithHooks(hooks)

	collect(NewActionExecutor(tool.NewRegistry()).Execute(turn, core.PlannedAction{Action: websearch("web_search")}, 0, 0))

	assert.Equal(t, 1, hooks.before)
	assert.Equal(t, 1, hooks.after)
	require.NotNil(t, hooks.lastErr)
	assert.Equal(t, core.ErrorCodeUnknownActionKind, hooks.lastErr.Code)
}
