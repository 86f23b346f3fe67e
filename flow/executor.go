package flow

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/tool"
)

// RefsPerRetrieval is the block of citation reference numbers reserved for
// each retrieval action of a round.
const RefsPerRetrieval = 32

// ActionExecutor runs one planned action through the runner registered for
// its kind and maps the runner stream onto turn events.
//
// Every stream returned by Execute carries exactly one terminal event
// (agent_action_success or agent_error) unless the turn context is
// cancelled first.
type ActionExecutor struct {
	registry *tool.Registry
}

// NewActionExecutor creates an executor dispatching to registry.
func NewActionExecutor(registry *tool.Registry) *ActionExecutor {
	return &ActionExecutor{registry: registry}
}

// Execute runs action as part of round step. indexForType is the position
// of the action among the actions of the same kind in that round.
func (x *ActionExecutor) Execute(turn *core.TurnContext, action core.PlannedAction, step, indexForType int) <-chan core.Event {
	out := make(chan core.Event, 4)

	go func() {
		defer close(out)

		log := logging.NewTurnLogger(turn.Logger()).
			WithComponent("executor").
			WithTurn(turn.ConfigurationID(), turn.MessageID())
		hooks := turn.Hooks()
		start := time.Now()

		send := func(ev core.Event) bool {
			select {
			case <-turn.Done():
				return false
			case out <- ev:
				return true
			}
		}

		var failure *core.AgentError
		fail := func(err *core.AgentError) {
			failure = err
			send(turn.ErrorEvent(err))
		}

		hooks.BeforeAction(turn, action)
		defer func() {
			if r := recover(); r != nil {
				log.Error("flow.action.panic", "action", action.Name(), "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				fail(core.NewAgentError(core.ErrorCodeMultiActions, "action %s panicked: %v", action.Name(), r))
			}
			kind := ""
			if action.Action != nil {
				kind = string(action.Action.Kind())
			}
			code := ""
			if failure != nil {
				code = string(failure.Code)
			}
			d := time.Since(start)
			log.LogActionRun(kind, action.Name(), step, d, code)
			hooks.AfterAction(turn, action, d, failure)
		}()

		req, aerr := x.request(turn, action, step, indexForType)
		if aerr != nil {
			fail(aerr)
			return
		}

		runner, err := x.registry.Get(req.Action.Kind())
		if err != nil {
			fail(core.NewAgentError(core.ErrorCodeUnknownActionKind, "no runner for action kind %s", req.Action.Kind()))
			return
		}

		stream := runner.Run(turn.Context, req)
		for ev := range stream {
			switch e := ev.(type) {
			case tool.ParamsEvent:
				if !send(core.ActionParamsEvent{
					EventHeader: turn.Header(core.EventTypeActionParams),
					Kind:        req.Action.Kind(),
					Name:        e.Name,
					Action:      e.Action,
					Payload:     e.Payload,
				}) {
					drain(stream)
					return
				}
			case tool.ProgressEvent:
				if !send(core.ActionProgressEvent{
					EventHeader: turn.Header(core.EventTypeActionProgress),
					Kind:        req.Action.Kind(),
					Name:        e.Name,
					Payload:     e.Payload,
				}) {
					drain(stream)
					return
				}
			case tool.FailureEvent:
				var err *core.AgentError
				if e.Err != nil {
					err = e.Err.AgentError()
				} else {
					err = core.NewAgentError(core.ErrorCodeMultiActions, "action %s failed", action.Name())
				}
				fail(err)
				drain(stream)
				return
			case tool.SuccessEvent:
				turn.AgentMessage.AppendAction(e.Action)
				send(core.AgentActionSuccessEvent{
					EventHeader: turn.Header(core.EventTypeAgentActionSuccess),
					Action:      e.Action,
				})
				drain(stream)
				return
			}
		}

		if turn.Err() != nil {
			return
		}
		fail(core.NewAgentError(core.ErrorCodeMultiActions, "action %s ended without a result", action.Name()))
	}()

	return out
}

// request builds the runner input, applying the per-kind adjustments.
func (x *ActionExecutor) request(turn *core.TurnContext, action core.PlannedAction, step, indexForType int) (tool.RunRequest, *core.AgentError) {
	req := tool.RunRequest{
		Configuration:  turn.Configuration,
		Conversation:   turn.Conversation,
		Action:         action.Action,
		Specification:  action.Specification,
		Inputs:         action.Inputs,
		FunctionCallID: action.FunctionCallID,
		Step:           step,
	}
	if req.Inputs == nil {
		req.Inputs = map[string]any{}
	}

	switch action.Action.(type) {
	case *core.RetrievalConfiguration:
		req.RefsOffset = indexForType * RefsPerRetrieval
	case *core.AppRunConfiguration:
		if action.Specification == nil {
			return req, core.NewAgentError(core.ErrorCodeParametersGeneration,
				"no specification found for app run action %s", action.Name())
		}
	case *core.TablesQueryConfiguration, *core.ProcessConfiguration:
	case *core.WebsearchConfiguration:
		req.FunctionCallID = nil
	default:
		return req, core.NewAgentError(core.ErrorCodeUnknownActionKind, "unknown action kind %T", action.Action)
	}
	return req, nil
}

func drain(stream <-chan tool.Event) {
	for range stream { //nolint:revive
	}
}
