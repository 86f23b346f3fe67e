package agent

import (
	"context"
	"time"

	"github.com/hupe1980/agentloop/cancellation"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/flow"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// Options configures a MultiActionsAgent.
type Options struct {
	// Monitor is polled for the cancellation flag while the model streams.
	Monitor *cancellation.Monitor
	// Processors prepare each planning request. Defaults to
	// flow.DefaultProcessors.
	Processors []flow.RequestProcessor
	// MaxConcurrentActions bounds the actions of one round running at once.
	// 0 means unbounded.
	MaxConcurrentActions int
}

// MultiActionsAgent runs turns of the tool-use loop: planning rounds
// interleaved with parallel action execution.
//
// One MultiActionsAgent serves any number of concurrent turns; all turn
// state lives in the TurnContext.
type MultiActionsAgent struct {
	name          string
	planner       *flow.PlanningRound
	executor      *flow.ActionExecutor
	maxConcurrent int
}

// NewMultiActionsAgent constructs the agent. m serves the planning calls,
// catalog describes the models and registry provides one runner per
// capability kind.
func NewMultiActionsAgent(name string, m model.Model, catalog *model.Catalog, registry *tool.Registry, optFns ...func(o *Options)) *MultiActionsAgent {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &MultiActionsAgent{
		name: name,
		planner: flow.NewPlanningRound(m, catalog, registry, func(o *flow.RoundOptions) {
			o.Monitor = opts.Monitor
			o.Processors = opts.Processors
		}),
		executor:      flow.NewActionExecutor(registry),
		maxConcurrent: opts.MaxConcurrentActions,
	}
}

// Name identifies the agent in logs.
func (a *MultiActionsAgent) Name() string { return a.name }

// Run implements core.Agent.
func (a *MultiActionsAgent) Run(turn *core.TurnContext) <-chan core.Event {
	out := make(chan core.Event)

	go func() {
		defer close(out)

		hooks := turn.Hooks()
		emit := func(ev core.Event) bool {
			select {
			case <-turn.Done():
				return false
			case out <- ev:
				hooks.OnEvent(turn, ev)
				return true
			}
		}

		a.loop(turn, emit)
	}()

	return out
}

func (a *MultiActionsAgent) loop(turn *core.TurnContext, emit flow.Emitter) {
	log := logging.NewTurnLogger(turn.Logger()).
		WithComponent("agent").
		WithTurn(turn.ConfigurationID(), turn.MessageID())
	hooks := turn.Hooks()

	cfg := turn.Configuration
	if cfg == nil || turn.AgentMessage == nil {
		if turn.AgentMessage == nil {
			turn.AgentMessage = core.NewAgentMessage("")
		}
		a.fail(turn, emit, core.NewAgentError(core.ErrorCodeMultiActions, "turn has no agent configuration"))
		return
	}

	maxTools := cfg.MaxToolsUsePerRun
	if maxTools < 0 {
		maxTools = 0
	}
	limiter := core.NewRoundLimiter(maxTools)

	for i := 0; ; i++ {
		if turn.Err() != nil {
			log.Info("agent.turn.abandoned", "iteration", i)
			return
		}

		final := limiter.IsFinal()
		if err := limiter.Increment(); err != nil {
			a.fail(turn, emit, core.NewAgentError(core.ErrorCodeMultiActions, "%v", err))
			return
		}

		actions := cfg.Actions
		if final {
			actions = nil
		}

		log.Debug("agent.round.start", "iteration", i, "capabilities", len(actions), "final", final)
		hooks.BeforeRound(turn, i)
		start := time.Now()

		res := a.planner.Run(turn, actions, emit)

		d := time.Since(start)
		log.LogRound(i, res.Outcome(), d)
		hooks.AfterRound(turn, i, res.Outcome(), d)

		switch {
		case res.Stopped:
			return
		case res.Err != nil:
			a.fail(turn, emit, res.Err)
			return
		case res.Cancelled:
			a.cancel(turn, emit)
			return
		case res.Generation != nil:
			a.succeed(turn, emit, res.Generation)
			return
		}

		if !a.runActions(turn, res.Actions, i, emit) {
			return
		}
	}
}

// runActions executes the planned actions of round step concurrently and
// forwards their events in completion order. It returns false when the
// turn has ended.
func (a *MultiActionsAgent) runActions(turn *core.TurnContext, actions []core.PlannedAction, step int, emit flow.Emitter) bool {
	ctx, cancel := context.WithCancel(turn.Context)
	defer cancel()

	indexByKind := make(map[core.ActionKind]int, len(actions))
	sources := make([]flow.Source, 0, len(actions))
	for _, planned := range actions {
		var kind core.ActionKind
		if planned.Action != nil {
			kind = planned.Action.Kind()
		}
		idx := indexByKind[kind]
		indexByKind[kind]++

		planned := planned
		sources = append(sources, func(ctx context.Context) <-chan core.Event {
			return a.executor.Execute(turn.WithContext(ctx), planned, step, idx)
		})
	}

	var failure *core.AgentError
	stopped := false
	for ev := range flow.FanIn(ctx, a.maxConcurrent, sources...) {
		if failure != nil || stopped {
			continue
		}
		if errEv, ok := ev.(core.AgentErrorEvent); ok {
			err := errEv.Error
			failure = &err
			cancel()
			continue
		}
		if !emit(ev) {
			stopped = true
			cancel()
		}
	}

	switch {
	case stopped:
		return false
	case failure != nil:
		a.fail(turn, emit, failure)
		return false
	default:
		return true
	}
}

func (a *MultiActionsAgent) succeed(turn *core.TurnContext, emit flow.Emitter, gen *flow.Generation) {
	msg := turn.AgentMessage

	if gen.ChainOfThought != "" {
		msg.AppendChainOfThought(gen.ChainOfThought)
		if !emit(core.AgentChainOfThoughtEvent{
			EventHeader:    turn.Header(core.EventTypeAgentChainOfThought),
			Message:        msg.Snapshot(),
			ChainOfThought: gen.ChainOfThought,
		}) {
			return
		}
	}

	if !emit(core.AgentGenerationSuccessEvent{
		EventHeader: turn.Header(core.EventTypeAgentGenerationSuccess),
		Text:        gen.Text,
	}) {
		return
	}

	msg.Succeed(gen.Text)
	emit(core.AgentMessageSuccessEvent{
		EventHeader: turn.Header(core.EventTypeAgentMessageSuccess),
		Message:     msg.Snapshot(),
	})
}

func (a *MultiActionsAgent) fail(turn *core.TurnContext, emit flow.Emitter, err *core.AgentError) {
	turn.AgentMessage.Fail(err)
	turn.Hooks().OnError(turn, err)
	turn.LogError("agent.turn.failed", "code", string(err.Code), "error", err.Message)
	emit(turn.ErrorEvent(err))
}

func (a *MultiActionsAgent) cancel(turn *core.TurnContext, emit flow.Emitter) {
	turn.AgentMessage.Cancel()
	turn.LogInfo("agent.turn.cancelled")
	emit(core.AgentGenerationCancelledEvent{
		EventHeader: turn.Header(core.EventTypeAgentGenerationCancelled),
	})
}
