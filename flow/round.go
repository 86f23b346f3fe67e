package flow

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/agentloop/cancellation"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tokens"
	"github.com/hupe1980/agentloop/tool"
)

// Generation is the final answer produced by a planning round.
type Generation struct {
	Text           string
	ChainOfThought string
}

// RoundResult is the outcome of one planning round. Exactly one of
// Generation, Actions, Cancelled, Err or Stopped is set.
type RoundResult struct {
	Generation *Generation
	Actions    []core.PlannedAction
	Cancelled  bool
	Err        *core.AgentError
	// Stopped reports that the consumer went away mid-round.
	Stopped bool
}

// Outcome names the result for hooks and logs.
func (r RoundResult) Outcome() string {
	switch {
	case r.Err != nil:
		return core.RoundOutcomeError
	case r.Cancelled, r.Stopped:
		return core.RoundOutcomeCancelled
	case r.Generation != nil:
		return core.RoundOutcomeGeneration
	default:
		return core.RoundOutcomeActions
	}
}

// RoundOptions configures a PlanningRound.
type RoundOptions struct {
	// Processors prepare the request. Defaults to DefaultProcessors.
	Processors []RequestProcessor
	// Monitor is polled for the cancellation flag while the model streams.
	// Nil disables cancellation polling.
	Monitor *cancellation.Monitor
}

// PlanningRound asks the model, given the conversation and a set of
// capabilities, for either a final answer or a list of capability calls.
type PlanningRound struct {
	model      model.Model
	catalog    *model.Catalog
	registry   *tool.Registry
	processors []RequestProcessor
	monitor    *cancellation.Monitor
}

// NewPlanningRound creates a planning round over m.
func NewPlanningRound(m model.Model, catalog *model.Catalog, registry *tool.Registry, optFns ...func(o *RoundOptions)) *PlanningRound {
	opts := RoundOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Processors == nil {
		opts.Processors = DefaultProcessors(DefaultReservedGenerationTokens)
	}
	if catalog == nil {
		catalog = model.DefaultCatalog()
	}
	return &PlanningRound{
		model:      m,
		catalog:    catalog,
		registry:   registry,
		processors: opts.Processors,
		monitor:    opts.Monitor,
	}
}

// Run executes one planning round offering actions to the model. An empty
// actions list forces a final answer. Generation tokens, chain of thought and
// the agent_actions announcement are published through emit; terminal events
// are left to the caller.
func (r *PlanningRound) Run(turn *core.TurnContext, actions []core.ActionConfiguration, emit Emitter) RoundResult {
	log := logging.NewTurnLogger(turn.Logger()).
		WithComponent("planning").
		WithTurn(turn.ConfigurationID(), turn.MessageID())

	selector := turn.Configuration.Model
	mc, ok := r.catalog.FindMultiActions(selector.ProviderID, selector.ModelID)
	if !ok {
		return RoundResult{Err: core.NewAgentError(core.ErrorCodeModelDoesNotSupportMultiActions,
			"the model %s/%s does not support multi-actions", selector.ProviderID, selector.ModelID)}
	}

	req := model.Request{
		ProviderID:  selector.ProviderID,
		ModelID:     selector.ModelID,
		Temperature: selector.Temperature,
	}
	for _, p := range r.processors {
		if err := p.ProcessRequest(turn, &req, mc); err != nil {
			log.Error("planning.processor.failed", "processor", p.Name(), "error", err.Error())
			return RoundResult{Err: core.AsAgentError(err, core.ErrorCodeConversationRender)}
		}
	}

	caps, aerr := tool.BuildSpecifications(turn.Context, r.registry, actions)
	if aerr != nil {
		return RoundResult{Err: aerr}
	}
	req.Specifications = tool.Specifications(caps)
	if len(req.Specifications) > 0 {
		req.FunctionCall = model.FunctionCallAuto
	}

	ctx, cancel := context.WithCancel(turn.Context)
	defer cancel()

	start := time.Now()
	stream, err := r.model.Generate(ctx, req)
	if err != nil {
		log.LogModelCall(selector.ProviderID, selector.ModelID, len(req.Specifications), time.Since(start), err)
		return RoundResult{Err: core.NewAgentError(core.ErrorCodeMultiActions, "error running model: %v", err)}
	}

	classifier, err := tokens.NewClassifier(mc.Delimiters)
	if err != nil {
		return RoundResult{Err: core.NewAgentError(core.ErrorCodeMultiActions, "invalid delimiters for %s: %v", mc.ModelID, err)}
	}

	c := &consumer{
		turn:         turn,
		emit:         emit,
		classifier:   classifier,
		caps:         caps,
		isGeneration: true,
	}
	res := c.consume(ctx, stream, r.openSession(ctx, log))

	var callErr error
	if res.Err != nil {
		callErr = res.Err
	}
	log.LogModelCall(selector.ProviderID, selector.ModelID, len(req.Specifications), time.Since(start), callErr)
	return res
}

func (r *PlanningRound) openSession(ctx context.Context, log *logging.TurnLogger) *pollState {
	if r.monitor == nil {
		return nil
	}
	session, err := r.monitor.Open(ctx)
	if err != nil {
		log.Warn("planning.cancellation.unavailable", "error", err.Error())
		return nil
	}
	return &pollState{session: session, interval: r.monitor.CheckInterval(), last: time.Now()}
}

type pollState struct {
	session  *cancellation.Session
	interval time.Duration
	last     time.Time
	inflight <-chan bool
}

// consumer holds the state of one model stream.
type consumer struct {
	turn         *core.TurnContext
	emit         Emitter
	classifier   *tokens.Classifier
	caps         []tool.Capability
	isGeneration bool
	sawTokens    bool
}

func (c *consumer) consume(ctx context.Context, stream <-chan model.StreamEvent, poll *pollState) RoundResult {
	var tick <-chan time.Time
	if poll != nil {
		defer poll.session.Close() //nolint:errcheck
		ticker := time.NewTicker(poll.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		var inflight <-chan bool
		if poll != nil {
			inflight = poll.inflight
		}

		select {
		case <-ctx.Done():
			return RoundResult{Stopped: true}

		case now := <-tick:
			if poll.inflight == nil && now.Sub(poll.last) >= poll.interval {
				poll.last = now
				poll.inflight = poll.session.PollAsync(ctx, c.turn.MessageID())
			}

		case cancelled := <-inflight:
			poll.inflight = nil
			if cancelled {
				if !c.flush() {
					return RoundResult{Stopped: true}
				}
				return RoundResult{Cancelled: true}
			}

		case ev, ok := <-stream:
			if !ok {
				if !c.flush() {
					return RoundResult{Stopped: true}
				}
				return c.noOutput()
			}
			if res, done := c.handle(ev); done {
				return res
			}
		}
	}
}

func (c *consumer) handle(ev model.StreamEvent) (RoundResult, bool) {
	switch ev.Type {
	case model.StreamEventTokens:
		if !c.isGeneration {
			return RoundResult{}, false
		}
		c.sawTokens = true
		if !c.publish(c.classifier.Emit(ev.Tokens)) {
			return RoundResult{Stopped: true}, true
		}
		return RoundResult{}, false

	case model.StreamEventFunctionCall:
		c.isGeneration = false
		return RoundResult{}, false

	case model.StreamEventError:
		if !c.flush() {
			return RoundResult{Stopped: true}, true
		}
		msg := "unknown error"
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		return RoundResult{Err: core.NewAgentError(core.ErrorCodeMultiActions, "error running model: %s", msg)}, true

	case model.StreamEventBlockExecution:
		block := ev.Block
		if block == nil {
			return RoundResult{}, false
		}
		if block.Error != "" {
			if !c.flush() {
				return RoundResult{Stopped: true}, true
			}
			return RoundResult{Err: core.NewAgentError(core.ErrorCodeMultiActions, "error running model: %s", block.Error)}, true
		}
		switch block.BlockName {
		case model.BlockModel:
			if c.isGeneration && block.Value != nil && block.Value.Generation != nil {
				return c.generation(*block.Value.Generation), true
			}
		case model.BlockOutput:
			if block.Value == nil {
				return c.noOutput(), true
			}
			if len(block.Value.Actions) > 0 {
				return c.actions(block.Value.Actions), true
			}
			if block.Value.Generation != nil {
				return c.generation(*block.Value.Generation), true
			}
			if !c.flush() {
				return RoundResult{Stopped: true}, true
			}
			return c.noOutput(), true
		}
	}
	return RoundResult{}, false
}

func (c *consumer) noOutput() RoundResult {
	return RoundResult{Err: core.NewAgentError(core.ErrorCodeNoActionOrGenerationFound, "no action or generation found")}
}

func (c *consumer) generation(text string) RoundResult {
	if !c.sawTokens {
		if !c.publish(c.classifier.Emit(text)) {
			return RoundResult{Stopped: true}
		}
	}
	if !c.flush() {
		return RoundResult{Stopped: true}
	}
	return RoundResult{Generation: &Generation{
		Text:           c.classifier.Content(),
		ChainOfThought: c.classifier.ChainOfThought(),
	}}
}

func (c *consumer) actions(calls []model.OutputAction) RoundResult {
	if !c.flush() {
		return RoundResult{Stopped: true}
	}

	planned := make([]core.PlannedAction, 0, len(calls))
	for _, call := range calls {
		capability, ok := tool.Resolve(c.caps, call.Name)
		if !ok {
			return RoundResult{Err: core.NewAgentError(core.ErrorCodeActionNotFound,
				"the agent attempted to run an action that was not available: %s", call.Name)}
		}
		spec := capability.Specification
		planned = append(planned, core.PlannedAction{
			Action:         capability.Action,
			Inputs:         call.Arguments,
			Specification:  &spec,
			FunctionCallID: call.FunctionCallID,
		})
	}

	if cot := joinNonEmpty(c.classifier.ChainOfThought(), c.classifier.Content()); cot != "" {
		c.turn.AgentMessage.AppendChainOfThought(cot)
		if !c.emit(core.AgentChainOfThoughtEvent{
			EventHeader:    c.turn.Header(core.EventTypeAgentChainOfThought),
			Message:        c.turn.AgentMessage.Snapshot(),
			ChainOfThought: cot,
		}) {
			return RoundResult{Stopped: true}
		}
	}

	if !c.emit(core.AgentActionsEvent{
		EventHeader: c.turn.Header(core.EventTypeAgentActions),
		Actions:     planned,
	}) {
		return RoundResult{Stopped: true}
	}
	return RoundResult{Actions: planned}
}

func (c *consumer) flush() bool {
	return c.publish(c.classifier.Flush())
}

func (c *consumer) publish(toks []tokens.Token) bool {
	for _, t := range toks {
		if t.Text == "" {
			continue
		}
		if !c.emit(core.GenerationTokensEvent{
			EventHeader:    c.turn.Header(core.EventTypeGenerationTokens),
			Text:           t.Text,
			Classification: t.Classification,
		}) {
			return false
		}
	}
	return true
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
