package core

import (
	"context"

	"github.com/hupe1980/agentloop/logging"
)

// TurnContext carries the execution scope of one agent turn. It aggregates:
//   - The ambient cancellation Context
//   - The agent configuration driving the turn
//   - The conversation, the triggering user message and the agent message
//     being accumulated
//   - A logger annotated with turn identifiers
//
// The conversation and user message are read-only for the turn; the agent
// message is mutated only through its methods.
type TurnContext struct {
	Context       context.Context
	Configuration *AgentConfiguration
	Conversation  *Conversation
	UserMessage   *UserMessage
	AgentMessage  *AgentMessage

	hooks  Hooks
	logger logging.Logger
}

// NewTurnContext constructs a TurnContext.
func NewTurnContext(
	ctx context.Context,
	cfg *AgentConfiguration,
	conversation *Conversation,
	userMessage *UserMessage,
	agentMessage *AgentMessage,
	logger logging.Logger,
) *TurnContext {
	return &TurnContext{
		Context:       ctx,
		Configuration: cfg,
		Conversation:  conversation,
		UserMessage:   userMessage,
		AgentMessage:  agentMessage,
		hooks:         NoOpHooks{},
		logger:        logger,
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (tc *TurnContext) Done() <-chan struct{} { return tc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (tc *TurnContext) Err() error { return tc.Context.Err() }

// ConfigurationID returns the agent configuration identifier.
func (tc *TurnContext) ConfigurationID() string {
	if tc.Configuration == nil {
		return ""
	}
	return tc.Configuration.SID
}

// MessageID returns the agent message identifier.
func (tc *TurnContext) MessageID() string {
	if tc.AgentMessage == nil {
		return ""
	}
	return tc.AgentMessage.SID()
}

// Header builds an event header correlated with this turn.
func (tc *TurnContext) Header(typ EventType) EventHeader {
	return NewHeader(typ, tc.ConfigurationID(), tc.MessageID())
}

// ErrorEvent builds an agent_error event for this turn.
func (tc *TurnContext) ErrorEvent(err *AgentError) AgentErrorEvent {
	return AgentErrorEvent{EventHeader: tc.Header(EventTypeAgentError), Error: *err}
}

// WithContext returns a shallow copy bound to ctx.
func (tc *TurnContext) WithContext(ctx context.Context) *TurnContext {
	c := *tc
	c.Context = ctx
	return &c
}

// WithLogger returns a shallow copy using logger.
func (tc *TurnContext) WithLogger(logger logging.Logger) *TurnContext {
	c := *tc
	c.logger = logger
	return &c
}

// Hooks returns the lifecycle observer of the turn (never nil).
func (tc *TurnContext) Hooks() Hooks {
	if tc.hooks == nil {
		return NoOpHooks{}
	}
	return tc.hooks
}

// WithHooks returns a shallow copy notifying hooks.
func (tc *TurnContext) WithHooks(hooks Hooks) *TurnContext {
	c := *tc
	c.hooks = hooks
	return &c
}
