// Package flow implements the building blocks of one agent turn: the
// planning round (prompt, conversation digest, model call, token
// classification), the action executor that dispatches planned actions to
// capability runners, and the completion-order fan-in of action streams.
package flow

import (
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
)

// Emitter publishes an event of the turn. It returns false when the
// consumer is gone (turn context cancelled); callers must stop producing.
type Emitter func(ev core.Event) bool

// RequestProcessor prepares the model request before a planning call.
type RequestProcessor interface {
	// Name returns the processor's identifier.
	Name() string
	// ProcessRequest modifies the request before the model call. Returned
	// errors are terminal for the turn.
	ProcessRequest(turn *core.TurnContext, req *model.Request, mc model.Configuration) error
}

// DefaultProcessors returns the processors of a planning round in order:
// prompt first, then the conversation digest, which budgets against it.
func DefaultProcessors(reservedGenerationTokens int) []RequestProcessor {
	return []RequestProcessor{
		NewInstructionsProcessor(),
		NewConversationProcessor(reservedGenerationTokens),
	}
}
