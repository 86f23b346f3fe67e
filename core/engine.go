package core

import "context"

// Engine resolves agent configurations and runs turns.
//
// Implementations SHOULD:
//   - Propagate context cancellation to the running turn
//   - Close the returned channel when the turn terminates
type Engine interface {
	// RunAgent starts a turn of the agent identified by configurationID and
	// streams its events. The immediate error covers startup failures such as
	// an unknown configuration.
	RunAgent(
		ctx context.Context,
		configurationID string,
		conversation *Conversation,
		userMessage *UserMessage,
		agentMessage *AgentMessage,
	) (<-chan Event, error)

	// Cancel raises the cancellation flag of the given agent messages.
	Cancel(ctx context.Context, messageIDs ...string) error
}
