package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType is the discriminator of an Event.
type EventType string

const (
	EventTypeGenerationTokens         EventType = "generation_tokens"
	EventTypeAgentChainOfThought      EventType = "agent_chain_of_thought"
	EventTypeAgentActions             EventType = "agent_actions"
	EventTypeAgentActionSuccess       EventType = "agent_action_success"
	EventTypeAgentGenerationSuccess   EventType = "agent_generation_success"
	EventTypeAgentGenerationCancelled EventType = "agent_generation_cancelled"
	EventTypeAgentMessageSuccess      EventType = "agent_message_success"
	EventTypeAgentError               EventType = "agent_error"
	EventTypeActionParams             EventType = "action_params"
	EventTypeActionProgress           EventType = "action_progress"
)

// TokenClassification labels a generation_tokens span.
type TokenClassification string

const (
	ClassificationTokens           TokenClassification = "tokens"
	ClassificationChainOfThought   TokenClassification = "chain_of_thought"
	ClassificationOpeningDelimiter TokenClassification = "opening_delimiter"
	ClassificationClosingDelimiter TokenClassification = "closing_delimiter"
)

// Event is the unit of the stream produced by a turn. After emission it
// must be treated as immutable. Concrete event types implement the
// unexported isEvent marker enabling a closed set.
type Event interface {
	isEvent()
	// Header returns the fields shared by every event.
	Header() EventHeader
}

// EventHeader carries correlation data present on every event.
type EventHeader struct {
	Type            EventType `json:"type"`
	Created         time.Time `json:"created"`
	ConfigurationID string    `json:"configuration_id"`
	MessageID       string    `json:"message_id"`
}

// Header implements Event for embedding types.
func (h EventHeader) Header() EventHeader { return h }

// NewHeader stamps a header with the current UTC time.
func NewHeader(typ EventType, configurationID, messageID string) EventHeader {
	return EventHeader{
		Type:            typ,
		Created:         time.Now().UTC(),
		ConfigurationID: configurationID,
		MessageID:       messageID,
	}
}

// GenerationTokensEvent is a classified span of streamed model output.
type GenerationTokensEvent struct {
	EventHeader
	Text           string              `json:"text"`
	Classification TokenClassification `json:"classification"`
}

func (GenerationTokensEvent) isEvent() {}

// AgentChainOfThoughtEvent carries reasoning produced before actions or a
// final generation.
type AgentChainOfThoughtEvent struct {
	EventHeader
	Message        AgentMessageSnapshot `json:"message"`
	ChainOfThought string               `json:"chain_of_thought"`
}

func (AgentChainOfThoughtEvent) isEvent() {}

// AgentActionsEvent announces the actions chosen by a planning round.
type AgentActionsEvent struct {
	EventHeader
	Actions []PlannedAction `json:"actions"`
}

func (AgentActionsEvent) isEvent() {}

// AgentActionSuccessEvent reports a completed action.
type AgentActionSuccessEvent struct {
	EventHeader
	Action ActionRecord `json:"action"`
}

func (AgentActionSuccessEvent) isEvent() {}

// AgentGenerationSuccessEvent carries the final visible answer.
type AgentGenerationSuccessEvent struct {
	EventHeader
	Text string `json:"text"`
}

func (AgentGenerationSuccessEvent) isEvent() {}

// AgentGenerationCancelledEvent reports that generation was cancelled.
type AgentGenerationCancelledEvent struct {
	EventHeader
}

func (AgentGenerationCancelledEvent) isEvent() {}

// AgentMessageSuccessEvent carries the finalized agent message.
type AgentMessageSuccessEvent struct {
	EventHeader
	Message AgentMessageSnapshot `json:"message"`
}

func (AgentMessageSuccessEvent) isEvent() {}

// AgentErrorEvent reports a terminal failure.
type AgentErrorEvent struct {
	EventHeader
	Error AgentError `json:"error"`
}

func (AgentErrorEvent) isEvent() {}

// ActionParamsEvent is a capability specific parameter event (for example
// retrieval_params) forwarded verbatim from a runner.
type ActionParamsEvent struct {
	EventHeader
	Kind    ActionKind     `json:"kind"`
	Name    string         `json:"name"`
	Action  ActionRecord   `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (ActionParamsEvent) isEvent() {}

// ActionProgressEvent is a capability specific progress event (for example
// an app block output) forwarded verbatim from a runner.
type ActionProgressEvent struct {
	EventHeader
	Kind    ActionKind `json:"kind"`
	Name    string     `json:"name"`
	Payload any        `json:"payload,omitempty"`
}

func (ActionProgressEvent) isEvent() {}

// IsTerminal reports whether no further events may follow ev in a turn.
func IsTerminal(ev Event) bool {
	switch ev.Header().Type {
	case EventTypeAgentError, EventTypeAgentGenerationCancelled, EventTypeAgentMessageSuccess:
		return true
	default:
		return false
	}
}

// MarshalEvent encodes an event as JSON including its type discriminator.
func MarshalEvent(ev Event) ([]byte, error) { return json.Marshal(ev) }

// NewID generates a new unique identifier for events, actions and calls.
func NewID() string { return uuid.NewString() }
