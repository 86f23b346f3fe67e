package model

import (
	"context"

	"github.com/hupe1980/agentloop/core"
)

// Role of a message in the conversation digest.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// FunctionCall is a capability call recorded in the digest.
type FunctionCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object
}

// Message is one entry of the model-ready conversation digest.
type Message struct {
	Role           Role           `json:"role"`
	Name           string         `json:"name,omitempty"`
	Content        string         `json:"content,omitempty"`
	FunctionCalls  []FunctionCall `json:"function_calls,omitempty"`
	FunctionCallID string         `json:"function_call_id,omitempty"`
}

// FunctionCallMode tells the transport whether capability calls are allowed.
type FunctionCallMode string

const (
	FunctionCallNone FunctionCallMode = ""
	FunctionCallAuto FunctionCallMode = "auto"
)

// Request is the normalized planning call input.
type Request struct {
	ProviderID     string                         `json:"provider_id"`
	ModelID        string                         `json:"model_id"`
	Temperature    float64                        `json:"temperature"`
	Prompt         string                         `json:"prompt"`
	Conversation   []Message                      `json:"conversation"`
	Specifications []core.CapabilitySpecification `json:"specifications,omitempty"`
	FunctionCall   FunctionCallMode               `json:"function_call,omitempty"`
}

// StreamEventType discriminates StreamEvent.
type StreamEventType string

const (
	StreamEventTokens         StreamEventType = "tokens"
	StreamEventFunctionCall   StreamEventType = "function_call"
	StreamEventBlockExecution StreamEventType = "block_execution"
	StreamEventError          StreamEventType = "error"
)

// Block names of a BlockExecution.
const (
	BlockModel  = "MODEL"
	BlockOutput = "OUTPUT"
)

// OutputAction is one capability call chosen by the model.
type OutputAction struct {
	FunctionCallID *string        `json:"function_call_id"`
	Name           string         `json:"name"`
	Arguments      map[string]any `json:"arguments"`
}

// Output is the structured decision of a planning call: either a generation
// or a list of actions.
type Output struct {
	Generation *string        `json:"generation,omitempty"`
	Actions    []OutputAction `json:"actions,omitempty"`
}

// BlockExecution is the result of a named stage of the planning call.
type BlockExecution struct {
	BlockName string  `json:"block_name"`
	Value     *Output `json:"value,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// StreamEvent is one event of the planning call stream.
type StreamEvent struct {
	Type   StreamEventType `json:"type"`
	Tokens string          `json:"tokens,omitempty"`
	Block  *BlockExecution `json:"block,omitempty"`
	Err    error           `json:"-"`
}

// TokensEvent builds a tokens stream event.
func TokensEvent(text string) StreamEvent {
	return StreamEvent{Type: StreamEventTokens, Tokens: text}
}

// FunctionCallEvent builds the marker emitted when a capability call begins.
func FunctionCallEvent() StreamEvent {
	return StreamEvent{Type: StreamEventFunctionCall}
}

// OutputEvent builds the final OUTPUT block event.
func OutputEvent(out Output) StreamEvent {
	return StreamEvent{Type: StreamEventBlockExecution, Block: &BlockExecution{BlockName: BlockOutput, Value: &out}}
}

// ErrorEvent builds a structural error event.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Type: StreamEventError, Err: err}
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the model execution call. Generate returns an immediate error for
// call-level failures; otherwise the stream is closed when the call ends and
// carries at most one error event.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan StreamEvent, error)

	// Info returns information about the model implementation.
	Info() Info
}
