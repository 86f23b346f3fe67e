// Package tool implements the capability runner subsystem: one Runner per
// capability kind (retrieval, app run, tables query, process, web search)
// that builds the specification the model sees and runs planned actions as
// event streams.
package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/util"
)

// ErrRunnerNotFound is returned when no runner is registered for a kind.
var ErrRunnerNotFound = errors.New("runner not found")

// InputError reports a planned argument that does not match its declared input.
type InputError = util.InputError

// Runner executes one capability kind.
//
// Runner implementations should:
//   - Build a specification from the action configuration and the supplied
//     name and description
//   - Emit zero or more params/progress events followed by exactly one
//     terminal event (SuccessEvent or FailureEvent) and close the channel
//   - Stop promptly when the request context is cancelled
//   - Be safe for concurrent use; one runner serves all actions of its kind
type Runner interface {
	// Kind returns the capability kind served by this runner.
	Kind() core.ActionKind

	// BuildSpecification returns the specification the model sees.
	BuildSpecification(ctx context.Context, action core.ActionConfiguration, name, description string) (*core.CapabilitySpecification, error)

	// Run executes a planned action.
	Run(ctx context.Context, req RunRequest) <-chan Event
}

// LegacySpecificationBuilder is implemented by runners able to describe a
// capability configured without name and description.
type LegacySpecificationBuilder interface {
	DeprecatedBuildSpecificationForSingleCapability(ctx context.Context, action core.ActionConfiguration) (*core.CapabilitySpecification, error)
}

// RunRequest is the input of Runner.Run.
type RunRequest struct {
	Configuration  *core.AgentConfiguration
	Conversation   *core.Conversation
	Action         core.ActionConfiguration
	Specification  *core.CapabilitySpecification
	Inputs         map[string]any
	FunctionCallID *string
	Step           int
	// RefsOffset is the first citation reference number available to a
	// retrieval action.
	RefsOffset int
}

// Record builds the ActionRecord of a completed run.
func (r RunRequest) Record(output any) core.ActionRecord {
	params := make(map[string]any, len(r.Inputs))
	for k, v := range r.Inputs {
		params[k] = v
	}
	rec := core.ActionRecord{
		ID:             core.NewID(),
		Step:           r.Step,
		FunctionCallID: r.FunctionCallID,
		Params:         params,
		Output:         output,
		Created:        time.Now().UTC(),
	}
	if r.Action != nil {
		rec.Kind = r.Action.Kind()
		rec.ConfigurationID = r.Action.Base().SID
		rec.Name = r.Action.Base().Name
	}
	if r.Specification != nil && rec.Name == "" {
		rec.Name = r.Specification.Name
	}
	return rec
}

// Event is a closed set of runner stream events.
type Event interface{ isRunnerEvent() }

// ParamsEvent reports the resolved parameters of an action (for example
// retrieval_params).
type ParamsEvent struct {
	Name    string
	Action  core.ActionRecord
	Payload map[string]any
}

// ProgressEvent reports intermediate progress (for example an app block output).
type ProgressEvent struct {
	Name    string
	Payload any
}

// SuccessEvent terminates a stream with the produced action record.
type SuccessEvent struct {
	Action core.ActionRecord
}

// FailureEvent terminates a stream with an error.
type FailureEvent struct {
	Err *RunnerError
}

func (ParamsEvent) isRunnerEvent()   {}
func (ProgressEvent) isRunnerEvent() {}
func (SuccessEvent) isRunnerEvent()  {}
func (FailureEvent) isRunnerEvent()  {}

// RunnerError represents errors that occur during capability execution.
// Code is forwarded verbatim into agent_error events.
type RunnerError struct {
	Runner  string `json:"runner"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *RunnerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("runner error [%s] in %s: %s", e.Code, e.Runner, e.Message)
	}
	return fmt.Sprintf("runner error in %s: %s", e.Runner, e.Message)
}

// AgentError converts the runner error into the uniform terminal shape.
func (e *RunnerError) AgentError() *core.AgentError {
	code := core.ErrorCode(e.Code)
	if code == "" {
		code = core.ErrorCodeMultiActions
	}
	return &core.AgentError{Code: code, Message: e.Message}
}

// NewRunnerError creates a new RunnerError with the specified details.
func NewRunnerError(runner, code, message string) *RunnerError {
	return &RunnerError{
		Runner:  runner,
		Code:    code,
		Message: message,
	}
}

// Fail returns a closed stream holding a single FailureEvent.
func Fail(err *RunnerError) <-chan Event {
	ch := make(chan Event, 1)
	ch <- FailureEvent{Err: err}
	close(ch)
	return ch
}
