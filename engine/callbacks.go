package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
)

// CallbackType defines the specific lifecycle points where callbacks can be executed.
//
// Available callback types:
//   - BeforeRound/AfterRound: Around each planning round
//   - BeforeAction/AfterAction: Around each executed action
//   - OnEvent: For every event delivered to the caller
//   - OnError: When a turn terminates with an agent error
//
// Callbacks are observers: they cannot alter the event stream. Returned
// errors are logged and otherwise ignored.
type CallbackType string

const (
	// CallbackBeforeRound is triggered before a planning round starts.
	CallbackBeforeRound CallbackType = "before_round"

	// CallbackAfterRound is triggered after a planning round with its outcome
	// (generation, actions, cancelled or error) and duration.
	CallbackAfterRound CallbackType = "after_round"

	// CallbackBeforeAction is triggered before an action is dispatched to its runner.
	CallbackBeforeAction CallbackType = "before_action"

	// CallbackAfterAction is triggered once an action stream has terminated.
	CallbackAfterAction CallbackType = "after_action"

	// CallbackOnEvent is triggered for each event delivered to the caller.
	CallbackOnEvent CallbackType = "on_event"

	// CallbackOnError is triggered when a turn fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext provides the information a callback may inspect. Fields
// not relevant to a callback type are left zero.
type CallbackContext struct {
	// Turn is the turn being executed.
	Turn *core.TurnContext

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType

	// Iteration is the planning round index (round callbacks).
	Iteration int

	// Outcome is the round outcome (after_round).
	Outcome string

	// Action is the planned action (action callbacks).
	Action *core.PlannedAction

	// Duration is the elapsed time of the round or action (after_* callbacks).
	Duration time.Duration

	// Event is the delivered event (on_event).
	Event core.Event

	// Error is the failure, if any (after_action, on_error).
	Error *core.AgentError

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for turn lifecycle hooks.
//
// Implementations should be:
//   - Fast: callbacks run synchronously on the turn's goroutines
//   - Safe for concurrent use: actions of one round run in parallel
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	rounds := NewFunctionCallback(
//	    CallbackAfterRound,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("round %d: %s", cc.Iteration, cc.Outcome)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes turn lifecycle notifications to registered callbacks.
// It implements core.Hooks so a turn can notify it directly.
//
// Callbacks are executed in registration order. Registration and execution
// are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
	logger    logging.Logger
}

var _ core.Hooks = (*CallbackManager)(nil)

// NewCallbackManager creates a new callback manager instance. Callback
// errors are reported to logger.
func NewCallbackManager(logger logging.Logger) *CallbackManager {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
		logger:    logger,
	}
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// Len returns the number of callbacks registered for callbackType.
func (cm *CallbackManager) Len(callbackType CallbackType) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.callbacks[callbackType])
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
//
// Every callback runs even if an earlier one fails; the first error is
// returned.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	var first error
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			cm.logger.Warn("engine.callback.failed", "callback_type", string(callbackType), "error", err.Error())
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (cm *CallbackManager) notify(turn *core.TurnContext, cc *CallbackContext) {
	if cm.Len(cc.CallbackType) == 0 {
		return
	}
	cc.Turn = turn
	ctx := context.Background()
	if turn != nil && turn.Context != nil {
		ctx = turn.Context
	}
	_ = cm.ExecuteCallbacks(ctx, cc.CallbackType, cc)
}

// BeforeRound implements core.Hooks.
func (cm *CallbackManager) BeforeRound(turn *core.TurnContext, iteration int) {
	cm.notify(turn, &CallbackContext{CallbackType: CallbackBeforeRound, Iteration: iteration})
}

// AfterRound implements core.Hooks.
func (cm *CallbackManager) AfterRound(turn *core.TurnContext, iteration int, outcome string, d time.Duration) {
	cm.notify(turn, &CallbackContext{CallbackType: CallbackAfterRound, Iteration: iteration, Outcome: outcome, Duration: d})
}

// BeforeAction implements core.Hooks.
func (cm *CallbackManager) BeforeAction(turn *core.TurnContext, action core.PlannedAction) {
	cm.notify(turn, &CallbackContext{CallbackType: CallbackBeforeAction, Action: &action})
}

// AfterAction implements core.Hooks.
func (cm *CallbackManager) AfterAction(turn *core.TurnContext, action core.PlannedAction, d time.Duration, err *core.AgentError) {
	cm.notify(turn, &CallbackContext{CallbackType: CallbackAfterAction, Action: &action, Duration: d, Error: err})
}

// OnEvent implements core.Hooks.
func (cm *CallbackManager) OnEvent(turn *core.TurnContext, ev core.Event) {
	cm.notify(turn, &CallbackContext{CallbackType: CallbackOnEvent, Event: ev})
}

// OnError implements core.Hooks.
func (cm *CallbackManager) OnError(turn *core.TurnContext, err *core.AgentError) {
	cm.notify(turn, &CallbackContext{CallbackType: CallbackOnError, Error: err})
}

// LoggingCallback writes a structured log entry for each notification of
// its type.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the notification with its turn correlation fields.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	args := []any{"callback_type", string(cc.CallbackType)}
	if cc.Turn != nil {
		args = append(args, "configuration_id", cc.Turn.ConfigurationID(), "message_id", cc.Turn.MessageID())
	}
	switch cc.CallbackType {
	case CallbackBeforeRound:
		args = append(args, "iteration", cc.Iteration)
	case CallbackAfterRound:
		args = append(args, "iteration", cc.Iteration, "outcome", cc.Outcome, "duration_ms", cc.Duration.Milliseconds())
	case CallbackBeforeAction, CallbackAfterAction:
		if cc.Action != nil {
			args = append(args, "action", cc.Action.Name())
		}
		if cc.CallbackType == CallbackAfterAction {
			args = append(args, "duration_ms", cc.Duration.Milliseconds())
		}
	case CallbackOnEvent:
		if cc.Event != nil {
			args = append(args, "event_type", string(cc.Event.Header().Type))
		}
	}
	if cc.Error != nil {
		args = append(args, "error_code", string(cc.Error.Code))
	}
	c.logger.Debug("engine.callback", args...)
	return nil
}
