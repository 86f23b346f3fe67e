package core

import "time"

// Round outcomes reported to Hooks.AfterRound.
const (
	RoundOutcomeGeneration = "generation"
	RoundOutcomeActions    = "actions"
	RoundOutcomeCancelled  = "cancelled"
	RoundOutcomeError      = "error"
)

// Hooks observes the lifecycle of a turn. Hooks are observers: they cannot
// alter the event stream and must return quickly. Implementations must be
// safe for concurrent use since actions of one round run in parallel.
type Hooks interface {
	BeforeRound(turn *TurnContext, iteration int)
	AfterRound(turn *TurnContext, iteration int, outcome string, d time.Duration)
	BeforeAction(turn *TurnContext, action PlannedAction)
	AfterAction(turn *TurnContext, action PlannedAction, d time.Duration, err *AgentError)
	OnEvent(turn *TurnContext, ev Event)
	OnError(turn *TurnContext, err *AgentError)
}

// NoOpHooks ignores every notification.
type NoOpHooks struct{}

func (NoOpHooks) BeforeRound(*TurnContext, int)                                       {}
func (NoOpHooks) AfterRound(*TurnContext, int, string, time.Duration)                 {}
func (NoOpHooks) BeforeAction(*TurnContext, PlannedAction)                            {}
func (NoOpHooks) AfterAction(*TurnContext, PlannedAction, time.Duration, *AgentError) {}
func (NoOpHooks) OnEvent(*TurnContext, Event)                                         {}
func (NoOpHooks) OnError(*TurnContext, *AgentError)                                   {}
