package core

// Agent runs one turn and streams its events.
//
// Implementations must:
//   - Close the returned channel when the turn ends
//   - Emit exactly one terminal event (error, cancelled or message success)
//     unless the context is cancelled first
//   - Emit nothing after the terminal event
type Agent interface {
	Run(turn *TurnContext) <-chan Event
}
