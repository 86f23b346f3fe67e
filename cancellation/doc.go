// Package cancellation implements the cooperative cancellation protocol of a
// turn. A caller raises a per-message flag in a shared Store; the planning
// round polls it at a bounded interval through a Monitor session and stops
// the turn when the flag is observed.
//
// Keys have the form assistant:generation:cancelled:<agentMessageSID>. A value
// of "1" means cancelled. Observing the flag resets it to "0" so a later turn
// on the same message is not cancelled again.
package cancellation
