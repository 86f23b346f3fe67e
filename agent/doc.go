// Package agent contains the multi-actions agent: the outer loop of a turn.
//
// A turn alternates planning rounds and parallel action execution:
//
//  1. A planning round offers the configured capabilities to the model
//  2. If the model answers, the answer is published and the turn succeeds
//  3. If the model plans actions, they run concurrently; their events are
//     forwarded in completion order and their records are appended to the
//     agent message so the next round sees them
//  4. The last allowed round offers no capabilities, forcing an answer
//
// The loop owns every terminal event (agent_error,
// agent_generation_cancelled, agent_message_success) and emits exactly one
// per turn unless the consumer cancels the turn context first.
package agent
