// Package core provides the foundational domain types shared by the agent
// tool-use loop. It defines:
//
//   - Conversations and messages (user, agent, content fragments)
//   - The AgentMessage accumulator mutated by one turn
//   - Agent and capability configurations (a closed set of action kinds)
//   - Capability specifications and planned actions
//   - Events (the append-only contract streamed to callers)
//   - Error codes for terminal failures
//   - TurnContext, the per-turn execution scope
//
// Implementation concerns (model transports, capability runners, the
// cancellation flag store) live in their own packages and depend on core,
// never the other way around.
package core
