// Package engine implements the orchestration layer of agentloop.
//
// The Engine is the entry point callers use to run agent turns. It holds
// everything a turn needs that outlives the turn itself.
//
// # Core Responsibilities
//
// Configuration Management:
//   - Thread-safe registry of agent configurations keyed by SID
//   - Validation of the configured model against the catalog
//
// Turn Orchestration:
//   - Builds the TurnContext (logger, hooks, cancellation scope)
//   - Runs the multi-actions agent and streams its events with buffering
//   - Bounded concurrent turns and local hard stop by message SID
//
// Cancellation:
//   - Cancel raises the shared flag observed by running planning rounds,
//     possibly in another process sharing the same flag store
//
// Callbacks:
//   - before_round, after_round, before_action, after_action, on_event and
//     on_error notifications through the CallbackManager
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────┐
//	│                      Engine                          │
//	│  ┌──────────────┐ ┌──────────────┐ ┌──────────────┐  │
//	│  │   RunAgent   │ │    Cancel    │ │  Callbacks   │  │
//	│  └──────┬───────┘ └──────┬───────┘ └──────────────┘  │
//	├─────────┼────────────────┼───────────────────────────┤
//	│  ┌──────▼───────┐ ┌──────▼───────┐ ┌──────────────┐  │
//	│  │ MultiActions │ │ Cancellation │ │   Runner     │  │
//	│  │    Agent     │ │   Monitor    │ │  Registry    │  │
//	│  └──────┬───────┘ └──────────────┘ └──────────────┘  │
//	│  ┌──────▼───────┐ ┌──────────────┐                   │
//	│  │ Model Router │ │ Model Catalog│                   │
//	│  └──────────────┘ └──────────────┘                   │
//	└──────────────────────────────────────────────────────┘
//
// # Usage
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.Model = router
//	    o.Registry = tool.NewRegistry(searchRunner, appRunner)
//	    o.Logger = logger
//	})
//	if err := eng.RegisterConfiguration(cfg); err != nil {
//	    return err
//	}
//	events, err := eng.RunAgent(ctx, cfg.SID, conversation, userMessage, agentMessage)
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    // forward to the client
//	}
package engine
