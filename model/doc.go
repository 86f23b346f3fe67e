// Package model defines the provider‑agnostic model execution call used by
// planning rounds, plus the catalog of models able to plan multi-step tool use.
//
// Core goals:
//   - Normalize every provider into one event stream: raw tokens, a marker when
//     a capability call begins, a structured block result and terminal errors
//   - Keep request shapes minimal and transport independent
//   - Describe per-model limits (context size) and delimiter configuration
//   - Facilitate lightweight mocking for tests (ScriptedModel)
//
// Providers (OpenAI, Anthropic, Gemini) implement the Model interface in
// subpackages so higher layers remain decoupled from vendor SDKs.
package model
