package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Round is one scripted planning call: either a call-level error or the
// events to replay.
type Round struct {
	Err    error
	Events []StreamEvent
}

// ScriptedModel is a lightweight in‑memory Model useful for tests & examples.
// Each Generate call consumes the next scripted round; calls past the end of
// the script fail.
type ScriptedModel struct {
	info Info

	mu       sync.Mutex
	rounds   []Round
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel replaying rounds in order.
func NewScriptedModel(name, provider string, rounds ...Round) *ScriptedModel {
	return &ScriptedModel{
		info:   Info{Name: name, Provider: provider},
		rounds: rounds,
	}
}

// AddRound appends a scripted round.
func (m *ScriptedModel) AddRound(r Round) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = append(m.rounds, r)
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	m.mu.Lock()
	idx := len(m.requests)
	m.requests = append(m.requests, req)
	if idx >= len(m.rounds) {
		m.mu.Unlock()
		return nil, fmt.Errorf("scripted model %s: no round %d", m.info.Name, idx)
	}
	round := m.rounds[idx]
	m.mu.Unlock()

	if round.Err != nil {
		return nil, round.Err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		for _, ev := range round.Events {
			select {
			case <-ctx.Done():
				return
			case out <- ev:
			}
		}
	}()
	return out, nil
}

// Info implements Model interface.
func (m *ScriptedModel) Info() Info { return m.info }

// GenerationRound scripts a final answer streamed in chunks of chunkSize
// runes. A chunkSize <= 0 emits no tokens and only the OUTPUT block.
func GenerationRound(text string, chunkSize int) Round {
	var events []StreamEvent
	if chunkSize > 0 {
		for _, c := range chunkString(text, chunkSize) {
			events = append(events, TokensEvent(c))
		}
	}
	gen := text
	events = append(events,
		StreamEvent{Type: StreamEventBlockExecution, Block: &BlockExecution{BlockName: BlockModel, Value: &Output{Generation: &gen}}},
		OutputEvent(Output{Generation: &gen}),
	)
	return Round{Events: events}
}

// ActionsRound scripts a round choosing actions, optionally preceded by
// streamed reasoning text.
func ActionsRound(thought string, actions ...OutputAction) Round {
	var events []StreamEvent
	if thought != "" {
		events = append(events, TokensEvent(thought))
	}
	events = append(events, FunctionCallEvent(), OutputEvent(Output{Actions: actions}))
	return Round{Events: events}
}

// Call builds an OutputAction with a function call id.
func Call(id, name string, args map[string]any) OutputAction {
	if args == nil {
		args = map[string]any{}
	}
	return OutputAction{FunctionCallID: &id, Name: name, Arguments: args}
}

func chunkString(s string, n int) []string {
	var out []string
	var b strings.Builder
	count := 0
	for _, r := range s {
		b.WriteRune(r)
		count++
		if count == n {
			out = append(out, b.String())
			b.Reset()
			count = 0
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
