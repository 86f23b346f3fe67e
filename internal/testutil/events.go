package testutil

import (
	"testing"

	"github.com/hupe1980/agentloop/core"
)

// Collect drains ch and returns its events in delivery order.
func Collect(ch <-chan core.Event) []core.Event {
	var out []core.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

// Types returns the type of every event.
func Types(events []core.Event) []core.EventType {
	out := make([]core.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Header().Type
	}
	return out
}

// OfType returns the events of the given type.
func OfType(events []core.Event, typ core.EventType) []core.Event {
	var out []core.Event
	for _, ev := range events {
		if ev.Header().Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// RequireSingleTerminal fails the test unless the stream ends with exactly
// one terminal event, and returns it.
func RequireSingleTerminal(t testing.TB, events []core.Event) core.Event {
	t.Helper()
	if len(events) == 0 {
		t.Fatalf("no events")
	}
	terminals := 0
	for _, ev := range events {
		if core.IsTerminal(ev) {
			terminals++
		}
	}
	if terminals != 1 {
		t.Fatalf("expected exactly one terminal event, got %d: %v", terminals, Types(events))
	}
	last := events[len(events)-1]
	if !core.IsTerminal(last) {
		t.Fatalf("last event %s is not terminal", last.Header().Type)
	}
	return last
}
