package flow

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/hupe1980/agentloop/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) emit(ev core.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) types() []core.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Header().Type
	}
	return out
}

func (r *recorder) text(cls core.TokenClassification) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := ""
	for _, ev := range r.events {
		if tok, ok := ev.(core.GenerationTokensEvent); ok && tok.Classification == cls {
			s += tok.Text
		}
	}
	return s
}

func newTurn(t *testing.T, providerID, modelID string, actions ...core.ActionConfiguration) *core.TurnContext {
	t.Helper()
	cfg := &core.AgentConfiguration{
		SID:               "agent-1",
		Name:              "helper",
		Instructions:      "Help {{ .Username }} today ({{ .Date }}).",
		Model:             core.ModelSelector{ProviderID: providerID, ModelID: modelID, Temperature: 0.7},
		Actions:           actions,
		MaxToolsUsePerRun: 3,
	}
	user := &core.UserMessage{
		SID:     "user-1",
		Content: "What is new in Go?",
		Context: core.UserContext{Username: "ada", FullName: "Ada Lovelace", Timezone: "Europe/Berlin"},
	}
	conversation := &core.Conversation{SID: "conv-1"}
	conversation.Append(user)
	msg := core.NewAgentMessage("msg-1")
	conversation.Append(msg)
	return core.NewTurnContext(context.Background(), cfg, conversation, user, msg, nil)
}

func websearch(name string) *core.WebsearchConfiguration {
	return &core.WebsearchConfiguration{ActionBase: core.ActionBase{SID: "ws-" + name, Name: name, Description: "Search the web."}}
}
