package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agentloop/core"
)

func TestConversationBuilder(t *testing.T) {
	conv := NewConversationBuilder("c1").
		User("u1", "ada", "first").
		Version(&core.UserMessage{SID: "u1", Content: "edited"}).
		Agent("a1", "answer").
		Fragment("f1", "notes", "text/plain", "draft").
		Build()

	latest := conv.Latest()
	if len(latest) != 3 {
		t.Fatalf("expected 3 ranks, got %d", len(latest))
	}
	assert.Equal(t, "edited", latest[0].(*core.UserMessage).Content)
	assert.Equal(t, core.AgentMessageStatusSucceeded, latest[1].(*core.AgentMessage).Status())
}

func TestCollectAndTypes(t *testing.T) {
	ch := make(chan core.Event, 2)
	ch <- core.GenerationTokensEvent{EventHeader: core.NewHeader(core.EventTypeGenerationTokens, "c", "m")}
	ch <- core.AgentMessageSuccessEvent{EventHeader: core.NewHeader(core.EventTypeAgentMessageSuccess, "c", "m")}
	close(ch)

	events := Collect(ch)
	assert.Equal(t, []core.EventType{core.EventTypeGenerationTokens, core.EventTypeAgentMessageSuccess}, Types(events))
	assert.Len(t, OfType(events, core.EventTypeGenerationTokens), 1)
	assert.Equal(t, core.EventTypeAgentMessageSuccess, RequireSingleTerminal(t, events).Header().Type)
}
