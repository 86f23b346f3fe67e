package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentMessage_ConcurrentAppend(t *testing.T) {
	m := NewAgentMessage("am")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(step int) {
			defer wg.Done()
			m.AppendAction(ActionRecord{ID: NewID(), Kind: ActionKindRetrieval, Step: step})
			_ = m.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Actions(), 50)
}

func TestAgentMessage_SnapshotIsACopy(t *testing.T) {
	m := NewAgentMessage("am")
	m.AppendAction(ActionRecord{ID: "a1"})
	snap := m.Snapshot()
	m.AppendAction(ActionRecord{ID: "a2"})

	assert.Len(t, snap.Actions, 1)
	assert.Len(t, m.Actions(), 2)

	actions := m.Actions()
	actions[0].ID = "mutated"
	assert.Equal(t, "a1", m.Actions()[0].ID)
}

func TestAgentMessage_StatusTransitions(t *testing.T) {
	m := NewAgentMessage("")
	assert.NotEmpty(t, m.SID())
	assert.Equal(t, AgentMessageStatusCreated, m.Status())

	m.AppendChainOfThought("first")
	m.AppendChainOfThought("")
	m.AppendChainOfThought("second")
	assert.Equal(t, "first\nsecond", m.ChainOfThought())

	m.Succeed("answer")
	assert.Equal(t, AgentMessageStatusSucceeded, m.Status())
	assert.Equal(t, "answer", m.Content())

	failed := NewAgentMessage("f")
	failed.Fail(NewAgentError(ErrorCodeActionNotFound, "nope"))
	snap := failed.Snapshot()
	assert.Equal(t, AgentMessageStatusErrored, snap.Status)
	assert.Equal(t, ErrorCodeActionNotFound, snap.Error.Code)

	cancelled := NewAgentMessage("c")
	cancelled.Cancel()
	assert.Equal(t, AgentMessageStatusCancelled, cancelled.Status())
}

func TestConversation_Latest(t *testing.T) {
	conv := &Conversation{}
	conv.Append(&UserMessage{SID: "u1"})
	conv.Content = append(conv.Content, []Message{
		&UserMessage{SID: "u2", Version: 0},
		&UserMessage{SID: "u2", Version: 1, Content: "edited"},
	})
	conv.Content = append(conv.Content, []Message{})
	conv.Append(&ContentFragment{SID: "f1"})

	latest := conv.Latest()
	assert.Len(t, latest, 3)
	assert.Equal(t, "edited", latest[1].(*UserMessage).Content)
	assert.Equal(t, "f1", latest[2].MessageSID())

	var nilConv *Conversation
	assert.Nil(t, nilConv.Latest())
}

func TestConversation_WithAgentMessage(t *testing.T) {
	conv := &Conversation{SID: "c1"}
	conv.Append(&UserMessage{SID: "u1"})
	msg := NewAgentMessage("am")

	with := conv.WithAgentMessage(msg)
	assert.Len(t, conv.Content, 1)
	latest := with.Latest()
	assert.Len(t, latest, 2)
	assert.Same(t, msg, latest[1])
	assert.Equal(t, "c1", with.SID)

	assert.Same(t, with, with.WithAgentMessage(msg))

	var nilConv *Conversation
	assert.Equal(t, []Message{msg}, nilConv.WithAgentMessage(msg).Latest())
}
