package testutil

import (
	"github.com/hupe1980/agentloop/core"
)

// ConversationBuilder helps construct conversations with fluent chaining.
// Example:
//
//	conv := NewConversationBuilder("conv-1").
//		User("u1", "ada", "What changed?").
//		Agent("a1", "Nothing.").
//		Build()
type ConversationBuilder struct {
	conv *core.Conversation
}

// NewConversationBuilder creates a builder for a conversation with the given sid.
func NewConversationBuilder(sid string) *ConversationBuilder {
	return &ConversationBuilder{conv: &core.Conversation{SID: sid}}
}

// User appends a user message as a new rank (chainable).
func (b *ConversationBuilder) User(sid, username, content string) *ConversationBuilder {
	b.conv.Append(&core.UserMessage{
		SID:     sid,
		Content: content,
		Context: core.UserContext{Username: username},
	})
	return b
}

// Agent appends a succeeded agent message carrying the given actions (chainable).
func (b *ConversationBuilder) Agent(sid, content string, actions ...core.ActionRecord) *ConversationBuilder {
	msg := core.NewAgentMessage(sid)
	for _, rec := range actions {
		msg.AppendAction(rec)
	}
	msg.Succeed(content)
	b.conv.Append(msg)
	return b
}

// Fragment appends a content fragment (chainable).
func (b *ConversationBuilder) Fragment(sid, title, contentType, content string) *ConversationBuilder {
	b.conv.Append(&core.ContentFragment{SID: sid, Title: title, ContentType: contentType, Content: content})
	return b
}

// Message appends any message (chainable).
func (b *ConversationBuilder) Message(m core.Message) *ConversationBuilder {
	b.conv.Append(m)
	return b
}

// Version adds a new version of the last rank (chainable).
func (b *ConversationBuilder) Version(m core.Message) *ConversationBuilder {
	n := len(b.conv.Content)
	if n == 0 {
		b.conv.Append(m)
		return b
	}
	b.conv.Content[n-1] = append(b.conv.Content[n-1], m)
	return b
}

// Build returns the conversation.
func (b *ConversationBuilder) Build() *core.Conversation { return b.conv }
