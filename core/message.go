package core

import (
	"sync"
	"time"
)

// Message is a closed set of conversation entries. Concrete message types
// implement the unexported isMessage marker.
type Message interface {
	isMessage()
	// MessageSID returns the stable message identifier.
	MessageSID() string
}

// UserContext describes the author of a user message.
type UserContext struct {
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Mention references an agent configuration mentioned in a user message.
type Mention struct {
	ConfigurationID string `json:"configuration_id"`
}

// UserMessage is the immutable message that triggered a turn.
type UserMessage struct {
	SID      string      `json:"sid"`
	Version  int         `json:"version"`
	Created  time.Time   `json:"created"`
	Content  string      `json:"content"`
	Context  UserContext `json:"context"`
	Mentions []Mention   `json:"mentions,omitempty"`
}

func (*UserMessage) isMessage() {}

// MessageSID implements Message.
func (m *UserMessage) MessageSID() string { return m.SID }

// ContentFragment is a piece of external content (file, pasted text) attached
// to the conversation.
type ContentFragment struct {
	SID         string    `json:"sid"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Created     time.Time `json:"created"`
}

func (*ContentFragment) isMessage() {}

// MessageSID implements Message.
func (f *ContentFragment) MessageSID() string { return f.SID }

// AgentMessageStatus is the lifecycle state of an AgentMessage.
type AgentMessageStatus string

const (
	AgentMessageStatusCreated   AgentMessageStatus = "created"
	AgentMessageStatusSucceeded AgentMessageStatus = "succeeded"
	AgentMessageStatusErrored   AgentMessageStatus = "errored"
	AgentMessageStatusCancelled AgentMessageStatus = "cancelled"
)

// AgentMessage is the mutable output accumulator of one turn. It is safe for
// concurrent use: concurrently executing actions append their records while
// the planning loop and callers read snapshots.
//
// Contract:
//   - Actions are append-only; nothing replaces the accumulated list
//   - Status moves from created to exactly one of succeeded, errored, cancelled
//   - Snapshot returns a deep copy that reflects everything observed so far
type AgentMessage struct {
	mu sync.RWMutex

	sid            string
	version        int
	created        time.Time
	status         AgentMessageStatus
	content        string
	chainOfThought string
	actions        []ActionRecord
	err            *AgentError
}

// NewAgentMessage creates a fresh agent message in status created.
func NewAgentMessage(sid string) *AgentMessage {
	if sid == "" {
		sid = NewID()
	}
	return &AgentMessage{
		sid:     sid,
		created: time.Now().UTC(),
		status:  AgentMessageStatusCreated,
		actions: []ActionRecord{},
	}
}

func (*AgentMessage) isMessage() {}

// MessageSID implements Message.
func (m *AgentMessage) MessageSID() string { return m.sid }

// SID returns the message identifier.
func (m *AgentMessage) SID() string { return m.sid }

// Status returns the current lifecycle status.
func (m *AgentMessage) Status() AgentMessageStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Content returns the accumulated visible content.
func (m *AgentMessage) Content() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.content
}

// ChainOfThought returns the accumulated reasoning text.
func (m *AgentMessage) ChainOfThought() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chainOfThought
}

// Actions returns a copy of the executed action records in append order.
func (m *AgentMessage) Actions() []ActionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ActionRecord, len(m.actions))
	copy(out, m.actions)
	return out
}

// AppendAction pushes a completed action record.
func (m *AgentMessage) AppendAction(rec ActionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, rec)
}

// AppendChainOfThought appends reasoning text, separating rounds with a newline.
func (m *AgentMessage) AppendChainOfThought(text string) {
	if text == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chainOfThought != "" {
		m.chainOfThought += "\n"
	}
	m.chainOfThought += text
}

// Succeed records the final content and moves the message to succeeded.
func (m *AgentMessage) Succeed(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = content
	m.status = AgentMessageStatusSucceeded
}

// Fail moves the message to errored.
func (m *AgentMessage) Fail(err *AgentError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.status = AgentMessageStatusErrored
}

// Cancel moves the message to cancelled.
func (m *AgentMessage) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = AgentMessageStatusCancelled
}

// Snapshot returns an immutable copy of the message.
func (m *AgentMessage) Snapshot() AgentMessageSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	actions := make([]ActionRecord, len(m.actions))
	copy(actions, m.actions)
	var err *AgentError
	if m.err != nil {
		e := *m.err
		err = &e
	}
	return AgentMessageSnapshot{
		SID:            m.sid,
		Version:        m.version,
		Created:        m.created,
		Status:         m.status,
		Content:        m.content,
		ChainOfThought: m.chainOfThought,
		Actions:        actions,
		Error:          err,
	}
}

// AgentMessageSnapshot is a point-in-time copy of an AgentMessage carried by
// events.
type AgentMessageSnapshot struct {
	SID            string             `json:"sid"`
	Version        int                `json:"version"`
	Created        time.Time          `json:"created"`
	Status         AgentMessageStatus `json:"status"`
	Content        string             `json:"content"`
	ChainOfThought string             `json:"chain_of_thought,omitempty"`
	Actions        []ActionRecord     `json:"actions"`
	Error          *AgentError        `json:"error,omitempty"`
}

// Conversation is the ordered message history of a turn. Each rank holds
// one or more versions of a message; the last version is the visible one.
type Conversation struct {
	SID         string      `json:"sid"`
	WorkspaceID string      `json:"workspace_id,omitempty"`
	Title       string      `json:"title,omitempty"`
	Content     [][]Message `json:"-"`
}

// Latest returns the visible version of every rank, oldest first.
func (c *Conversation) Latest() []Message {
	if c == nil {
		return nil
	}
	out := make([]Message, 0, len(c.Content))
	for _, versions := range c.Content {
		if len(versions) == 0 {
			continue
		}
		out = append(out, versions[len(versions)-1])
	}
	return out
}

// Append adds a new rank holding a single message version.
func (c *Conversation) Append(m Message) {
	c.Content = append(c.Content, []Message{m})
}

// WithAgentMessage returns a conversation whose newest rank is m, so the
// actions m accumulates during a turn are rendered into later planning
// rounds. c is returned unchanged when m already is its newest message;
// otherwise c is left untouched and a copy with m appended is returned.
func (c *Conversation) WithAgentMessage(m *AgentMessage) *Conversation {
	if c == nil {
		c = &Conversation{}
	}
	if latest := c.Latest(); len(latest) > 0 {
		if last, ok := latest[len(latest)-1].(*AgentMessage); ok && (last == m || last.SID() == m.SID()) {
			return c
		}
	}
	out := *c
	out.Content = make([][]Message, len(c.Content), len(c.Content)+1)
	copy(out.Content, c.Content)
	out.Append(m)
	return &out
}
