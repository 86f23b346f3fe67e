package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentloop/core"
)

// ErrRankOutOfRange is returned when a version targets a missing rank.
var ErrRankOutOfRange = errors.New("rank out of range")

// InMemoryStore stores conversations in a process local map. It is safe for
// concurrent access. Returned conversations are copies; appending to them
// does not change the store.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*core.Conversation
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*core.Conversation)}
}

// Get returns a copy of the conversation, creating it lazily.
func (s *InMemoryStore) Get(sid string) *core.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.getLocked(sid))
}

// Append adds a message as a new rank and returns the rank index.
func (s *InMemoryStore) Append(sid string, m core.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getLocked(sid)
	conv.Append(m)
	return len(conv.Content) - 1
}

// AddVersion records a new version of the message at rank, for example an
// edited user message or a retried agent message.
func (s *InMemoryStore) AddVersion(sid string, rank int, m core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := s.getLocked(sid)
	if rank < 0 || rank >= len(conv.Content) {
		return fmt.Errorf("%w: %d", ErrRankOutOfRange, rank)
	}
	conv.Content[rank] = append(conv.Content[rank], m)
	return nil
}

// Delete removes a conversation.
func (s *InMemoryStore) Delete(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, sid)
}

// Len returns the number of stored conversations.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// getLocked returns the stored conversation; caller must hold the write lock.
func (s *InMemoryStore) getLocked(sid string) *core.Conversation {
	conv, ok := s.conversations[sid]
	if !ok {
		conv = &core.Conversation{SID: sid}
		s.conversations[sid] = conv
	}
	return conv
}

func clone(c *core.Conversation) *core.Conversation {
	out := &core.Conversation{
		SID:         c.SID,
		WorkspaceID: c.WorkspaceID,
		Title:       c.Title,
		Content:     make([][]core.Message, len(c.Content)),
	}
	for i, versions := range c.Content {
		out.Content[i] = append([]core.Message(nil), versions...)
	}
	return out
}
