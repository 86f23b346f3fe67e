package cancellation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStoreClosed is returned when a released connection is used.
var ErrStoreClosed = errors.New("cancellation store connection closed")

// Conn is a scoped connection to the flag store.
type Conn interface {
	// Get returns the value of key, or "" when it does not exist.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key with the given expiry (0 means none).
	Set(ctx context.Context, key, value string, expiry time.Duration) error
	// Close releases the connection.
	Close() error
}

// Store hands out scoped connections.
type Store interface {
	Acquire(ctx context.Context) (Conn, error)
}

type entry struct {
	value   string
	expires time.Time
}

// InMemoryStore is a volatile Store keeping flags in a process local map. It
// is safe for concurrent access and best suited for tests or single process
// deployments.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewInMemoryStore constructs an empty in‑memory flag store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]entry), now: time.Now}
}

// Acquire implements Store.
func (s *InMemoryStore) Acquire(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memConn{store: s}, nil
}

func (s *InMemoryStore) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return ""
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return ""
	}
	return e.value
}

func (s *InMemoryStore) set(key, value string, expiry time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: value}
	if expiry > 0 {
		e.expires = s.now().Add(expiry)
	}
	s.entries[key] = e
}

type memConn struct {
	store  *InMemoryStore
	mu     sync.Mutex
	closed bool
}

func (c *memConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *memConn) Get(ctx context.Context, key string) (string, error) {
	if c.isClosed() {
		return "", ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.store.get(key), nil
}

func (c *memConn) Set(ctx context.Context, key, value string, expiry time.Duration) error {
	if c.isClosed() {
		return ErrStoreClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.set(key, value, expiry)
	return nil
}

func (c *memConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
