// Package redis provides a cancellation.Store backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentloop/cancellation"
)

// Options configure NewClient.
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewClient creates a client and checks connectivity with PING.
func NewClient(ctx context.Context, optFns ...func(o *Options)) (*redis.Client, error) {
	opts := Options{Addr: "localhost:6379", DialTimeout: 5 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// pooled is implemented by *redis.Client: Conn takes a dedicated connection
// from the pool that is returned on Close.
type pooled interface {
	Conn() *redis.Conn
}

// Store is a cancellation.Store over any redis.Cmdable.
type Store struct {
	client redis.Cmdable
}

// New creates a Store. When client is a *redis.Client every Acquire takes a
// dedicated pooled connection; other Cmdables are shared.
func New(client redis.Cmdable) *Store {
	return &Store{client: client}
}

// Acquire implements cancellation.Store.
func (s *Store) Acquire(ctx context.Context) (cancellation.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p, ok := s.client.(pooled); ok {
		conn := p.Conn()
		return &Conn{cmd: conn, release: conn.Close}, nil
	}
	return &Conn{cmd: s.client, release: func() error { return nil }}, nil
}

// Conn is a scoped Redis connection.
type Conn struct {
	cmd     redis.Cmdable
	release func() error
	closed  bool
}

// Get implements cancellation.Conn. A missing key yields "".
func (c *Conn) Get(ctx context.Context, key string) (string, error) {
	if c.closed {
		return "", cancellation.ErrStoreClosed
	}
	val, err := c.cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Set implements cancellation.Conn.
func (c *Conn) Set(ctx context.Context, key, value string, expiry time.Duration) error {
	if c.closed {
		return cancellation.ErrStoreClosed
	}
	if err := c.cmd.Set(ctx, key, value, expiry).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close implements cancellation.Conn.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.release()
}
