package cancellation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/logging"
)

const (
	// DefaultKeyPrefix prefixes every flag key.
	DefaultKeyPrefix = "assistant:generation:cancelled:"
	// DefaultCheckInterval is the minimum time between two polls of a round.
	DefaultCheckInterval = 500 * time.Millisecond
	// DefaultResetTTL is the expiry applied when a flag is written.
	DefaultResetTTL = time.Hour

	flagCancelled = "1"
	flagCleared   = "0"
)

// Poll results reported to observers.
const (
	PollCancelled    = "cancelled"
	PollNotCancelled = "not_cancelled"
	PollError        = "error"
)

// Options configure a Monitor.
type Options struct {
	KeyPrefix     string
	CheckInterval time.Duration
	ResetTTL      time.Duration
	Logger        logging.Logger
	// OnPoll observes the result of every poll (see Poll* constants).
	OnPoll func(result string)
}

// Monitor checks and raises cancellation flags.
type Monitor struct {
	store Store
	opts  Options
}

// NewMonitor creates a Monitor over store.
func NewMonitor(store Store, optFns ...func(o *Options)) *Monitor {
	opts := Options{
		KeyPrefix:     DefaultKeyPrefix,
		CheckInterval: DefaultCheckInterval,
		ResetTTL:      DefaultResetTTL,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Monitor{store: store, opts: opts}
}

// CheckInterval returns the configured poll interval.
func (m *Monitor) CheckInterval() time.Duration { return m.opts.CheckInterval }

// Key returns the flag key of an agent message.
func (m *Monitor) Key(messageID string) string { return m.opts.KeyPrefix + messageID }

// Open acquires a connection for the consumption phase of a round. The
// returned Session must be closed when the phase ends.
func (m *Monitor) Open(ctx context.Context) (*Session, error) {
	conn, err := m.store.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire cancellation store: %w", err)
	}
	return &Session{monitor: m, conn: conn}, nil
}

// Cancel raises the cancellation flag of every message.
func (m *Monitor) Cancel(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	conn, err := m.store.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cancellation store: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var errs []error
	for _, id := range messageIDs {
		if err := conn.Set(ctx, m.Key(id), flagCancelled, m.opts.ResetTTL); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", id, err))
			continue
		}
		m.opts.Logger.Info("cancellation.flag.raised", "message_id", id)
	}
	return errors.Join(errs...)
}

// Session is a scoped connection used to poll one message's flag.
type Session struct {
	monitor *Monitor
	conn    Conn
}

// IsCancelled reports whether the flag of messageID is raised. An observed
// flag is reset so it fires once. Store errors are logged and reported as
// not cancelled.
func (s *Session) IsCancelled(ctx context.Context, messageID string) bool {
	m := s.monitor
	key := m.Key(messageID)

	val, err := s.conn.Get(ctx, key)
	if err != nil {
		m.opts.Logger.Warn("cancellation.poll.error", "message_id", messageID, "error", err.Error())
		m.observe(PollError)
		return false
	}
	if val != flagCancelled {
		m.observe(PollNotCancelled)
		return false
	}

	if err := s.conn.Set(ctx, key, flagCleared, m.opts.ResetTTL); err != nil {
		m.opts.Logger.Warn("cancellation.reset.error", "message_id", messageID, "error", err.Error())
	}
	m.opts.Logger.Info("cancellation.flag.observed", "message_id", messageID)
	m.observe(PollCancelled)
	return true
}

// PollAsync runs IsCancelled in the background. The returned channel yields
// exactly one value and is buffered, so the poll never blocks on a caller
// that has moved on.
func (s *Session) PollAsync(ctx context.Context, messageID string) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		out <- s.IsCancelled(ctx, messageID)
	}()
	return out
}

// Close releases the connection.
func (s *Session) Close() error { return s.conn.Close() }

func (m *Monitor) observe(result string) {
	if m.opts.OnPoll != nil {
		m.opts.OnPoll(result)
	}
}
