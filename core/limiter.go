package core

import (
	"fmt"
	"sync"
)

// RoundLimiter enforces the maximum number of planning rounds of a turn.
// A turn allowing n tool uses performs at most n+1 rounds.
type RoundLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewRoundLimiter creates a limiter for a turn allowing maxToolsUsePerRun
// tool-use rounds.
func NewRoundLimiter(maxToolsUsePerRun int) *RoundLimiter {
	if maxToolsUsePerRun < 0 {
		maxToolsUsePerRun = 0
	}
	return &RoundLimiter{max: maxToolsUsePerRun + 1}
}

// Increment records a round and returns an error if the limit is exceeded.
func (rl *RoundLimiter) Increment() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.count++
	if rl.count > rl.max {
		return fmt.Errorf("exceeded max planning rounds: %d", rl.max)
	}

	return nil
}

// Count returns the number of rounds performed.
func (rl *RoundLimiter) Count() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.count
}

// Remaining returns how many rounds are left.
func (rl *RoundLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.max - rl.count
}

// IsFinal reports whether the next round is the last one allowed, which
// must run without capabilities.
func (rl *RoundLimiter) IsFinal() bool {
	return rl.Remaining() == 1
}
