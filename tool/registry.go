package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentloop/core"
)

// Registry maps capability kinds to their runners.
type Registry struct {
	mu      sync.RWMutex
	runners map[core.ActionKind]Runner
}

// NewRegistry creates a registry pre-populated with runners.
func NewRegistry(runners ...Runner) *Registry {
	r := &Registry{runners: make(map[core.ActionKind]Runner)}
	for _, runner := range runners {
		r.Register(runner)
	}
	return r
}

// Register binds a runner to its kind, replacing any previous binding.
func (r *Registry) Register(runner Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[runner.Kind()] = runner
}

// Get returns the runner for kind.
func (r *Registry) Get(kind core.ActionKind) (Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunnerNotFound, kind)
	}
	return runner, nil
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []core.ActionKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.ActionKind, 0, len(r.runners))
	for k := range r.runners {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
