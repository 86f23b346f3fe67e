package flow

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentloop/core"
)

// Source starts an event stream bound to ctx.
type Source func(ctx context.Context) <-chan core.Event

// FanIn runs sources concurrently and merges their events in completion
// order. At most limit sources run at once (0 means unbounded).
//
// The first agent_error forwarded cancels the context handed to every
// source; their remaining events are drained without being forwarded and
// sources not yet started are skipped. The returned channel is closed once
// every started source has closed its stream.
func FanIn(ctx context.Context, limit int, sources ...Source) <-chan core.Event {
	out := make(chan core.Event)

	cctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(cctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	var mu sync.Mutex
	send := func(ev core.Event) {
		mu.Lock()
		defer mu.Unlock()
		if gctx.Err() != nil {
			return
		}
		select {
		case out <- ev:
		case <-gctx.Done():
			return
		}
		if _, ok := ev.(core.AgentErrorEvent); ok {
			cancel()
		}
	}

	go func() {
		defer close(out)
		defer cancel()

		for _, src := range sources {
			src := src
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				for ev := range src(gctx) {
					send(ev)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()

	return out
}
