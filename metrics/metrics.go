// Package metrics exposes Prometheus instrumentation for agent turns:
// planning rounds, action executions, terminal events and cancellation polls.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/engine"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "agentloop"

// Options configures Metrics.
type Options struct {
	Namespace string
	// Buckets of the duration histograms, in seconds.
	Buckets []float64
}

// Metrics is a set of collectors registered on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	rounds         *prometheus.CounterVec
	roundDuration  *prometheus.HistogramVec
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	terminalEvents *prometheus.CounterVec
	polls          *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(optFns ...func(o *Options)) *Metrics {
	opts := Options{
		Namespace: DefaultNamespace,
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "planning_rounds_total",
			Help:      "Planning rounds by outcome.",
		}, []string{"outcome"}),
		roundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "planning_round_duration_seconds",
			Help:      "Duration of planning rounds.",
			Buckets:   opts.Buckets,
		}, []string{"outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "actions_total",
			Help:      "Executed actions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of action executions.",
			Buckets:   opts.Buckets,
		}, []string{"kind"}),
		terminalEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "terminal_events_total",
			Help:      "Turns ended by terminal event type.",
		}, []string{"type"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace,
			Name:      "cancellation_polls_total",
			Help:      "Cancellation flag polls by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.rounds,
		m.roundDuration,
		m.actions,
		m.actionDuration,
		m.terminalEvents,
		m.polls,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePoll counts a cancellation poll. Suitable as
// cancellation.Options.OnPoll.
func (m *Metrics) ObservePoll(result string) {
	m.polls.WithLabelValues(result).Inc()
}

// ObserveRound records a completed planning round.
func (m *Metrics) ObserveRound(outcome string, d time.Duration) {
	m.rounds.WithLabelValues(outcome).Inc()
	m.roundDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveAction records a terminated action.
func (m *Metrics) ObserveAction(kind core.ActionKind, d time.Duration, err *core.AgentError) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.actions.WithLabelValues(string(kind), outcome).Inc()
	m.actionDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// ObserveEvent counts terminal events; other events are ignored.
func (m *Metrics) ObserveEvent(ev core.Event) {
	if ev == nil || !core.IsTerminal(ev) {
		return
	}
	m.terminalEvents.WithLabelValues(string(ev.Header().Type)).Inc()
}

// Callbacks returns the engine callbacks feeding the collectors.
func (m *Metrics) Callbacks() []engine.Callback {
	return []engine.Callback{
		engine.NewFunctionCallback(engine.CallbackAfterRound, func(_ context.Context, cc *engine.CallbackContext) error {
			m.ObserveRound(cc.Outcome, cc.Duration)
			return nil
		}),
		engine.NewFunctionCallback(engine.CallbackAfterAction, func(_ context.Context, cc *engine.CallbackContext) error {
			var kind core.ActionKind = "unknown"
			if cc.Action != nil && cc.Action.Action != nil {
				kind = cc.Action.Action.Kind()
			}
			m.ObserveAction(kind, cc.Duration, cc.Error)
			return nil
		}),
		engine.NewFunctionCallback(engine.CallbackOnEvent, func(_ context.Context, cc *engine.CallbackContext) error {
			m.ObserveEvent(cc.Event)
			return nil
		}),
	}
}

// Serve exposes handler on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
