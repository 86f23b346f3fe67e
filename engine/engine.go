package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentloop/agent"
	"github.com/hupe1980/agentloop/cancellation"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/flow"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

var (
	// ErrConfigurationNotFound is returned when RunAgent names an unknown configuration.
	ErrConfigurationNotFound = errors.New("agent configuration not found")
	// ErrInvalidConfiguration is returned when a configuration cannot be registered.
	ErrInvalidConfiguration = errors.New("invalid agent configuration")
	// ErrTooManyTurns is returned when MaxConcurrentTurns turns are already running.
	ErrTooManyTurns = errors.New("too many concurrent turns")
	// ErrTurnNotFound is returned by StopTurn for unknown message ids.
	ErrTurnNotFound = errors.New("turn not found")
)

// Config defines tuning parameters for the Engine's operational behavior.
type Config struct {
	// MaxConcurrentTurns limits the number of turns running simultaneously.
	// Set to 0 for unlimited.
	MaxConcurrentTurns int

	// MaxConcurrentActions bounds the actions of one round running at once.
	// Set to 0 for unlimited.
	MaxConcurrentActions int

	// ReservedGenerationTokens is kept free of the model context window
	// when rendering the conversation.
	ReservedGenerationTokens int

	// EventBufferSize sets the channel buffer size of the returned stream.
	EventBufferSize int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	MaxConcurrentTurns:       0,
	MaxConcurrentActions:     0,
	ReservedGenerationTokens: flow.DefaultReservedGenerationTokens,
	EventBufferSize:          64,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	Config Config

	// Model serves planning calls. Typically a *model.Router dispatching by
	// provider. Required for RunAgent.
	Model model.Model

	// Catalog describes the available models. Defaults to model.DefaultCatalog.
	Catalog *model.Catalog

	// Registry provides one runner per capability kind. Defaults to an
	// empty registry.
	Registry *tool.Registry

	// Store holds the cancellation flags. Defaults to an in-memory store,
	// which only sees Cancel calls made through the same process.
	Store cancellation.Store

	// Cancellation tunes the flag monitor (key prefix, poll interval, reset TTL).
	Cancellation []func(o *cancellation.Options)

	// Callbacks are registered on the engine's CallbackManager.
	Callbacks []Callback

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine runs agent turns.
//
// Concurrency Model:
//   - Thread-safe configuration registration and lookup via RWMutex
//   - One goroutine pipeline per turn, cancelled with its context
//   - Bounded concurrent turns when MaxConcurrentTurns > 0
type Engine struct {
	config    Config
	catalog   *model.Catalog
	registry  *tool.Registry
	monitor   *cancellation.Monitor
	callbacks *CallbackManager
	logger    logging.Logger
	agent     *agent.MultiActionsAgent
	hasModel  bool

	configs map[string]*core.AgentConfiguration
	mu      sync.RWMutex

	activeTurns map[string]context.CancelFunc
	turnsMu     sync.Mutex
	slots       chan struct{}
}

var _ core.Engine = (*Engine)(nil)

// New creates a new Engine instance with sensible defaults and optional configuration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Catalog == nil {
		opts.Catalog = model.DefaultCatalog()
	}
	if opts.Registry == nil {
		opts.Registry = tool.NewRegistry()
	}
	if opts.Store == nil {
		opts.Store = cancellation.NewInMemoryStore()
	}
	if opts.Config.EventBufferSize < 0 {
		opts.Config.EventBufferSize = 0
	}

	logger := opts.Logger
	monitor := cancellation.NewMonitor(opts.Store, append([]func(o *cancellation.Options){
		func(o *cancellation.Options) { o.Logger = logger },
	}, opts.Cancellation...)...)

	callbacks := NewCallbackManager(logger)
	for _, cb := range opts.Callbacks {
		callbacks.RegisterCallback(cb)
	}

	e := &Engine{
		config:      opts.Config,
		catalog:     opts.Catalog,
		registry:    opts.Registry,
		monitor:     monitor,
		callbacks:   callbacks,
		logger:      logger,
		hasModel:    opts.Model != nil,
		configs:     make(map[string]*core.AgentConfiguration),
		activeTurns: make(map[string]context.CancelFunc),
	}
	if opts.Config.MaxConcurrentTurns > 0 {
		e.slots = make(chan struct{}, opts.Config.MaxConcurrentTurns)
	}

	e.agent = agent.NewMultiActionsAgent("multi_actions", opts.Model, opts.Catalog, opts.Registry, func(o *agent.Options) {
		o.Monitor = monitor
		o.MaxConcurrentActions = opts.Config.MaxConcurrentActions
		o.Processors = flow.DefaultProcessors(opts.Config.ReservedGenerationTokens)
	})

	return e
}

// Catalog returns the model catalog.
func (e *Engine) Catalog() *model.Catalog { return e.catalog }

// Registry returns the runner registry.
func (e *Engine) Registry() *tool.Registry { return e.registry }

// Callbacks returns the callback manager.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// RegisterConfiguration validates and stores cfg, replacing any previous
// configuration with the same SID.
func (e *Engine) RegisterConfiguration(cfg *core.AgentConfiguration) error {
	if cfg == nil || cfg.SID == "" {
		return fmt.Errorf("%w: sid is required", ErrInvalidConfiguration)
	}
	if cfg.MaxToolsUsePerRun < 0 {
		return fmt.Errorf("%w: %s: max_tools_use_per_run must not be negative", ErrInvalidConfiguration, cfg.SID)
	}
	if _, err := e.catalog.Find(cfg.Model.ProviderID, cfg.Model.ModelID); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, cfg.SID, err)
	}
	seen := make(map[string]bool, len(cfg.Actions))
	for _, a := range cfg.Actions {
		if a == nil {
			return fmt.Errorf("%w: %s: nil action", ErrInvalidConfiguration, cfg.SID)
		}
		name := a.Base().Name
		if name != "" && seen[name] {
			return fmt.Errorf("%w: %s: duplicate capability name %q", ErrInvalidConfiguration, cfg.SID, name)
		}
		seen[name] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs[cfg.SID] = cfg
	e.logger.Debug("engine.configuration.registered", "configuration_id", cfg.SID, "actions", len(cfg.Actions))
	return nil
}

// GetConfiguration returns the configuration registered under sid.
func (e *Engine) GetConfiguration(sid string) (*core.AgentConfiguration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, ok := e.configs[sid]
	return cfg, ok
}

// ListConfigurations returns the registered configurations ordered by SID.
func (e *Engine) ListConfigurations() []*core.AgentConfiguration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*core.AgentConfiguration, 0, len(e.configs))
	for _, cfg := range e.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SID < out[j].SID })
	return out
}

// RunAgent implements core.Engine. The returned channel carries the turn's
// events and is closed when the turn ends or ctx is cancelled.
func (e *Engine) RunAgent(
	ctx context.Context,
	configurationID string,
	conversation *core.Conversation,
	userMessage *core.UserMessage,
	agentMessage *core.AgentMessage,
) (<-chan core.Event, error) {
	cfg, ok := e.GetConfiguration(configurationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigurationNotFound, configurationID)
	}
	if !e.hasModel {
		return nil, errors.New("engine has no model configured")
	}
	if userMessage == nil {
		return nil, errors.New("user message is required")
	}
	if conversation == nil {
		conversation = &core.Conversation{}
		conversation.Append(userMessage)
	}
	if agentMessage == nil {
		agentMessage = core.NewAgentMessage("")
	}
	conversation = conversation.WithAgentMessage(agentMessage)

	if e.slots != nil {
		select {
		case e.slots <- struct{}{}:
		default:
			return nil, fmt.Errorf("%w: limit %d", ErrTooManyTurns, e.config.MaxConcurrentTurns)
		}
	}

	turnCtx, cancel := context.WithCancel(ctx)
	messageID := agentMessage.SID()

	e.turnsMu.Lock()
	e.activeTurns[messageID] = cancel
	e.turnsMu.Unlock()

	log := logging.NewTurnLogger(e.logger).WithTurn(cfg.SID, messageID)
	turn := core.NewTurnContext(turnCtx, cfg, conversation, userMessage, agentMessage, log).
		WithHooks(e.callbacks)

	log.WithComponent("engine").Info("engine.turn.start", "actions", len(cfg.Actions), "max_tools_use_per_run", cfg.MaxToolsUsePerRun)

	events := e.agent.Run(turn)
	out := make(chan core.Event, e.config.EventBufferSize)

	go func() {
		defer func() {
			close(out)
			cancel()
			if e.slots != nil {
				<-e.slots
			}
			e.turnsMu.Lock()
			delete(e.activeTurns, messageID)
			e.turnsMu.Unlock()
			log.WithComponent("engine").Info("engine.turn.end", "status", string(agentMessage.Status()))
		}()

		for ev := range events {
			select {
			case <-turnCtx.Done():
				cancel()
			case out <- ev:
			}
		}
	}()

	return out, nil
}

// Cancel implements core.Engine by raising the cancellation flag of each
// message. Running turns observe it at their next poll.
func (e *Engine) Cancel(ctx context.Context, messageIDs ...string) error {
	if err := e.monitor.Cancel(ctx, messageIDs...); err != nil {
		return fmt.Errorf("failed to cancel generation: %w", err)
	}
	e.logger.Info("engine.turn.cancel_requested", "message_ids", messageIDs)
	return nil
}

// StopTurn cancels the context of a turn running in this process. Unlike
// Cancel no terminal event is emitted; the stream is simply closed.
func (e *Engine) StopTurn(messageID string) error {
	e.turnsMu.Lock()
	cancel, exists := e.activeTurns[messageID]
	e.turnsMu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrTurnNotFound, messageID)
	}

	cancel()
	return nil
}

// ActiveTurns returns the number of turns currently running.
func (e *Engine) ActiveTurns() int {
	e.turnsMu.Lock()
	defer e.turnsMu.Unlock()
	return len(e.activeTurns)
}
