// Package agentloop provides a high-level facade over engine.Engine. It turns
// a config.Config into a ready-to-use engine:
//  1. a logger built from the log section
//  2. a model router with one transport per configured provider
//  3. the model catalog, optionally extended from a YAML file
//  4. a Redis or in-memory cancellation flag store
//  5. Prometheus metrics when enabled
//
// Applications register agent configurations and run turns through RunAgent
// or the synchronous RunAgentSync helper.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/hupe1980/agentloop/cancellation"
	"github.com/hupe1980/agentloop/cancellation/redis"
	"github.com/hupe1980/agentloop/config"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/engine"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/metrics"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/model/anthropic"
	"github.com/hupe1980/agentloop/model/gemini"
	"github.com/hupe1980/agentloop/model/openai"
	"github.com/hupe1980/agentloop/session"
	"github.com/hupe1980/agentloop/tool"
)

// Provider ids of the built-in transports.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "google_ai_studio"
)

// Options configures an AgentLoop.
type Options struct {
	// Config supplies every setting not overridden below. Defaults to config.Default().
	Config *config.Config

	// Logger overrides the logger built from Config.Log.
	Logger logging.Logger

	// Model overrides the provider router built from Config.Providers.
	Model model.Model

	// Registry provides the capability runners. Defaults to an empty registry.
	Registry *tool.Registry

	// Store overrides the flag store selected by Config.Redis.
	Store cancellation.Store

	// Callbacks are registered on the engine next to the metrics callbacks.
	Callbacks []engine.Callback

	// Sessions keeps the history used by Chat. Defaults to an in-memory store.
	Sessions *session.InMemoryStore
}

// AgentLoop aggregates the engine and the resources it owns.
type AgentLoop struct {
	engine   *engine.Engine
	sessions *session.InMemoryStore
	metrics  *metrics.Metrics
	logger   logging.Logger
	config   *config.Config
	closers  []func() error
}

// New creates an AgentLoop. Unset options are derived from the configuration.
func New(optFns ...func(o *Options)) (*AgentLoop, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	cfg := opts.Config

	if opts.Sessions == nil {
		opts.Sessions = session.NewInMemoryStore()
	}

	a := &AgentLoop{config: cfg, logger: opts.Logger, sessions: opts.Sessions}
	if a.logger == nil {
		logger, err := logging.New(cfg.Log.Logging())
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
		a.logger = logger
	}

	catalog, err := loadCatalog(cfg.Models.CatalogFile)
	if err != nil {
		return nil, err
	}

	m := opts.Model
	if m == nil {
		router, err := NewRouter(context.Background(), cfg.Providers)
		if err != nil {
			return nil, err
		}
		if len(router.Providers()) == 0 {
			a.logger.Warn("agentloop.providers.none", "hint", "set providers.<name>.api_key")
		}
		m = router
	}

	store := opts.Store
	if store == nil {
		store, err = a.newStore(cfg.Redis)
		if err != nil {
			return nil, err
		}
	}

	callbacks := append([]engine.Callback(nil), opts.Callbacks...)
	var onPoll func(string)
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(func(o *metrics.Options) {
			if cfg.Metrics.Namespace != "" {
				o.Namespace = cfg.Metrics.Namespace
			}
		})
		callbacks = append(callbacks, a.metrics.Callbacks()...)
		onPoll = a.metrics.ObservePoll
	}

	a.engine = engine.New(func(o *engine.Options) {
		o.Config = engine.Config{
			MaxConcurrentTurns:       cfg.Engine.MaxConcurrentTurns,
			MaxConcurrentActions:     cfg.Engine.MaxConcurrentActions,
			ReservedGenerationTokens: cfg.Engine.ReservedGenerationTokens,
			EventBufferSize:          engine.DefaultConfig.EventBufferSize,
		}
		o.Model = m
		o.Catalog = catalog
		o.Registry = opts.Registry
		o.Store = store
		o.Callbacks = callbacks
		o.Logger = a.logger
		o.Cancellation = []func(o *cancellation.Options){func(co *cancellation.Options) {
			if cfg.Cancellation.CheckInterval > 0 {
				co.CheckInterval = cfg.Cancellation.CheckInterval
			}
			if cfg.Cancellation.ResetTTL > 0 {
				co.ResetTTL = cfg.Cancellation.ResetTTL
			}
			if cfg.Cancellation.KeyPrefix != "" {
				co.KeyPrefix = cfg.Cancellation.KeyPrefix
			}
			co.OnPoll = onPoll
		}}
	})

	return a, nil
}

// NewRouter registers a transport for every provider with an API key.
func NewRouter(ctx context.Context, providers config.ProvidersConfig) (*model.Router, error) {
	router := model.NewRouter()

	if p := providers.OpenAI; p.APIKey != "" {
		clientOpts := []openaioption.RequestOption{openaioption.WithAPIKey(p.APIKey)}
		if p.BaseURL != "" {
			clientOpts = append(clientOpts, openaioption.WithBaseURL(p.BaseURL))
		}
		client := openaisdk.NewClient(clientOpts...)
		router.Register(ProviderOpenAI, openai.NewModelFromClient(&client))
	}

	if p := providers.Anthropic; p.APIKey != "" {
		clientOpts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(p.APIKey)}
		if p.BaseURL != "" {
			clientOpts = append(clientOpts, anthropicoption.WithBaseURL(p.BaseURL))
		}
		client := anthropicsdk.NewClient(clientOpts...)
		router.Register(ProviderAnthropic, anthropic.NewModelFromClient(&client))
	}

	if p := providers.Gemini; p.APIKey != "" {
		gm, err := gemini.NewModel(ctx, p.APIKey)
		if err != nil {
			return nil, err
		}
		router.Register(ProviderGemini, gm)
	}

	return router, nil
}

func loadCatalog(path string) (*model.Catalog, error) {
	catalog := model.DefaultCatalog()
	if path == "" {
		return catalog, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model catalog: %w", err)
	}
	defer f.Close() //nolint:errcheck

	extra, err := model.LoadCatalog(f)
	if err != nil {
		return nil, err
	}
	return catalog.Merge(extra), nil
}

func (a *AgentLoop) newStore(rc config.RedisConfig) (cancellation.Store, error) {
	if rc.Addr == "" {
		a.logger.Debug("agentloop.cancellation.store", "backend", "memory")
		return cancellation.NewInMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, func(o *redis.Options) {
		o.Addr = rc.Addr
		o.Password = rc.Password
		o.DB = rc.DB
	})
	if err != nil {
		return nil, fmt.Errorf("connect cancellation store: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.logger.Debug("agentloop.cancellation.store", "backend", "redis", "addr", rc.Addr)
	return redis.New(client), nil
}

// Engine returns the underlying engine.
func (a *AgentLoop) Engine() *engine.Engine { return a.engine }

// Metrics returns the collectors, or nil when metrics are disabled.
func (a *AgentLoop) Metrics() *metrics.Metrics { return a.metrics }

// Config returns the settings the AgentLoop was built from.
func (a *AgentLoop) Config() *config.Config { return a.config }

// Logger returns the logger in use.
func (a *AgentLoop) Logger() logging.Logger { return a.logger }

// RegisterAgent adds an agent configuration.
func (a *AgentLoop) RegisterAgent(cfg *core.AgentConfiguration) error {
	return a.engine.RegisterConfiguration(cfg)
}

// RunAgent starts a turn and streams its events.
func (a *AgentLoop) RunAgent(
	ctx context.Context,
	configurationID string,
	conversation *core.Conversation,
	userMessage *core.UserMessage,
	agentMessage *core.AgentMessage,
) (<-chan core.Event, error) {
	return a.engine.RunAgent(ctx, configurationID, conversation, userMessage, agentMessage)
}

// RunAgentSync runs a turn to completion and returns its events. A turn
// ending in agent_error yields the events together with the AgentError.
func (a *AgentLoop) RunAgentSync(
	ctx context.Context,
	configurationID string,
	conversation *core.Conversation,
	userMessage *core.UserMessage,
	agentMessage *core.AgentMessage,
) ([]core.Event, error) {
	eventsCh, err := a.engine.RunAgent(ctx, configurationID, conversation, userMessage, agentMessage)
	if err != nil {
		return nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return events, ctx.Err()
		case ev, ok := <-eventsCh:
			if !ok {
				return events, nil
			}
			events = append(events, ev)
			if e, isErr := ev.(core.AgentErrorEvent); isErr {
				for rest := range eventsCh {
					events = append(events, rest)
				}
				aerr := e.Error
				return events, &aerr
			}
		}
	}
}

// Chat runs a turn within a stored conversation: the user message is
// appended to the session before the turn and the agent message after it
// succeeds. During the turn the agent message is the newest rank of the
// conversation the planning rounds render. The returned agent message can be used to cancel the turn.
func (a *AgentLoop) Chat(
	ctx context.Context,
	conversationID string,
	configurationID string,
	userMessage *core.UserMessage,
) (*core.AgentMessage, <-chan core.Event, error) {
	if userMessage == nil {
		return nil, nil, errors.New("user message is required")
	}
	rank := a.sessions.Append(conversationID, userMessage)

	agentMessage := core.NewAgentMessage("")
	conversation := a.sessions.Get(conversationID).WithAgentMessage(agentMessage)
	events, err := a.engine.RunAgent(ctx, configurationID, conversation, userMessage, agentMessage)
	if err != nil {
		a.logger.Warn("agentloop.chat.start_failed", "conversation", conversationID, "rank", rank, "error", err.Error())
		return nil, nil, err
	}

	out := make(chan core.Event)
	go func() {
		defer close(out)
		for ev := range events {
			select {
			case out <- ev:
			case <-ctx.Done():
				for range events {
				}
				return
			}
		}
		if agentMessage.Status() == core.AgentMessageStatusSucceeded {
			a.sessions.Append(conversationID, agentMessage)
		}
	}()
	return agentMessage, out, nil
}

// Sessions returns the conversation store used by Chat.
func (a *AgentLoop) Sessions() *session.InMemoryStore { return a.sessions }

// Cancel raises the cancellation flag of the given agent messages.
func (a *AgentLoop) Cancel(ctx context.Context, messageIDs ...string) error {
	return a.engine.Cancel(ctx, messageIDs...)
}

// Close releases the store connection.
func (a *AgentLoop) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ core.Engine = (*AgentLoop)(nil)
