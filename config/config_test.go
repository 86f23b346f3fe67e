package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/core"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "slog", cfg.Log.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.Cancellation.CheckInterval)
	assert.Equal(t, time.Hour, cfg.Cancellation.ResetTTL)
	assert.Equal(t, 2048, cfg.Engine.ReservedGenerationTokens)
	assert.Empty(t, cfg.Redis.Addr)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentloop.yaml")
	content := `
log:
  level: DEBUG
  backend: zap
redis:
  addr: localhost:6379
cancellation:
  check_interval: 250ms
engine:
  max_concurrent_actions: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("AGENTLOOP_PROVIDERS_OPENAI_API_KEY", "sk-test")
	t.Setenv("AGENTLOOP_METRICS_NAMESPACE", "custom")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "zap", cfg.Log.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Cancellation.CheckInterval)
	assert.Equal(t, time.Hour, cfg.Cancellation.ResetTTL)
	assert.Equal(t, 4, cfg.Engine.MaxConcurrentActions)
	assert.Equal(t, "sk-test", cfg.Providers.OpenAI.APIKey)
	assert.Equal(t, "custom", cfg.Metrics.Namespace)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"backend", func(c *Config) { c.Log.Backend = "logrus" }},
		{"format", func(c *Config) { c.Log.Format = "xml" }},
		{"check interval", func(c *Config) { c.Cancellation.CheckInterval = 0 }},
		{"reset ttl", func(c *Config) { c.Cancellation.ResetTTL = -time.Second }},
		{"concurrency", func(c *Config) { c.Engine.MaxConcurrentActions = -1 }},
		{"reserved tokens", func(c *Config) { c.Engine.ReservedGenerationTokens = -1 }},
		{"metrics addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

const agentYAML = `
sid: research
version: 2
name: Research
instructions: Answer {{.Username}} briefly.
model:
  provider_id: anthropic
  model_id: claude-3-5-sonnet-20240620
  temperature: 0.2
max_tools_use_per_run: 2
actions:
  - kind: retrieval
    sid: r1
    name: search_docs
    description: Search the docs.
    query:
      mode: auto
    top_k: 8
    data_sources:
      - workspace_id: w
        data_source_id: docs
  - kind: websearch
    sid: ws
    name: web_search
    description: Search the web.
  - kind: app_run
    sid: app
    name: run_app
    app_workspace_id: w
    app_id: a1
    inputs:
      - name: topic
        description: The topic.
        type: string
`

func TestLoadAgentConfiguration(t *testing.T) {
	cfg, err := LoadAgentConfiguration(strings.NewReader(agentYAML))
	require.NoError(t, err)

	assert.Equal(t, "research", cfg.SID)
	assert.Equal(t, 2, cfg.Version)
	assert.Equal(t, "anthropic", cfg.Model.ProviderID)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 1e-9)
	assert.Equal(t, 2, cfg.MaxToolsUsePerRun)
	require.Len(t, cfg.Actions, 3)

	retrieval, ok := cfg.Actions[0].(*core.RetrievalConfiguration)
	require.True(t, ok)
	assert.Equal(t, "search_docs", retrieval.Name)
	assert.Equal(t, "auto", retrieval.Query.Mode)
	assert.Equal(t, 8, retrieval.TopK)
	require.Len(t, retrieval.DataSources, 1)
	assert.Equal(t, "docs", retrieval.DataSources[0].DataSourceID)

	assert.Equal(t, core.ActionKindWebsearch, cfg.Actions[1].Kind())

	app, ok := cfg.Actions[2].(*core.AppRunConfiguration)
	require.True(t, ok)
	assert.Equal(t, "a1", app.AppID)
	require.Len(t, app.Inputs, 1)
	assert.Equal(t, core.InputTypeString, app.Inputs[0].Type)
}

func TestLoadAgentConfiguration_DefaultBound(t *testing.T) {
	cfg, err := LoadAgentConfiguration(strings.NewReader("sid: a\nmodel: {provider_id: openai, model_id: gpt-4o}\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxToolsUsePerRun, cfg.MaxToolsUsePerRun)
	assert.Empty(t, cfg.Actions)
}

func TestLoadAgentConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"missing sid", "name: x\n"},
		{"missing kind", "sid: a\nactions:\n  - sid: x\n"},
		{"unknown kind", "sid: a\nactions:\n  - kind: teleport\n    sid: x\n"},
		{"missing action sid", "sid: a\nactions:\n  - kind: websearch\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAgentConfiguration(strings.NewReader(tt.doc))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadAgentConfiguration_UnknownField(t *testing.T) {
	_, err := LoadAgentConfiguration(strings.NewReader("sid: a\ncolour: blue\n"))
	require.Error(t, err)
}
