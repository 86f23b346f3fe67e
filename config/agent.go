package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentloop/core"
)

type agentDocument struct {
	SID               string             `yaml:"sid"`
	Version           int                `yaml:"version"`
	Name              string             `yaml:"name"`
	Description       string             `yaml:"description"`
	Instructions      string             `yaml:"instructions"`
	Model             core.ModelSelector `yaml:"model"`
	MaxToolsUsePerRun *int               `yaml:"max_tools_use_per_run"`
	Actions           []yaml.Node        `yaml:"actions"`
}

// DefaultMaxToolsUsePerRun applies when an agent document omits the bound.
const DefaultMaxToolsUsePerRun = 3

// LoadAgentConfiguration decodes one agent from YAML. Every entry of actions
// carries a kind discriminator:
//
//	actions:
//	  - kind: websearch
//	    sid: ws
//	    name: web_search
//	    description: Search the web.
func LoadAgentConfiguration(r io.Reader) (*core.AgentConfiguration, error) {
	var doc agentDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty agent document", ErrInvalidConfig)
		}
		return nil, fmt.Errorf("decode agent configuration: %w", err)
	}

	if strings.TrimSpace(doc.SID) == "" {
		return nil, fmt.Errorf("%w: agent sid is required", ErrInvalidConfig)
	}

	cfg := &core.AgentConfiguration{
		SID:               doc.SID,
		Version:           doc.Version,
		Name:              doc.Name,
		Description:       doc.Description,
		Instructions:      doc.Instructions,
		Model:             doc.Model,
		MaxToolsUsePerRun: DefaultMaxToolsUsePerRun,
		Actions:           make([]core.ActionConfiguration, 0, len(doc.Actions)),
	}
	if doc.MaxToolsUsePerRun != nil {
		cfg.MaxToolsUsePerRun = *doc.MaxToolsUsePerRun
	}

	for i := range doc.Actions {
		action, err := decodeAction(&doc.Actions[i])
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		cfg.Actions = append(cfg.Actions, action)
	}
	return cfg, nil
}

// LoadAgentConfigurationFile opens path and calls LoadAgentConfiguration.
func LoadAgentConfigurationFile(path string) (*core.AgentConfiguration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return LoadAgentConfiguration(f)
}

func decodeAction(node *yaml.Node) (core.ActionConfiguration, error) {
	var header struct {
		Kind core.ActionKind `yaml:"kind"`
	}
	if err := node.Decode(&header); err != nil {
		return nil, err
	}

	var action core.ActionConfiguration
	switch header.Kind {
	case core.ActionKindRetrieval:
		action = &core.RetrievalConfiguration{}
	case core.ActionKindAppRun:
		action = &core.AppRunConfiguration{}
	case core.ActionKindTablesQuery:
		action = &core.TablesQueryConfiguration{}
	case core.ActionKindProcess:
		action = &core.ProcessConfiguration{}
	case core.ActionKindWebsearch:
		action = &core.WebsearchConfiguration{}
	case "":
		return nil, fmt.Errorf("%w: missing kind", ErrInvalidConfig)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, header.Kind)
	}

	if err := node.Decode(action); err != nil {
		return nil, err
	}
	if action.Base().SID == "" {
		return nil, fmt.Errorf("%w: sid is required", ErrInvalidConfig)
	}
	return action, nil
}
