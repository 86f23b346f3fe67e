package model

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentloop/tokens"
)

// ErrModelNotFound is returned when the catalog has no matching entry.
var ErrModelNotFound = errors.New("model not found")

// Configuration describes one model known to the catalog.
type Configuration struct {
	ProviderID           string                          `json:"provider_id" yaml:"provider_id"`
	ModelID              string                          `json:"model_id" yaml:"model_id"`
	DisplayName          string                          `json:"display_name" yaml:"display_name"`
	ContextSize          int                             `json:"context_size" yaml:"context_size"`
	RecommendedTopK      int                             `json:"recommended_top_k" yaml:"recommended_top_k"`
	SupportsMultiActions bool                            `json:"supports_multi_actions" yaml:"supports_multi_actions"`
	Delimiters           *tokens.DelimitersConfiguration `json:"delimiters,omitempty" yaml:"delimiters,omitempty"`
}

// Catalog is an ordered list of model configurations.
type Catalog struct {
	Models []Configuration `json:"models" yaml:"models"`
}

// anthropicDelimiters marks Claude's reasoning and search reflection tags.
var anthropicDelimiters = &tokens.DelimitersConfiguration{
	IncompleteDelimiterRegex: `<\/?[a-zA-Z_]*$`,
	Delimiters: []tokens.Delimiter{
		{OpeningPattern: "<thinking>", ClosingPattern: "</thinking>", IsChainOfThought: true},
		{OpeningPattern: "<search_quality_reflection>", ClosingPattern: "</search_quality_reflection>", IsChainOfThought: true},
		{OpeningPattern: "<search_quality_score>", ClosingPattern: "</search_quality_score>", IsChainOfThought: true},
	},
}

// DefaultCatalog returns the built-in model catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{Models: []Configuration{
		{ProviderID: "openai", ModelID: "gpt-4o", DisplayName: "GPT 4o", ContextSize: 128_000, RecommendedTopK: 32, SupportsMultiActions: true},
		{ProviderID: "openai", ModelID: "gpt-4o-mini", DisplayName: "GPT 4o-mini", ContextSize: 128_000, RecommendedTopK: 32, SupportsMultiActions: true},
		{ProviderID: "openai", ModelID: "gpt-4-turbo", DisplayName: "GPT 4 Turbo", ContextSize: 128_000, RecommendedTopK: 32, SupportsMultiActions: true},
		{ProviderID: "openai", ModelID: "gpt-3.5-turbo", DisplayName: "GPT 3.5 Turbo", ContextSize: 16_384, RecommendedTopK: 16, SupportsMultiActions: true},
		{ProviderID: "anthropic", ModelID: "claude-3-5-sonnet-20240620", DisplayName: "Claude 3.5 Sonnet", ContextSize: 180_000, RecommendedTopK: 32, SupportsMultiActions: true, Delimiters: anthropicDelimiters},
		{ProviderID: "anthropic", ModelID: "claude-3-opus-20240229", DisplayName: "Claude 3 Opus", ContextSize: 180_000, RecommendedTopK: 32, SupportsMultiActions: true, Delimiters: anthropicDelimiters},
		{ProviderID: "anthropic", ModelID: "claude-3-haiku-20240307", DisplayName: "Claude 3 Haiku", ContextSize: 180_000, RecommendedTopK: 32, SupportsMultiActions: true, Delimiters: anthropicDelimiters},
		{ProviderID: "anthropic", ModelID: "claude-2.1", DisplayName: "Claude 2.1", ContextSize: 180_000, RecommendedTopK: 32, SupportsMultiActions: false},
		{ProviderID: "google_ai_studio", ModelID: "gemini-1.5-pro-latest", DisplayName: "Gemini Pro 1.5", ContextSize: 1_000_000, RecommendedTopK: 64, SupportsMultiActions: true},
		{ProviderID: "google_ai_studio", ModelID: "gemini-1.5-flash-latest", DisplayName: "Gemini Flash 1.5", ContextSize: 1_000_000, RecommendedTopK: 64, SupportsMultiActions: true},
	}}
}

// LoadCatalog reads a YAML catalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i, m := range c.Models {
		if m.ProviderID == "" || m.ModelID == "" {
			return nil, fmt.Errorf("catalog entry %d: provider_id and model_id are required", i)
		}
		if m.ContextSize <= 0 {
			return nil, fmt.Errorf("catalog entry %s/%s: context_size must be > 0", m.ProviderID, m.ModelID)
		}
		if m.Delimiters != nil {
			if _, err := tokens.NewClassifier(m.Delimiters); err != nil {
				return nil, fmt.Errorf("catalog entry %s/%s: %w", m.ProviderID, m.ModelID, err)
			}
		}
	}
	return &c, nil
}

// Find returns the entry for provider and model.
func (c *Catalog) Find(providerID, modelID string) (Configuration, error) {
	if c != nil {
		for _, m := range c.Models {
			if m.ProviderID == providerID && m.ModelID == modelID {
				return m, nil
			}
		}
	}
	return Configuration{}, fmt.Errorf("%w: %s/%s", ErrModelNotFound, providerID, modelID)
}

// FindMultiActions returns the entry for provider and model if it supports
// multi-step tool use.
func (c *Catalog) FindMultiActions(providerID, modelID string) (Configuration, bool) {
	m, err := c.Find(providerID, modelID)
	if err != nil || !m.SupportsMultiActions {
		return Configuration{}, false
	}
	return m, true
}

// MultiActions returns the entries supporting multi-actions.
func (c *Catalog) MultiActions() *Catalog {
	out := &Catalog{}
	for _, m := range c.Models {
		if m.SupportsMultiActions {
			out.Models = append(out.Models, m)
		}
	}
	return out
}

// Merge returns a catalog with the entries of other overriding those of c.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	out := &Catalog{}
	if c != nil {
		out.Models = append(out.Models, c.Models...)
	}
	if other == nil {
		return out
	}
	for _, m := range other.Models {
		replaced := false
		for i := range out.Models {
			if out.Models[i].ProviderID == m.ProviderID && out.Models[i].ModelID == m.ModelID {
				out.Models[i] = m
				replaced = true
				break
			}
		}
		if !replaced {
			out.Models = append(out.Models, m)
		}
	}
	return out
}
