package core

import (
	"encoding/json"
	"time"
)

// InputType is the type of a capability input argument.
type InputType string

const (
	InputTypeString  InputType = "string"
	InputTypeNumber  InputType = "number"
	InputTypeBoolean InputType = "boolean"
)

// InputSpecification describes one argument the model must produce.
type InputSpecification struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Type        InputType `json:"type" yaml:"type"`
}

// CapabilitySpecification is what the planning call sees of a capability.
type CapabilitySpecification struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Inputs      []InputSpecification `json:"inputs"`
}

// Parameters renders the inputs as a JSON schema object.
func (s CapabilitySpecification) Parameters() map[string]any {
	properties := make(map[string]any, len(s.Inputs))
	required := make([]string, 0, len(s.Inputs))
	for _, in := range s.Inputs {
		typ := in.Type
		if typ == "" {
			typ = InputTypeString
		}
		properties[in.Name] = map[string]any{
			"type":        string(typ),
			"description": in.Description,
		}
		required = append(required, in.Name)
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// PlannedAction is a capability call chosen by a planning round.
type PlannedAction struct {
	Action         ActionConfiguration      `json:"-"`
	Inputs         map[string]any           `json:"inputs"`
	Specification  *CapabilitySpecification `json:"specification,omitempty"`
	FunctionCallID *string                  `json:"function_call_id,omitempty"`
}

// Name returns the resolved capability name.
func (p PlannedAction) Name() string {
	if p.Action == nil {
		return ""
	}
	return p.Action.Base().Name
}

// MarshalJSON includes the capability identity next to the call.
func (p PlannedAction) MarshalJSON() ([]byte, error) {
	type plain PlannedAction
	out := struct {
		plain
		Kind     ActionKind `json:"kind,omitempty"`
		ActionID string     `json:"action_id,omitempty"`
		Name     string     `json:"name,omitempty"`
	}{plain: plain(p)}
	if p.Action != nil {
		out.Kind = p.Action.Kind()
		out.ActionID = p.Action.Base().SID
		out.Name = p.Action.Base().Name
	}
	return json.Marshal(out)
}

// ActionRecord is the persisted outcome of an executed action.
type ActionRecord struct {
	ID              string         `json:"id"`
	Kind            ActionKind     `json:"kind"`
	ConfigurationID string         `json:"configuration_id"`
	Name            string         `json:"name,omitempty"`
	Step            int            `json:"step"`
	FunctionCallID  *string        `json:"function_call_id,omitempty"`
	Params          map[string]any `json:"params"`
	Output          any            `json:"output,omitempty"`
	Created         time.Time      `json:"created"`
}

// Chunk is a scored passage of a retrieved document.
type Chunk struct {
	Text   string  `json:"text"`
	Offset int     `json:"offset"`
	Score  float64 `json:"score"`
}

// RetrievedDocument is a document returned by a retrieval action. Reference
// is the citation marker; parallel retrievals number them from disjoint
// offsets.
type RetrievedDocument struct {
	DocumentID   string    `json:"document_id"`
	DataSourceID string    `json:"data_source_id"`
	SourceURL    string    `json:"source_url,omitempty"`
	Reference    string    `json:"reference"`
	Timestamp    time.Time `json:"timestamp"`
	Tags         []string  `json:"tags,omitempty"`
	Score        float64   `json:"score"`
	Chunks       []Chunk   `json:"chunks"`
}

// RetrievalOutput is the Output of a retrieval ActionRecord.
type RetrievalOutput struct {
	Documents []RetrievedDocument `json:"documents"`
}
