package tool

import (
	"context"
	"reflect"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/util"
)

// Capability pairs an eligible action configuration with the specification
// built for it. Planned action names are resolved against Specification.Name,
// which carries the backfilled name of a legacy capability.
type Capability struct {
	Action        core.ActionConfiguration
	Specification core.CapabilitySpecification
}

// legacyDefaults names capabilities configured without name and description.
var legacyDefaults = map[core.ActionKind]struct{ name, description string }{
	core.ActionKindRetrieval:   {"search_data_sources", "Search the data sources specified by the user for information to answer their request."},
	core.ActionKindAppRun:      {"run_app", "Run the app configured by the user and return its output."},
	core.ActionKindTablesQuery: {"query_tables", "Query the tables specified by the user to answer their request."},
	core.ActionKindProcess:     {"process_data_sources", "Extract structured information from the data sources specified by the user."},
	core.ActionKindWebsearch:   {"web_search", "Search the web for up to date information."},
}

// DefaultInputs returns the inputs a capability of the given configuration
// asks the model for: the kind specific inputs followed by the declared ones.
func DefaultInputs(action core.ActionConfiguration) []core.InputSpecification {
	var inputs []core.InputSpecification
	switch a := action.(type) {
	case *core.RetrievalConfiguration:
		if a.Query.Mode == "auto" {
			inputs = append(inputs, core.InputSpecification{
				Name:        "query",
				Description: "The string used to retrieve relevant chunks of information using semantic similarity based on the user request and conversation context.",
				Type:        core.InputTypeString,
			})
		}
	case *core.TablesQueryConfiguration:
		inputs = append(inputs, core.InputSpecification{
			Name:        "question",
			Description: "The question to answer with the tables.",
			Type:        core.InputTypeString,
		})
	case *core.WebsearchConfiguration:
		inputs = append(inputs, core.InputSpecification{
			Name:        "query",
			Description: "The query used to perform the web search.",
			Type:        core.InputTypeString,
		})
	}
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		seen[in.Name] = true
	}
	for _, in := range action.Base().Inputs {
		if seen[in.Name] {
			continue
		}
		seen[in.Name] = true
		inputs = append(inputs, in)
	}
	return inputs
}

// NewSpecification builds a specification from the configuration using
// DefaultInputs.
func NewSpecification(action core.ActionConfiguration, name, description string) *core.CapabilitySpecification {
	return &core.CapabilitySpecification{
		Name:        name,
		Description: description,
		Inputs:      DefaultInputs(action),
	}
}

// DeprecatedSpecification returns the legacy specification of a capability
// configured without name and description.
func DeprecatedSpecification(action core.ActionConfiguration) *core.CapabilitySpecification {
	d := legacyDefaults[action.Kind()]
	return NewSpecification(action, d.name, d.description)
}

// BuildSpecifications builds one specification per eligible capability.
//
// Named capabilities are built directly. A capability missing name or
// description is accepted only when it is the sole eligible capability; its
// missing fields are sourced from the runner's deprecated single capability
// specification first. Failures are reported as AgentErrors with the codes
// missing_name, build_spec_error and build_legacy_spec_error.
func BuildSpecifications(ctx context.Context, registry *Registry, actions []core.ActionConfiguration) ([]Capability, *core.AgentError) {
	if len(actions) == 0 {
		return nil, nil
	}

	unnamed := 0
	for _, a := range actions {
		if a.Base().Name == "" || a.Base().Description == "" {
			unnamed++
		}
	}
	if unnamed > 0 && len(actions) > 1 {
		return nil, core.NewAgentError(core.ErrorCodeMissingName,
			"Unexpected: found %d capabilities without name or description among %d capabilities", unnamed, len(actions))
	}

	out := make([]Capability, 0, len(actions))
	for _, a := range actions {
		runner, err := registry.Get(a.Kind())
		if err != nil {
			return nil, core.NewAgentError(core.ErrorCodeBuildSpec, "Failed to build the specification for action %s: %v", a.Base().SID, err)
		}

		name, description := a.Base().Name, a.Base().Description
		if name == "" || description == "" {
			legacy, ok := runner.(LegacySpecificationBuilder)
			if !ok {
				return nil, core.NewAgentError(core.ErrorCodeBuildLegacySpec,
					"Runner for %s cannot describe a capability without name", a.Kind())
			}
			spec, err := legacy.DeprecatedBuildSpecificationForSingleCapability(ctx, a)
			if err != nil {
				return nil, core.NewAgentError(core.ErrorCodeBuildLegacySpec, "Failed to build the legacy specification: %v", err)
			}
			if name == "" {
				name = spec.Name
			}
			if description == "" {
				description = spec.Description
			}
		}

		spec, err := runner.BuildSpecification(ctx, a, name, description)
		if err != nil {
			return nil, core.NewAgentError(core.ErrorCodeBuildSpec, "Failed to build the specification for action %s: %v", name, err)
		}
		out = append(out, Capability{Action: a, Specification: *spec})
	}
	return out, nil
}

// Specifications extracts the specifications of capabilities.
func Specifications(caps []Capability) []core.CapabilitySpecification {
	out := make([]core.CapabilitySpecification, len(caps))
	for i, c := range caps {
		out[i] = c.Specification
	}
	return out
}

// Resolve finds the capability whose specification carries name.
func Resolve(caps []Capability, name string) (Capability, bool) {
	for _, c := range caps {
		if c.Specification.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// InputsOf derives input specifications from the exported fields of T,
// named by their json tags and described by their description tags. Fields
// that are not strings, numbers or booleans are skipped.
//
//	type weatherInput struct {
//		City string `json:"city" description:"The city."`
//	}
//	inputs := InputsOf[weatherInput]()
func InputsOf[T any]() []core.InputSpecification {
	return util.StructInputs(reflect.TypeOf((*T)(nil)).Elem())
}
