package core

// ActionKind identifies the capability variant of an action configuration.
type ActionKind string

const (
	ActionKindRetrieval   ActionKind = "retrieval"
	ActionKindAppRun      ActionKind = "app_run"
	ActionKindTablesQuery ActionKind = "tables_query"
	ActionKindProcess     ActionKind = "process"
	ActionKindWebsearch   ActionKind = "websearch"
)

// ActionKinds lists every supported kind in dispatch order.
var ActionKinds = []ActionKind{
	ActionKindRetrieval,
	ActionKindAppRun,
	ActionKindTablesQuery,
	ActionKindProcess,
	ActionKindWebsearch,
}

// ActionConfiguration is a closed set of capability configurations.
type ActionConfiguration interface {
	// Kind returns the variant discriminator.
	Kind() ActionKind
	// Base returns the fields shared by every variant.
	Base() *ActionBase
}

// ActionBase holds the fields common to all capability configurations.
// Name and Description may be empty for legacy single-capability agents.
type ActionBase struct {
	SID         string               `json:"sid" yaml:"sid"`
	Name        string               `json:"name,omitempty" yaml:"name,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs      []InputSpecification `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// Base implements ActionConfiguration for embedding types.
func (b *ActionBase) Base() *ActionBase { return b }

// DataSourceConfiguration selects a data source and optional parent filter.
type DataSourceConfiguration struct {
	WorkspaceID  string   `json:"workspace_id" yaml:"workspace_id"`
	DataSourceID string   `json:"data_source_id" yaml:"data_source_id"`
	ParentsIn    []string `json:"parents_in,omitempty" yaml:"parents_in,omitempty"`
}

// TimeFrame is a relative time window such as 2 weeks.
type TimeFrame struct {
	Duration int    `json:"duration" yaml:"duration"`
	Unit     string `json:"unit" yaml:"unit"` // hour, day, week, month, year
}

// RetrievalQuery is either "auto", "none" or a template.
type RetrievalQuery struct {
	Mode     string `json:"mode" yaml:"mode"` // auto, none, template
	Template string `json:"template,omitempty" yaml:"template,omitempty"`
}

// RetrievalConfiguration configures semantic document retrieval.
type RetrievalConfiguration struct {
	ActionBase        `yaml:",inline"`
	Query             RetrievalQuery            `json:"query" yaml:"query"`
	RelativeTimeFrame *TimeFrame                `json:"relative_time_frame,omitempty" yaml:"relative_time_frame,omitempty"`
	TopK              int                       `json:"top_k,omitempty" yaml:"top_k,omitempty"` // 0 means auto
	DataSources       []DataSourceConfiguration `json:"data_sources" yaml:"data_sources"`
}

// Kind implements ActionConfiguration.
func (*RetrievalConfiguration) Kind() ActionKind { return ActionKindRetrieval }

// AppRunConfiguration configures the execution of an external app.
type AppRunConfiguration struct {
	ActionBase     `yaml:",inline"`
	AppWorkspaceID string `json:"app_workspace_id" yaml:"app_workspace_id"`
	AppID          string `json:"app_id" yaml:"app_id"`
}

// Kind implements ActionConfiguration.
func (*AppRunConfiguration) Kind() ActionKind { return ActionKindAppRun }

// TableReference identifies a queryable table.
type TableReference struct {
	WorkspaceID  string `json:"workspace_id" yaml:"workspace_id"`
	DataSourceID string `json:"data_source_id" yaml:"data_source_id"`
	TableID      string `json:"table_id" yaml:"table_id"`
}

// TablesQueryConfiguration configures tabular queries.
type TablesQueryConfiguration struct {
	ActionBase `yaml:",inline"`
	Tables     []TableReference `json:"tables" yaml:"tables"`
}

// Kind implements ActionConfiguration.
func (*TablesQueryConfiguration) Kind() ActionKind { return ActionKindTablesQuery }

// ProcessSchemaProperty is one extracted field of a process action.
type ProcessSchemaProperty struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}

// ProcessConfiguration configures structured extraction over documents.
type ProcessConfiguration struct {
	ActionBase        `yaml:",inline"`
	DataSources       []DataSourceConfiguration `json:"data_sources" yaml:"data_sources"`
	RelativeTimeFrame *TimeFrame                `json:"relative_time_frame,omitempty" yaml:"relative_time_frame,omitempty"`
	Schema            []ProcessSchemaProperty   `json:"schema" yaml:"schema"`
}

// Kind implements ActionConfiguration.
func (*ProcessConfiguration) Kind() ActionKind { return ActionKindProcess }

// WebsearchConfiguration configures web search.
type WebsearchConfiguration struct {
	ActionBase `yaml:",inline"`
}

// Kind implements ActionConfiguration.
func (*WebsearchConfiguration) Kind() ActionKind { return ActionKindWebsearch }

// ModelSelector picks the generation model of an agent.
type ModelSelector struct {
	ProviderID  string  `json:"provider_id" yaml:"provider_id"`
	ModelID     string  `json:"model_id" yaml:"model_id"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// AgentConfiguration describes an agent: its instructions, generation model
// and the capabilities it may invoke.
type AgentConfiguration struct {
	SID               string                `json:"sid"`
	Version           int                   `json:"version"`
	Name              string                `json:"name"`
	Description       string                `json:"description,omitempty"`
	Instructions      string                `json:"instructions,omitempty"`
	Model             ModelSelector         `json:"model"`
	Actions           []ActionConfiguration `json:"-"`
	MaxToolsUsePerRun int                   `json:"max_tools_use_per_run"`
}
