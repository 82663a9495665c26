// Package skill parses, validates, and orders declarative YAML skill
// documents into the DAG the scheduler walks.
package skill

// InputType enumerates the types a skill input can declare.
type InputType string

const (
	InputString      InputType = "string"
	InputStringArray InputType = "string[]"
	InputNumber      InputType = "number"
	InputBoolean     InputType = "boolean"
)

// Input is one named, typed parameter a skill accepts.
type Input struct {
	Name        string    `yaml:"name"`
	Type        InputType `yaml:"type"`
	Required    bool      `yaml:"required"`
	Default     any       `yaml:"default"`
	Description string    `yaml:"description"`
}

// AgentType selects a preset of model/decoding/tool-loop defaults for a
// stage that doesn't declare them explicitly.
type AgentType string

const (
	AgentResearch AgentType = "research"
	AgentExplore  AgentType = "explore"
	AgentVerify   AgentType = "verify"
	AgentDefault  AgentType = "default"
)

// OutputFormat is the format a model stage is asked to respond in.
type OutputFormat string

const (
	FormatJSON     OutputFormat = "json"
	FormatMarkdown OutputFormat = "markdown"
	FormatText     OutputFormat = "text"
)

// Stage is one node in a skill's DAG. It is a model stage when Prompt is
// set (the common case) or a sub-pipeline stage when SubPipeline is set;
// the two are mutually exclusive in a well-formed document.
type Stage struct {
	Name string `yaml:"name"`

	// Model-stage fields.
	Prompt       string       `yaml:"prompt"`
	Model        string       `yaml:"model"`
	MaxTokens    int          `yaml:"max_tokens"`
	Temperature  *float64     `yaml:"temperature"`
	OutputFormat OutputFormat `yaml:"output_format"`
	Tools        []string     `yaml:"tools"`
	AgentType    AgentType    `yaml:"agent_type"`
	InputFrom    []string     `yaml:"input_from"`

	// Sub-pipeline-stage fields.
	SubPipeline string            `yaml:"sub_pipeline"`
	SubInputs   map[string]string `yaml:"sub_inputs"`
}

// IsSubPipeline reports whether this stage delegates to a nested skill
// rather than invoking a model directly.
func (s Stage) IsSubPipeline() bool {
	return s.SubPipeline != ""
}

// Output describes how a skill's result is assembled and (optionally)
// persisted by the caller.
type Output struct {
	Primary          string `yaml:"primary"`
	Format           string `yaml:"format"`
	FilenameTemplate string `yaml:"filename_template"`
	SaveIntermediate bool   `yaml:"save_intermediate"`
}

// Document is the raw decoded shape of a skill YAML file.
type Document struct {
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description"`
	Inputs        []Input        `yaml:"inputs"`
	ToolsRequired []string       `yaml:"tools_required"`
	ToolsOptional []string       `yaml:"tools_optional"`
	ToolsConfig   map[string]any `yaml:"tools_config"`
	Stages        []Stage        `yaml:"stages"`
	Output        Output         `yaml:"output"`
}

// Skill is a Document that has passed Validate and carries the precomputed
// ordering the scheduler needs: the loader never hands the engine a
// Document that hasn't been through this.
type Skill struct {
	Document
	// Levels is the precomputed execution-level partition of Stages,
	// authoring order preserved within each level.
	Levels ExecutionLevels
}

// ExecutionLevel is a maximal antichain: stages whose predecessors all lie
// in strictly earlier levels.
type ExecutionLevel []Stage

// ExecutionLevels is the full ordered partition returned by
// ComputeExecutionLevels.
type ExecutionLevels []ExecutionLevel

// StageByName returns the stage with the given name and whether it exists.
func (s *Skill) StageByName(name string) (Stage, bool) {
	for _, st := range s.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return Stage{}, false
}
