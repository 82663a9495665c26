package skill

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lonestarx1/gogrid/pkg/trace"
)

// Loader parses and validates skill YAML documents and keeps a cache of
// skills already loaded so sub-pipeline lookups don't reparse a file per
// reference.
type Loader struct {
	builtInDir string
	userDir    string

	cache map[string]*Skill

	tracer trace.Tracer
}

// NewLoader creates a Loader that scans builtInDir for built-in skills and,
// if non-empty, userDir for user-authored skills that shadow built-ins of
// the same name. tracer may be nil, defaulting to trace.Noop.
func NewLoader(builtInDir, userDir string, tracer trace.Tracer) *Loader {
	if tracer == nil {
		tracer = trace.Noop{}
	}
	return &Loader{
		builtInDir: builtInDir,
		userDir:    userDir,
		cache:      make(map[string]*Skill),
		tracer:     tracer,
	}
}

// ParseDocument decodes raw YAML bytes into a Document, rejecting unknown
// top-level and nested fields via yaml.v3's strict decoding mode so a typo
// in a skill file surfaces as a load error rather than being silently
// dropped.
func ParseDocument(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("skill: parse: %w", err)
	}
	return &doc, nil
}

// Validate checks structural invariants on a Document: stage name
// uniqueness, reference validity, output.primary existence, and DAG
// acyclicity. It returns the first *SkillValidationError or *SkillCycleError
// found.
func Validate(doc *Document) error {
	if doc.Name == "" {
		return &SkillValidationError{Path: "name", Message: "required"}
	}
	if doc.Description == "" {
		return &SkillValidationError{Path: "description", Message: "required"}
	}
	if len(doc.Stages) == 0 {
		return &SkillValidationError{Path: "stages", Message: "at least one stage is required"}
	}

	inputNames := make(map[string]bool, len(doc.Inputs))
	for i, in := range doc.Inputs {
		if in.Name == "" {
			return &SkillValidationError{Path: fmt.Sprintf("inputs[%d].name", i), Message: "required"}
		}
		switch in.Type {
		case InputString, InputStringArray, InputNumber, InputBoolean:
		default:
			return &SkillValidationError{Path: fmt.Sprintf("inputs[%d].type", i), Message: fmt.Sprintf("unsupported type %q", in.Type)}
		}
		inputNames[in.Name] = true
	}

	stageNames := make(map[string]bool, len(doc.Stages))
	for i, st := range doc.Stages {
		path := fmt.Sprintf("stages[%d]", i)
		if st.Name == "" {
			return &SkillValidationError{Path: path + ".name", Message: "required"}
		}
		if stageNames[st.Name] {
			return &SkillValidationError{Path: path + ".name", Message: fmt.Sprintf("duplicate stage name %q", st.Name)}
		}
		stageNames[st.Name] = true

		if st.IsSubPipeline() && st.Prompt != "" {
			return &SkillValidationError{Path: path, Message: "a stage may not set both prompt and sub_pipeline"}
		}
		if !st.IsSubPipeline() && st.Prompt == "" {
			return &SkillValidationError{Path: path + ".prompt", Message: "required unless sub_pipeline is set"}
		}
		if st.Temperature != nil && (*st.Temperature < 0 || *st.Temperature > 2) {
			return &SkillValidationError{Path: path + ".temperature", Message: "must be in [0, 2]"}
		}
		switch st.AgentType {
		case "", AgentResearch, AgentExplore, AgentVerify, AgentDefault:
		default:
			return &SkillValidationError{Path: path + ".agent_type", Message: fmt.Sprintf("unsupported agent_type %q", st.AgentType)}
		}
	}

	// Reference validity: every input_from / sub_inputs template reference
	// must name a declared input or a prior-in-authoring-order stage. Note
	// "prior" here means "anywhere in stageNames" — the DAG-cycle check
	// below is what actually enforces acyclicity of input_from; this pass
	// just ensures names resolve to something.
	known := make(map[string]bool, len(inputNames)+len(stageNames))
	for n := range inputNames {
		known[n] = true
	}
	for n := range stageNames {
		known[n] = true
	}
	for i, st := range doc.Stages {
		path := fmt.Sprintf("stages[%d]", i)
		for _, dep := range st.InputFrom {
			if !stageNames[dep] {
				return &SkillValidationError{Path: path + ".input_from", Message: fmt.Sprintf("unknown predecessor stage %q", dep)}
			}
		}
		for key, tmpl := range st.SubInputs {
			for _, ref := range templateRefs(tmpl) {
				if !known[ref] {
					return &SkillValidationError{Path: fmt.Sprintf("%s.sub_inputs[%s]", path, key), Message: fmt.Sprintf("unknown reference %q", ref)}
				}
			}
		}
	}

	if doc.Output.Primary == "" {
		return &SkillValidationError{Path: "output.primary", Message: "required"}
	}
	if !stageNames[doc.Output.Primary] {
		return &SkillValidationError{Path: "output.primary", Message: fmt.Sprintf("unknown stage %q", doc.Output.Primary)}
	}

	if err := ValidateDAG(doc.Stages); err != nil {
		return err
	}

	return nil
}

// templateRefs extracts the `{name}` references from a substitution
// template, in order of first appearance.
func templateRefs(tmpl string) []string {
	var refs []string
	seen := make(map[string]bool)
	rest := tmpl
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			break
		}
		name := rest[start+1 : start+end]
		if name != "" && !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
		rest = rest[start+end+1:]
	}
	return refs
}

// Load parses and validates the skill document at path and computes its
// execution levels.
func Load(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SkillLoadError{Path: path, Err: err}
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, &SkillLoadError{Path: path, Err: err}
	}

	if err := Validate(doc); err != nil {
		return nil, err
	}

	levels, err := ComputeExecutionLevels(doc.Stages)
	if err != nil {
		return nil, err
	}

	return &Skill{Document: *doc, Levels: levels}, nil
}

// LoadSkillFunc resolves a skill by name, as required by sub-pipeline
// stages. It returns (nil, nil) if the name is unknown.
type LoadSkillFunc func(name string) (*Skill, error)

// ByName loads (or returns from cache) the skill with the given name,
// searching userDir before builtInDir so user skills shadow built-ins.
func (l *Loader) ByName(name string) (*Skill, error) {
	_, span := l.tracer.StartSpan(context.Background(), "skill.load")
	span.SetAttribute("skill.name", name)
	defer l.tracer.EndSpan(span)

	if s, ok := l.cache[name]; ok {
		span.SetAttribute("skill.cache_hit", "true")
		return s, nil
	}

	for _, dir := range []string{l.userDir, l.builtInDir} {
		if dir == "" {
			continue
		}
		for _, ext := range []string{".yaml", ".yml"} {
			p := filepath.Join(dir, name+ext)
			if _, err := os.Stat(p); err != nil {
				continue
			}
			span.SetAttribute("skill.path", p)
			s, err := Load(p)
			if err != nil {
				span.SetError(err)
				return nil, err
			}
			l.cache[name] = s
			return s, nil
		}
	}
	return nil, nil
}
