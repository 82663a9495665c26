package skill

import "fmt"

// SkillLoadError reports that a named skill could not be found or read.
type SkillLoadError struct {
	Name string
	Path string
	Err  error
}

func (e *SkillLoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("skill: load %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("skill: load %q: %v", e.Name, e.Err)
}

func (e *SkillLoadError) Unwrap() error { return e.Err }

// SkillValidationError reports a structural problem with a skill document,
// naming the failing field path (e.g. "stages[2].temperature").
type SkillValidationError struct {
	Path    string
	Message string
}

func (e *SkillValidationError) Error() string {
	return fmt.Sprintf("skill: validation: %s: %s", e.Path, e.Message)
}

// SkillCycleError reports a cycle found in either the stage DAG or the
// cross-skill sub-pipeline reference graph, naming one participating node.
type SkillCycleError struct {
	// Kind is "stage" or "sub_pipeline".
	Kind string
	Name string
}

func (e *SkillCycleError) Error() string {
	return fmt.Sprintf("skill: cycle detected (%s): %s", e.Kind, e.Name)
}
