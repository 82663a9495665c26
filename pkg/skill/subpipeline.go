package skill

// ValidateSubPipelineRefs walks the sub_pipeline edges reachable from root
// (by name) through load, failing if any referenced skill is missing or if
// the walk revisits an ancestor on the current path (including root
// referencing itself). load is expected to be backed by a Loader.ByName
// (or an equivalent test double); it is called each time a skill name is
// reached, so a skill referenced from several stages is loaded once per
// reference.
func ValidateSubPipelineRefs(root string, load LoadSkillFunc) error {
	return walkSubPipelines(root, load, nil)
}

func walkSubPipelines(name string, load LoadSkillFunc, path []string) error {
	for _, ancestor := range path {
		if ancestor == name {
			return &SkillCycleError{Kind: "sub_pipeline", Name: name}
		}
	}

	s, err := load(name)
	if err != nil {
		return &SkillLoadError{Name: name, Err: err}
	}
	if s == nil {
		return &SkillLoadError{Name: name, Err: errNotFound}
	}

	path = append(path, name)
	for _, st := range s.Stages {
		if !st.IsSubPipeline() {
			continue
		}
		if err := walkSubPipelines(st.SubPipeline, load, path); err != nil {
			return err
		}
	}
	return nil
}

var errNotFound = errNotFoundError{}

type errNotFoundError struct{}

func (errNotFoundError) Error() string { return "skill not found" }
