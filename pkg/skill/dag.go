package skill

// color marks DFS visitation state for cycle detection.
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS path
	black              // fully explored
)

// ValidateDAG detects cycles in the graph formed by each stage's
// input_from edges (a -> b for each b in a.InputFrom... read the other way:
// b depends on a, so the edge for ordering purposes runs a -> b). Detection
// uses a three-color DFS; on finding a cycle it returns a *SkillCycleError
// naming one participating stage. Self-edges (a stage listing itself in
// input_from) count as a cycle of length one.
func ValidateDAG(stages []Stage) error {
	byName := make(map[string]Stage, len(stages))
	for _, s := range stages {
		byName[s.Name] = s
	}

	colors := make(map[string]color, len(stages))

	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case black:
			return nil
		case gray:
			return &SkillCycleError{Kind: "stage", Name: name}
		}
		colors[name] = gray
		for _, dep := range byName[name].InputFrom {
			if dep == name {
				return &SkillCycleError{Kind: "stage", Name: name}
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		colors[name] = black
		return nil
	}

	for _, s := range stages {
		if err := visit(s.Name); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalSort returns stages ordered so that for every dependency edge
// a -> b (b has a in its InputFrom), a appears before b. Ties among stages
// with no remaining unsatisfied dependents are broken by authoring order,
// not by name, so the ready queue is a slice scanned in original-index
// order rather than a map.
func TopologicalSort(stages []Stage) ([]Stage, error) {
	if err := ValidateDAG(stages); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(stages))
	for i, s := range stages {
		index[s.Name] = i
	}

	// inDegree here counts *dependencies*, i.e. len(InputFrom), since that's
	// what must be satisfied before a stage can be emitted.
	inDegree := make([]int, len(stages))
	// dependents[i] lists indices of stages that list stages[i] in their
	// own InputFrom, i.e. edges out of i.
	dependents := make([][]int, len(stages))

	for i, s := range stages {
		inDegree[i] = len(s.InputFrom)
		for _, dep := range s.InputFrom {
			j := index[dep]
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i := range stages {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	var order []Stage
	for len(ready) > 0 {
		// Authoring-order tie-break: always take the lowest original index
		// among currently-ready stages.
		minPos := 0
		for k, idx := range ready {
			if idx < ready[minPos] {
				minPos = k
			}
		}
		idx := ready[minPos]
		ready = append(ready[:minPos], ready[minPos+1:]...)

		order = append(order, stages[idx])
		for _, dep := range dependents[idx] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	return order, nil
}

// ComputeExecutionLevels partitions stages into the minimal layering where
// layer L holds exactly the stages whose InputFrom dependencies all lie in
// layers < L. Authoring order is preserved within each layer.
func ComputeExecutionLevels(stages []Stage) (ExecutionLevels, error) {
	if err := ValidateDAG(stages); err != nil {
		return nil, err
	}

	levelOf := make(map[string]int, len(stages))

	var levelFor func(name string, byName map[string]Stage) int
	levelFor = func(name string, byName map[string]Stage) int {
		if l, ok := levelOf[name]; ok {
			return l
		}
		st := byName[name]
		if len(st.InputFrom) == 0 {
			levelOf[name] = 0
			return 0
		}
		max := -1
		for _, dep := range st.InputFrom {
			if l := levelFor(dep, byName); l > max {
				max = l
			}
		}
		levelOf[name] = max + 1
		return max + 1
	}

	byName := make(map[string]Stage, len(stages))
	for _, s := range stages {
		byName[s.Name] = s
	}
	maxLevel := 0
	for _, s := range stages {
		if l := levelFor(s.Name, byName); l > maxLevel {
			maxLevel = l
		}
	}

	levels := make(ExecutionLevels, maxLevel+1)
	for _, s := range stages { // authoring order preserved by iterating stages in order
		l := levelOf[s.Name]
		levels[l] = append(levels[l], s)
	}
	return levels, nil
}
