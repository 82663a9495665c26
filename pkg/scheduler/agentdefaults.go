package scheduler

import "github.com/lonestarx1/gogrid/pkg/skill"

func float64ptr(f float64) *float64 { return &f }

// compiledDefaults are the built-in, lowest-priority fallback for each
// agent type: research and explore stages favor a longer tool-loop and
// more headroom for multi-step work; verify stages run cooler and
// shorter since claim extraction is a single structured call.
var compiledDefaults = map[skill.AgentType]AgentDefaults{
	skill.AgentResearch: {MaxTokens: 4096, Temperature: float64ptr(0.4), MaxToolSteps: 8},
	skill.AgentExplore:  {MaxTokens: 4096, Temperature: float64ptr(0.7), MaxToolSteps: 8},
	skill.AgentVerify:   {MaxTokens: 2048, Temperature: float64ptr(0.0), MaxToolSteps: 2},
	skill.AgentDefault:  {MaxTokens: 2048, Temperature: float64ptr(0.5), MaxToolSteps: 4},
}

// ResolveAgentDefaults applies the resolution rule (user agentConfig[type]
// over compiled-in defaults) for agentType, falling back to
// skill.AgentDefault's compiled-in defaults if agentType is unset or
// unrecognized.
func ResolveAgentDefaults(agentType skill.AgentType, cfg AgentConfig) AgentDefaults {
	base, ok := compiledDefaults[agentType]
	if !ok {
		base = compiledDefaults[skill.AgentDefault]
	}
	if cfg == nil {
		return base
	}
	if override, ok := cfg[agentType]; ok {
		merged := base
		if override.Model != "" {
			merged.Model = override.Model
		}
		if override.MaxTokens > 0 {
			merged.MaxTokens = override.MaxTokens
		}
		if override.Temperature != nil {
			merged.Temperature = override.Temperature
		}
		if override.MaxToolSteps > 0 {
			merged.MaxToolSteps = override.MaxToolSteps
		}
		return merged
	}
	return base
}

// EffectiveAgentType returns stage.AgentType, defaulting to
// skill.AgentDefault when the stage doesn't declare one.
func EffectiveAgentType(st skill.Stage) skill.AgentType {
	if st.AgentType == "" {
		return skill.AgentDefault
	}
	return st.AgentType
}

func roleDirective(t skill.AgentType) string {
	switch t {
	case skill.AgentResearch:
		return "You are a meticulous research analyst. Ground every claim in the provided context and cite what you relied on."
	case skill.AgentExplore:
		return "You are an exploratory analyst. Favor breadth, surface options, and flag open questions."
	case skill.AgentVerify:
		return "You are a verification analyst. Extract discrete, checkable claims; do not editorialize."
	default:
		return "You are a careful analyst completing one stage of a larger analysis pipeline."
	}
}
