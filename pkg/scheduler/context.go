package scheduler

import (
	"context"
	"errors"

	"github.com/lonestarx1/gogrid/pkg/cost"
	"github.com/lonestarx1/gogrid/pkg/llm"
	"github.com/lonestarx1/gogrid/pkg/mcp"
	"github.com/lonestarx1/gogrid/pkg/scheduler/event"
	"github.com/lonestarx1/gogrid/pkg/skill"
)

// MaxSubPipelineDepth bounds sub-pipeline nesting. runSubPipeline refuses to
// recurse past this depth with a fatal error.
const MaxSubPipelineDepth = 5

// ErrMaxSubPipelineDepth is the sentinel wrapped into a depth-exceeded
// StageOutcome.Error, so a caller can errors.Is against the condition
// without parsing the message text.
var ErrMaxSubPipelineDepth = errors.New("scheduler: maximum sub-pipeline nesting depth exceeded")

// DefaultMaxConcurrency is the semaphore cap used when a PipelineContext
// leaves MaxConcurrency unset.
const DefaultMaxConcurrency = 5

// ToolMap is a resolved set of callable tools, keyed by qualified name
// (<server>/<tool>), as handed to a TaskAgent's tool loop.
type ToolMap map[string]*mcp.Tool

// ResolveToolsFunc maps stage-declared tool group names to the concrete
// tools available for this run.
type ResolveToolsFunc func(groupNames []string) ToolMap

// IsToolAvailableFunc reports whether a named tool (or tool group) can be
// resolved at all, used for the engine's pre-flight availability check.
type IsToolAvailableFunc func(name string) bool

// Providers resolves a model id to the llm.Provider that serves it and
// supports remapping to a different provider's default model when the
// originally resolved provider has no usable credentials.
type Providers interface {
	// ProviderFor returns the provider backing modelID.
	ProviderFor(modelID string) (llm.Provider, bool)
	// HasCredentials reports whether the provider backing modelID is
	// currently usable (e.g. an API key is configured).
	HasCredentials(modelID string) bool
	// DefaultModel returns the default model id for the first provider with
	// usable credentials, used to remap a stage away from an unavailable
	// provider. ok is false if no provider is available at all.
	DefaultModel() (modelID string, ok bool)
}

// AgentDefaults is the compiled-in or user-configured fallback for a stage
// that doesn't set a given field explicitly.
type AgentDefaults struct {
	Model        string
	MaxTokens    int
	Temperature  *float64
	MaxToolSteps int
}

// AgentConfig maps an AgentType to the defaults a stage of that type falls
// back to; it is the "user agentConfig[type]" layer of the resolution rule
// (stage field > agentConfig[type] > compiled-in default).
type AgentConfig map[skill.AgentType]AgentDefaults

// SkillEntry is what loadSkill returns for a sub-pipeline reference: the
// loaded, validated skill plus whatever identity the caller wants to
// propagate (name is already on the Skill itself).
type SkillEntry struct {
	Skill *skill.Skill
}

// LoadSkillFunc resolves a skill by name for sub-pipeline stages. Required
// iff the skill being run contains any sub-pipeline stage.
type LoadSkillFunc func(name string) (*SkillEntry, error)

// PipelineContext bundles everything the engine needs to run one skill:
// the skill itself, resolved inputs, budget and provider configuration,
// tool resolution, hooks, and (for nested runs) the shared cost tracker and
// current depth.
type PipelineContext struct {
	Skill        *skill.Skill
	Inputs       map[string]any
	ModelOverride string
	MaxBudgetUsd float64

	Providers Providers

	ResolveTools    ResolveToolsFunc
	IsToolAvailable IsToolAvailableFunc
	ToolsConfig     map[string]any

	AbortSignal context.Context

	MaxConcurrency int

	AgentConfig AgentConfig

	LoadSkill LoadSkillFunc

	// SharedCostTracker is non-nil for a nested (sub-pipeline) pipeline; the
	// engine creates its own tracker when this is nil.
	SharedCostTracker *cost.Tracker

	HookManager *HookManager

	// Emitter receives this pipeline's lifecycle events. A nested pipeline
	// is bridged into its parent's emitter by the caller of runSubPipeline.
	Emitter *event.Emitter
}

type depthKey struct{}

// DepthFromContext returns the current sub-pipeline nesting depth, 0 at the
// root.
func DepthFromContext(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}
