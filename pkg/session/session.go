// Package session is the host-facing layer that sits in front of
// pkg/scheduler.Engine: it is what exposes run_pipeline, activate_skill, and
// manage_config as callable tools (to an MCP client, a CLI, or any other
// driver), enforcing the session-scoped policies the engine itself doesn't
// know about -- a running USD budget across every pipeline run in the
// session, an approval gate above a cost threshold, and read-only mode's
// tool-catalog filtering. None of this is an engine concern: the engine
// trusts that it was fine to start.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/lonestarx1/gogrid/pkg/cost"
	"github.com/lonestarx1/gogrid/pkg/permission"
	"github.com/lonestarx1/gogrid/pkg/scheduler"
	"github.com/lonestarx1/gogrid/pkg/scheduler/event"
	"github.com/lonestarx1/gogrid/pkg/skill"
	"github.com/lonestarx1/gogrid/pkg/trace"
)

// OnApprovalRequired asks the user whether a pipeline run whose estimated
// cost exceeds the session's approval threshold may proceed. A false
// return cancels the run without charging anything.
type OnApprovalRequired func(estimatedCostUsd float64) bool

// Config configures a Session's session-scoped policy -- everything an
// Engine itself has no notion of.
type Config struct {
	// SessionBudgetUsd is the total USD ceiling for this session, across
	// every run_pipeline call. Zero means unlimited.
	SessionBudgetUsd float64
	// ApprovalThresholdUsd is the estimated-cost ceiling above which
	// OnApprovalRequired is consulted before starting a run. Zero means
	// every run with a positive estimate requires approval; a negative value
	// disables the gate.
	ApprovalThresholdUsd float64
	OnApprovalRequired   OnApprovalRequired

	ReadOnly *permission.ReadOnlyMode

	AgentConfig    scheduler.AgentConfig
	MaxConcurrency int

	// Tracer records spans for every pipeline run this session serves. Nil
	// defaults to trace.Noop.
	Tracer trace.Tracer
}

// Session wires one Config to the scheduler and tracks SpentUsd across
// every run_pipeline call it serves.
type Session struct {
	cfg      Config
	verifier scheduler.Verifier

	mu       sync.Mutex
	spentUsd float64
}

// New creates a Session. verifier may be nil, disabling verify-stage
// dispatch the same way a nil Verifier does for scheduler.NewEngine.
func New(cfg Config, verifier scheduler.Verifier) *Session {
	if cfg.Tracer == nil {
		cfg.Tracer = trace.Noop{}
	}
	return &Session{cfg: cfg, verifier: verifier}
}

// SpentUsd returns the cumulative cost committed by every run_pipeline call
// served by this Session so far.
func (s *Session) SpentUsd() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spentUsd
}

// RunPipelineRequest is one run_pipeline call.
type RunPipelineRequest struct {
	SkillName string
	Inputs    map[string]any
}

// RunPipelineResult is the structured, non-exceptional outcome of a
// run_pipeline call: exactly one of Completed, Cancelled, or Error is set.
// A policy refusal (budget, declined approval) is never a Go error -- it is
// reported the same way a completed-but-partial run is, so callers have one
// place to look.
type RunPipelineResult struct {
	Completed *event.PipelineCompletePayload `json:"completed,omitempty"`
	Cancelled bool                           `json:"cancelled,omitempty"`
	Reason    string                         `json:"reason,omitempty"`
	Error     string                         `json:"error,omitempty"`
}

// EstimatePipelineCost sums each stage's conservative upper-bound cost
// (EstimateCost, completion-tokens-only) against the model/defaults it
// would actually run with, ignoring sub-pipeline stages (their cost is
// unknown until the nested skill is loaded, and is bounded by the session
// budget check recursing at run time instead).
func EstimatePipelineCost(sk *skill.Skill, tracker *cost.Tracker, agentCfg scheduler.AgentConfig) float64 {
	var total float64
	for _, st := range sk.Stages {
		if st.IsSubPipeline() {
			continue
		}
		agentType := scheduler.EffectiveAgentType(st)
		defaults := scheduler.ResolveAgentDefaults(agentType, agentCfg)
		model := defaults.Model
		if st.Model != "" {
			model = st.Model
		}
		maxTokens := defaults.MaxTokens
		if st.MaxTokens > 0 {
			maxTokens = st.MaxTokens
		}
		total += tracker.EstimateCost(model, maxTokens)
	}
	return total
}

// RunPipeline loads skillName via loadSkill, applies the session-budget and
// approval gates against a cost estimate, and -- if both pass -- runs it to
// completion through a fresh scheduler.Engine. pc is the caller's base
// PipelineContext (Providers, ResolveTools, IsToolAvailable, HookManager,
// Emitter, ...); Skill, Inputs, AgentConfig, MaxConcurrency, and
// SharedCostTracker are filled in here.
func (s *Session) RunPipeline(ctx context.Context, pc scheduler.PipelineContext, req RunPipelineRequest, loadSkill scheduler.LoadSkillFunc) *RunPipelineResult {
	entry, err := loadSkill(req.SkillName)
	if err != nil || entry == nil || entry.Skill == nil {
		return &RunPipelineResult{Error: fmt.Sprintf("run_pipeline: load skill %q: %v", req.SkillName, nonNilErr(err))}
	}

	tracker := cost.NewTracker()
	estimate := EstimatePipelineCost(entry.Skill, tracker, s.cfg.AgentConfig)

	s.mu.Lock()
	spent := s.spentUsd
	s.mu.Unlock()

	if s.cfg.SessionBudgetUsd > 0 {
		remaining := s.cfg.SessionBudgetUsd - spent
		if estimate > remaining {
			return &RunPipelineResult{Error: fmt.Sprintf(
				"run_pipeline: estimated cost $%.2f exceeds remaining session budget. Session spent: $%.4f of $%.2f",
				estimate, spent, s.cfg.SessionBudgetUsd)}
		}
	}

	if s.cfg.ApprovalThresholdUsd >= 0 && estimate > s.cfg.ApprovalThresholdUsd {
		if s.cfg.OnApprovalRequired == nil || !s.cfg.OnApprovalRequired(estimate) {
			return &RunPipelineResult{Cancelled: true, Reason: "User declined"}
		}
	}

	pc.Skill = entry.Skill
	pc.Inputs = req.Inputs
	pc.LoadSkill = loadSkill
	pc.SharedCostTracker = tracker
	if pc.AgentConfig == nil {
		pc.AgentConfig = s.cfg.AgentConfig
	}
	if pc.MaxConcurrency == 0 {
		pc.MaxConcurrency = s.cfg.MaxConcurrency
	}

	payload, err := scheduler.NewEngine(pc, s.verifier, s.cfg.Tracer).Run(ctx)
	if err != nil {
		return &RunPipelineResult{Error: fmt.Sprintf("run_pipeline: %v", err)}
	}

	s.mu.Lock()
	s.spentUsd += tracker.TotalCost()
	s.mu.Unlock()

	return &RunPipelineResult{Completed: &payload}
}

// ActivateSkillResult describes a loaded skill's shape without running it.
type ActivateSkillResult struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Inputs        []skill.Input `json:"inputs"`
	Stages        []string      `json:"stages"`
	ToolsRequired []string      `json:"toolsRequired"`
}

// ActivateSkill loads and validates skillName, returning its declared shape
// for a caller deciding how to invoke run_pipeline.
func (s *Session) ActivateSkill(skillName string, loadSkill scheduler.LoadSkillFunc) (*ActivateSkillResult, error) {
	entry, err := loadSkill(skillName)
	if err != nil || entry == nil || entry.Skill == nil {
		return nil, fmt.Errorf("activate_skill: load skill %q: %w", skillName, nonNilErr(err))
	}
	stageNames := make([]string, len(entry.Skill.Stages))
	for i, st := range entry.Skill.Stages {
		stageNames[i] = st.Name
	}
	return &ActivateSkillResult{
		Name:          entry.Skill.Name,
		Description:   entry.Skill.Description,
		Inputs:        entry.Skill.Inputs,
		Stages:        stageNames,
		ToolsRequired: entry.Skill.ToolsRequired,
	}, nil
}

// ConfigStore is the narrow persistence interface manage_config reads and
// writes through; this package does not load configuration from disk
// itself, so the host supplies whatever backs this.
type ConfigStore interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
}

// ManageConfigResult is the structured outcome of a manage_config call.
type ManageConfigResult struct {
	Value any    `json:"value,omitempty"`
	Found bool   `json:"found,omitempty"`
	Error string `json:"error,omitempty"`
}

// ManageConfig implements the manage_config tool: "get" is always allowed;
// "set" is a mutating action and is refused while read-only mode is
// enabled.
func (s *Session) ManageConfig(store ConfigStore, action, key string, value any) *ManageConfigResult {
	switch action {
	case "get":
		v, ok := store.Get(key)
		return &ManageConfigResult{Value: v, Found: ok}
	case "set":
		if err := s.cfg.ReadOnly.CheckMutation("manage_config", true); err != nil {
			return &ManageConfigResult{Error: err.Error()}
		}
		if err := store.Set(key, value); err != nil {
			return &ManageConfigResult{Error: err.Error()}
		}
		return &ManageConfigResult{}
	default:
		return &ManageConfigResult{Error: fmt.Sprintf("manage_config: unknown action %q", action)}
	}
}

// ExposedTools filters catalogTools (run_pipeline, activate_skill,
// manage_config, and every MCP tool's qualified name) down to what read-only
// mode allows. Outside read-only mode every name passes through unchanged.
func (s *Session) ExposedTools(catalogTools []string) []string {
	return s.cfg.ReadOnly.FilterTools(catalogTools)
}

func nonNilErr(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("not found")
}
