package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/lonestarx1/gogrid/pkg/cost"
	"github.com/lonestarx1/gogrid/pkg/skill"
	"github.com/lonestarx1/gogrid/pkg/trace"

	"github.com/lonestarx1/gogrid/pkg/scheduler/event"
)

// Verifier runs the verification subsystem against a completed verify
// stage. Declared here rather than imported from pkg/verify so pkg/verify
// can depend on pkg/scheduler's types without an import cycle; the real
// implementation is wired in by the caller that constructs an Engine.
type Verifier interface {
	Verify(ctx context.Context, analysisText string, priorOutputs map[string]string) (report any, err error)
}

// Engine runs one skill's stages to completion, honoring execution
// levels, bounded concurrency, partial-failure semantics, sub-pipeline
// nesting, and lifecycle hooks, per the pipeline run protocol.
type Engine struct {
	ctx      PipelineContext
	verifier Verifier
	tracer   trace.Tracer
}

// NewEngine constructs an Engine for one PipelineContext. verifier may be
// nil; verify-type stages then complete without running the verification
// subsystem. tracer may be nil, defaulting to trace.Noop.
func NewEngine(pc PipelineContext, verifier Verifier, tracer trace.Tracer) *Engine {
	if tracer == nil {
		tracer = trace.Noop{}
	}
	return &Engine{ctx: pc, verifier: verifier, tracer: tracer}
}

// stageResult is the internal settlement record for one dispatched stage,
// collected off the per-level result channel.
type stageResult struct {
	stage   skill.Stage
	outcome StageOutcome
}

// Run executes e.ctx.Skill to completion or partial failure and returns the
// pipeline:complete payload. A fatal error (pre-flight tool failure, hook
// failure) aborts before any stage runs and is returned directly rather
// than as a payload.
func (e *Engine) Run(ctx context.Context) (event.PipelineCompletePayload, error) {
	pc := e.ctx

	ctx, runSpan := e.tracer.StartSpan(ctx, "pipeline.run")
	runSpan.SetAttribute("skill.name", pc.Skill.Name)
	defer e.tracer.EndSpan(runSpan)

	if err := e.preflightTools(); err != nil {
		runSpan.SetError(err)
		e.emit(event.Event{Name: event.PipelineError, Payload: event.PipelineErrorPayload{Error: err.Error()}})
		return event.PipelineCompletePayload{}, err
	}

	if err := RunBlocking(pc.HookManager, ctx, HookPrePipeline, map[string]any{"skill": pc.Skill.Name}); err != nil {
		wrapped := fmt.Errorf("scheduler: pre_pipeline hook: %w", err)
		runSpan.SetError(wrapped)
		e.emit(event.Event{Name: event.PipelineError, Payload: event.PipelineErrorPayload{Error: wrapped.Error()}})
		return event.PipelineCompletePayload{}, wrapped
	}

	tracker := pc.SharedCostTracker
	if tracker == nil {
		tracker = cost.NewTracker()
	}

	fatalCtx, cancelFatal := context.WithCancel(ctx)
	defer cancelFatal()
	abort := pc.AbortSignal
	if abort == nil {
		abort = context.Background()
	}
	combined, cancelCombined := mergeDone(fatalCtx, abort)
	defer cancelCombined()

	maxConcurrency := pc.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	sem := NewSemaphore(maxConcurrency)

	outputs := make(map[string]string)
	var (
		failedStages    []string
		skippedStages   []string
		stagesCompleted int
	)

	for _, level := range pc.Skill.Levels {
		unavailable := make([]string, 0, len(failedStages)+len(skippedStages))
		unavailable = append(unavailable, failedStages...)
		unavailable = append(unavailable, skippedStages...)
		results := e.runLevel(combined, level, pc, tracker, sem, outputs, unavailable)
		for _, r := range results {
			switch {
			case r.outcome.Success:
				outputs[r.stage.Name] = r.outcome.Result.Content
				stagesCompleted++
				e.emit(event.Event{
					Name:  event.StageComplete,
					Stage: r.stage.Name,
					Payload: event.StageCompletePayload{
						ModelID:      r.outcome.Result.ModelID,
						InputTokens:  r.outcome.Result.InputTokens,
						OutputTokens: r.outcome.Result.OutputTokens,
						CostUSD:      r.outcome.Result.CostUSD,
						Content:      r.outcome.Result.Content,
						DurationMs:   r.outcome.Result.DurationMs,
					},
				})
				if EffectiveAgentType(r.stage) == skill.AgentVerify {
					e.runVerification(combined, r.stage, outputs)
				}
				RunAsync(pc.HookManager, ctx, HookPostStage, map[string]any{"stage": r.stage.Name})
			case r.outcome.Error != nil && isSkipMarker(r.outcome.Error):
				skippedStages = append(skippedStages, r.stage.Name)
				e.emit(event.Event{
					Name:  event.StageError,
					Stage: r.stage.Name,
					Payload: event.StageErrorPayload{Error: r.outcome.Error.Error(), Fatal: false},
				})
			default:
				failedStages = append(failedStages, r.stage.Name)
				e.emit(event.Event{
					Name:  event.StageError,
					Stage: r.stage.Name,
					Payload: event.StageErrorPayload{Error: errString(r.outcome.Error), Fatal: r.outcome.Fatal},
				})
				if r.outcome.Fatal {
					cancelFatal()
				}
				RunAsync(pc.HookManager, ctx, HookPostStage, map[string]any{"stage": r.stage.Name, "error": errString(r.outcome.Error)})
			}
		}
	}

	partial := len(failedStages) > 0 || len(skippedStages) > 0
	payload := event.PipelineCompletePayload{
		Outputs:         outputs,
		PrimaryOutput:   outputs[pc.Skill.Output.Primary],
		Partial:         partial,
		StagesCompleted: stagesCompleted,
		FailedStages:    failedStages,
		SkippedStages:   skippedStages,
	}
	runSpan.SetAttribute("pipeline.stages_completed", strconv.Itoa(stagesCompleted))
	runSpan.SetAttribute("pipeline.partial", strconv.FormatBool(partial))
	e.emit(event.Event{Name: event.PipelineComplete, Payload: payload})
	RunAsync(pc.HookManager, ctx, HookPostPipeline, map[string]any{"skill": pc.Skill.Name, "partial": partial})
	return payload, nil
}

// runLevel dispatches every stage in one execution level concurrently,
// bounded by sem, and waits for all of them to settle. A stage whose
// dependency already failed or was skipped (per failedStages, which the
// caller updates between levels, not within one — a level's stages never
// depend on each other by construction) is settled locally without
// consuming a semaphore slot.
func (e *Engine) runLevel(
	ctx context.Context,
	level skill.ExecutionLevel,
	pc PipelineContext,
	tracker *cost.Tracker,
	sem *Semaphore,
	outputs map[string]string,
	unavailableStages []string,
) []stageResult {
	failed := make(map[string]bool, len(unavailableStages))
	for _, n := range unavailableStages {
		failed[n] = true
	}

	respCh := make(chan stageResult, len(level))
	var wg sync.WaitGroup

	for _, st := range level {
		st := st

		if ctx.Err() != nil {
			respCh <- stageResult{stage: st, outcome: StageOutcome{Error: skipError("context canceled"), Fatal: false}}
			continue
		}
		if dependencyFailed(st, failed) {
			respCh <- stageResult{stage: st, outcome: StageOutcome{Error: skipError("dependency stage(s) failed"), Fatal: false}}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx); err != nil {
				respCh <- stageResult{stage: st, outcome: StageOutcome{Error: skipError("context canceled"), Fatal: false}}
				return
			}
			defer sem.Release()
			respCh <- e.runStage(ctx, st, pc, tracker, outputs)
		}()
	}

	wg.Wait()
	close(respCh)

	results := make([]stageResult, 0, len(level))
	for r := range respCh {
		results = append(results, r)
	}
	return results
}

// runStage dispatches one stage: a sub-pipeline stage recurses through
// runSubPipeline, a model stage resolves its agent type/defaults/model and
// runs a TaskAgent.
func (e *Engine) runStage(
	ctx context.Context,
	st skill.Stage,
	pc PipelineContext,
	tracker *cost.Tracker,
	outputs map[string]string,
) stageResult {
	ctx, stageSpan := e.tracer.StartSpan(ctx, "stage.execute")
	stageSpan.SetAttribute("stage.name", st.Name)
	defer e.tracer.EndSpan(stageSpan)

	if st.IsSubPipeline() {
		e.emit(event.Event{Name: event.StageStart, Stage: st.Name, Payload: event.StageStartPayload{}})
		outcome := e.runSubPipeline(ctx, st, pc, tracker, outputs)
		if !outcome.Success {
			stageSpan.SetError(outcome.Error)
		}
		return stageResult{stage: st, outcome: outcome}
	}

	agentType := EffectiveAgentType(st)
	defaults := ResolveAgentDefaults(agentType, pc.AgentConfig)
	modelID := e.resolveModel(st, defaults, pc)
	stageSpan.SetAttribute("stage.model", modelID)

	e.emit(event.Event{Name: event.StageStart, Stage: st.Name, Payload: event.StageStartPayload{ModelID: modelID}})

	if err := RunBlocking(pc.HookManager, ctx, HookPreStage, map[string]any{"stage": st.Name}); err != nil {
		wrapped := fmt.Errorf("scheduler: pre_stage hook: %w", err)
		stageSpan.SetError(wrapped)
		return stageResult{stage: st, outcome: StageOutcome{Error: wrapped, Fatal: false}}
	}

	provider, ok := pc.Providers.ProviderFor(modelID)
	if !ok {
		err := fmt.Errorf("scheduler: no provider registered for model %q", modelID)
		stageSpan.SetError(err)
		return stageResult{stage: st, outcome: StageOutcome{Error: err, Fatal: false}}
	}

	var tools ToolMap
	if pc.ResolveTools != nil && len(st.Tools) > 0 {
		tools = pc.ResolveTools(st.Tools)
	}

	outcome := NewTaskAgent(TaskAgentParams{
		Stage:     st,
		AgentType: agentType,
		ModelID:   modelID,
		Defaults:  defaults,
		Inputs:    pc.Inputs,
		Outputs:   outputs,
		Provider:  provider,
		Tools:     tools,
		Tracker:   tracker,
		BudgetUsd: pc.MaxBudgetUsd,
		Emit:      pc.Emitter,
		Tracer:    e.tracer,
	}).Run(ctx)
	if !outcome.Success {
		stageSpan.SetError(outcome.Error)
	}
	return stageResult{stage: st, outcome: outcome}
}

// resolveModel applies the model-selection priority (modelOverride >
// stage.Model > agentConfig[type].Model > compiled default), then remaps
// to an available provider's default model if the resolved provider has
// no usable credentials.
func (e *Engine) resolveModel(st skill.Stage, defaults AgentDefaults, pc PipelineContext) string {
	modelID := defaults.Model
	if st.Model != "" {
		modelID = st.Model
	}
	if pc.ModelOverride != "" {
		modelID = pc.ModelOverride
	}

	if pc.Providers == nil || modelID == "" {
		return modelID
	}
	if pc.Providers.HasCredentials(modelID) {
		return modelID
	}
	if remapped, ok := pc.Providers.DefaultModel(); ok {
		return remapped
	}
	return modelID
}

// runSubPipeline recurses into a nested skill for a sub_pipeline stage,
// enforcing MaxSubPipelineDepth and sharing the parent's cost tracker.
func (e *Engine) runSubPipeline(
	ctx context.Context,
	st skill.Stage,
	pc PipelineContext,
	tracker *cost.Tracker,
	outputs map[string]string,
) StageOutcome {
	depth := DepthFromContext(ctx)
	if depth >= MaxSubPipelineDepth {
		return StageOutcome{Error: fmt.Errorf("scheduler: sub-pipeline %q exceeds max nesting depth %d: %w", st.SubPipeline, MaxSubPipelineDepth, ErrMaxSubPipelineDepth), Fatal: true}
	}
	if pc.LoadSkill == nil {
		return StageOutcome{Error: errors.New("scheduler: sub_pipeline stage requires a LoadSkill resolver"), Fatal: false}
	}

	entry, err := pc.LoadSkill(st.SubPipeline)
	if err != nil || entry == nil || entry.Skill == nil {
		return StageOutcome{Error: fmt.Errorf("scheduler: load sub-pipeline %q: %w", st.SubPipeline, nonNilErr(err)), Fatal: false}
	}

	vars := make(map[string]any, len(pc.Inputs)+len(outputs))
	for k, v := range pc.Inputs {
		vars[k] = v
	}
	for k, v := range outputs {
		vars[k] = v
	}
	subInputs := make(map[string]any, len(st.SubInputs))
	for k, tmpl := range st.SubInputs {
		subInputs[k] = skill.Substitute(tmpl, vars)
	}

	childCtx := withDepth(ctx, depth+1)
	childEmitter := event.NewEmitter()
	unbridge := event.Bridge(pc.Emitter, childEmitter, st.Name)
	defer unbridge()

	childCtx, cancel := context.WithCancel(childCtx)
	defer cancel()

	child := NewEngine(PipelineContext{
		Skill:             entry.Skill,
		Inputs:            subInputs,
		MaxBudgetUsd:      pc.MaxBudgetUsd,
		Providers:         pc.Providers,
		ResolveTools:      pc.ResolveTools,
		IsToolAvailable:   pc.IsToolAvailable,
		ToolsConfig:       pc.ToolsConfig,
		AbortSignal:       pc.AbortSignal,
		MaxConcurrency:    pc.MaxConcurrency,
		AgentConfig:       pc.AgentConfig,
		LoadSkill:         pc.LoadSkill,
		SharedCostTracker: tracker,
		HookManager:       pc.HookManager,
		Emitter:           childEmitter,
	}, e.verifier, e.tracer)

	result, err := child.Run(childCtx)
	if err != nil {
		return StageOutcome{Error: fmt.Errorf("scheduler: sub-pipeline %q: %w", st.SubPipeline, err), Fatal: false}
	}
	if result.Partial {
		return StageOutcome{
			Error: fmt.Errorf("scheduler: sub-pipeline %q: stage(s) failed %v, skipped %v",
				st.SubPipeline, result.FailedStages, result.SkippedStages),
			Fatal: true,
		}
	}

	return StageOutcome{
		Success: true,
		Result: StageResult{
			StageName: st.Name,
			Content:   result.PrimaryOutput,
		},
	}
}

// runVerification invokes the Verifier for a completed verify-type stage
// and emits verification:complete. Verification failures never fail the
// owning stage — they are swallowed into a best-effort event per the
// verification subsystem's "swallow failures" contract.
func (e *Engine) runVerification(ctx context.Context, st skill.Stage, outputs map[string]string) {
	if e.verifier == nil {
		return
	}
	var analysis string
	for _, dep := range st.InputFrom {
		analysis += outputs[dep]
	}
	prior := make(map[string]string, len(outputs))
	for k, v := range outputs {
		if k != st.Name {
			prior[k] = v
		}
	}

	report, err := e.verifier.Verify(ctx, analysis, prior)
	if err != nil {
		return
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return
	}
	e.emit(event.Event{Name: event.VerificationComplete, Stage: st.Name, Payload: event.VerificationCompletePayload{Report: string(reportJSON)}})
}

func (e *Engine) preflightTools() error {
	pc := e.ctx
	var missingRequired []string
	for _, name := range pc.Skill.ToolsRequired {
		if pc.IsToolAvailable == nil || !pc.IsToolAvailable(name) {
			e.emit(event.Event{Name: event.ToolUnavailable, Payload: event.ToolUnavailablePayload{ToolName: name, Required: true}})
			missingRequired = append(missingRequired, name)
		}
	}
	for _, name := range pc.Skill.ToolsOptional {
		if pc.IsToolAvailable == nil || !pc.IsToolAvailable(name) {
			e.emit(event.Event{Name: event.ToolUnavailable, Payload: event.ToolUnavailablePayload{ToolName: name, Required: false}})
		}
	}
	if len(missingRequired) > 0 {
		return fmt.Errorf("scheduler: required tool(s) unavailable: %v", missingRequired)
	}
	return nil
}

func (e *Engine) emit(ev event.Event) {
	if e.ctx.Emitter != nil {
		e.ctx.Emitter.Publish(ev)
	}
}

func dependencyFailed(st skill.Stage, failed map[string]bool) bool {
	for _, dep := range st.InputFrom {
		if failed[dep] {
			return true
		}
	}
	return false
}

type skipMarker struct{ msg string }

func (s *skipMarker) Error() string { return "Skipped: " + s.msg }

func skipError(msg string) error { return &skipMarker{msg: msg} }

func isSkipMarker(err error) bool {
	var s *skipMarker
	return errors.As(err, &s)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func nonNilErr(err error) error {
	if err != nil {
		return err
	}
	return errors.New("not found")
}

// mergeDone returns a context that is Done when either a or b is Done,
// and a cancel func to release the goroutine backing it.
func mergeDone(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := make(chan struct{})
	go func() {
		select {
		case <-b.Done():
			cancel()
		case <-stop:
		}
	}()
	return ctx, func() {
		close(stop)
		cancel()
	}
}

