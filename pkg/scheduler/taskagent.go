package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lonestarx1/gogrid/internal/id"
	"github.com/lonestarx1/gogrid/pkg/cost"
	"github.com/lonestarx1/gogrid/pkg/llm"
	"github.com/lonestarx1/gogrid/pkg/scheduler/event"
	"github.com/lonestarx1/gogrid/pkg/skill"
	"github.com/lonestarx1/gogrid/pkg/trace"
)

// StageOutcome is what TaskAgent.Run returns: exactly one of a success
// Result or a failure, classified Fatal or not per the error-classification
// rules in the stage run design.
type StageOutcome struct {
	Success bool
	Result  StageResult
	Error   error
	Fatal   bool
}

// StageResult is the run record for one successfully completed stage.
type StageResult struct {
	StageName    string
	ModelID      string
	Content      string
	DurationMs   int64
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// TaskAgentParams bundles everything TaskAgent.Run needs to execute exactly
// one stage.
type TaskAgentParams struct {
	Stage     skill.Stage
	AgentType skill.AgentType
	ModelID   string
	Defaults  AgentDefaults

	// Inputs holds the skill's resolved input values; Outputs holds prior
	// stage outputs by stage name, a read-only snapshot taken at dispatch
	// time (by construction of execution levels, this is every output a
	// stage at this level could depend on).
	Inputs  map[string]any
	Outputs map[string]string

	Provider llm.Provider
	Tools    ToolMap

	Tracker   *cost.Tracker
	BudgetUsd float64

	Emit *event.Emitter

	// Tracer records the llm.complete and tool.execute spans for this
	// stage's model/tool calls. Nil defaults to trace.Noop.
	Tracer trace.Tracer
}

// TaskAgent executes exactly one stage: builds its prompt, invokes the
// model (streaming or tool-loop), and classifies the outcome.
type TaskAgent struct {
	p TaskAgentParams
}

// NewTaskAgent constructs a TaskAgent for one stage execution.
func NewTaskAgent(p TaskAgentParams) *TaskAgent {
	if p.Tracer == nil {
		p.Tracer = trace.Noop{}
	}
	return &TaskAgent{p: p}
}

// Run executes the stage to completion or failure. ctx is the combined
// (caller abort + engine fatal) context; Run never panics on an ordinary
// model or tool failure.
func (a *TaskAgent) Run(ctx context.Context) StageOutcome {
	started := time.Now()
	p := a.p

	messages := a.buildMessages()

	maxTokens := p.Stage.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.Defaults.MaxTokens
	}
	temperature := p.Stage.Temperature
	if temperature == nil {
		temperature = p.Defaults.Temperature
	}

	var handle cost.ReservationHandle
	if p.Tracker != nil {
		estimate := p.Tracker.EstimateCost(p.ModelID, maxTokens)
		handle = p.Tracker.Reserve(estimate)
		if p.BudgetUsd > 0 {
			if err := p.Tracker.CheckBudget(p.BudgetUsd); err != nil {
				p.Tracker.Refund(handle)
				return a.classify(err)
			}
		}
	}

	params := llm.Params{
		Model:       p.ModelID,
		Messages:    messages,
		Temperature: temperature,
	}
	if maxTokens > 0 {
		params.MaxTokens = maxTokens
	}

	llmCtx, llmSpan := p.Tracer.StartSpan(ctx, "llm.complete")
	llmSpan.SetAttribute("llm.model", p.ModelID)
	llmSpan.SetAttribute("stage.name", p.Stage.Name)

	var (
		content string
		usage   llm.Usage
		err     error
	)
	if len(p.Tools) == 0 {
		content, usage, err = a.runStreaming(llmCtx, params)
	} else {
		content, usage, err = a.runToolLoop(llmCtx, params)
	}

	if err != nil {
		llmSpan.SetError(err)
		a.tracer().EndSpan(llmSpan)
		if p.Tracker != nil {
			p.Tracker.Refund(handle)
		}
		return a.classify(err)
	}
	llmSpan.SetAttribute("llm.prompt_tokens", strconv.Itoa(usage.PromptTokens))
	llmSpan.SetAttribute("llm.completion_tokens", strconv.Itoa(usage.CompletionTokens))
	a.tracer().EndSpan(llmSpan)

	var costUSD float64
	if p.Tracker != nil {
		costUSD = p.Tracker.Finalize(handle, p.ModelID, p.Stage.Name, usage)
	}

	result := StageResult{
		StageName:    p.Stage.Name,
		ModelID:      p.ModelID,
		Content:      content,
		DurationMs:   time.Since(started).Milliseconds(),
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		CostUSD:      costUSD,
	}
	return StageOutcome{Success: true, Result: result}
}

// buildMessages computes the effective variables (skill inputs union
// input_from->prior output), substitutes them into the prompt, and
// prepends one context message per populated dependency, in input_from
// order, ahead of the system directive and the substituted prompt.
func (a *TaskAgent) buildMessages() []llm.Message {
	p := a.p

	vars := make(map[string]any, len(p.Inputs)+len(p.Stage.InputFrom))
	for k, v := range p.Inputs {
		vars[k] = v
	}
	for _, dep := range p.Stage.InputFrom {
		if out, ok := p.Outputs[dep]; ok {
			vars[dep] = out
		}
	}

	prompt := skill.Substitute(p.Stage.Prompt, vars)

	systemContent := roleDirective(p.AgentType)
	if p.Stage.OutputFormat != "" {
		systemContent += fmt.Sprintf(" Respond in %s format.", p.Stage.OutputFormat)
	}

	messages := []llm.Message{llm.NewSystemMessage(systemContent)}
	for _, dep := range p.Stage.InputFrom {
		out, ok := p.Outputs[dep]
		if !ok {
			continue
		}
		messages = append(messages, llm.NewUserMessage(
			fmt.Sprintf("--- Output from %q stage ---\n%s", dep, out)))
	}
	messages = append(messages, llm.NewUserMessage(prompt))
	return messages
}

// runStreaming drives the streaming path: emits stage:stream per delta,
// concatenates content, and takes usage from the settlement event.
func (a *TaskAgent) runStreaming(ctx context.Context, params llm.Params) (string, llm.Usage, error) {
	sp := llm.AsStreamProvider(a.p.Provider)
	stream, err := sp.Stream(ctx, params)
	if err != nil {
		return "", llm.Usage{}, err
	}
	defer stream.Close()

	var b strings.Builder
	var usage llm.Usage
	for stream.Next() {
		ev := stream.Event()
		if ev.Delta != "" {
			b.WriteString(ev.Delta)
			a.publish(event.StageStream, event.StageStreamPayload{Chunk: ev.Delta})
		}
		if ev.Usage != nil {
			usage = *ev.Usage
		}
		if ev.Message != nil && ev.Message.Content != "" && b.Len() == 0 {
			b.WriteString(ev.Message.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return "", llm.Usage{}, err
	}
	return b.String(), usage, nil
}

// runToolLoop drives the non-streaming tool-loop path, reusing pkg/agent's
// tool-loop shape: call the model, execute any requested tool calls,
// append their results, and loop until a final message with no further
// tool calls or the stage's maxToolSteps bound is reached.
func (a *TaskAgent) runToolLoop(ctx context.Context, params llm.Params) (string, llm.Usage, error) {
	p := a.p

	toolDefs := make([]llm.ToolDefinition, 0, len(p.Tools))
	for _, t := range p.Tools {
		schemaJSON, err := toolSchemaJSON(t)
		if err != nil {
			return "", llm.Usage{}, err
		}
		toolDefs = append(toolDefs, llm.ToolDefinition{
			Name:        t.QualifiedName(),
			Description: t.Description,
			Parameters:  schemaJSON,
		})
	}
	params.Tools = toolDefs

	messages := append([]llm.Message(nil), params.Messages...)
	var totalUsage llm.Usage

	maxSteps := p.Defaults.MaxToolSteps
	if maxSteps <= 0 {
		maxSteps = 4
	}

	for step := 0; step < maxSteps; step++ {
		params.Messages = messages
		resp, err := p.Provider.Complete(ctx, params)
		if err != nil {
			return "", totalUsage, err
		}

		totalUsage.PromptTokens += resp.Usage.PromptTokens
		totalUsage.CompletionTokens += resp.Usage.CompletionTokens
		totalUsage.TotalTokens += resp.Usage.TotalTokens

		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			return resp.Message.Content, totalUsage, nil
		}

		for _, tc := range resp.Message.ToolCalls {
			if err := ctx.Err(); err != nil {
				return "", totalUsage, err
			}

			callID := id.New()
			var args map[string]any
			_ = jsonUnmarshalLenient(tc.Arguments, &args)
			a.publish(event.StageToolStart, event.StageToolStartPayload{
				CallID: callID, ToolName: tc.Function, Args: args,
			})

			toolCtx, toolSpan := a.tracer().StartSpan(ctx, "tool.execute")
			toolSpan.SetAttribute("tool.name", tc.Function)
			toolSpan.SetAttribute("tool.call_id", callID)

			toolStarted := time.Now()
			tool, ok := p.Tools[tc.Function]
			if !ok {
				dur := time.Since(toolStarted).Milliseconds()
				errMsg := fmt.Sprintf("tool %q not available in this stage", tc.Function)
				toolSpan.SetAttribute("tool.error", errMsg)
				a.tracer().EndSpan(toolSpan)
				a.publish(event.StageToolEnd, event.StageToolEndPayload{
					CallID: callID, ToolName: tc.Function, Success: false, DurationMs: dur, Error: errMsg,
				})
				messages = append(messages, llm.NewToolMessage(tc.ID, "error: "+errMsg))
				continue
			}

			res := tool.Call(toolCtx, args)
			dur := time.Since(toolStarted).Milliseconds()
			if !res.Success {
				toolSpan.SetAttribute("tool.error", res.Error)
			} else {
				toolSpan.SetAttribute("tool.output_len", strconv.Itoa(len(contentToString(res.Content))))
			}
			a.tracer().EndSpan(toolSpan)
			a.publish(event.StageToolEnd, event.StageToolEndPayload{
				CallID: callID, ToolName: tc.Function, Success: res.Success, DurationMs: dur, Error: res.Error,
			})

			if !res.Success {
				messages = append(messages, llm.NewToolMessage(tc.ID, "error: "+res.Error))
				continue
			}
			messages = append(messages, llm.NewToolMessage(tc.ID, contentToString(res.Content)))
		}
	}

	// Exhausted the tool-loop budget: return the last assistant content
	// seen, if any, rather than failing the stage outright.
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleAssistant {
			return messages[i].Content, totalUsage, nil
		}
	}
	return "", totalUsage, errors.New("scheduler: tool loop exhausted maxToolSteps with no assistant content")
}

// tracer returns the configured tracer, falling back to trace.Noop if a
// TaskAgent was constructed without going through NewTaskAgent.
func (a *TaskAgent) tracer() trace.Tracer {
	if a.p.Tracer == nil {
		return trace.Noop{}
	}
	return a.p.Tracer
}

func (a *TaskAgent) publish(name event.Name, payload any) {
	if a.p.Emit == nil {
		return
	}
	a.p.Emit.Publish(event.Event{Name: name, Stage: a.p.Stage.Name, Payload: payload})
}

// classify maps a failure into the stage error classification rules:
// cancellation and budget-exceeded are fatal (they halt the pipeline),
// everything else is a recorded but non-fatal stage failure.
func (a *TaskAgent) classify(err error) StageOutcome {
	fatal := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, cost.ErrBudgetExceeded)
	return StageOutcome{
		Success: false,
		Error:   err,
		Fatal:   fatal,
	}
}
