// Package event is the scheduler's lifecycle publish-subscribe surface:
// one typed payload struct per event name, delivered synchronously and in
// publish order to every subscriber of an Emitter.
package event

// Name identifies one of the scheduler's lifecycle events.
type Name string

const (
	StageStart           Name = "stage:start"
	StageStream          Name = "stage:stream"
	StageToolStart       Name = "stage:tool-start"
	StageToolEnd         Name = "stage:tool-end"
	StageComplete        Name = "stage:complete"
	StageError           Name = "stage:error"
	PipelineComplete     Name = "pipeline:complete"
	PipelineError        Name = "pipeline:error"
	ToolUnavailable      Name = "tool:unavailable"
	VerificationComplete Name = "verification:complete"
)

// Event is one published lifecycle occurrence. Stage is the stage name the
// event concerns, already prefixed "<outer>/<inner>" when it bubbled up
// from a sub-pipeline; it is empty for pipeline-scoped events that have no
// single owning stage (PipelineComplete, PipelineError, ToolUnavailable).
// Payload is one of the Stage*/Pipeline*/ToolUnavailable/Verification*
// structs below, matching Name.
type Event struct {
	Name    Name
	Stage   string
	Payload any
}

// StageStartPayload accompanies StageStart.
type StageStartPayload struct {
	ModelID string
}

// StageStreamPayload accompanies StageStream: one per incremental chunk.
type StageStreamPayload struct {
	Chunk string
}

// StageToolStartPayload accompanies StageToolStart. CallID is unique per
// invocation and safe to generate concurrently.
type StageToolStartPayload struct {
	CallID   string
	ToolName string
	Args     map[string]any
}

// StageToolEndPayload accompanies StageToolEnd, emitted even on failure.
type StageToolEndPayload struct {
	CallID     string
	ToolName   string
	Success    bool
	DurationMs int64
	Error      string
}

// StageCompletePayload accompanies StageComplete: the stage run record.
type StageCompletePayload struct {
	ModelID      string
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	Content      string
	DurationMs   int64
}

// StageErrorPayload accompanies StageError.
type StageErrorPayload struct {
	Error string
	Fatal bool
}

// PipelineCompletePayload accompanies PipelineComplete.
type PipelineCompletePayload struct {
	Outputs         map[string]string
	PrimaryOutput   string
	Partial         bool
	StagesCompleted int
	FailedStages    []string
	SkippedStages   []string
}

// PipelineErrorPayload accompanies PipelineError: a fatal error that
// aborted the run before or outside the normal stage/level walk.
type PipelineErrorPayload struct {
	Error string
}

// ToolUnavailablePayload accompanies ToolUnavailable.
type ToolUnavailablePayload struct {
	ToolName string
	Required bool
}

// VerificationCompletePayload accompanies VerificationComplete.
type VerificationCompletePayload struct {
	Report string
}

// Prefixed returns ev with Stage rewritten to "<outer>/<Stage>", used when a
// sub-pipeline's events bubble up to an enclosing engine. Events with no
// Stage (pipeline-scoped events) are returned unchanged.
func Prefixed(ev Event, outer string) Event {
	if ev.Stage == "" {
		return ev
	}
	ev.Stage = outer + "/" + ev.Stage
	return ev
}
