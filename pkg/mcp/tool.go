package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lonestarx1/gogrid/pkg/trace"
)

// CallTimeout is the hard per-call timeout enforced around every remote
// tool invocation.
const CallTimeout = 30 * time.Second

// RetryDelay is how long the adapter waits before its single bounded retry
// on a transient error.
const RetryDelay = 1 * time.Second

// Caller performs the raw remote call for a tool: send args, get back a
// result or an error. Implementations are ToolClientManager transports;
// Tool never talks to a transport directly.
type Caller func(ctx context.Context, args map[string]any) (any, error)

// Result is the outcome of a Tool.Call, mirroring the adapter's contract:
// a validation or remote-call failure reports Success:false with a
// human-readable Error rather than propagating a Go error, so callers
// (the task agent's tool loop) can treat every outcome uniformly.
type Result struct {
	Success bool
	Content any
	Error   string
	Source  string
	AtTime  time.Time
}

// Tool is a converted, callable MCP tool: <serverName>/<toolName>, a
// validated parameter schema with injected parameters stripped out, and a
// Caller that performs the actual remote invocation.
type Tool struct {
	Server      string
	Name        string // original (un-namespaced) tool name
	Description string
	Schema      *ParamSchema
	Injected    map[string]any

	call   Caller
	tracer trace.Tracer
}

// QualifiedName is the exposed, namespaced tool name: <serverName>/<toolName>.
func (t *Tool) QualifiedName() string {
	return t.Server + "/" + t.Name
}

// NewTool converts a raw tool description into a callable Tool. inputSchema
// is the tool's declared JSON-Schema-ish parameters; injected is an
// optional map of fixed key->value pairs that are hidden from the exposed
// schema and merged into every outgoing call. tracer may be nil, defaulting
// to trace.Noop.
func NewTool(server, name, description string, inputSchema json.RawMessage, injected map[string]any, call Caller, tracer trace.Tracer) (*Tool, error) {
	stripped, err := stripKeys(inputSchema, injectedKeys(injected))
	if err != nil {
		return nil, err
	}

	schema, err := ConvertSchema(stripped, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: convert schema for %s/%s: %w", server, name, err)
	}

	if len(injected) > 0 {
		description = description + " " + injectedNote(injected)
	}

	if tracer == nil {
		tracer = trace.Noop{}
	}

	return &Tool{
		Server:      server,
		Name:        name,
		Description: description,
		Schema:      schema,
		Injected:    injected,
		call:        call,
		tracer:      tracer,
	}, nil
}

func injectedKeys(injected map[string]any) []string {
	keys := make([]string, 0, len(injected))
	for k := range injected {
		keys = append(keys, k)
	}
	return keys
}

func injectedNote(injected map[string]any) string {
	keys := injectedKeys(injected)
	return fmt.Sprintf("(%s provided automatically)", strings.Join(keys, ", "))
}

// Call validates params, merges in injected parameters, and invokes the
// tool with a hard timeout and one bounded retry on transient errors, per
// the adapter's call contract.
func (t *Tool) Call(ctx context.Context, params map[string]any) Result {
	ctx, span := t.tracer.StartSpan(ctx, "mcp.tool.call")
	span.SetAttribute("tool.name", t.QualifiedName())
	defer t.tracer.EndSpan(span)

	if err := ValidateParams(t.Schema, params); err != nil {
		span.SetError(err)
		return Result{Success: false, Error: err.Error()}
	}

	merged := make(map[string]any, len(params)+len(t.Injected))
	for k, v := range params {
		merged[k] = v
	}
	for k, v := range t.Injected {
		merged[k] = v
	}

	content, err := t.invokeWithRetry(ctx, merged)
	if err != nil {
		span.SetError(err)
		return Result{Success: false, Error: err.Error()}
	}

	return Result{
		Success: true,
		Content: normalizeContent(content),
		Source:  fmt.Sprintf("mcp://%s/%s", t.Server, t.Name),
		AtTime:  time.Now(),
	}
}

func (t *Tool) invokeWithRetry(ctx context.Context, args map[string]any) (any, error) {
	content, err := t.invokeOnce(ctx, args)
	if err == nil {
		return content, nil
	}
	if !isTransient(err) {
		return nil, err
	}

	select {
	case <-time.After(RetryDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return t.invokeOnce(ctx, args)
}

func (t *Tool) invokeOnce(ctx context.Context, args map[string]any) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	return t.call(callCtx, args)
}

// isTransient classifies an error as worth a single retry, per the
// adapter's transient-error keyword matching.
func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	markers := []string{
		"timeout", "timed out", "connection reset",
		"server error", "500", "502", "503",
	}
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// normalizeContent implements the success-path content shaping: concatenate
// text parts, JSON-sniff a leading '{' or '[', and guard against empty
// results while letting legitimate falsy primitives through unchanged.
func normalizeContent(content any) any {
	if text, ok := extractTextContent(content); ok {
		content = text
	}

	s, ok := content.(string)
	if !ok {
		return placeholderIfEmpty(content)
	}

	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "Tool returned no content."
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return s
}

// extractTextContent recognizes the real MCP tools/call result shape --
// {"content":[{"type":"text","text":"..."}, ...]}, possibly interleaved
// with non-text parts (images, resources) that are skipped -- and
// concatenates its text parts into one string. Returns ok=false for any
// other shape, leaving content untouched for normalizeContent's later
// branches.
func extractTextContent(content any) (string, bool) {
	obj, ok := content.(map[string]any)
	if !ok {
		return "", false
	}
	parts, ok := obj["content"].([]any)
	if !ok {
		return "", false
	}

	var b strings.Builder
	found := false
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if kind, _ := part["type"].(string); kind != "text" {
			continue
		}
		text, ok := part["text"].(string)
		if !ok {
			continue
		}
		b.WriteString(text)
		found = true
	}
	if !found {
		return "", false
	}
	return b.String(), true
}

func placeholderIfEmpty(content any) any {
	if content == nil {
		return "Tool returned no content."
	}
	if s, ok := content.(string); ok && s == "" {
		return "Tool returned no content."
	}
	// Legitimate falsy primitives (0, false) and everything else pass
	// through unchanged.
	return content
}
