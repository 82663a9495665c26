package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lonestarx1/gogrid/pkg/tool"
)

// toolAdapter exposes a converted, callable MCP Tool as a pkg/tool.Tool, so
// any caller built against the generic tool interface (not just the task
// agent's ToolMap-shaped dispatch) can drive an MCP tool the same way it
// would drive a local, in-process one.
type toolAdapter struct {
	t *Tool
}

// AsToolInterface adapts t to pkg/tool.Tool. Schema conversion and call
// dispatch (timeout, retry, injected-parameter merging) remain exactly
// Tool's own; the adapter only reshapes the method set.
func (t *Tool) AsToolInterface() tool.Tool {
	return toolAdapter{t: t}
}

func (a toolAdapter) Name() string        { return a.t.QualifiedName() }
func (a toolAdapter) Description() string { return a.t.Description }

func (a toolAdapter) Schema() tool.Schema {
	return convertParamSchema(a.t.Schema)
}

// Execute unmarshals input into the map[string]any Tool.Call expects and
// flattens its Result back into Execute's (string, error) contract: a
// failed call (validation or remote) surfaces as a Go error rather than a
// Result{Success:false}, since pkg/tool.Tool has no structured-failure slot.
func (a toolAdapter) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return "", fmt.Errorf("mcp: decode tool input for %s: %w", a.t.QualifiedName(), err)
		}
	}

	res := a.t.Call(ctx, params)
	if !res.Success {
		return "", fmt.Errorf("mcp: %s: %s", a.t.QualifiedName(), res.Error)
	}

	switch v := res.Content.(type) {
	case string:
		return v, nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("mcp: encode result for %s: %w", a.t.QualifiedName(), err)
		}
		return string(encoded), nil
	}
}

// convertParamSchema reshapes a ParamSchema (the adapter's own richer,
// union-aware model) into pkg/tool.Schema's simpler JSON-Schema-literal
// shape. A Union variant has no direct equivalent, so it degrades to its
// first variant -- the same "pick the first branch" compromise ValidateParams
// avoids needing by validating against ParamSchema directly; this path only
// feeds a tool's advertised schema to a generic, non-MCP-aware caller.
func convertParamSchema(s *ParamSchema) tool.Schema {
	if s == nil {
		return tool.Schema{Type: "object"}
	}

	out := tool.Schema{
		Type:        string(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}

	if s.Type == TypeUnion && len(s.Variants) > 0 {
		first := convertParamSchema(s.Variants[0])
		first.Description = s.Description
		return first
	}

	if s.Items != nil {
		items := convertParamSchema(s.Items)
		out.Items = &items
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*tool.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			converted := convertParamSchema(prop)
			out.Properties[name] = &converted
		}
	}

	return out
}
