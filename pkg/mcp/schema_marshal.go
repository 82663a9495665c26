package mcp

import "encoding/json"

// ToJSONSchema renders s back into a plain JSON-Schema document, for
// callers (the task agent's tool loop) that need to hand a tool's
// parameter schema to an llm.ToolDefinition. It is a lossy inverse of
// ConvertSchema: union variants render as a best-effort anyOf, and the
// distinction between an originally-unresolvable $ref and a genuinely
// open-ended schema is gone by this point, so both render as "unknown" (no
// type constraint, i.e. an empty object schema).
func (s *ParamSchema) ToJSONSchema() (json.RawMessage, error) {
	return json.Marshal(s.toMap())
}

func (s *ParamSchema) toMap() map[string]any {
	if s == nil {
		return map[string]any{}
	}

	m := map[string]any{}
	if s.Description != "" {
		m["description"] = s.Description
	}

	switch s.Type {
	case TypeString:
		m["type"] = "string"
		if s.MinLength != nil {
			m["minLength"] = *s.MinLength
		}
		if s.MaxLength != nil {
			m["maxLength"] = *s.MaxLength
		}
		if s.Pattern != "" {
			m["pattern"] = s.Pattern
		}
		if len(s.Enum) > 0 {
			m["enum"] = s.Enum
		}
	case TypeNumber:
		m["type"] = "number"
	case TypeInteger:
		m["type"] = "integer"
	case TypeBoolean:
		m["type"] = "boolean"
	case TypeArray:
		m["type"] = "array"
		m["items"] = s.Items.toMap()
	case TypeObject:
		m["type"] = "object"
		props := make(map[string]any, len(s.Properties))
		for k, v := range s.Properties {
			props[k] = v.toMap()
		}
		m["properties"] = props
		if len(s.Required) > 0 {
			m["required"] = s.Required
		}
	case TypeUnion:
		variants := make([]any, 0, len(s.Variants))
		for _, v := range s.Variants {
			variants = append(variants, v.toMap())
		}
		m["anyOf"] = variants
	default:
		// unknown: no type constraint, accepts anything.
	}

	if s.Nullable {
		m["nullable"] = true
	}
	return m
}
