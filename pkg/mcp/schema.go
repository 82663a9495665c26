// Package mcp converts declarative MCP tool schemas into validated, typed
// parameter schemas and maintains live connections to the external tool
// servers that back them.
package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ParamType is the resolved, typed shape of a converted schema node.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
	TypeUnion   ParamType = "union"
	TypeUnknown ParamType = "unknown"
)

// ParamSchema is the typed result of converting a JSON-Schema-ish
// inputSchema. Only the fields relevant to its Type are meaningful.
type ParamSchema struct {
	Type        ParamType
	Description string
	Nullable    bool

	// string
	MinLength *int
	MaxLength *int
	Pattern   string
	Enum      []string

	// array
	Items *ParamSchema

	// object
	Properties map[string]*ParamSchema
	Required   []string

	// union (2+ distinct-typed anyOf branches)
	Variants []*ParamSchema
}

// ConvertSchema converts a raw JSON-Schema-ish document (as produced by an
// MCP tool's inputSchema field) into a ParamSchema. defs is an inherited
// $defs map (e.g. from an enclosing document); the document's own top-level
// $defs, if present, are merged in with inner (this document's) entries
// winning over inherited ones of the same name.
func ConvertSchema(raw json.RawMessage, defs map[string]gjson.Result) (*ParamSchema, error) {
	if len(raw) == 0 {
		return &ParamSchema{Type: TypeUnknown}, nil
	}
	root := gjson.ParseBytes(raw)
	merged := mergeDefs(defs, root.Get(`$defs`))
	return convertNode(root, merged)
}

func mergeDefs(inherited map[string]gjson.Result, own gjson.Result) map[string]gjson.Result {
	out := make(map[string]gjson.Result, len(inherited))
	for k, v := range inherited {
		out[k] = v
	}
	if own.IsObject() {
		own.ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = value
			return true
		})
	}
	return out
}

func convertNode(node gjson.Result, defs map[string]gjson.Result) (*ParamSchema, error) {
	desc := node.Get("description").String()

	if ref := node.Get(`$ref`); ref.Exists() {
		return convertRef(ref.String(), desc, defs)
	}
	if anyOf := node.Get("anyOf"); anyOf.Exists() && anyOf.IsArray() {
		return convertAnyOf(anyOf, desc, defs)
	}
	if node.Get("oneOf").Exists() || node.Get("allOf").Exists() {
		return &ParamSchema{Type: TypeUnknown, Description: desc}, nil
	}

	switch node.Get("type").String() {
	case "string":
		s := &ParamSchema{Type: TypeString, Description: desc, Pattern: node.Get("pattern").String()}
		if v := node.Get("minLength"); v.Exists() {
			n := int(v.Int())
			s.MinLength = &n
		}
		if v := node.Get("maxLength"); v.Exists() {
			n := int(v.Int())
			s.MaxLength = &n
		}
		if enum := node.Get("enum"); enum.IsArray() {
			for _, e := range enum.Array() {
				s.Enum = append(s.Enum, e.String())
			}
		}
		return s, nil

	case "number":
		return &ParamSchema{Type: TypeNumber, Description: desc}, nil

	case "integer":
		return &ParamSchema{Type: TypeInteger, Description: desc}, nil

	case "boolean":
		return &ParamSchema{Type: TypeBoolean, Description: desc}, nil

	case "array":
		items, err := convertNode(node.Get("items"), defs)
		if err != nil {
			return nil, err
		}
		return &ParamSchema{Type: TypeArray, Description: desc, Items: items}, nil

	case "object":
		props := make(map[string]*ParamSchema)
		var reqErr error
		node.Get("properties").ForEach(func(key, value gjson.Result) bool {
			ps, err := convertNode(value, defs)
			if err != nil {
				reqErr = err
				return false
			}
			props[key.String()] = ps
			return true
		})
		if reqErr != nil {
			return nil, reqErr
		}
		var required []string
		node.Get("required").ForEach(func(_, value gjson.Result) bool {
			required = append(required, value.String())
			return true
		})
		return &ParamSchema{Type: TypeObject, Description: desc, Properties: props, Required: required}, nil

	default:
		return &ParamSchema{Type: TypeUnknown, Description: desc}, nil
	}
}

func convertRef(ref, desc string, defs map[string]gjson.Result) (*ParamSchema, error) {
	const prefix = "#/$defs/"
	if len(ref) <= len(prefix) || ref[:len(prefix)] != prefix {
		return &ParamSchema{Type: TypeUnknown, Description: desc}, nil
	}
	name := ref[len(prefix):]
	target, ok := defs[name]
	if !ok {
		return &ParamSchema{Type: TypeUnknown, Description: desc}, nil
	}
	resolved, err := convertNode(target, defs)
	if err != nil {
		return nil, err
	}
	if desc != "" {
		resolved.Description = desc
	}
	return resolved, nil
}

func convertAnyOf(anyOf gjson.Result, desc string, defs map[string]gjson.Result) (*ParamSchema, error) {
	branches := anyOf.Array()
	if len(branches) == 0 {
		return &ParamSchema{Type: TypeUnknown, Description: desc}, nil
	}

	// [T, {type: null}] -> T made nullable. Handles either branch order.
	if len(branches) == 2 {
		for _, p := range [2][2]int{{0, 1}, {1, 0}} {
			if branches[p[0]].Get("type").String() == "null" {
				t, err := convertNode(branches[p[1]], defs)
				if err != nil {
					return nil, err
				}
				t.Nullable = true
				if desc != "" {
					t.Description = desc
				}
				return t, nil
			}
		}
	}

	// All branches type:"string" (with/without format/enum) -> string.
	allString := true
	for _, b := range branches {
		if b.Get("type").String() != "string" {
			allString = false
			break
		}
	}
	if allString {
		s, err := convertNode(branches[0], defs)
		if err != nil {
			return nil, err
		}
		for _, b := range branches[1:] {
			if enum := b.Get("enum"); enum.IsArray() {
				for _, e := range enum.Array() {
					s.Enum = append(s.Enum, e.String())
				}
			}
		}
		if desc != "" {
			s.Description = desc
		}
		return s, nil
	}

	if len(branches) == 1 {
		t, err := convertNode(branches[0], defs)
		if err != nil {
			return nil, err
		}
		if desc != "" {
			t.Description = desc
		}
		return t, nil
	}

	// Two or more distinct types -> tagged union.
	seen := make(map[ParamType]bool)
	var variants []*ParamSchema
	for _, b := range branches {
		v, err := convertNode(b, defs)
		if err != nil {
			return nil, err
		}
		if !seen[v.Type] {
			seen[v.Type] = true
			variants = append(variants, v)
		}
	}
	if len(variants) == 1 {
		variants[0].Description = desc
		return variants[0], nil
	}
	return &ParamSchema{Type: TypeUnion, Description: desc, Variants: variants}, nil
}

// stripKeys removes the named top-level object properties (and their
// required-list entries) from a raw JSON-Schema-ish document, returning the
// edited document. Used to hide injected parameters from the schema a
// caller sees.
func stripKeys(raw json.RawMessage, keys []string) (json.RawMessage, error) {
	if len(keys) == 0 {
		return raw, nil
	}
	data := []byte(raw)
	for _, k := range keys {
		edited, err := sjsonDelete(data, "properties."+k)
		if err != nil {
			return nil, fmt.Errorf("mcp: strip injected param %q: %w", k, err)
		}
		data = edited
		edited, err = sjsonDeleteFromArray(data, "required", k)
		if err != nil {
			return nil, fmt.Errorf("mcp: strip injected param %q from required: %w", k, err)
		}
		data = edited
	}
	return data, nil
}
