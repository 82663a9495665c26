package mcp

import (
	"fmt"
)

// ValidateParams checks a decoded arguments map against the top-level
// object schema, returning the first violation found.
func ValidateParams(schema *ParamSchema, params map[string]any) error {
	if schema == nil || schema.Type == TypeUnknown {
		return nil
	}
	return validateValue(schema, params, "")
}

func validateValue(schema *ParamSchema, v any, path string) error {
	if v == nil {
		if schema.Nullable {
			return nil
		}
		return fmt.Errorf("mcp: %s: null not allowed", pathOrRoot(path))
	}

	switch schema.Type {
	case TypeUnknown, TypeUnion:
		return nil

	case TypeString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("mcp: %s: expected string", pathOrRoot(path))
		}
		if schema.MinLength != nil && len(s) < *schema.MinLength {
			return fmt.Errorf("mcp: %s: shorter than minLength %d", pathOrRoot(path), *schema.MinLength)
		}
		if schema.MaxLength != nil && len(s) > *schema.MaxLength {
			return fmt.Errorf("mcp: %s: longer than maxLength %d", pathOrRoot(path), *schema.MaxLength)
		}
		if len(schema.Enum) > 0 && !contains(schema.Enum, s) {
			return fmt.Errorf("mcp: %s: %q not in enum %v", pathOrRoot(path), s, schema.Enum)
		}
		return nil

	case TypeNumber, TypeInteger:
		switch v.(type) {
		case float64, float32, int, int64:
		default:
			return fmt.Errorf("mcp: %s: expected number", pathOrRoot(path))
		}
		return nil

	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("mcp: %s: expected boolean", pathOrRoot(path))
		}
		return nil

	case TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return fmt.Errorf("mcp: %s: expected array", pathOrRoot(path))
		}
		if schema.Items != nil {
			for i, item := range arr {
				if err := validateValue(schema.Items, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
		return nil

	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("mcp: %s: expected object", pathOrRoot(path))
		}
		for _, req := range schema.Required {
			if _, ok := obj[req]; !ok {
				return fmt.Errorf("mcp: %s: missing required property %q", pathOrRoot(path), req)
			}
		}
		for name, propSchema := range schema.Properties {
			val, ok := obj[name]
			if !ok {
				continue
			}
			if err := validateValue(propSchema, val, joinPath(path, name)); err != nil {
				return err
			}
		}
		return nil

	default:
		return nil
	}
}

func pathOrRoot(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
