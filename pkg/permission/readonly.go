package permission

import "fmt"

// ReadOnlyMode filters the exposed tool catalog down to an explicit
// allow-list of side-effect-free tools, applied before permission
// wrapping, and independently refuses any call a caller marks as
// mutating (e.g. a config tool's "set" action).
type ReadOnlyMode struct {
	enabled   bool
	allowList map[string]bool
}

// NewReadOnlyMode returns an enabled ReadOnlyMode restricted to allowList.
func NewReadOnlyMode(allowList []string) *ReadOnlyMode {
	set := make(map[string]bool, len(allowList))
	for _, name := range allowList {
		set[name] = true
	}
	return &ReadOnlyMode{enabled: true, allowList: set}
}

// FilterTools returns the subset of names on the allow-list. When r is nil
// or not enabled, names is returned unchanged.
func (r *ReadOnlyMode) FilterTools(names []string) []string {
	if r == nil || !r.enabled {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if r.allowList[n] {
			out = append(out, n)
		}
	}
	return out
}

// Allows reports whether toolName is on the allow-list. Always true when r
// is nil or not enabled.
func (r *ReadOnlyMode) Allows(toolName string) bool {
	if r == nil || !r.enabled {
		return true
	}
	return r.allowList[toolName]
}

// CheckMutation refuses a call the caller identifies as mutating (e.g.
// manage_config with action "set") while read-only mode is enabled.
func (r *ReadOnlyMode) CheckMutation(toolName string, mutating bool) error {
	if r == nil || !r.enabled || !mutating {
		return nil
	}
	return fmt.Errorf("permission: %q is a mutating action and is blocked in read-only mode", toolName)
}
