// Package permission resolves and enforces per-tool execution policy:
// exact/glob policy lookup, a confirm/deny enforcement wrapper around tool
// execution, and an orthogonal read-only mode that filters the exposed
// tool catalog ahead of that wrapping.
package permission

import (
	"sort"
	"strings"
)

// Level is the resolved permission level for a tool call.
type Level string

const (
	// Auto executes without any gate.
	Auto Level = "auto"
	// Confirm requires an affirmative answer from onPermissionRequired
	// before executing.
	Confirm Level = "confirm"
	// Deny refuses the call outright.
	Deny Level = "deny"
)

// Policy maps a tool name, or a "<prefix>.*" glob, to a Level.
type Policy map[string]Level

// ResolvePermission determines toolName's effective level: an exact policy
// entry always wins; otherwise the longest matching "<prefix>.*" glob
// applies (a glob matches when toolName starts with prefix+"/" or
// prefix+"_"); with no match the level defaults to Auto.
//
// Go map iteration order is randomized, so "first matching glob wins" is
// made deterministic by considering candidate prefixes longest-first: a
// longer prefix match is strictly more specific than a shorter one, so
// this tie-break matches author intent regardless of map iteration order.
func ResolvePermission(toolName string, policy Policy) Level {
	if level, ok := policy[toolName]; ok {
		return level
	}

	var prefixes []string
	for key := range policy {
		prefix, ok := strings.CutSuffix(key, ".*")
		if !ok {
			continue
		}
		if matchesGlob(toolName, prefix) {
			prefixes = append(prefixes, prefix)
		}
	}
	if len(prefixes) == 0 {
		return Auto
	}
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return policy[prefixes[0]+".*"]
}

func matchesGlob(toolName, prefix string) bool {
	return strings.HasPrefix(toolName, prefix+"/") || strings.HasPrefix(toolName, prefix+"_")
}
