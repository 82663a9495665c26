package config

import (
	"os"
	"strings"
)

// ResolveEnvRef expands a single environment-variable reference that
// occupies an entire value, in any of three forms: "env:KEY", "$KEY", or
// "${KEY}". Unlike Substitute (which edits `${VAR}` occurrences embedded in
// a larger document), ResolveEnvRef is for values — like an MCP transport's
// HTTP header values — that are either wholly a reference or wholly a
// literal. A value that doesn't match any of the three forms is returned
// unchanged. A value that does match but names an unset variable resolves
// to the empty string: unresolved references are cleared, never sent
// literally.
func ResolveEnvRef(value string) string {
	if key, ok := strings.CutPrefix(value, "env:"); ok {
		return os.Getenv(key)
	}
	if key, ok := strings.CutPrefix(value, "${"); ok {
		if rest, ok := strings.CutSuffix(key, "}"); ok {
			return os.Getenv(rest)
		}
	}
	if key, ok := strings.CutPrefix(value, "$"); ok {
		return os.Getenv(key)
	}
	return value
}
