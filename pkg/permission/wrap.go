package permission

import (
	"context"
	"fmt"
)

// Execute is the shape of a tool's execute step, generic over whatever a
// caller's tool type returns (an mcp.Result, a built-in tool's own result
// type, etc.) so Wrap doesn't need to know about any particular tool
// implementation.
type Execute func(ctx context.Context, args map[string]any) (any, error)

// OnPermissionRequired asks the user whether a Confirm-level call may
// proceed. Implementations surface the tool name and arguments however the
// host UI sees fit; a false return denies the call.
type OnPermissionRequired func(toolName string, args map[string]any) bool

// DeniedError is returned by a wrapped Execute when a call is refused,
// either by policy (Deny) or by the user declining a Confirm prompt.
// Callers distinguish it from an ordinary tool-execution error: it is a
// policy outcome, not a tool failure.
type DeniedError struct {
	Tool         string
	UserDeclined bool
}

func (e *DeniedError) Error() string {
	if e.UserDeclined {
		return fmt.Sprintf("permission: user declined tool %q", e.Tool)
	}
	return fmt.Sprintf("permission: tool %q is denied by policy", e.Tool)
}

// Wrap applies level's enforcement around execute. Deny replaces execute
// with an immediate DeniedError; Confirm first calls onPermissionRequired
// and short-circuits with a DeniedError on refusal; Auto returns execute
// unchanged.
func Wrap(toolName string, level Level, execute Execute, onPermissionRequired OnPermissionRequired) Execute {
	switch level {
	case Deny:
		return func(ctx context.Context, args map[string]any) (any, error) {
			return nil, &DeniedError{Tool: toolName}
		}
	case Confirm:
		return func(ctx context.Context, args map[string]any) (any, error) {
			if onPermissionRequired == nil || !onPermissionRequired(toolName, args) {
				return nil, &DeniedError{Tool: toolName, UserDeclined: true}
			}
			return execute(ctx, args)
		}
	default:
		return execute
	}
}
