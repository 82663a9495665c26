package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/lonestarx1/gogrid/pkg/mcp"
)

func toolSchemaJSON(t *mcp.Tool) (json.RawMessage, error) {
	raw, err := t.Schema.ToJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("scheduler: marshal schema for tool %q: %w", t.QualifiedName(), err)
	}
	return raw, nil
}

// jsonUnmarshalLenient decodes raw into v, treating empty/absent input as a
// no-op rather than an error; a model's tool call arguments are sometimes
// omitted entirely when a tool takes no parameters.
func jsonUnmarshalLenient(raw json.RawMessage, v *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// contentToString renders a tool result's normalized content for the
// tool-result message appended back to the conversation: strings pass
// through, everything else is JSON-encoded.
func contentToString(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(b)
}
