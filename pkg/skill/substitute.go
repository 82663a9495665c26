package skill

import (
	"fmt"
	"strconv"
	"strings"
)

// Substitute replaces `{name}` placeholders in template with the string
// form of vars[name]. Unknown names are left verbatim so a typo surfaces in
// the rendered text instead of silently vanishing. String slices render as
// comma-space-joined; booleans and numbers stringify with their default Go
// formatting.
func Substitute(template string, vars map[string]any) string {
	var b strings.Builder
	rest := template
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			b.WriteString(rest)
			break
		}
		name := rest[start+1 : start+end]
		b.WriteString(rest[:start])

		if v, ok := vars[name]; ok {
			b.WriteString(stringify(v))
		} else {
			b.WriteString(rest[start : start+end+1])
		}
		rest = rest[start+end+1:]
	}
	return b.String()
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
