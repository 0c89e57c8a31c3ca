package diagram

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

const indent = "    "

// formatValue renders a source value for a table row or a note.
// Collections are rendered as compact JSON, scalars through cast.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any, map[string]any:
		data, err := json.Marshal(val)
		if err == nil {
			return string(data)
		}
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

// abbreviate keeps the first line of a multi-line value. Trailing newlines,
// as left by YAML block scalars, do not count as lines.
func abbreviate(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) == 1 {
		return lines[0]
	}
	return fmt.Sprintf("%s ...(+%d lines)", lines[0], len(lines)-1)
}

// quoteSafe makes a label usable inside a double-quoted state name.
func quoteSafe(s string) string {
	return strings.ReplaceAll(s, `"`, `'`)
}

// emitter adapts a yield function so nested definition code can write lines
// without checking for early termination after every call.
type emitter struct {
	yield   func(string) bool
	stopped bool
}

func (e *emitter) line(level int, format string, args ...any) {
	if e.stopped {
		return
	}
	if !e.yield(strings.Repeat(indent, level) + fmt.Sprintf(format, args...)) {
		e.stopped = true
	}
}
