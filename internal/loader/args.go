package loader

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RawParams is the argument key holding free-form module input.
const RawParams = "_raw_params"

// freeFormModules take their whole scalar argument as free-form input; only
// the options in rawOptions are split off as key=value pairs.
var freeFormModules = map[string]bool{
	"command":     true,
	"shell":       true,
	"raw":         true,
	"script":      true,
	"win_command": true,
	"win_shell":   true,
	"meta":        true,
}

var rawOptions = map[string]bool{
	"chdir":      true,
	"creates":    true,
	"removes":    true,
	"executable": true,
	"stdin":      true,
	"warn":       true,
}

// shortName strips the builtin collection prefix from a module name.
func shortName(module string) string {
	for _, prefix := range []string{"ansible.builtin.", "ansible.legacy.", "ansible.windows."} {
		if rest, ok := strings.CutPrefix(module, prefix); ok {
			return rest
		}
	}
	return module
}

// parseKV splits "k1=v1 k2='v 2' rest" into ordered arguments. Tokens that are
// not key=value pairs are joined into RawParams, keeping the line breaks of
// multi-line input. For free-form modules only the well-known options are
// treated as pairs.
func parseKV(module, s string) *orderedmap.OrderedMap[string, any] {
	args := orderedmap.New[string, any]()
	freeForm := freeFormModules[shortName(module)]

	var (
		raw       strings.Builder
		lineBreak bool
	)
	for _, tok := range splitArgs(s) {
		lineBreak = lineBreak || tok.newline
		key, value, ok := strings.Cut(tok.text, "=")
		if ok && isIdentifier(key) && (!freeForm || rawOptions[key]) {
			args.Set(key, unquote(value))
			continue
		}
		if raw.Len() > 0 {
			if lineBreak {
				raw.WriteByte('\n')
			} else {
				raw.WriteByte(' ')
			}
		}
		raw.WriteString(tok.text)
		lineBreak = false
	}
	if raw.Len() > 0 {
		args.Set(RawParams, raw.String())
	}
	return args
}

// argToken is one whitespace-separated argument. newline is set when the
// whitespace before it spans a line break.
type argToken struct {
	text    string
	newline bool
}

// splitArgs splits on whitespace outside quotes. Quotes are kept so that
// free-form input is reproduced verbatim.
func splitArgs(s string) []argToken {
	var (
		tokens  []argToken
		cur     strings.Builder
		quote   rune
		newline bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, argToken{text: cur.String(), newline: newline})
			cur.Reset()
			newline = false
		}
	}
	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\r':
			flush()
		case r == '\n':
			flush()
			newline = true
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
