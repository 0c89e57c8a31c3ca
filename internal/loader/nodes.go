package loader

import (
	"strings"

	"github.com/rendis/playbook2uml/pkg/schema"
	"gopkg.in/yaml.v3"
)

// pair is one key/value entry of a YAML mapping, in document order.
type pair struct {
	key   string
	value *yaml.Node
}

// pairs returns the entries of a mapping node. Aliases are resolved.
func pairs(n *yaml.Node) []pair {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, pair{key: n.Content[i].Value, value: resolve(n.Content[i+1])})
	}
	return out
}

// lookup returns the value of key in a mapping node, or nil.
func lookup(n *yaml.Node, keys ...string) *yaml.Node {
	for _, p := range pairs(n) {
		for _, k := range keys {
			if p.key == k {
				return p.value
			}
		}
	}
	return nil
}

// items returns the elements of a sequence node; null yields none.
func items(n *yaml.Node) []*yaml.Node {
	n = resolve(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]*yaml.Node, 0, len(n.Content))
	for _, c := range n.Content {
		out = append(out, resolve(c))
	}
	return out
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	n = resolve(n)
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// scalar returns the raw text of a scalar node, or "" for anything else.
func scalar(n *yaml.Node) string {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

// text is scalar without the trailing newlines of a block scalar.
func text(n *yaml.Node) string {
	return strings.TrimRight(scalar(n), "\n")
}

// stringList accepts a scalar or a sequence of scalars. Trailing newlines
// are dropped from every element.
func stringList(n *yaml.Node) []string {
	n = resolve(n)
	switch {
	case isNull(n):
		return nil
	case n.Kind == yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range items(n) {
			out = append(out, text(c))
		}
		return out
	default:
		return []string{text(n)}
	}
}

// decode converts a node into plain Go values (map[string]any, []any, scalars).
func decode(n *yaml.Node) (any, error) {
	if isNull(n) {
		return nil, nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "line %d: %s", n.Line, err.Error()).WithCause(err)
	}
	return v, nil
}
