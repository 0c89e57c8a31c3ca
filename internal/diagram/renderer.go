package diagram

import (
	"iter"
	"slices"
	"strings"

	"github.com/rendis/playbook2uml/pkg/schema"
)

// DiagramType selects the output notation.
type DiagramType string

const (
	DiagramTypePlantUML DiagramType = "plantuml"
	DiagramTypeMermaid  DiagramType = "mermaid"
)

// DiagramTypes lists the supported notations.
func DiagramTypes() []DiagramType {
	return []DiagramType{DiagramTypePlantUML, DiagramTypeMermaid}
}

// Options controls the framing of a generated diagram.
type Options struct {
	Title       string
	Theme       string // PlantUML only
	LeftToRight bool
	// RoleOnly suppresses the play containers so that only the steps of the
	// (synthetic) play are drawn.
	RoleOnly bool
}

// Renderer turns the state graph into notation-specific text.
// Implementations differ only in syntax: the transitions themselves come from
// Relate, so every notation draws the same topology.
type Renderer interface {
	Name() string
	// BaseLevel is the indentation level of top-level declarations.
	BaseLevel() int
	Prologue(opts Options) iter.Seq[string]
	// Definition emits the state declarations of node and its descendants.
	Definition(node *Node, level int) iter.Seq[string]
	// Transition emits the lines of a single edge.
	Transition(edge Edge, level int) iter.Seq[string]
	Epilogue() iter.Seq[string]
}

// NewRenderer returns the renderer for t.
func NewRenderer(t DiagramType) (Renderer, error) {
	switch DiagramType(strings.ToLower(string(t))) {
	case DiagramTypePlantUML:
		return PlantUML{}, nil
	case DiagramTypeMermaid:
		return Mermaid{}, nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "invalid diagram type %q", t).
			WithDetails(map[string]any{"supported": DiagramTypes()})
	}
}

// Relations emits the transitions of node followed by next.
func Relations(r Renderer, node, next *Node, level int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		edges, err := Relate([]*Node{node}, next)
		if err != nil {
			yield("", err)
			return
		}
		for _, edge := range edges {
			for line := range r.Transition(edge, level) {
				if !yield(line, nil) {
					return
				}
			}
		}
	}
}

// lines is a small helper for fixed line lists.
func lines(ls ...string) iter.Seq[string] {
	return slices.Values(ls)
}
