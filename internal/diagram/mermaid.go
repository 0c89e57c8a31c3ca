package diagram

import (
	"iter"
	"strings"
)

// Mermaid renders Mermaid stateDiagram-v2 diagrams.
type Mermaid struct{}

var _ Renderer = Mermaid{}

// Name returns the renderer identifier.
func (Mermaid) Name() string { return string(DiagramTypeMermaid) }

// BaseLevel returns 1: everything is nested under the stateDiagram-v2 header.
func (Mermaid) BaseLevel() int { return 1 }

// Prologue emits the optional title front matter, the diagram header and the
// direction. Mermaid has no theme directive for state diagrams, so
// Options.Theme is ignored.
func (Mermaid) Prologue(opts Options) iter.Seq[string] {
	var ls []string
	if opts.Title != "" {
		ls = append(ls, "---", "title: "+opts.Title, "---")
	}
	ls = append(ls, "stateDiagram-v2")
	if opts.LeftToRight {
		ls = append(ls, indent+"direction LR")
	}
	return lines(ls...)
}

// Epilogue is empty: Mermaid diagrams have no closing token.
func (Mermaid) Epilogue() iter.Seq[string] {
	return lines()
}

// Definition emits the state declarations of node.
func (m Mermaid) Definition(node *Node, level int) iter.Seq[string] {
	return func(yield func(string) bool) {
		m.define(&emitter{yield: yield}, node, level)
	}
}

func (m Mermaid) define(e *emitter, n *Node, level int) {
	switch n.Kind {
	case NodeKindPlay:
		e.line(level, `state "Play: %s" as %s {`, mermaidLabel(n.Play.DisplayName()), n.ID)
		for _, child := range n.Children {
			m.define(e, child, level+1)
		}
		e.line(level, "}")
	case NodeKindBlock:
		m.defineBlock(e, n, level)
	case NodeKindTask:
		m.defineTask(e, n, level)
	}
}

func (m Mermaid) defineBlock(e *emitter, n *Node, level int) {
	if n.HasGuard() {
		m.defineGuard(e, n, level)
	}
	if !n.Explicit() {
		for _, child := range n.Children {
			m.define(e, child, level)
		}
		return
	}

	name := n.Block.Name
	if name == "" {
		name = "Block"
	}
	e.line(level, "%s : %s", n.ID, mermaidLabel(name))
	e.line(level, "state %s {", n.ID)
	for _, child := range n.Children {
		m.define(e, child, level+1)
	}
	m.defineSection(e, n.ID+"_always", "Always", n.Always, level+1)
	m.defineSection(e, n.ID+"_rescue", "Rescue", n.Rescue, level+1)
	e.line(level, "}")
}

func (m Mermaid) defineSection(e *emitter, id, label string, nodes []*Node, level int) {
	if len(nodes) == 0 {
		return
	}
	e.line(level, "%s : %s", id, label)
	e.line(level, "state %s {", id)
	for _, child := range nodes {
		m.define(e, child, level+1)
	}
	e.line(level, "}")
}

func (m Mermaid) defineTask(e *emitter, n *Node, level int) {
	task := n.Task
	if n.HasGuard() {
		m.defineGuard(e, n, level)
	}

	e.line(level, `state "%s<hr>action: %s" as %s`, mermaidLabel(task.DisplayName()), task.Action, n.ID)

	if task.HasAnnotations() {
		e.line(level, "note right of %s", n.ID)
		if task.Become != nil && *task.Become {
			if task.BecomeUser != "" {
				e.line(level+1, "become: yes (to %s)", task.BecomeUser)
			} else {
				e.line(level+1, "become: yes")
			}
		}
		if task.Register != "" {
			e.line(level+1, "register: %s", task.Register)
		}
		if task.DelegateTo != "" {
			e.line(level+1, "delegate_to: %s", task.DelegateTo)
		}
		e.line(level, "end note")
	}

	if n.HasRetry() {
		until := n.UntilPoint()
		e.line(level, "state %s <<choice>>", until)
		e.line(level, "note right of %s", until)
		e.line(level+1, "**until**: %s", task.Until)
		e.line(level+1, "**retries**: %d", task.Retries)
		e.line(level+1, "**delay**: %d (seconds)", task.Delay)
		e.line(level, "end note")
	}
}

func (Mermaid) defineGuard(e *emitter, n *Node, level int) {
	when := n.GuardPoint()
	e.line(level, "state %s <<choice>>", when)
	e.line(level, "note right of %s", when)
	e.line(level+1, "when")
	for _, cond := range n.Guard {
		e.line(level+1, " - %s", cond)
	}
	e.line(level, "end note")
}

// Transition emits a Mermaid transition. Loop items are folded into the
// label, one per line.
func (Mermaid) Transition(edge Edge, level int) iter.Seq[string] {
	label := edge.Label
	if edge.Loop != nil {
		parts := []string{edge.Loop.Name}
		for _, item := range edge.Loop.Items {
			if edge.Loop.List {
				item = " - " + item
			}
			parts = append(parts, item)
		}
		label = strings.Join(parts, `\n`)
	}
	prefix := strings.Repeat(indent, level)
	if label != "" {
		return lines(prefix + edge.From + " --> " + edge.To + " : " + label)
	}
	return lines(prefix + edge.From + " --> " + edge.To)
}

// mermaidLabel makes a label safe inside a quoted state description.
func mermaidLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
