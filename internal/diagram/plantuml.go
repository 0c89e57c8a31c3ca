package diagram

import (
	"iter"
	"strings"
)

// PlantUML renders PlantUML state diagrams.
type PlantUML struct{}

var _ Renderer = PlantUML{}

// Name returns the renderer identifier.
func (PlantUML) Name() string { return string(DiagramTypePlantUML) }

// BaseLevel returns 0: PlantUML declarations start at column 0.
func (PlantUML) BaseLevel() int { return 0 }

// Prologue emits @startuml followed by the optional title, theme and direction.
func (PlantUML) Prologue(opts Options) iter.Seq[string] {
	ls := []string{"@startuml"}
	if opts.Title != "" {
		ls = append(ls, "title "+opts.Title)
	}
	if opts.Theme != "" {
		ls = append(ls, "!theme "+opts.Theme)
	}
	if opts.LeftToRight {
		ls = append(ls, "left to right direction")
	}
	return lines(ls...)
}

// Epilogue emits @enduml.
func (PlantUML) Epilogue() iter.Seq[string] {
	return lines("@enduml")
}

// Definition emits the state declarations of node.
func (p PlantUML) Definition(node *Node, level int) iter.Seq[string] {
	return func(yield func(string) bool) {
		p.define(&emitter{yield: yield}, node, level)
	}
}

func (p PlantUML) define(e *emitter, n *Node, level int) {
	switch n.Kind {
	case NodeKindPlay:
		p.definePlay(e, n, level)
	case NodeKindBlock:
		p.defineBlock(e, n, level)
	case NodeKindTask:
		p.defineTask(e, n, level)
	}
}

func (p PlantUML) definePlay(e *emitter, n *Node, level int) {
	play := n.Play
	e.line(level, `state "= Play: %s" as %s {`, quoteSafe(play.DisplayName()), n.ID)
	inner := level + 1

	// Attributes appear in name order and only when set explicitly.
	if play.GatherFacts != nil {
		e.line(inner, "%s : | gather_facts | %s |", n.ID, formatValue(*play.GatherFacts))
	}
	if len(play.Hosts) > 0 {
		e.line(inner, "%s : | hosts | %s |", n.ID, strings.Join(play.Hosts, ","))
	}
	if play.Serial != nil {
		e.line(inner, "%s : | serial | %s |", n.ID, formatValue(play.Serial))
	}
	if play.Strategy != "" {
		e.line(inner, "%s : | strategy | %s |", n.ID, play.Strategy)
	}
	key := "vars_files"
	for _, file := range play.VarsFiles {
		e.line(inner, "%s : | %s | %s |", n.ID, key, file)
		key = ""
	}
	key = "vars_prompt"
	for _, prompt := range play.VarsPrompt {
		e.line(inner, "%s : | %s | %s |", n.ID, key, prompt.Name)
		key = ""
	}

	for _, child := range n.Children {
		p.define(e, child, inner)
	}
	e.line(level, "}")
}

func (p PlantUML) defineBlock(e *emitter, n *Node, level int) {
	if n.HasGuard() {
		p.defineGuard(e, n, level)
	}
	if !n.Explicit() {
		for _, child := range n.Children {
			p.define(e, child, level)
		}
		return
	}

	e.line(level, `state "Block: %s" as %s {`, quoteSafe(n.Block.Name), n.ID)
	for _, child := range n.Children {
		p.define(e, child, level+1)
	}
	p.defineSection(e, n.ID+"_always", "Always", n.Always, level+1)
	p.defineSection(e, n.ID+"_rescue", "Rescue", n.Rescue, level+1)
	e.line(level, "}")
}

func (p PlantUML) defineSection(e *emitter, id, label string, nodes []*Node, level int) {
	if len(nodes) == 0 {
		return
	}
	e.line(level, `state "%s" as %s {`, label, id)
	for _, child := range nodes {
		p.define(e, child, level+1)
	}
	e.line(level, "}")
}

func (p PlantUML) defineTask(e *emitter, n *Node, level int) {
	task := n.Task
	if n.HasGuard() {
		p.defineGuard(e, n, level)
	}

	e.line(level, `state "== %s" as %s`, quoteSafe(task.DisplayName()), n.ID)
	e.line(level, "%s : Action **%s**", n.ID, task.Action)
	if task.Args != nil {
		for pair := task.Args.Oldest(); pair != nil; pair = pair.Next() {
			e.line(level, "%s : | %s | %s |", n.ID, pair.Key, abbreviate(formatValue(pair.Value)))
		}
	}

	if task.HasAnnotations() {
		e.line(level, "%s : ....", n.ID)
		if task.Become != nil && *task.Become {
			if task.BecomeUser != "" {
				e.line(level, "%s : **become** yes (to %s)", n.ID, task.BecomeUser)
			} else {
				e.line(level, "%s : **become** yes", n.ID)
			}
		}
		if task.Register != "" {
			e.line(level, "%s : **register** //%s//", n.ID, task.Register)
		}
		if task.DelegateTo != "" {
			e.line(level, "%s : **delegate_to** %s", n.ID, task.DelegateTo)
		}
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

func (PlantUML) defineGuard(e *emitter, n *Node, level int) {
	when := n.GuardPoint()
	e.line(level, "state %s <<choice>>", when)
	e.line(level, "note right of %s", when)
	e.line(level+1, "=== when")
	e.line(level+1, "----")
	for _, cond := range n.Guard {
		e.line(level+1, " - %s", cond)
	}
	e.line(level, "end note")
}

// Transition emits a PlantUML transition. Loop edges carry their items in a
// note attached to the link.
func (PlantUML) Transition(edge Edge, level int) iter.Seq[string] {
	return func(yield func(string) bool) {
		e := &emitter{yield: yield}
		if edge.Label != "" {
			e.line(level, "%s --> %s : %s", edge.From, edge.To, edge.Label)
		} else {
			e.line(level, "%s --> %s", edge.From, edge.To)
		}
		if edge.Loop == nil {
			return
		}
		e.line(level, "note on link")
		e.line(level+1, "=== %s", edge.Loop.Name)
		e.line(level+1, "----")
		for _, item := range edge.Loop.Items {
			e.line(level+1, "- %s", item)
		}
		e.line(level, "end note")
	}
}
