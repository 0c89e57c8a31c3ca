package diagram

import (
	"github.com/rendis/playbook2uml/pkg/schema"
)

// EdgeKind tells renderers which rule produced a transition.
type EdgeKind string

const (
	EdgeKindFlow  EdgeKind = "flow"  // exit point to the successor's entry point
	EdgeKindGuard EdgeKind = "guard" // when choice-point to the guarded step
	EdgeKindSkip  EdgeKind = "skip"  // when choice-point to the successor
	EdgeKindLoop  EdgeKind = "loop"  // task back to its own entry point
	EdgeKindUntil EdgeKind = "until" // task to its until choice-point
	EdgeKindRetry EdgeKind = "retry" // until choice-point back to the entry point
)

// Edge is a directed transition between two state identifiers.
type Edge struct {
	From  string
	To    string
	Kind  EdgeKind
	Label string

	// Conditions holds the guard list on guard edges.
	Conditions []string
	// Loop describes the iteration on loop edges.
	Loop *LoopLabel
}

// LoopLabel is the display form of a task's iteration clause.
type LoopLabel struct {
	// Name is "loop" or "loop(with_<x>)".
	Name string
	// Items are the iteration items. A scalar loop (typically a template
	// expression) has a single item and List == false.
	Items []string
	List  bool
}

// Relate derives the transitions of a sibling sequence followed by next.
// Each consecutive pair of seq ++ [next] contributes, in order: the guard
// branch, the fallthrough, the skip branch, the loop self-edge and the retry
// edges. An empty seq is an invariant violation.
func Relate(seq []*Node, next *Node) ([]Edge, error) {
	if len(seq) == 0 {
		return nil, schema.NewError(schema.ErrCodeInvariant, "diagram: cannot relate an empty step sequence")
	}
	if next == nil {
		return nil, schema.NewError(schema.ErrCodeInvariant, "diagram: missing successor")
	}

	var edges []Edge
	for i, current := range seq {
		successor := next
		if i+1 < len(seq) {
			successor = seq[i+1]
		}
		pair, err := relatePair(current, successor)
		if err != nil {
			return nil, err
		}
		edges = append(edges, pair...)
	}
	return edges, nil
}

// Transitions derives every transition of the workflow, framed by the
// start/end marker.
func Transitions(wf *Workflow) ([]Edge, error) {
	start := StartNode()
	seq := make([]*Node, 0, len(wf.Plays)+1)
	seq = append(seq, start)
	seq = append(seq, wf.Plays...)
	return Relate(seq, start)
}

func relatePair(current, next *Node) ([]Edge, error) {
	nextEntry, err := next.EntryPoint()
	if err != nil {
		return nil, err
	}

	switch current.Kind {
	case NodeKindStart:
		return []Edge{{From: StartEnd, To: nextEntry, Kind: EdgeKindFlow}}, nil
	case NodeKindTask:
		return relateTask(current, nextEntry)
	case NodeKindBlock:
		return relateBlock(current, next, nextEntry)
	case NodeKindPlay:
		return Relate(current.Children, next)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvariant, "diagram: unknown node kind %q", current.Kind)
	}
}

func relateTask(n *Node, nextEntry string) ([]Edge, error) {
	entry, err := n.EntryPoint()
	if err != nil {
		return nil, err
	}
	exit, err := n.ExitPoint()
	if err != nil {
		return nil, err
	}

	edges := make([]Edge, 0, 6)
	if n.HasGuard() {
		edges = append(edges, Edge{From: n.GuardPoint(), To: n.ID, Kind: EdgeKindGuard, Conditions: n.Guard})
	}
	edges = append(edges, Edge{From: exit, To: nextEntry, Kind: EdgeKindFlow})
	if n.HasGuard() {
		edges = append(edges, Edge{From: n.GuardPoint(), To: nextEntry, Kind: EdgeKindSkip, Label: "skip"})
	}
	if n.Task.HasLoop() {
		edges = append(edges, Edge{From: n.ID, To: entry, Kind: EdgeKindLoop, Loop: loopLabel(n.Task)})
	}
	if n.HasRetry() {
		edges = append(edges,
			Edge{From: n.ID, To: n.UntilPoint(), Kind: EdgeKindUntil},
			Edge{From: n.UntilPoint(), To: entry, Kind: EdgeKindRetry, Label: "retry"},
		)
	}
	return edges, nil
}

func relateBlock(n, next *Node, nextEntry string) ([]Edge, error) {
	if len(n.Children) == 0 {
		return nil, errEmpty(n)
	}

	var edges []Edge
	if n.HasGuard() {
		bodyEntry, err := n.Children[0].EntryPoint()
		if err != nil {
			return nil, err
		}
		edges = append(edges, Edge{From: n.GuardPoint(), To: bodyEntry, Kind: EdgeKindGuard, Conditions: n.Guard})
	}

	chain := make([]*Node, 0, len(n.Children)+len(n.Always))
	chain = append(chain, n.Children...)
	chain = append(chain, n.Always...)
	inner, err := Relate(chain, next)
	if err != nil {
		return nil, err
	}
	edges = append(edges, inner...)

	if n.HasGuard() {
		edges = append(edges, Edge{From: n.GuardPoint(), To: nextEntry, Kind: EdgeKindSkip, Label: "skip"})
	}

	if len(n.Rescue) > 0 {
		rescueNext := next
		if len(n.Always) > 0 {
			rescueNext = n.Always[0]
		}
		rescue, err := Relate(n.Rescue, rescueNext)
		if err != nil {
			return nil, err
		}
		edges = append(edges, rescue...)
	}
	return edges, nil
}

func loopLabel(t *schema.Task) *LoopLabel {
	label := &LoopLabel{Name: "loop"}
	if t.LoopWith != "" {
		label.Name = "loop(with_" + t.LoopWith + ")"
	}
	if items, ok := t.Loop.([]any); ok {
		label.List = true
		for _, item := range items {
			label.Items = append(label.Items, formatValue(item))
		}
		return label
	}
	label.Items = []string{formatValue(t.Loop)}
	return label
}
