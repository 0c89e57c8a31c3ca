package diagram

import (
	"github.com/rendis/playbook2uml/pkg/schema"
)

// NodeKind classifies a diagram node.
type NodeKind string

const (
	NodeKindTask  NodeKind = "task"
	NodeKindBlock NodeKind = "block"
	NodeKindPlay  NodeKind = "play"
	NodeKindStart NodeKind = "start"
)

// StartEnd is the universal start/end pseudo-state of a state diagram.
const StartEnd = "[*]"

// Workflow is the state graph of a whole playbook.
type Workflow struct {
	Plays []*Node
}

// Node is one state of the graph. Kind selects which of the source pointers and
// child lists are populated:
//   - task:  Task
//   - block: Block, Children (body), Always, Rescue
//   - play:  Play, Children (all groups concatenated)
//   - start: nothing
type Node struct {
	ID    string
	Kind  NodeKind
	Guard []string

	Task  *schema.Task
	Block *schema.Block
	Play  *schema.Play

	Children []*Node
	Always   []*Node
	Rescue   []*Node
}

// StartNode returns the start/end marker framing a diagram.
func StartNode() *Node {
	return &Node{ID: StartEnd, Kind: NodeKindStart}
}

// HasGuard reports whether the node is preceded by a `when` choice-point.
func (n *Node) HasGuard() bool {
	return len(n.Guard) > 0
}

// HasRetry reports whether the node is followed by an `until` choice-point.
func (n *Node) HasRetry() bool {
	return n.Kind == NodeKindTask && n.Task.HasRetry()
}

// GuardPoint is the identifier of the node's `when` choice-point.
func (n *Node) GuardPoint() string {
	return n.ID + "_when"
}

// UntilPoint is the identifier of the node's `until` choice-point.
func (n *Node) UntilPoint() string {
	return n.ID + "_until"
}

// Explicit reports whether a block is drawn as its own container.
func (n *Node) Explicit() bool {
	return n.Kind == NodeKindBlock && n.Block.IsExplicit()
}

// Label returns the human-readable name of the node.
func (n *Node) Label() string {
	switch n.Kind {
	case NodeKindTask:
		return n.Task.DisplayName()
	case NodeKindBlock:
		return n.Block.Name
	case NodeKindPlay:
		return n.Play.DisplayName()
	default:
		return ""
	}
}

// EntryPoint is the identifier an incoming transition must target.
func (n *Node) EntryPoint() (string, error) {
	switch n.Kind {
	case NodeKindStart:
		return StartEnd, nil
	case NodeKindTask:
		if n.HasGuard() {
			return n.GuardPoint(), nil
		}
		return n.ID, nil
	case NodeKindBlock:
		if n.HasGuard() {
			return n.GuardPoint(), nil
		}
		if len(n.Children) == 0 {
			return "", errEmpty(n)
		}
		return n.Children[0].EntryPoint()
	case NodeKindPlay:
		if len(n.Children) == 0 {
			return "", errEmpty(n)
		}
		return n.Children[0].EntryPoint()
	default:
		return "", schema.NewErrorf(schema.ErrCodeInvariant, "unknown node kind %q", n.Kind)
	}
}

// ExitPoint is the identifier an outgoing transition must originate from.
func (n *Node) ExitPoint() (string, error) {
	switch n.Kind {
	case NodeKindStart:
		return StartEnd, nil
	case NodeKindTask:
		if n.HasRetry() {
			return n.UntilPoint(), nil
		}
		return n.ID, nil
	case NodeKindBlock:
		if len(n.Always) > 0 {
			return n.Always[len(n.Always)-1].ExitPoint()
		}
		if len(n.Children) == 0 {
			return "", errEmpty(n)
		}
		return n.Children[len(n.Children)-1].ExitPoint()
	case NodeKindPlay:
		if len(n.Children) == 0 {
			return "", errEmpty(n)
		}
		return n.Children[len(n.Children)-1].ExitPoint()
	default:
		return "", schema.NewErrorf(schema.ErrCodeInvariant, "unknown node kind %q", n.Kind)
	}
}

func errEmpty(n *Node) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeInvariant, "%s %s has no steps", n.Kind, n.ID).WithPath(n.ID)
}
