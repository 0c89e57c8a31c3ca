package diagram

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

const (
	imageStart = "__start"
	imageEnd   = "__end"
)

// RenderImage renders the workflow as a PNG image using graphviz.
// Plays and explicit blocks become clusters, choice-points become diamonds and
// the start/end marker is split into two circles. Edges are exactly those of
// Transitions, so the image has the same topology as the text diagrams.
func RenderImage(wf *Workflow, opts Options) ([]byte, error) {
	edges, err := Transitions(wf)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	if opts.LeftToRight {
		graph.SetRankDir(cgraph.LRRank)
	} else {
		graph.SetRankDir(cgraph.TBRank)
	}
	if opts.Title != "" {
		graph.SetLabel(opts.Title)
	}

	ib := &imageBuilder{nodes: make(map[string]*cgraph.Node)}
	for _, id := range []string{imageStart, imageEnd} {
		n, nErr := ib.node(graph, id, "")
		if nErr != nil {
			return nil, nErr
		}
		n.SetShape(cgraph.CircleShape)
		n.SetWidth(0.3)
		n.SetHeight(0.3)
		n.SetStyle(cgraph.FilledNodeStyle)
		n.SetFillColor("black")
	}

	for _, play := range wf.Plays {
		parent := graph
		if !opts.RoleOnly {
			sub, sErr := graph.CreateSubGraphByName("cluster_" + play.ID)
			if sErr != nil {
				return nil, fmt.Errorf("diagram: create cluster %s: %w", play.ID, sErr)
			}
			sub.SetLabel("Play: " + play.Label())
			parent = sub
		}
		for _, child := range play.Children {
			if err := ib.define(parent, child); err != nil {
				return nil, err
			}
		}
	}

	for _, edge := range edges {
		from, fErr := ib.endpoint(graph, edge.From, imageStart)
		if fErr != nil {
			return nil, fErr
		}
		to, tErr := ib.endpoint(graph, edge.To, imageEnd)
		if tErr != nil {
			return nil, tErr
		}
		e, eErr := graph.CreateEdgeByName("", from, to)
		if eErr != nil {
			return nil, fmt.Errorf("diagram: create edge %s -> %s: %w", edge.From, edge.To, eErr)
		}
		if label := imageEdgeLabel(edge); label != "" {
			e.SetLabel(label)
		}
		if edge.Kind == EdgeKindSkip || edge.Kind == EdgeKindRetry {
			e.SetStyle(cgraph.DashedEdgeStyle)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}

	return buf.Bytes(), nil
}

type imageBuilder struct {
	nodes map[string]*cgraph.Node
}

func (ib *imageBuilder) node(g *cgraph.Graph, id, label string) (*cgraph.Node, error) {
	n, err := g.CreateNodeByName(id)
	if err != nil {
		return nil, fmt.Errorf("diagram: create node %s: %w", id, err)
	}
	if label != "" {
		n.SetLabel(label)
	}
	ib.nodes[id] = n
	return n, nil
}

// endpoint resolves an edge end, mapping the start/end marker to its own
// circle depending on the side it appears on.
func (ib *imageBuilder) endpoint(g *cgraph.Graph, id, marker string) (*cgraph.Node, error) {
	if id == StartEnd {
		id = marker
	}
	if n, ok := ib.nodes[id]; ok {
		return n, nil
	}
	return ib.node(g, id, "")
}

func (ib *imageBuilder) define(g *cgraph.Graph, n *Node) error {
	if n.HasGuard() {
		if err := ib.choice(g, n.GuardPoint(), "when"); err != nil {
			return err
		}
	}

	switch n.Kind {
	case NodeKindTask:
		gvNode, err := ib.node(g, n.ID, firstLine(n.Label())+"\n"+n.Task.Action)
		if err != nil {
			return err
		}
		gvNode.SetShape(cgraph.BoxShape)
		gvNode.SetStyle(cgraph.RoundedNodeStyle)
		if n.HasRetry() {
			return ib.choice(g, n.UntilPoint(), "until")
		}
	case NodeKindBlock:
		parent := g
		if n.Explicit() {
			sub, err := g.CreateSubGraphByName("cluster_" + n.ID)
			if err != nil {
				return fmt.Errorf("diagram: create cluster %s: %w", n.ID, err)
			}
			sub.SetLabel("Block: " + n.Block.Name)
			sub.SetStyle(cgraph.DashedGraphStyle)
			parent = sub
		}
		for _, child := range n.Children {
			if err := ib.define(parent, child); err != nil {
				return err
			}
		}
		for _, section := range []struct {
			name  string
			nodes []*Node
		}{{"Always", n.Always}, {"Rescue", n.Rescue}} {
			if len(section.nodes) == 0 {
				continue
			}
			sub, err := parent.CreateSubGraphByName("cluster_" + n.ID + "_" + strings.ToLower(section.name))
			if err != nil {
				return fmt.Errorf("diagram: create cluster %s %s: %w", n.ID, section.name, err)
			}
			sub.SetLabel(section.name)
			for _, child := range section.nodes {
				if err := ib.define(sub, child); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (ib *imageBuilder) choice(g *cgraph.Graph, id, label string) error {
	n, err := ib.node(g, id, label)
	if err != nil {
		return err
	}
	n.SetShape(cgraph.DiamondShape)
	return nil
}

func imageEdgeLabel(edge Edge) string {
	switch {
	case edge.Kind == EdgeKindGuard:
		return strings.Join(edge.Conditions, " and ")
	case edge.Loop != nil:
		return edge.Loop.Name + "\n" + strings.Join(edge.Loop.Items, "\n")
	default:
		return edge.Label
	}
}

// firstLine returns the first line of s.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
