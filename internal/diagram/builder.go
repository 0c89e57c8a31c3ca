package diagram

import (
	"log/slog"

	"github.com/rendis/playbook2uml/pkg/schema"
)

// Build constructs the state graph of a playbook. Identifiers are taken from
// alloc in construction order (parents before their children), so alloc should
// be fresh for every run.
//
// Blocks that are neither explicit nor guarded are flattened into their parent
// sequence, and implicit tasks are dropped. A guarded block left with nothing
// to draw is dropped too. Nothing else is validated: a group
// that ends up empty yields an empty child list.
func Build(pb *schema.Playbook, alloc *Allocator, logger *slog.Logger) (*Workflow, error) {
	if pb == nil {
		return nil, schema.NewError(schema.ErrCodeInvariant, "diagram: playbook is nil")
	}
	if alloc == nil {
		alloc = NewAllocator()
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &builder{alloc: alloc, logger: logger.With(slog.String("component", "builder"))}
	wf := &Workflow{Plays: make([]*Node, 0, len(pb.Plays))}
	for _, play := range pb.Plays {
		wf.Plays = append(wf.Plays, b.play(play))
	}
	return wf, nil
}

type builder struct {
	alloc  *Allocator
	logger *slog.Logger
}

func (b *builder) play(p *schema.Play) *Node {
	n := &Node{ID: b.alloc.NextName(IDKindPlay), Kind: NodeKindPlay, Play: p}
	for _, group := range p.Groups() {
		n.Children = append(n.Children, b.steps(group)...)
	}
	b.logger.Debug("built play",
		slog.String("id", n.ID),
		slog.String("name", p.DisplayName()),
		slog.Int("steps", len(n.Children)))
	return n
}

// steps builds one step sequence, splicing transparent blocks into it.
func (b *builder) steps(steps []schema.Step) []*Node {
	nodes := make([]*Node, 0, len(steps))
	for _, step := range steps {
		switch s := step.(type) {
		case *schema.Task:
			if s.Implicit {
				b.logger.Debug("skip implicit task", slog.String("name", s.DisplayName()))
				continue
			}
			nodes = append(nodes, b.task(s))
		case *schema.Block:
			if !s.IsExplicit() && (len(s.When) == 0 || !hasVisible(s.Block)) {
				nodes = append(nodes, b.steps(s.Block)...)
				continue
			}
			nodes = append(nodes, b.block(s))
		}
	}
	return nodes
}

// hasVisible reports whether steps produce at least one node.
func hasVisible(steps []schema.Step) bool {
	for _, step := range steps {
		switch s := step.(type) {
		case *schema.Task:
			if !s.Implicit {
				return true
			}
		case *schema.Block:
			if s.IsExplicit() || hasVisible(s.Block) {
				return true
			}
		}
	}
	return false
}

func (b *builder) task(t *schema.Task) *Node {
	return &Node{
		ID:    b.alloc.NextName(IDKindTask),
		Kind:  NodeKindTask,
		Guard: t.When,
		Task:  t,
	}
}

func (b *builder) block(blk *schema.Block) *Node {
	n := &Node{
		ID:    b.alloc.NextName(IDKindBlock),
		Kind:  NodeKindBlock,
		Guard: blk.When,
		Block: blk,
	}
	n.Children = b.steps(blk.Block)
	n.Always = b.steps(blk.Always)
	n.Rescue = b.steps(blk.Rescue)
	b.logger.Debug("built block",
		slog.String("id", n.ID),
		slog.Bool("explicit", blk.IsExplicit()),
		slog.Int("body", len(n.Children)),
		slog.Int("rescue", len(n.Rescue)),
		slog.Int("always", len(n.Always)))
	return n
}
