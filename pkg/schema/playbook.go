package schema

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Playbook is the loaded, already-resolved object tree the diagram core consumes.
type Playbook struct {
	Path  string
	Plays []*Play
}

// Play is one play of a playbook.
type Play struct {
	Name        string
	Hosts       []string
	GatherFacts *bool // nil when not set explicitly
	Strategy    string
	Serial      any // nil when not set explicitly
	VarsFiles   []string
	VarsPrompt  []VarsPrompt

	PreTasks  []Step
	Roles     []*Role
	Tasks     []Step
	PostTasks []Step
}

// VarsPrompt is one interactive prompt of a play.
type VarsPrompt struct {
	Name    string
	Prompt  string
	Private bool
}

// Role is a role listed under a play's `roles:` keyword.
type Role struct {
	Name string
	// FromInclude marks roles pulled in dynamically; they are not part of the
	// play's static role group.
	FromInclude bool
	Tasks       []Step
}

// DisplayName returns the play name, falling back to its host pattern.
func (p *Play) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.Join(p.Hosts, ",")
}

// Groups returns the play's step groups in execution order:
// pre_tasks, role tasks, tasks, post_tasks.
func (p *Play) Groups() [][]Step {
	groups := make([][]Step, 0, len(p.Roles)+3)
	groups = append(groups, p.PreTasks)
	for _, role := range p.Roles {
		if role.FromInclude {
			continue
		}
		groups = append(groups, role.Tasks)
	}
	groups = append(groups, p.Tasks, p.PostTasks)
	return groups
}

// Step is an entry of a task list: either a *Task or a *Block.
type Step interface {
	step()
}

// Task is a single workflow step.
type Task struct {
	Name   string
	Action string
	Args   *orderedmap.OrderedMap[string, any]

	When []string

	Loop     any    // nil when the task does not iterate
	LoopWith string // "items" for with_items, empty for loop:

	Until   string
	Retries int
	Delay   int

	Become     *bool
	BecomeUser string
	Register   string
	DelegateTo string

	// Role is the name of the role the task was loaded from, if any.
	Role string
	// Implicit marks steps injected by the loader rather than written by the user.
	Implicit bool
}

func (*Task) step() {}

// DisplayName returns the task name (or its action), prefixed with the role name.
func (t *Task) DisplayName() string {
	name := t.Name
	if name == "" {
		name = t.Action
	}
	if t.Role != "" {
		return t.Role + " : " + name
	}
	return name
}

// HasLoop reports whether the task carries an iteration clause.
func (t *Task) HasLoop() bool { return t.Loop != nil }

// HasRetry reports whether the task carries a retry policy.
func (t *Task) HasRetry() bool { return t.Until != "" }

// HasAnnotations reports whether any of become, register or delegate_to is set.
func (t *Task) HasAnnotations() bool {
	return t.Become != nil || t.Register != "" || t.DelegateTo != ""
}

// Block groups steps with optional rescue and always sections.
type Block struct {
	Name   string
	When   []string
	Block  []Step
	Rescue []Step
	Always []Step
}

func (*Block) step() {}

// IsExplicit reports whether the block is drawn as its own container.
func (b *Block) IsExplicit() bool {
	return b.Name != "" || len(b.Always) > 0 || len(b.Rescue) > 0
}
