package loader

import (
	"strings"

	"github.com/rendis/playbook2uml/pkg/schema"
	"gopkg.in/yaml.v3"
)

func (l *Loader) parsePlay(n *yaml.Node, sc scope) (*schema.Play, error) {
	play := &schema.Play{}
	for _, p := range pairs(n) {
		var err error
		switch p.key {
		case "name":
			play.Name = scalar(p.value)
		case "hosts":
			play.Hosts = hostList(p.value)
		case "gather_facts":
			if !isTemplate(p.value) {
				var b bool
				b, err = toBool(p.value)
				play.GatherFacts = &b
			}
		case "strategy":
			play.Strategy = scalar(p.value)
		case "serial":
			play.Serial, err = decode(p.value)
		case "vars_files":
			play.VarsFiles = stringList(p.value)
		case "vars_prompt":
			play.VarsPrompt, err = varsPrompt(p.value)
		case "pre_tasks":
			play.PreTasks, err = l.steps(p.value, sc)
		case "roles":
			play.Roles, err = l.roles(p.value, sc)
		case "tasks":
			play.Tasks, err = l.steps(p.value, sc)
		case "post_tasks":
			play.PostTasks, err = l.steps(p.value, sc)
		}
		if err != nil {
			return nil, err
		}
	}
	return play, nil
}

// hostList accepts a list of patterns or a comma separated string.
func hostList(n *yaml.Node) []string {
	if n.Kind == yaml.SequenceNode {
		return stringList(n)
	}
	var hosts []string
	for _, h := range strings.Split(scalar(n), ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

func varsPrompt(n *yaml.Node) ([]schema.VarsPrompt, error) {
	var out []schema.VarsPrompt
	for _, item := range items(n) {
		vp := schema.VarsPrompt{
			Name:    scalar(lookup(item, "name")),
			Prompt:  scalar(lookup(item, "prompt")),
			Private: true,
		}
		if private := lookup(item, "private"); private != nil && !isNull(private) {
			b, err := toBool(private)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeLoad, "line %d: vars_prompt private: %s",
					private.Line, err.Error()).WithCause(err)
			}
			vp.Private = b
		}
		out = append(out, vp)
	}
	return out, nil
}

// roles loads the play's `roles:` section. A role-level `when` guards every
// task of the role.
func (l *Loader) roles(n *yaml.Node, sc scope) ([]*schema.Role, error) {
	var out []*schema.Role
	for _, item := range items(n) {
		name, when := scalar(item), []string(nil)
		if item.Kind == yaml.MappingNode {
			name = scalar(lookup(item, "role", "name"))
			when = stringList(lookup(item, "when"))
		}
		if name == "" {
			return nil, schema.NewErrorf(schema.ErrCodeLoad, "line %d: role entry needs a name", item.Line)
		}

		steps, err := l.roleSteps(sc, name, "")
		if err != nil {
			return nil, err
		}
		if len(when) > 0 {
			steps = []schema.Step{&schema.Block{When: when, Block: steps}}
		}
		out = append(out, &schema.Role{Name: roleName(name), Tasks: steps})
	}
	return out, nil
}
