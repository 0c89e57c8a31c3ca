package loader

import (
	"strings"

	"github.com/rendis/playbook2uml/pkg/schema"
	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

var (
	importTasksKeys = []string{"import_tasks", "ansible.builtin.import_tasks"}
	importRoleKeys  = []string{"import_role", "ansible.builtin.import_role"}
)

// taskKeywords are task-level keywords that are never the module of a task.
// Keywords the diagram draws are handled in parseTask before this lookup.
var taskKeywords = map[string]bool{
	"any_errors_fatal": true, "args": true, "async": true, "become_exe": true,
	"become_flags": true, "become_method": true, "changed_when": true,
	"check_mode": true, "collections": true, "connection": true, "debugger": true,
	"diff": true, "environment": true, "failed_when": true, "ignore_errors": true,
	"ignore_unreachable": true, "loop_control": true, "module_defaults": true,
	"no_log": true, "notify": true, "poll": true, "port": true, "remote_user": true,
	"run_once": true, "tags": true, "throttle": true, "timeout": true, "vars": true,
	"listen": true,
}

// steps parses a task list.
func (l *Loader) steps(n *yaml.Node, sc scope) ([]schema.Step, error) {
	var out []schema.Step
	for _, item := range items(n) {
		step, err := l.step(item, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, nil
}

func (l *Loader) step(n *yaml.Node, sc scope) (schema.Step, error) {
	if n.Kind != yaml.MappingNode {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "line %d: task must be a mapping", n.Line)
	}
	switch {
	case lookup(n, "block") != nil:
		return l.parseBlock(n, sc)
	case lookup(n, importTasksKeys...) != nil:
		return l.importTasks(n, lookup(n, importTasksKeys...), sc)
	case lookup(n, importRoleKeys...) != nil:
		return l.importRole(n, lookup(n, importRoleKeys...), sc)
	default:
		return parseTask(n, sc.role)
	}
}

func (l *Loader) parseBlock(n *yaml.Node, sc scope) (*schema.Block, error) {
	b := &schema.Block{}
	var err error
	for _, p := range pairs(n) {
		switch p.key {
		case "name":
			b.Name = scalar(p.value)
		case "when":
			b.When = stringList(p.value)
		case "block":
			b.Block, err = l.steps(p.value, sc)
		case "rescue":
			b.Rescue, err = l.steps(p.value, sc)
		case "always":
			b.Always, err = l.steps(p.value, sc)
		}
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

// importTasks expands a static task import in place. The imported steps are
// wrapped in an unnamed block so that the import's condition guards them.
func (l *Loader) importTasks(n, target *yaml.Node, sc scope) (*schema.Block, error) {
	file := scalar(target)
	if target.Kind == yaml.MappingNode {
		file = scalar(lookup(target, "file"))
	}
	if file == "" {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "line %d: import_tasks needs a file", n.Line)
	}
	steps, err := l.loadTasks(resolvePath(sc.dir, file), sc)
	if err != nil {
		return nil, err
	}
	return &schema.Block{When: stringList(lookup(n, "when")), Block: steps}, nil
}

func (l *Loader) importRole(n, target *yaml.Node, sc scope) (*schema.Block, error) {
	name := scalar(lookup(target, "name", "role"))
	if name == "" {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "line %d: import_role needs a name", n.Line)
	}
	steps, err := l.roleSteps(sc, name, scalar(lookup(target, "tasks_from")))
	if err != nil {
		return nil, err
	}
	return &schema.Block{When: stringList(lookup(n, "when")), Block: steps}, nil
}

// parseTask parses a single task. Exactly one key must name the module.
func parseTask(n *yaml.Node, role string) (*schema.Task, error) {
	t := &schema.Task{Role: role}
	var (
		actionNode *yaml.Node
		extraArgs  *yaml.Node
		untilSet   bool
		retriesSet bool
		delaySet   bool
	)

	setAction := func(name string, value *yaml.Node) error {
		if t.Action != "" {
			return schema.NewErrorf(schema.ErrCodeLoad,
				"line %d: conflicting action statements: %s, %s", n.Line, t.Action, name)
		}
		t.Action, actionNode = name, value
		return nil
	}

	for _, p := range pairs(n) {
		var err error
		switch {
		case p.key == "name":
			t.Name = scalar(p.value)
		case p.key == "when":
			t.When = stringList(p.value)
		case p.key == "loop":
			t.Loop, err = decode(p.value)
		case strings.HasPrefix(p.key, "with_"):
			t.LoopWith = strings.TrimPrefix(p.key, "with_")
			t.Loop, err = decode(p.value)
		case p.key == "until":
			t.Until, untilSet = text(p.value), true
		case p.key == "retries" && !isTemplate(p.value):
			t.Retries, err = cast.ToIntE(scalar(p.value))
			retriesSet = true
		case p.key == "delay" && !isTemplate(p.value):
			t.Delay, err = cast.ToIntE(scalar(p.value))
			delaySet = true
		case p.key == "become" && !isTemplate(p.value):
			var b bool
			b, err = toBool(p.value)
			t.Become = &b
		case p.key == "retries", p.key == "delay", p.key == "become":
		case p.key == "become_user":
			t.BecomeUser = scalar(p.value)
		case p.key == "register":
			t.Register = scalar(p.value)
		case p.key == "delegate_to":
			t.DelegateTo = scalar(p.value)
		case p.key == "args":
			extraArgs = p.value
		case p.key == "action":
			err = parseActionKeyword(p.value, setAction)
		case p.key == "local_action":
			t.DelegateTo = "localhost"
			err = parseActionKeyword(p.value, setAction)
		case taskKeywords[p.key]:
		default:
			err = setAction(p.key, p.value)
		}
		if sErr, ok := err.(*schema.Error); ok {
			return nil, sErr
		}
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeLoad, "line %d: %s: %s", p.value.Line, p.key, err.Error()).
				WithCause(err)
		}
	}

	if t.Action == "" {
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "line %d: no module/action detected in task", n.Line)
	}
	if untilSet {
		if !retriesSet {
			t.Retries = 3
		}
		if !delaySet {
			t.Delay = 5
		}
	}

	args, err := parseArgs(t.Action, actionNode)
	if err != nil {
		return nil, err
	}
	extra, err := parseArgs(t.Action, extraArgs)
	if err != nil {
		return nil, err
	}
	for pair := extra.Oldest(); pair != nil; pair = pair.Next() {
		args.Set(pair.Key, pair.Value)
	}
	t.Args = args
	return t, nil
}

// parseActionKeyword handles `action:` and `local_action:`, given either as
// "module k=v ..." or as a mapping with a `module` key.
func parseActionKeyword(v *yaml.Node, set func(string, *yaml.Node) error) error {
	if v.Kind == yaml.MappingNode {
		module := scalar(lookup(v, "module"))
		if module == "" {
			return schema.NewErrorf(schema.ErrCodeLoad, "line %d: missing module name", v.Line)
		}
		rest := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: v.Line}
		for i := 0; i+1 < len(v.Content); i += 2 {
			if v.Content[i].Value != "module" {
				rest.Content = append(rest.Content, v.Content[i], v.Content[i+1])
			}
		}
		return set(module, rest)
	}

	module, rest, _ := strings.Cut(strings.TrimSpace(scalar(v)), " ")
	if module == "" {
		return schema.NewErrorf(schema.ErrCodeLoad, "line %d: missing module name", v.Line)
	}
	return set(module, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: strings.TrimSpace(rest), Line: v.Line})
}

// parseArgs turns a module argument node into ordered arguments. Mappings
// keep their key order; scalars are split as key=value text.
func parseArgs(module string, n *yaml.Node) (*orderedmap.OrderedMap[string, any], error) {
	n = resolve(n)
	switch {
	case isNull(n):
		return orderedmap.New[string, any](), nil
	case n.Kind == yaml.MappingNode:
		args := orderedmap.New[string, any]()
		for _, p := range pairs(n) {
			v, err := decode(p.value)
			if err != nil {
				return nil, err
			}
			args.Set(p.key, v)
		}
		return args, nil
	case n.Kind == yaml.ScalarNode:
		return parseKV(module, n.Value), nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "line %d: arguments of %s must be a mapping or a string",
			n.Line, module)
	}
}

// isTemplate reports whether a scalar is a Jinja expression whose value is
// only known at run time.
func isTemplate(n *yaml.Node) bool {
	return strings.Contains(scalar(n), "{{")
}

// toBool accepts YAML 1.1 booleans (yes/no/on/off) as Ansible does.
func toBool(n *yaml.Node) (bool, error) {
	switch strings.ToLower(scalar(n)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return cast.ToBoolE(scalar(n))
}
