package loader

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rendis/playbook2uml/pkg/schema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const defaultTasksFrom = "main"

// roleSteps loads the tasks of a role and appends the implicit
// `meta: role_complete` step Ansible runs at the end of every role.
// A role without tasks/main is valid; an explicit tasksFrom must exist.
func (l *Loader) roleSteps(sc scope, role, tasksFrom string) ([]schema.Step, error) {
	dir, err := findRoleDir(sc, role)
	if err != nil {
		return nil, err
	}

	explicit := tasksFrom != ""
	if !explicit {
		tasksFrom = defaultTasksFrom
	}
	name := roleName(role)

	var steps []schema.Step
	file, err := findTasksFile(dir, tasksFrom)
	switch {
	case err != nil:
		return nil, err
	case file == "" && explicit:
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "tasks file %q not found in role %s", tasksFrom, role).
			WithPath(dir)
	case file == "":
		l.logger.Debug("role has no tasks", slog.String("role", role), slog.String("dir", dir))
	default:
		steps, err = l.loadTasks(file, scope{dir: filepath.Dir(file), base: sc.base, role: name, stack: sc.stack})
		if err != nil {
			return nil, err
		}
	}
	return append(steps, roleComplete(name)), nil
}

func roleComplete(role string) *schema.Task {
	args := orderedmap.New[string, any]()
	args.Set(RawParams, "role_complete")
	return &schema.Task{Action: "meta", Args: args, Role: role, Implicit: true}
}

// roleName is the display name of a role reference, which may be a path.
func roleName(ref string) string {
	return filepath.Base(filepath.Clean(ref))
}

// findRoleDir searches <base>/roles/<role>, <base>/<role> and, for roles
// referenced from a nested file, <dir>/roles/<role>.
func findRoleDir(sc scope, role string) (string, error) {
	var candidates []string
	if filepath.IsAbs(role) {
		candidates = []string{role}
	} else {
		candidates = []string{
			filepath.Join(sc.base, "roles", role),
			filepath.Join(sc.base, role),
		}
		if sc.dir != sc.base {
			candidates = append(candidates, filepath.Join(sc.dir, "roles", role))
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c, nil
		}
	}
	return "", schema.NewErrorf(schema.ErrCodeNotFound, "role %q not found", role).
		WithDetails(map[string]any{"searched": candidates})
}

// findTasksFile resolves tasks/<from>[.yml|.yaml] inside a role directory.
// It returns "" when no file matches.
func findTasksFile(roleDir, from string) (string, error) {
	pattern := "tasks/" + from
	if ext := filepath.Ext(from); ext != ".yml" && ext != ".yaml" {
		pattern += ".{yml,yaml}"
	}
	matches, err := doublestar.Glob(os.DirFS(roleDir), filepath.ToSlash(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return "", schema.NewErrorf(schema.ErrCodeLoad, "bad tasks_from %q", from).WithCause(err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	// prefer .yml over .yaml
	slices.SortFunc(matches, func(a, b string) int {
		return strings.Compare(filepath.Ext(b), filepath.Ext(a))
	})
	return filepath.Join(roleDir, filepath.FromSlash(matches[0])), nil
}
