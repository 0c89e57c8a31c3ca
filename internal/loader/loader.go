// Package loader reads Ansible playbooks, task files and roles from disk and
// resolves their static imports into the source tree consumed by the diagram
// builder. Only structure is interpreted: templates are never rendered and
// variables are never evaluated.
package loader

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rendis/playbook2uml/internal/validation"
	"github.com/rendis/playbook2uml/pkg/schema"
	"gopkg.in/yaml.v3"
)

var importPlaybookKeys = []string{"import_playbook", "ansible.builtin.import_playbook"}

// Loader loads playbooks and roles. It is safe for concurrent use as long as
// its validator is.
type Loader struct {
	validator validation.Validator
	logger    *slog.Logger
}

// New creates a Loader. A nil logger uses slog.Default().
func New(v validation.Validator, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{validator: v, logger: logger.With(slog.String("component", "loader"))}
}

// scope is the resolution context of the file being parsed.
type scope struct {
	// dir is the directory relative imports resolve against.
	dir string
	// base is the playbook directory roles are searched under.
	base string
	// role is the name of the role whose tasks are being parsed.
	role string
	// stack lists the files currently being loaded.
	stack []string
}

// LoadPlaybook loads the playbook at path, following import_playbook,
// import_tasks, import_role and play roles.
func (l *Loader) LoadPlaybook(path string) (*schema.Playbook, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeLoad, "cannot resolve playbook path").WithPath(path).WithCause(err)
	}
	plays, err := l.loadPlays(abs, nil)
	if err != nil {
		return nil, err
	}
	l.logger.Info("playbook loaded", slog.String("path", path), slog.Int("plays", len(plays)))
	return &schema.Playbook{Path: path, Plays: plays}, nil
}

// LoadRole loads a single role as a synthetic play targeting all hosts whose
// only step imports the role. baseDir is where roles are searched; tasksFrom
// defaults to "main".
func (l *Loader) LoadRole(baseDir, role, tasksFrom string) (*schema.Playbook, error) {
	if role == "" {
		return nil, schema.NewError(schema.ErrCodeConfig, "role name is required")
	}
	info, err := os.Stat(baseDir)
	if err != nil || !info.IsDir() {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "base directory %q is not a directory", baseDir).
			WithPath(baseDir).WithCause(err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeLoad, "cannot resolve base directory").WithPath(baseDir).WithCause(err)
	}

	steps, err := l.roleSteps(scope{dir: abs, base: abs}, role, tasksFrom)
	if err != nil {
		return nil, err
	}
	play := &schema.Play{Hosts: []string{"all"}, Tasks: steps}
	l.logger.Info("role loaded", slog.String("role", role), slog.String("base_dir", baseDir))
	return &schema.Playbook{Path: filepath.Join(baseDir, role), Plays: []*schema.Play{play}}, nil
}

func (l *Loader) loadPlays(path string, stack []string) ([]*schema.Play, error) {
	stack, err := enter(stack, path)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("load playbook file", slog.String("path", path))

	root, doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	if err := l.validator.ValidatePlaybook(doc); err != nil {
		return nil, withPath(err, path)
	}

	dir := filepath.Dir(path)
	var plays []*schema.Play
	for _, item := range items(root) {
		if imp := lookup(item, importPlaybookKeys...); imp != nil {
			sub, err := l.loadPlays(resolvePath(dir, scalar(imp)), stack)
			if err != nil {
				return nil, err
			}
			plays = append(plays, sub...)
			continue
		}
		play, err := l.parsePlay(item, scope{dir: dir, base: dir, stack: stack})
		if err != nil {
			return nil, withPath(err, path)
		}
		plays = append(plays, play)
	}
	return plays, nil
}

// loadTasks loads a task file (import_tasks target or role tasks).
func (l *Loader) loadTasks(path string, sc scope) ([]schema.Step, error) {
	stack, err := enter(sc.stack, path)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("load task file", slog.String("path", path), slog.String("role", sc.role))

	root, doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	if err := l.validator.ValidateTasks(doc); err != nil {
		return nil, withPath(err, path)
	}

	steps, err := l.steps(root, scope{dir: filepath.Dir(path), base: sc.base, role: sc.role, stack: stack})
	if err != nil {
		return nil, withPath(err, path)
	}
	return steps, nil
}

// readDocument parses a YAML file, returning its root node and the same
// content decoded into plain values. An empty file yields nil for both.
func readDocument(path string) (*yaml.Node, any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, schema.NewError(schema.ErrCodeNotFound, "file not found").WithPath(path).WithCause(err)
		}
		return nil, nil, schema.NewError(schema.ErrCodeLoad, "cannot read file").WithPath(path).WithCause(err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, schema.NewErrorf(schema.ErrCodeLoad, "invalid YAML: %s", err.Error()).WithPath(path).WithCause(err)
	}
	if len(doc.Content) == 0 {
		return nil, nil, nil
	}

	root := doc.Content[0]
	value, err := decode(root)
	if err != nil {
		return nil, nil, withPath(err, path)
	}
	return root, value, nil
}

// enter pushes path onto the import stack, rejecting cycles.
func enter(stack []string, path string) ([]string, error) {
	if slices.Contains(stack, path) {
		chain := append(slices.Clone(stack), path)
		return nil, schema.NewErrorf(schema.ErrCodeLoad, "import cycle: %s", strings.Join(chain, " -> ")).
			WithPath(path)
	}
	return append(slices.Clone(stack), path), nil
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// withPath attaches path to err when err does not name a file yet.
func withPath(err error, path string) error {
	var sErr *schema.Error
	if errors.As(err, &sErr) {
		if sErr.Path == "" {
			sErr.Path = path
		}
		return err
	}
	return schema.NewError(schema.ErrCodeLoad, err.Error()).WithPath(path).WithCause(err)
}
