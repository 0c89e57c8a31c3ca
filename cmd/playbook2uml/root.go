package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rendis/playbook2uml/internal/diagram"
	"github.com/rendis/playbook2uml/internal/expressions"
	"github.com/rendis/playbook2uml/internal/loader"
	"github.com/rendis/playbook2uml/internal/logging"
	"github.com/rendis/playbook2uml/internal/validation"
	"github.com/rendis/playbook2uml/pkg/schema"
	"github.com/spf13/cobra"
)

// runOptions are the flags that only apply to a single invocation.
type runOptions struct {
	configPath string
	role       string
	tasksFrom  string
	output     string
	image      bool
	selectExpr string
}

func newRootCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "playbook2uml [flags] PLAYBOOK | --role NAME [--tasks-from FILE] BASE_DIR",
		Short: "Draw an Ansible playbook as a PlantUML or Mermaid state diagram",
		Long: `playbook2uml reads an Ansible playbook, or a single role, and prints a
state diagram of its control flow: conditions, loops, retries and
block/rescue/always sections.

The diagram is written to stdout unless --output is given.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return newConfigError(fmt.Sprintf("expected exactly one PLAYBOOK or BASE_DIR argument, got %d", len(args)), nil)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to config file (default: ~/.playbook2uml/settings.yaml)")
	pf.CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	pf.String("log-format", string(logging.FormatText), "Log format: text or json")

	f := cmd.Flags()
	f.StringP("type", "t", string(diagram.DiagramTypePlantUML), "Diagram type: plantuml or mermaid")
	f.StringP("title", "T", "", "Diagram title")
	f.String("theme", "", "PlantUML theme")
	f.BoolP("left-to-right", "L", false, "Lay the diagram out left to right")
	f.StringVarP(&opts.role, "role", "r", "", "Draw a single role found under BASE_DIR")
	f.StringVar(&opts.tasksFrom, "tasks-from", "", "Role tasks file to draw (default: main)")
	f.StringVarP(&opts.output, "output", "o", "", "Write the diagram to this file instead of stdout")
	f.BoolVar(&opts.image, "image", false, "Render a PNG image with Graphviz instead of diagram text")
	f.StringVar(&opts.selectExpr, "select", "", "Only draw plays matching this selector (engine:expression, engine jq, expr or cel)")

	cmd.AddCommand(newMCPCommand(opts), newVersionCommand())
	return cmd
}

// run validates the invocation, loads the source and writes the diagram.
// Everything that can be checked without loading is checked first.
func run(cmd *cobra.Command, source string, opts *runOptions) error {
	cfg, err := loadConfig(cmd.Flags(), opts.configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	roleOnly := opts.role != ""
	if err := checkSource(source, roleOnly); err != nil {
		return err
	}
	if opts.tasksFrom != "" && !roleOnly {
		return newConfigError("--tasks-from requires --role", nil)
	}
	if opts.image && opts.output == "" {
		return newConfigError("--image requires --output", nil)
	}

	var selector *expressions.Selector
	if opts.selectExpr != "" {
		if selector, err = expressions.ParseSelector(opts.selectExpr); err != nil {
			return err
		}
	}
	r, err := diagram.NewRenderer(cfg.Type)
	if err != nil {
		return err
	}

	ctx := logging.NewRun(cmd.Context(), source)
	log := logging.LogWith(ctx, logger)

	pb, err := load(source, opts, logger)
	if err != nil {
		return err
	}
	if selector != nil {
		total := len(pb.Plays)
		if pb, err = selector.Select(ctx, pb); err != nil {
			return err
		}
		log.Info("plays selected", slog.String("selector", selector.String()),
			slog.Int("kept", len(pb.Plays)), slog.Int("total", total))
	}

	return writeOutput(cmd.OutOrStdout(), opts.output, func(w io.Writer) error {
		if opts.image {
			return writeImage(w, pb, cfg.options(roleOnly), logger)
		}
		return diagram.Render(ctx, w, pb, r, cfg.options(roleOnly), logger)
	})
}

func newLogger(cfg Config, w io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Verbosity: cfg.Verbose,
		Format:    cfg.LogFormat,
		Output:    w,
	})
}

// checkSource verifies that the playbook is a file, or the base directory a
// directory in role mode.
func checkSource(source string, roleOnly bool) error {
	info, err := os.Stat(source)
	switch {
	case roleOnly && err != nil:
		return newConfigError(fmt.Sprintf("base directory %s does not exist", source), err)
	case roleOnly && !info.IsDir():
		return newConfigError(fmt.Sprintf("base directory %s is not a directory", source), nil)
	case err != nil:
		return newConfigError(fmt.Sprintf("playbook %s does not exist", source), err)
	case info.IsDir():
		return newConfigError(fmt.Sprintf("playbook %s is a directory", source), nil)
	}
	return nil
}

func load(source string, opts *runOptions, logger *slog.Logger) (*schema.Playbook, error) {
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	l := loader.New(v, logger)
	if opts.role != "" {
		return l.LoadRole(source, opts.role, opts.tasksFrom)
	}
	return l.LoadPlaybook(source)
}

func writeImage(w io.Writer, pb *schema.Playbook, opts diagram.Options, logger *slog.Logger) error {
	wf, err := diagram.Build(pb, diagram.NewAllocator(), logger)
	if err != nil {
		return err
	}
	png, err := diagram.RenderImage(wf, opts)
	if err != nil {
		return err
	}
	_, err = w.Write(png)
	return err
}

// writeOutput runs write against stdout, or against path when one is given.
// Nothing reaches the destination unless write succeeds: stdout output is
// buffered and a file is written next to path, then renamed over it.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		var buf bytes.Buffer
		if err := write(&buf); err != nil {
			return err
		}
		_, err := buf.WriteTo(stdout)
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	tmp := f.Name()
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// serveContext is the context the mcp command serves under.
func serveContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
