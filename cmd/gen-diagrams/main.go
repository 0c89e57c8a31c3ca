// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/playbook2uml/internal/diagram"
	"github.com/rendis/playbook2uml/internal/loader"
	"github.com/rendis/playbook2uml/internal/logging"
	"github.com/rendis/playbook2uml/internal/validation"
)

var samplePlaybook = "examples/webserver/site.yml"

func main() {
	if err := run(context.Background(), filepath.Join("docs", "assets")); err != nil {
		fmt.Fprintf(os.Stderr, "gen-diagrams: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, outDir string) error {
	logger := logging.New(logging.Config{Verbosity: 1})

	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return err
	}
	pb, err := loader.New(v, logger).LoadPlaybook(samplePlaybook)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	opts := diagram.Options{Title: "Web servers"}
	ctx = logging.NewRun(ctx, samplePlaybook)

	for _, out := range []struct {
		typ  diagram.DiagramType
		file string
		wrap func(string) string
	}{
		{diagram.DiagramTypePlantUML, "diagram-plantuml.puml", func(s string) string { return s }},
		{diagram.DiagramTypeMermaid, "diagram-mermaid.md", func(s string) string { return "```mermaid\n" + s + "```\n" }},
	} {
		r, err := diagram.NewRenderer(out.typ)
		if err != nil {
			return err
		}
		var sb strings.Builder
		if err := diagram.Render(ctx, &sb, pb, r, opts, logger); err != nil {
			return fmt.Errorf("%s: %w", out.typ, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, out.file), []byte(out.wrap(sb.String())), 0o644); err != nil {
			return err
		}
		fmt.Printf("=== %s ===\n%s\n", r.Name(), sb.String())
	}

	wf, err := diagram.Build(pb, diagram.NewAllocator(), logger)
	if err != nil {
		return err
	}
	png, err := diagram.RenderImage(wf, opts)
	if err != nil {
		return fmt.Errorf("image: %w", err)
	}
	path := filepath.Join(outDir, "diagram.png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return err
	}
	fmt.Printf("=== image ===\n%s (%d bytes)\n", path, len(png))
	return nil
}
