package main

import (
	"github.com/rendis/playbook2uml/internal/loader"
	"github.com/rendis/playbook2uml/internal/validation"
	diagrammcp "github.com/rendis/playbook2uml/pkg/mcp"
	"github.com/spf13/cobra"
)

func newMCPCommand(opts *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the diagram tools over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
playbook2uml.diagram and playbook2uml.plays tools. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags(), opts.configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			v, err := validation.NewJSONSchemaValidator()
			if err != nil {
				return err
			}
			srv := diagrammcp.NewDiagramServer(diagrammcp.ServerDeps{
				Loader:  loader.New(v, logger),
				Logger:  logger,
				Version: version,
			})
			return srv.Serve(serveContext(cmd))
		},
	}
}
