package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/playbook2uml/internal/loader"
)

// ServerDeps holds the dependencies for creating a DiagramServer.
type ServerDeps struct {
	Loader  *loader.Loader
	Logger  *slog.Logger
	Version string
	// Notifier receives per-run log messages. Defaults to MCP log notifications.
	Notifier RunNotifier
}

// DiagramServer wraps an MCP server with playbook diagram tool handlers.
type DiagramServer struct {
	loader    *loader.Loader
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  RunNotifier
	mcpServer *server.MCPServer
}

// NewDiagramServer creates a new DiagramServer with its tools registered.
func NewDiagramServer(deps ServerDeps) *DiagramServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &DiagramServer{
		loader:   deps.Loader,
		logger:   logger.With(slog.String("component", "mcp")),
		sessions: NewSessionRegistry(),
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.closeSession(session.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		"playbook2uml",
		version,
		server.WithHooks(hooks),
		server.WithToolCapabilities(false),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithInstructions("playbook2uml draws Ansible playbooks as state diagrams. Use playbook2uml.diagram to render a playbook or a single role as PlantUML, Mermaid or PNG, and playbook2uml.plays to list the plays a selector expression can match."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv

	s.notifier = deps.Notifier
	if s.notifier == nil {
		s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	}
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *DiagramServer) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// closeSession drops the runs of a disconnected session so that their
// notifications are not sent to a dead client.
func (s *DiagramServer) closeSession(sessionID string) {
	if n := s.sessions.Remove(sessionID); n > 0 {
		s.logger.Debug("session closed with runs in flight",
			slog.String("session_id", sessionID),
			slog.Int("dropped", n),
			slog.Int("in_flight", s.sessions.Len()))
	}
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *DiagramServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *DiagramServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: playsTool(), Handler: s.handlePlays},
	}
}

// --- Tool definitions ---

func diagramTool() mcp.Tool {
	return mcp.NewTool("playbook2uml.diagram",
		mcp.WithDescription("Render an Ansible playbook or role as a state diagram. Returns PlantUML or Mermaid text, or a PNG image"),
		mcp.WithString("playbook", mcp.Description("Path of the playbook to draw")),
		mcp.WithString("role", mcp.Description("Name of a single role to draw instead of a playbook (requires base_dir)")),
		mcp.WithString("base_dir", mcp.Description("Directory the role is searched under")),
		mcp.WithString("tasks_from", mcp.Description("Role tasks file to draw (default: main)")),
		mcp.WithString("type",
			mcp.Enum("plantuml", "mermaid"),
			mcp.Description("Diagram notation (default: plantuml)"),
		),
		mcp.WithString("title", mcp.Description("Diagram title")),
		mcp.WithString("theme", mcp.Description("PlantUML theme")),
		mcp.WithBoolean("left_to_right", mcp.Description("Lay the diagram out left to right")),
		mcp.WithString("select", mcp.Description("Play selector, engine:expression with engine jq (default), expr or cel")),
		mcp.WithBoolean("image", mcp.Description("Return a PNG image instead of diagram text")),
	)
}

func playsTool() mcp.Tool {
	return mcp.NewTool("playbook2uml.plays",
		mcp.WithDescription("List the plays of a playbook with the fields a play selector is evaluated against"),
		mcp.WithString("playbook", mcp.Required(), mcp.Description("Path of the playbook")),
		mcp.WithString("select", mcp.Description("Optional play selector to preview")),
	)
}
