package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/playbook2uml/internal/diagram"
	"github.com/rendis/playbook2uml/internal/expressions"
	"github.com/rendis/playbook2uml/internal/logging"
	"github.com/rendis/playbook2uml/pkg/schema"
)

// handleDiagram renders a playbook or a single role.
func (s *DiagramServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playbook := req.GetString("playbook", "")
	role := req.GetString("role", "")
	switch {
	case playbook == "" && role == "":
		return mcp.NewToolResultError("one of playbook or role is required"), nil
	case playbook != "" && role != "":
		return mcp.NewToolResultError("playbook and role are mutually exclusive"), nil
	}
	baseDir := req.GetString("base_dir", "")
	if role != "" && baseDir == "" {
		return mcp.NewToolResultError("base_dir is required with role"), nil
	}

	opts := diagram.Options{
		Title:       req.GetString("title", ""),
		Theme:       req.GetString("theme", ""),
		LeftToRight: req.GetBool("left_to_right", false),
		RoleOnly:    role != "",
	}
	source := playbook
	if role != "" {
		source = role
	}

	ctx = logging.NewRun(ctx, source)
	runID := logging.RunID(ctx)
	s.captureSession(ctx, runID)
	defer s.sessions.Forget(runID)
	log := logging.LogWith(ctx, s.logger)

	var (
		pb  *schema.Playbook
		err error
	)
	if role != "" {
		pb, err = s.loader.LoadRole(baseDir, role, req.GetString("tasks_from", ""))
	} else {
		pb, err = s.loader.LoadPlaybook(playbook)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}

	pb, err = s.selectPlays(ctx, pb, req.GetString("select", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("play selection failed: %v", err)), nil
	}

	if req.GetBool("image", false) {
		return s.renderImage(ctx, pb, opts)
	}

	r, err := diagram.NewRenderer(diagram.DiagramType(req.GetString("type", string(diagram.DiagramTypePlantUML))))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	if err := diagram.Render(ctx, &sb, pb, r, opts, s.logger); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram generation failed: %v", err)), nil
	}

	log.Info("diagram rendered", slog.String("type", r.Name()), slog.Int("bytes", sb.Len()))
	s.notify(ctx, runID, map[string]any{
		"message": "diagram rendered",
		"type":    r.Name(),
		"plays":   len(pb.Plays),
	})
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *DiagramServer) renderImage(ctx context.Context, pb *schema.Playbook, opts diagram.Options) (*mcp.CallToolResult, error) {
	wf, err := diagram.Build(pb, diagram.NewAllocator(), s.logger)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", err)), nil
	}
	png, err := diagram.RenderImage(wf, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", err)), nil
	}

	runID := logging.RunID(ctx)
	s.notify(ctx, runID, map[string]any{"message": "image rendered", "bytes": len(png)})
	return mcp.NewToolResultImage("diagram.png", base64.StdEncoding.EncodeToString(png), "image/png"), nil
}

// handlePlays lists the selector view of every play, marking the ones a
// selector keeps.
func (s *DiagramServer) handlePlays(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playbook, err := req.RequireString("playbook")
	if err != nil {
		return mcp.NewToolResultError("playbook is required"), nil
	}

	pb, err := s.loader.LoadPlaybook(playbook)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
	}

	var selector *expressions.Selector
	if src := req.GetString("select", ""); src != "" {
		if selector, err = expressions.ParseSelector(src); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid selector: %v", err)), nil
		}
	}

	plays := make([]map[string]any, 0, len(pb.Plays))
	for i, play := range pb.Plays {
		data := expressions.PlayData(play, i)
		if selector != nil {
			matched, err := selector.Match(ctx, play, i)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("play selection failed: %v", err)), nil
			}
			data["selected"] = matched
		}
		plays = append(plays, data)
	}

	return marshalResult(map[string]any{"playbook": playbook, "plays": plays})
}

func (s *DiagramServer) selectPlays(ctx context.Context, pb *schema.Playbook, src string) (*schema.Playbook, error) {
	if src == "" {
		return pb, nil
	}
	selector, err := expressions.ParseSelector(src)
	if err != nil {
		return nil, err
	}
	selected, err := selector.Select(ctx, pb)
	if err != nil {
		return nil, err
	}
	logging.LogWith(ctx, s.logger).Debug("plays selected",
		slog.String("selector", selector.String()),
		slog.Int("kept", len(selected.Plays)),
		slog.Int("total", len(pb.Plays)))
	return selected, nil
}

// captureSession maps the run to the current MCP session for notifications.
func (s *DiagramServer) captureSession(ctx context.Context, runID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(runID, session.SessionID())
	}
}

// notify sends an MCP log message for the run. Failures are only logged.
func (s *DiagramServer) notify(ctx context.Context, runID string, data map[string]any) {
	data["run_id"] = runID
	payload := map[string]any{"level": "info", "logger": "playbook2uml", "data": data}
	if err := s.notifier.Notify(ctx, runID, payload); err != nil {
		logging.LogWith(ctx, s.logger).Warn("notification failed", slog.String("error", err.Error()))
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
