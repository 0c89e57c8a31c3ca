package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Format is the log output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// MaxVerbosity is the highest meaningful -v count.
const MaxVerbosity = 2

// Config configures the diagnostic logger. Logging never affects diagram output.
type Config struct {
	// Verbosity 0 logs warnings, 1 info, 2 debug (with source locations).
	Verbosity int
	Format    Format
	// Output defaults to os.Stderr.
	Output io.Writer
	// Color forces colouring on or off; nil colours only when Output is a terminal.
	Color *bool
}

// LevelFromVerbosity maps a -v count to a log level. Values above
// MaxVerbosity are clamped.
func LevelFromVerbosity(v int) slog.Level {
	switch {
	case v <= 0:
		return slog.LevelWarn
	case v == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// New builds the process logger. Records pass through CorrelationHandler so
// run IDs stored in the context are attached automatically.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     LevelFromVerbosity(cfg.Verbosity),
		AddSource: cfg.Verbosity >= MaxVerbosity,
	}

	var handler slog.Handler
	switch Format(strings.ToLower(string(cfg.Format))) {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, opts)
	default:
		if useColor(cfg, out) {
			opts.ReplaceAttr = colorizer(out)
		}
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(NewCorrelationHandler(handler))
}

func useColor(cfg Config, out io.Writer) bool {
	if cfg.Color != nil {
		return *cfg.Color
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// colorizer highlights the source location and component of each record.
func colorizer(out io.Writer) func([]string, slog.Attr) slog.Attr {
	r := lipgloss.NewRenderer(out)
	sourceStyle := r.NewStyle().Foreground(lipgloss.Color("3"))
	componentStyle := r.NewStyle().Foreground(lipgloss.Color("6"))

	return func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.SourceKey:
			if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
				loc := fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line)
				return slog.String(a.Key, sourceStyle.Render(loc))
			}
		case "component":
			return slog.String(a.Key, componentStyle.Render(a.Value.String()))
		}
		return a
	}
}
