package diagram

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/rendis/playbook2uml/internal/logging"
	"github.com/rendis/playbook2uml/pkg/schema"
)

// Generate streams the diagram of pb line by line.
//
// Every call builds the graph with its own Allocator, so the output does not
// depend on earlier calls and concurrent calls do not interfere. The stream is
// the prologue, the definitions of every play, the transitions of
// [*], play..., [*] and finally the epilogue. On error the error is yielded
// once and the stream ends without the epilogue.
func Generate(ctx context.Context, pb *schema.Playbook, r Renderer, opts Options, logger *slog.Logger) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if logger == nil {
			logger = slog.Default()
		}
		log := logging.LogWith(ctx, logger).With(slog.String("renderer", r.Name()))

		wf, err := Build(pb, NewAllocator(), log)
		if err != nil {
			yield("", err)
			return
		}

		log.Info("start generation", slog.Int("plays", len(wf.Plays)), slog.Bool("role_only", opts.RoleOnly))
		for line := range r.Prologue(opts) {
			if !yield(line, nil) {
				return
			}
		}

		level := r.BaseLevel()
		log.Debug("generate definitions")
		for _, play := range wf.Plays {
			for line := range playDefinition(r, play, level, opts.RoleOnly) {
				if !yield(line, nil) {
					return
				}
			}
		}

		log.Debug("generate relations")
		start := StartNode()
		chain := make([]*Node, 0, len(wf.Plays)+2)
		chain = append(chain, start)
		chain = append(chain, wf.Plays...)
		chain = append(chain, start)
		for i := 0; i+1 < len(chain); i++ {
			for line, err := range Relations(r, chain[i], chain[i+1], level) {
				if err != nil {
					log.Error("relation derivation failed", slog.String("node", chain[i].ID), slog.Any("error", err))
					yield("", err)
					return
				}
				if !yield(line, nil) {
					return
				}
			}
		}

		for line := range r.Epilogue() {
			if !yield(line, nil) {
				return
			}
		}
		log.Info("end generation")
	}
}

// playDefinition emits a play's declarations. In role-only mode the play
// container is left out and its steps are emitted at the play's level.
func playDefinition(r Renderer, play *Node, level int, roleOnly bool) iter.Seq[string] {
	if !roleOnly {
		return r.Definition(play, level)
	}
	return func(yield func(string) bool) {
		for _, child := range play.Children {
			for line := range r.Definition(child, level) {
				if !yield(line) {
					return
				}
			}
		}
	}
}

// Render writes the generated diagram to w, one line per Generate item.
func Render(ctx context.Context, w io.Writer, pb *schema.Playbook, r Renderer, opts Options, logger *slog.Logger) error {
	for line, err := range Generate(ctx, pb, r, opts, logger) {
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("diagram: write output: %w", err)
		}
	}
	return nil
}
