package expressions

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/playbook2uml/pkg/schema"
	"github.com/spf13/cast"
)

// DefaultEngine is used when a selector has no engine prefix.
const DefaultEngine = "jq"

// Selector keeps the plays of a playbook for which a boolean expression holds.
//
// A selector is written `engine:expression`, e.g. `cel:"web" in hosts`.
// Without a known engine prefix the whole text is a jq expression.
type Selector struct {
	engine     Engine
	expression string
}

// ParseSelector parses a selector string. An empty string is rejected.
func ParseSelector(src string) (*Selector, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, schema.NewError(schema.ErrCodeConfig, "empty play selector")
	}

	name, expression := DefaultEngine, src
	if prefix, rest, ok := strings.Cut(src, ":"); ok {
		switch prefix {
		case "jq", "expr", "cel":
			name, expression = prefix, strings.TrimSpace(rest)
		}
	}

	engine, err := NewEngine(name)
	if err != nil {
		return nil, err
	}
	if expression == "" {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "empty %s expression in play selector", name)
	}
	return &Selector{engine: engine, expression: expression}, nil
}

// NewEngine returns the engine registered under name.
func NewEngine(name string) (Engine, error) {
	switch name {
	case "jq":
		return NewGoJQEngine(), nil
	case "expr":
		return NewExprEngine(), nil
	case "cel":
		return NewCELEngine()
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "unknown expression engine %q", name).
			WithDetails(map[string]any{"supported": []string{"jq", "expr", "cel"}})
	}
}

// Engine returns the name of the selector's engine.
func (s *Selector) Engine() string { return s.engine.Name() }

// String returns the selector in its parseable form.
func (s *Selector) String() string { return s.engine.Name() + ":" + s.expression }

// Match reports whether the play at position index satisfies the selector.
// The expression must evaluate to a boolean.
func (s *Selector) Match(ctx context.Context, play *schema.Play, index int) (bool, error) {
	out, err := s.engine.Evaluate(ctx, s.expression, PlayData(play, index))
	if err != nil {
		return false, err
	}
	matched, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExpression,
			"play selector %q returned %T, want bool", s.String(), out).
			WithDetails(map[string]any{"play": play.DisplayName(), "index": index})
	}
	return matched, nil
}

// Select returns a copy of pb holding only the matching plays, in order.
func (s *Selector) Select(ctx context.Context, pb *schema.Playbook) (*schema.Playbook, error) {
	if pb == nil {
		return nil, schema.NewError(schema.ErrCodeInvariant, "playbook is nil")
	}
	out := &schema.Playbook{Path: pb.Path, Plays: make([]*schema.Play, 0, len(pb.Plays))}
	for i, play := range pb.Plays {
		ok, err := s.Match(ctx, play, i)
		if err != nil {
			return nil, fmt.Errorf("select play %d: %w", i, err)
		}
		if ok {
			out.Plays = append(out.Plays, play)
		}
	}
	return out, nil
}

// PlayData is the document a selector is evaluated against.
// gather_facts defaults to true and serial is rendered as text.
func PlayData(play *schema.Play, index int) map[string]any {
	hosts := make([]any, 0, len(play.Hosts))
	for _, h := range play.Hosts {
		hosts = append(hosts, h)
	}
	gatherFacts := true
	if play.GatherFacts != nil {
		gatherFacts = *play.GatherFacts
	}
	return map[string]any{
		"name":         play.Name,
		"hosts":        hosts,
		"gather_facts": gatherFacts,
		"strategy":     play.Strategy,
		"serial":       cast.ToString(play.Serial),
		"index":        index,
	}
}
