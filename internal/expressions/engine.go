package expressions

import (
	"context"
	"sync"

	"github.com/rendis/playbook2uml/pkg/schema"
)

// Engine evaluates play selector expressions.
// Three implementations: jq (default), Expr and CEL.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// programs caches compiled selector programs by expression text.
// The zero value is ready to use and safe for concurrent use.
type programs[P any] struct {
	mu    sync.RWMutex
	cache map[string]P
}

// get returns the cached program for expression, compiling it on first use.
// Failed compilations are not cached.
func (p *programs[P]) get(expression string, compile func() (P, error)) (P, error) {
	p.mu.RLock()
	prg, ok := p.cache[expression]
	p.mu.RUnlock()
	if ok {
		return prg, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prg, ok := p.cache[expression]; ok {
		return prg, nil
	}
	prg, err := compile()
	if err != nil {
		return prg, err
	}
	if p.cache == nil {
		p.cache = make(map[string]P)
	}
	p.cache[expression] = prg
	return prg, nil
}

func (p *programs[P]) len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}

// expressionError reports a failure of engine at stage ("parse", "compile",
// "evaluation") for expression.
func expressionError(engine, stage, expression string, err error) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeExpression, "%s %s error in %q: %s", engine, stage, expression, err).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression})
}

func emptyExpression(engine string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeExpression, "empty %s expression", engine)
}
