package expressions

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// celVariables are the play attributes visible to CEL selectors, with the
// value used when a key is missing from the data map.
var celVariables = []struct {
	name string
	typ  *cel.Type
	zero any
}{
	{"name", cel.StringType, ""},
	{"hosts", cel.ListType(cel.StringType), []string{}},
	{"gather_facts", cel.BoolType, true},
	{"strategy", cel.StringType, ""},
	{"serial", cel.StringType, ""},
	{"index", cel.IntType, 0},
}

// CELEngine evaluates Common Expression Language selectors, e.g.
// `"web" in hosts && strategy != "free"`. Expressions are type-checked
// against the play attributes.
type CELEngine struct {
	env      *cel.Env
	programs programs[cel.Program]
}

// NewCELEngine creates a CEL engine declaring one variable per play attribute.
func NewCELEngine() (*CELEngine, error) {
	opts := make([]cel.EnvOption, 0, len(celVariables))
	for _, v := range celVariables {
		opts = append(opts, cel.Variable(v.name, v.typ))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &CELEngine{env: env}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string { return "cel" }

// Evaluate runs expression against data.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, emptyExpression("cel")
	}
	prg, err := e.programs.get(expression, func() (cel.Program, error) {
		return e.compile(expression)
	})
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, activation(data))
	if err != nil {
		return nil, expressionError("cel", "evaluation", expression, err)
	}
	return out.Value(), nil
}

func (e *CELEngine) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, expressionError("cel", "compile", expression, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, expressionError("cel", "program", expression, err)
	}
	return prg, nil
}

// activation fills in missing attributes with their zero value so that a
// partial document never fails at runtime.
func activation(data map[string]any) map[string]any {
	vars := make(map[string]any, len(celVariables))
	for _, v := range celVariables {
		if val, ok := data[v.name]; ok && val != nil {
			vars[v.name] = val
		} else {
			vars[v.name] = v.zero
		}
	}
	return vars
}

var _ Engine = (*CELEngine)(nil)
