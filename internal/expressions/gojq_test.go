package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/rendis/playbook2uml/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoJQEngine(t *testing.T) {
	e := NewGoJQEngine()
	assert.NotNil(t, e)
	assert.Equal(t, "jq", e.Name())
}

// --- Interface compliance ---

func TestGoJQEngine_ImplementsEngine(t *testing.T) {
	var _ Engine = (*GoJQEngine)(nil)
}

// --- Basic evaluation ---

func TestGoJQ_SelectField(t *testing.T) {
	e := NewGoJQEngine()
	data := map[string]any{"name": "site", "strategy": "free"}

	out, err := e.Evaluate(context.Background(), ".name", data)
	require.NoError(t, err)
	assert.Equal(t, "site", out)
}

func TestGoJQ_HostMembership(t *testing.T) {
	e := NewGoJQEngine()
	data := map[string]any{"hosts": []any{"web", "db"}}

	out, err := e.Evaluate(context.Background(), `any(.hosts[]; . == "web")`, data)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), `any(.hosts[]; . == "cache")`, data)
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestGoJQ_IntegersNormalized(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".index > 1", map[string]any{"index": 2})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(context.Background(), ".index", map[string]any{"index": 2})
	require.NoError(t, err)
	assert.Equal(t, float64(2), out)
}

func TestGoJQ_NullResult(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".missing", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQ_MultipleOutputs(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), ".hosts[]", map[string]any{"hosts": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestGoJQ_NoOutput(t *testing.T) {
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), "empty", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

// --- Errors ---

func TestGoJQ_EmptyExpression(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
}

func TestGoJQ_ParseError(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), ".name |||", nil)
	require.Error(t, err)

	sErr, ok := err.(*schema.Error)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeExpression, sErr.Code)
	assert.Contains(t, sErr.Message, "parse error")
	assert.Equal(t, ".name |||", sErr.Details["expression"])
}

func TestGoJQ_RuntimeError(t *testing.T) {
	e := NewGoJQEngine()

	_, err := e.Evaluate(context.Background(), ".name + 1", map[string]any{"name": "site"})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExpression))
}

func TestGoJQ_Sandbox_NoEnvAccess(t *testing.T) {
	t.Setenv("PLAYBOOK2UML_SECRET", "leak")
	e := NewGoJQEngine()

	out, err := e.Evaluate(context.Background(), "$ENV.PLAYBOOK2UML_SECRET", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

// --- Caching & concurrency ---

func TestGoJQ_Caching(t *testing.T) {
	e := NewGoJQEngine()

	for range 3 {
		_, err := e.Evaluate(context.Background(), ".name", map[string]any{"name": "x"})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, e.programs.len())
}

func TestGoJQ_Concurrent(t *testing.T) {
	e := NewGoJQEngine()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), ".index", map[string]any{"index": i})
			assert.NoError(t, err)
			assert.Equal(t, float64(i), out)
		}()
	}
	wg.Wait()
}

func TestJQValue(t *testing.T) {
	in := map[string]any{
		"i":     1,
		"i64":   int64(2),
		"f32":   float32(1.5),
		"list":  []any{3, "x"},
		"hosts": []string{"a"},
		"nil":   nil,
	}

	out := jqValue(in).(map[string]any)

	assert.Equal(t, float64(1), out["i"])
	assert.Equal(t, float64(2), out["i64"])
	assert.Equal(t, float64(1.5), out["f32"])
	assert.Equal(t, []any{float64(3), "x"}, out["list"])
	assert.Equal(t, []any{"a"}, out["hosts"])
	assert.Nil(t, out["nil"])
}
