package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/rendis/playbook2uml/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"config", newConfigError("bad", nil), ExitConfig},
		{"wrapped config", fmt.Errorf("outer: %w", newConfigError("bad", nil)), ExitConfig},
		{"schema config", schema.NewError(schema.ErrCodeConfig, "bad type"), ExitConfig},
		{"load", schema.NewError(schema.ErrCodeLoad, "broken"), ExitFailure},
		{"plain", errors.New("boom"), ExitFailure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "bad", newConfigError("bad", nil).Error())
	cause := errors.New("cause")
	err := newConfigError("bad", cause)
	assert.Equal(t, "bad: cause", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestHandleExitError(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, ExitSuccess, handleExitError(&buf, nil))
	assert.Empty(t, buf.String())

	assert.Equal(t, ExitConfig, handleExitError(&buf, newConfigError("no playbook", nil)))
	assert.Equal(t, "Error: no playbook\n", buf.String())
}
