package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/rendis/playbook2uml/pkg/schema"
)

// Exit codes of the playbook2uml command.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitConfig  = 2
)

// ExitError is an error that carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// newConfigError reports invalid invocation or configuration, detected
// before any generation starts.
func newConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Cause: cause}
}

// exitCode maps err to the process exit code. Configuration errors raised by
// the library packages count as configuration errors too.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if schema.HasCode(err, schema.ErrCodeConfig) {
		return ExitConfig
	}
	return ExitFailure
}

// handleExitError prints err and returns the exit code to use.
func handleExitError(w io.Writer, err error) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(w, "Error:", err.Error())
	return exitCode(err)
}
