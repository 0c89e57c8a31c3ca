package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with an isolated home directory.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRun_PlantUML(t *testing.T) {
	out, _, err := execute(t, "-T", "Site", "testdata/site.yml")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "@startuml\ntitle Site\n"))
	assert.True(t, strings.HasSuffix(out, "@enduml\n"))
	assert.Contains(t, out, "install")
	assert.Contains(t, out, "ping")
}

func TestRun_Mermaid(t *testing.T) {
	out, _, err := execute(t, "--type", "mermaid", "-L", "testdata/site.yml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "stateDiagram-v2\n    direction LR\n"))
}

func TestRun_EnvOverridesSettings(t *testing.T) {
	t.Setenv("PLAYBOOK2UML_TYPE", "mermaid")
	out, _, err := execute(t, "testdata/site.yml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "stateDiagram-v2\n"))
}

func TestRun_ConfigFileAndFlagPriority(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("type: mermaid\ntitle: From file\n"), 0o644))

	out, _, err := execute(t, "--config", cfgPath, "testdata/site.yml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "---\ntitle: From file\n---\nstateDiagram-v2\n"))

	out, _, err = execute(t, "--config", cfgPath, "-t", "plantuml", "-T", "From flag", "testdata/site.yml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "@startuml\ntitle From flag\n"))
}

func TestRun_Role(t *testing.T) {
	out, _, err := execute(t, "--role", "common", "testdata")
	require.NoError(t, err)
	assert.Contains(t, out, "common : hello")
	assert.NotContains(t, out, "Play:")
}

func TestRun_Select(t *testing.T) {
	out, _, err := execute(t, "--select", `expr:name == "db"`, "testdata/site.yml")
	require.NoError(t, err)
	assert.Contains(t, out, "ping")
	assert.NotContains(t, out, "install")
}

func TestRun_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.puml")
	out, _, err := execute(t, "-o", path, "testdata/site.yml")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "@startuml\n"))
}

func TestRun_Image(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.png")
	_, _, err := execute(t, "--image", "-o", path, "testdata/site.yml")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 4)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestRun_VerboseLogsToStderr(t *testing.T) {
	out, errOut, err := execute(t, "-vv", "--log-format", "json", "testdata/site.yml")
	require.NoError(t, err)
	assert.Contains(t, out, "@startuml")
	assert.Contains(t, errOut, `"run_id"`)
	assert.NotContains(t, out, "run_id")
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no argument", nil},
		{"two arguments", []string{"a.yml", "b.yml"}},
		{"missing playbook", []string{"testdata/missing.yml"}},
		{"playbook is a directory", []string{"testdata"}},
		{"base dir missing", []string{"--role", "common", "testdata/nope"}},
		{"base dir is a file", []string{"--role", "common", "testdata/site.yml"}},
		{"unknown type", []string{"-t", "dot", "testdata/site.yml"}},
		{"unknown log format", []string{"--log-format", "xml", "testdata/site.yml"}},
		{"tasks-from without role", []string{"--tasks-from", "setup", "testdata/site.yml"}},
		{"image without output", []string{"--image", "testdata/site.yml"}},
		{"missing config file", []string{"--config", "testdata/none.yaml", "testdata/site.yml"}},
		{"empty selector", []string{"--select", " ", "testdata/site.yml"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := execute(t, tc.args...)
			require.Error(t, err)
			assert.Equal(t, ExitConfig, exitCode(err), err.Error())
			assert.Empty(t, out)
		})
	}
}

func TestRun_GenerationErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown role", []string{"--role", "ghost", "testdata"}},
		{"non boolean selector", []string{"--select", ".name", "testdata/site.yml"}},
		{"empty explicit block", []string{"testdata/empty_block.yml"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := execute(t, tc.args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, exitCode(err), err.Error())
			assert.Empty(t, out)
		})
	}
}

func TestRun_FailedRenderWritesNoFile(t *testing.T) {
	for _, extra := range [][]string{nil, {"--image"}} {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.puml")
		args := append(append([]string{"-o", path}, extra...), "testdata/empty_block.yml")

		_, _, err := execute(t, args...)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, exitCode(err))
		assert.NoFileExists(t, path)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "temporary output left behind")
	}
}

func TestRun_FailedRenderKeepsPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.puml")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))

	_, _, err := execute(t, "-o", path, "testdata/empty_block.yml")
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(data))
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}
