package diagram

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rendis/playbook2uml/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// transitionLines keeps the "from --> to" part of every transition line.
func transitionLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if !strings.Contains(l, " --> ") {
			continue
		}
		if i := strings.Index(l, " : "); i >= 0 {
			l = l[:i]
		}
		out = append(out, l)
	}
	return out
}

func complexPlaybook() *schema.Playbook {
	loop := guarded(task("packages", "apt"), "install_packages")
	loop.Loop = []any{"git", "curl"}
	loop.LoopWith = "items"

	retry := task("wait", "uri")
	retry.Until = "r.ok"
	retry.Retries = 3
	retry.Delay = 5

	return &schema.Playbook{Plays: []*schema.Play{
		{
			Name:     "setup",
			Hosts:    []string{"all"},
			PreTasks: []schema.Step{task("ping", "ping")},
			Tasks: []schema.Step{
				loop,
				&schema.Block{
					Name:   "deploy",
					When:   []string{"deploy_enabled"},
					Block:  []schema.Step{task("copy", "copy"), retry},
					Rescue: []schema.Step{task("rollback", "command")},
					Always: []schema.Step{task("cleanup", "file")},
				},
			},
		},
		{
			Name:  "verify",
			Hosts: []string{"web"},
			Tasks: []schema.Step{guarded(task("check", "uri"), "verify", "strict")},
		},
	}}
}

func TestGenerateNotationParity(t *testing.T) {
	puml := generate(t, complexPlaybook(), PlantUML{}, Options{})
	mmd := generate(t, complexPlaybook(), Mermaid{}, Options{})

	pumlEdges := transitionLines(puml)
	require.NotEmpty(t, pumlEdges)
	assert.Equal(t, pumlEdges, transitionLines(mmd))

	wf := build(t, complexPlaybook())
	edges, err := Transitions(wf)
	require.NoError(t, err)
	require.Len(t, pumlEdges, len(edges))
	for i, e := range edges {
		assert.Equal(t, e.From+" --> "+e.To, pumlEdges[i])
	}
}

func TestGenerateDeterministic(t *testing.T) {
	first := generate(t, complexPlaybook(), PlantUML{}, Options{})
	second := generate(t, complexPlaybook(), PlantUML{}, Options{})

	assert.Equal(t, first, second)
	assert.Contains(t, first, `state "= Play: setup" as play_1 {`)
	assert.Contains(t, first, `state "= Play: verify" as play_2 {`)
}

func TestGenerateIdentifiersIncrease(t *testing.T) {
	got := generate(t, complexPlaybook(), PlantUML{}, Options{})

	var tasks []string
	for _, l := range got {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, `state "== `) {
			tasks = append(tasks, l[strings.LastIndex(l, " as ")+4:])
		}
	}
	assert.Equal(t, []string{"task_1", "task_2", "task_3", "task_4", "task_5", "task_6", "task_7"}, tasks)
}

func TestGenerateRoleOnly(t *testing.T) {
	pb := &schema.Playbook{Plays: []*schema.Play{{
		Hosts: []string{"localhost"},
		Roles: []*schema.Role{{
			Name: "nginx",
			Tasks: []schema.Step{
				&schema.Task{Name: "install", Action: "apt", Role: "nginx"},
				&schema.Task{Action: "meta", Role: "nginx", Implicit: true},
			},
		}},
	}}}

	for _, r := range []Renderer{PlantUML{}, Mermaid{}} {
		got := generate(t, pb, r, Options{RoleOnly: true})

		joined := strings.Join(got, "\n")
		assert.NotContains(t, joined, "play_1", r.Name())
		assert.NotContains(t, joined, "Play:", r.Name())
		assert.Contains(t, joined, "nginx : install", r.Name())
		assert.Contains(t, got, strings.Repeat(indent, r.BaseLevel())+"[*] --> task_1", r.Name())
	}
}

func TestGenerateEmptyBlockAborts(t *testing.T) {
	pb := playbookOf(task("a", "debug"), &schema.Block{Name: "empty"})

	var (
		got    []string
		genErr error
	)
	for line, err := range Generate(context.Background(), pb, PlantUML{}, Options{}, nil) {
		if err != nil {
			genErr = err
			break
		}
		got = append(got, line)
	}

	require.Error(t, genErr)
	assert.True(t, schema.HasCode(genErr, schema.ErrCodeInvariant))
	assert.NotContains(t, got, "@enduml")
}

func TestGenerateNilPlaybook(t *testing.T) {
	for _, err := range Generate(context.Background(), nil, Mermaid{}, Options{}, nil) {
		require.Error(t, err)
		return
	}
	t.Fatal("expected an error")
}

func TestGenerateStopsEarly(t *testing.T) {
	var got []string
	for line, err := range Generate(context.Background(), complexPlaybook(), PlantUML{}, Options{}, nil) {
		require.NoError(t, err)
		got = append(got, line)
		if len(got) == 5 {
			break
		}
	}
	assert.Len(t, got, 5)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	err := Render(context.Background(), &buf, sitePlaybook(), PlantUML{}, Options{}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "@startuml\n"))
	assert.True(t, strings.HasSuffix(out, "@enduml\n"))
}

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer("PlantUML")
	require.NoError(t, err)
	assert.Equal(t, "plantuml", r.Name())

	r, err = NewRenderer(DiagramTypeMermaid)
	require.NoError(t, err)
	assert.Equal(t, 1, r.BaseLevel())

	_, err = NewRenderer("dot")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConfig))
}
