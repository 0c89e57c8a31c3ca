package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlayDisplayName(t *testing.T) {
	assert.Equal(t, "web", (&Play{Name: "web", Hosts: []string{"all"}}).DisplayName())
	assert.Equal(t, "web,db", (&Play{Hosts: []string{"web", "db"}}).DisplayName())
}

func TestPlayGroups(t *testing.T) {
	pre := &Task{Action: "ping"}
	role := &Task{Action: "apt"}
	main := &Task{Action: "debug"}
	post := &Task{Action: "shell"}
	p := &Play{
		PreTasks: []Step{pre},
		Roles: []*Role{
			{Name: "common", Tasks: []Step{role}},
			{Name: "dynamic", FromInclude: true, Tasks: []Step{&Task{Action: "fail"}}},
		},
		Tasks:     []Step{main},
		PostTasks: []Step{post},
	}

	groups := p.Groups()
	assert.Equal(t, [][]Step{{pre}, {role}, {main}, {post}}, groups)
}

func TestTaskDisplayName(t *testing.T) {
	tests := []struct {
		name string
		task Task
		want string
	}{
		{"named", Task{Name: "install", Action: "apt"}, "install"},
		{"action fallback", Task{Action: "apt"}, "apt"},
		{"role prefix", Task{Name: "install", Action: "apt", Role: "nginx"}, "nginx : install"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.DisplayName())
		})
	}
}

func TestTaskPredicates(t *testing.T) {
	yes := true
	plain := &Task{Action: "ping"}
	assert.False(t, plain.HasLoop())
	assert.False(t, plain.HasRetry())
	assert.False(t, plain.HasAnnotations())

	assert.True(t, (&Task{Loop: []any{"a"}}).HasLoop())
	assert.True(t, (&Task{Until: "r.ok"}).HasRetry())
	assert.True(t, (&Task{Become: &yes}).HasAnnotations())
	assert.True(t, (&Task{Register: "out"}).HasAnnotations())
	assert.True(t, (&Task{DelegateTo: "localhost"}).HasAnnotations())
}

func TestBlockIsExplicit(t *testing.T) {
	body := []Step{&Task{Action: "ping"}}
	assert.False(t, (&Block{Block: body}).IsExplicit())
	assert.False(t, (&Block{When: []string{"x"}, Block: body}).IsExplicit())
	assert.True(t, (&Block{Name: "b", Block: body}).IsExplicit())
	assert.True(t, (&Block{Block: body, Rescue: body}).IsExplicit())
	assert.True(t, (&Block{Block: body, Always: body}).IsExplicit())
}
