package validation

import (
	"sync"
	"testing"

	"github.com/rendis/playbook2uml/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, src string) any {
	t.Helper()
	var doc any
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	return doc
}

func newValidator(t *testing.T) *JSONSchemaValidator {
	t.Helper()
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	return v
}

func requireValidationError(t *testing.T, err error) *schema.Error {
	t.Helper()
	require.Error(t, err)
	sErr, ok := err.(*schema.Error)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, sErr.Code)
	return sErr
}

func TestNewJSONSchemaValidator(t *testing.T) {
	v := newValidator(t)
	assert.NotNil(t, v.playbookSchema)
	assert.NotNil(t, v.tasksSchema)
}

// --- ValidatePlaybook ---

func TestValidatePlaybook_Nil(t *testing.T) {
	err := newValidator(t).ValidatePlaybook(nil)
	sErr := requireValidationError(t, err)
	assert.Contains(t, sErr.Message, "empty")
}

func TestValidatePlaybook_MinimalValid(t *testing.T) {
	doc := decode(t, `
- hosts: all
  tasks:
    - debug: msg=hello
`)
	assert.NoError(t, newValidator(t).ValidatePlaybook(doc))
}

func TestValidatePlaybook_FullValid(t *testing.T) {
	doc := decode(t, `
- name: site
  hosts: [web, db]
  gather_facts: false
  strategy: free
  serial: 2
  vars_files: [vars/main.yml]
  vars_prompt:
    - name: user
      prompt: Who?
      private: no
  roles:
    - common
    - role: nginx
  pre_tasks:
    - name: ping
      ping:
  tasks:
    - name: install
      apt:
        name: nginx
      when: ansible_os_family == "Debian"
      loop: [a, b]
      register: out
    - name: wait
      uri: url=http://localhost
      until: out.status == 200
      retries: 5
      delay: "10"
    - block:
        - command: /bin/true
      rescue:
        - debug: msg=failed
      always:
        - debug: msg=done
  post_tasks:
- import_playbook: other.yml
`)
	assert.NoError(t, newValidator(t).ValidatePlaybook(doc))
}

func TestValidatePlaybook_NotAList(t *testing.T) {
	doc := decode(t, `hosts: all`)
	requireValidationError(t, newValidator(t).ValidatePlaybook(doc))
}

func TestValidatePlaybook_PlayWithoutHosts(t *testing.T) {
	doc := decode(t, `
- name: no hosts
  tasks: []
`)
	requireValidationError(t, newValidator(t).ValidatePlaybook(doc))
}

func TestValidatePlaybook_TasksNotAList(t *testing.T) {
	doc := decode(t, `
- hosts: all
  tasks:
    name: not a list
`)
	sErr := requireValidationError(t, newValidator(t).ValidatePlaybook(doc))
	violations, ok := sErr.Details["violations"].([]string)
	require.True(t, ok)
	assert.Contains(t, violations[0], "/0/tasks")
}

func TestValidatePlaybook_RescueWithoutBlock(t *testing.T) {
	doc := decode(t, `
- hosts: all
  tasks:
    - rescue:
        - debug: msg=x
`)
	requireValidationError(t, newValidator(t).ValidatePlaybook(doc))
}

func TestValidatePlaybook_MultipleErrors(t *testing.T) {
	doc := decode(t, `
- hosts: 42
  tasks:
    - name: [not, a, string]
      retries: many times
`)
	sErr := requireValidationError(t, newValidator(t).ValidatePlaybook(doc))
	violations, ok := sErr.Details["violations"].([]string)
	require.True(t, ok)
	assert.Greater(t, len(violations), 1)
	assert.Contains(t, sErr.Message, "validation failed with")
}

// --- ValidateTasks ---

func TestValidateTasks_Valid(t *testing.T) {
	doc := decode(t, `
- name: one
  debug: msg=1
- block:
    - debug: msg=2
`)
	assert.NoError(t, newValidator(t).ValidateTasks(doc))
}

func TestValidateTasks_EmptyFile(t *testing.T) {
	assert.NoError(t, newValidator(t).ValidateTasks(nil))
}

func TestValidateTasks_ScalarItem(t *testing.T) {
	doc := decode(t, `
- just a string
`)
	requireValidationError(t, newValidator(t).ValidateTasks(doc))
}

func TestValidate_NonJSONKeys(t *testing.T) {
	doc := []any{map[any]any{1: "x"}}
	sErr := requireValidationError(t, newValidator(t).ValidateTasks(doc))
	assert.Error(t, sErr.Cause)
}

func TestValidatePlaybook_Concurrent(t *testing.T) {
	v := newValidator(t)
	doc := decode(t, `
- hosts: all
  tasks:
    - debug: msg=hello
`)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, v.ValidatePlaybook(doc))
		}()
	}
	wg.Wait()
}

func TestJSONSchemaValidator_ImplementsValidator(t *testing.T) {
	var _ Validator = newValidator(t)
}
