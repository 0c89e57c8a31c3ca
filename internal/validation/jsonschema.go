package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/playbook2uml/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	playbookSchemaURL = "https://playbook2uml.dev/schemas/playbook.json"
	tasksSchemaURL    = "https://playbook2uml.dev/schemas/tasks.json"
)

// playbookSchemaJSON describes the shape of a playbook file. Only the keys the
// loader interprets are typed; everything else is accepted as-is.
const playbookSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://playbook2uml.dev/schemas/playbook.json",
  "type": "array",
  "items": { "$ref": "#/$defs/play" },
  "$defs": {
    "play": {
      "type": "object",
      "anyOf": [
        { "required": ["hosts"] },
        { "required": ["import_playbook"] },
        { "required": ["ansible.builtin.import_playbook"] }
      ],
      "properties": {
        "name": { "type": "string" },
        "hosts": { "$ref": "#/$defs/stringOrList" },
        "gather_facts": { "type": ["boolean", "string"] },
        "strategy": { "type": "string" },
        "serial": {},
        "vars_files": { "$ref": "#/$defs/stringOrList" },
        "vars_prompt": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["name"],
            "properties": {
              "name": { "type": "string", "minLength": 1 },
              "prompt": { "type": "string" },
              "private": { "type": ["boolean", "string"] }
            }
          }
        },
        "pre_tasks": { "$ref": "#/$defs/steps" },
        "tasks": { "$ref": "#/$defs/steps" },
        "post_tasks": { "$ref": "#/$defs/steps" },
        "handlers": { "$ref": "#/$defs/steps" },
        "roles": {
          "type": ["array", "null"],
          "items": {
            "oneOf": [
              { "type": "string", "minLength": 1 },
              {
                "type": "object",
                "anyOf": [{ "required": ["role"] }, { "required": ["name"] }]
              }
            ]
          }
        },
        "import_playbook": { "type": "string", "minLength": 1 },
        "ansible.builtin.import_playbook": { "type": "string", "minLength": 1 }
      }
    },
    "stringOrList": {
      "oneOf": [
        { "type": "string" },
        { "type": "array", "items": { "type": "string" } }
      ]
    },
    "steps": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/step" }
    },
    "step": {
      "type": "object",
      "minProperties": 1,
      "properties": {
        "name": { "type": "string" },
        "when": { "type": ["string", "boolean", "array"] },
        "block": { "$ref": "#/$defs/steps" },
        "rescue": { "$ref": "#/$defs/steps" },
        "always": { "$ref": "#/$defs/steps" },
        "until": { "type": "string" },
        "retries": { "type": ["integer", "string"] },
        "delay": { "type": ["integer", "string"] },
        "register": { "type": "string" },
        "delegate_to": { "type": "string" },
        "become_user": { "type": "string" },
        "loop": { "type": ["string", "array"] }
      },
      "dependentSchemas": {
        "rescue": { "required": ["block"] },
        "always": { "required": ["block"] }
      }
    }
  }
}`

// tasksSchemaJSON describes a task file (import_tasks target or role tasks).
const tasksSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://playbook2uml.dev/schemas/tasks.json",
  "$ref": "https://playbook2uml.dev/schemas/playbook.json#/$defs/steps"
}`

// JSONSchemaValidator implements the Validator interface using JSON Schema Draft 2020-12.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	playbookSchema *jsonschema.Schema
	tasksSchema    *jsonschema.Schema
}

var _ Validator = (*JSONSchemaValidator)(nil)

// NewJSONSchemaValidator creates a new JSONSchemaValidator with the document schemas pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	for _, res := range []struct{ url, doc string }{
		{playbookSchemaURL, playbookSchemaJSON},
		{tasksSchemaURL, tasksSchemaJSON},
	} {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(res.doc))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", res.url, err)
		}
		if err := c.AddResource(res.url, doc); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", res.url, err)
		}
	}

	pbSchema, err := c.Compile(playbookSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile playbook schema: %w", err)
	}
	tasksSchema, err := c.Compile(tasksSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile tasks schema: %w", err)
	}

	return &JSONSchemaValidator{playbookSchema: pbSchema, tasksSchema: tasksSchema}, nil
}

// ValidatePlaybook validates a decoded playbook file.
func (v *JSONSchemaValidator) ValidatePlaybook(doc any) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "playbook is empty")
	}
	return validate(v.playbookSchema, doc)
}

// ValidateTasks validates a decoded task file. An empty file is valid.
func (v *JSONSchemaValidator) ValidateTasks(doc any) error {
	return validate(v.tasksSchema, doc)
}

func validate(s *jsonschema.Schema, doc any) error {
	val, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "document is not representable as JSON").WithCause(err)
	}
	if err := s.Validate(val); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toSchemaError converts a jsonschema.ValidationError into a schema.Error
// listing every violation with its document location.
func toSchemaError(err error) *schema.Error {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
