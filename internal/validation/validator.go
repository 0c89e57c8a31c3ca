package validation

// Validator checks raw playbook documents for structural correctness before
// they are turned into the source tree. Documents are the generic values
// produced by YAML decoding. Uses JSON Schema Draft 2020-12.
type Validator interface {
	ValidatePlaybook(doc any) error
	ValidateTasks(doc any) error
}
