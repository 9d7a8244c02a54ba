package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const processRequestSchemaJSON = `{
  "type": "object",
  "properties": {
    "text":                   {"type": "string", "maxLength": 100000},
    "clarification_response": {"type": "string", "maxLength": 2000},
    "previous_request_id":    {"type": "string", "pattern": "^[A-Za-z0-9-]{1,64}$"},
    "session_id":             {"type": "string", "pattern": "^[A-Za-z0-9_.:-]{1,128}$"},
    "file_name":              {"type": "string", "maxLength": 255},
    "file_base64":            {"type": "string"}
  },
  "additionalProperties": false
}`

// ProcessRequestSchema is the schema for the scalar fields of a process request.
var ProcessRequestSchema = mustSchema(processRequestSchemaJSON)

func mustSchema(raw string) *Schema {
	schema, err := CompileSchema(raw)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return schema
}

// ValidateProcessRequest checks the scalar request fields, skipping empty values.
func ValidateProcessRequest(fields map[string]interface{}) *ValidationResult {
	present := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		present[k] = v
	}
	return ProcessRequestSchema.Validate(present)
}

// Summary joins the errors into one line for an error_message.
func (vr *ValidationResult) Summary() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

var taskIDPattern = regexp.MustCompile(`^[a-z]+(_[a-z]+)*$`)

// ValidateTaskID checks a registry task id is a lower snake_case name.
func ValidateTaskID(id string) error {
	if !taskIDPattern.MatchString(id) {
		return fmt.Errorf("task id %q must be lower snake_case (e.g. code_explanation)", id)
	}
	return nil
}
