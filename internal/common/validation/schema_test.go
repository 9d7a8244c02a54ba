package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProcessRequest(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]interface{}
		valid     bool
		errorOn   string
		errorCode string
	}{
		{
			name:   "plain text",
			fields: map[string]interface{}{"text": "Summarize this: hello"},
			valid:  true,
		},
		{
			name: "resume with uuid",
			fields: map[string]interface{}{
				"previous_request_id":    "3f1c2a0e-8c1b-4a57-9c55-0d7f4c1e2b3a",
				"clarification_response": "extract the content",
			},
			valid: true,
		},
		{
			name:   "empty values are skipped",
			fields: map[string]interface{}{"text": "", "session_id": ""},
			valid:  true,
		},
		{
			name:      "bad request id",
			fields:    map[string]interface{}{"previous_request_id": "../../etc/passwd"},
			errorOn:   "previous_request_id",
			errorCode: "PATTERN_MISMATCH",
		},
		{
			name:      "oversized clarification",
			fields:    map[string]interface{}{"clarification_response": strings.Repeat("a", 2001)},
			errorOn:   "clarification_response",
			errorCode: "MAX_LENGTH_VIOLATION",
		},
		{
			name:      "unknown field",
			fields:    map[string]interface{}{"prompt": "x"},
			errorOn:   "prompt",
			errorCode: "EXTRA_FIELD",
		},
		{
			name:      "wrong type",
			fields:    map[string]interface{}{"text": 42.0},
			errorOn:   "text",
			errorCode: "INVALID_TYPE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateProcessRequest(tt.fields)
			assert.Equal(t, tt.valid, result.Valid, result.Summary())
			if !tt.valid {
				assert.True(t, result.HasErrors(tt.errorOn))
				assert.Equal(t, tt.errorCode, result.Errors[0].Code)
			}
		})
	}
}

func TestSchema_NestedAndInteger(t *testing.T) {
	schema, err := CompileSchema(`{
	  "type": "object",
	  "required": ["usage"],
	  "properties": {
	    "usage": {
	      "type": "object",
	      "required": ["input_tokens"],
	      "properties": {"input_tokens": {"type": "integer", "minimum": 0}}
	    }
	  }
	}`)
	require.NoError(t, err)

	ok := schema.Validate(map[string]interface{}{"usage": map[string]interface{}{"input_tokens": 12.0}})
	assert.True(t, ok.Valid)

	bad := schema.Validate(map[string]interface{}{"usage": map[string]interface{}{"input_tokens": 1.5}})
	assert.False(t, bad.Valid)
	assert.True(t, bad.HasErrors("usage.input_tokens"), bad.Summary())
	assert.Equal(t, "INVALID_TYPE", bad.Errors[0].Code)

	negative := schema.Validate(map[string]interface{}{"usage": map[string]interface{}{"input_tokens": -1.0}})
	assert.True(t, negative.HasErrors("usage.input_tokens"), negative.Summary())
	assert.Equal(t, "MINIMUM_VIOLATION", negative.Errors[0].Code)

	missingNested := schema.Validate(map[string]interface{}{"usage": map[string]interface{}{}})
	assert.True(t, missingNested.HasErrors("usage.input_tokens"), missingNested.Summary())

	missing := schema.Validate(map[string]interface{}{})
	require.Len(t, missing.Errors, 1)
	assert.Equal(t, "usage", missing.Errors[0].Field)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", missing.Errors[0].Code)
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema(`{"type": 12}`)
	assert.Error(t, err)
}

func TestValidateTaskID(t *testing.T) {
	assert.NoError(t, ValidateTaskID("code_explanation"))
	assert.NoError(t, ValidateTaskID("summarization"))
	assert.Error(t, ValidateTaskID("Code-Explanation"))
	assert.Error(t, ValidateTaskID("sentiment__analysis"))
}
