// internal/workers/assistant/build-response/contract.go
package buildresponse

import "github.com/xeipuuv/gojsonschema"

const responseContractJSON = `{
  "type": "object",
  "required": ["request_id", "status", "logs", "total_cost", "timestamp"],
  "properties": {
    "request_id": {"type": "string", "minLength": 1},
    "status":     {"enum": ["completed", "needs_clarification", "failed"]},
    "total_cost": {"type": "number", "minimum": 0},
    "logs":       {"type": "array", "items": {"type": "string"}}
  },
  "allOf": [
    {
      "if":   {"properties": {"status": {"const": "completed"}}},
      "then": {
        "required": ["result", "execution_plan"],
        "properties": {"result": {"required": ["task_type", "output", "actual_cost"]}}
      }
    },
    {
      "if":   {"properties": {"status": {"const": "needs_clarification"}}},
      "then": {
        "required": ["clarification_question"],
        "properties": {"clarification_question": {"type": "string", "minLength": 1}},
        "not": {"required": ["result"]}
      }
    },
    {
      "if":   {"properties": {"status": {"const": "failed"}}},
      "then": {
        "required": ["error_message", "error_code"],
        "properties": {"error_message": {"type": "string", "minLength": 1}},
        "not": {"required": ["result"]}
      }
    }
  ]
}`

var responseContract = mustCompile(responseContractJSON)

func mustCompile(raw string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		panic("invalid response contract: " + err.Error())
	}
	return schema
}
