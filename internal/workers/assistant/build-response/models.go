// internal/workers/assistant/build-response/models.go
package buildresponse

import "agentic-assistant/internal/models"

type Input struct {
	RequestID        string                   `json:"request_id"`
	SessionID        string                   `json:"session_id,omitempty"`
	InputType        models.InputType         `json:"input_type,omitempty"`
	ExtractedContent *models.ExtractedContent `json:"extracted_content,omitempty"`
	ExecutionPlan    *models.ExecutionPlan    `json:"execution_plan,omitempty"`
	CostEstimate     *models.CostEstimate     `json:"cost_estimate,omitempty"`
	Result           *models.TaskResult       `json:"result,omitempty"`
	ErrorCode        string                   `json:"error_code,omitempty"`
	ErrorMessage     string                   `json:"error_message,omitempty"`
	Logs             []string                 `json:"logs,omitempty"`
	PriorTotal       float64                  `json:"prior_total"`
}

type Output struct {
	Response  models.Response `json:"response"`
	CostDelta float64         `json:"cost_delta"`
}
