// internal/workers/assistant/execute-task/models.go
package executetask

import "agentic-assistant/internal/models"

type Input struct {
	ExecutionPlan    models.ExecutionPlan    `json:"execution_plan"`
	ExtractedContent models.ExtractedContent `json:"extracted_content"`
}

type Output struct {
	Result models.TaskResult `json:"result"`
}
