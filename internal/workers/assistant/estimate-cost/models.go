// internal/workers/assistant/estimate-cost/models.go
package estimatecost

import "agentic-assistant/internal/models"

type Input struct {
	ExecutionPlan models.ExecutionPlan `json:"execution_plan"`
	// ContentSize is the extracted text length in characters.
	ContentSize int `json:"content_size"`
}

type Output struct {
	CostEstimate models.CostEstimate `json:"cost_estimate"`
}
