package models

import "time"

// Status is the outcome of one request.
type Status string

const (
	StatusCompleted          Status = "completed"
	StatusNeedsClarification Status = "needs_clarification"
	StatusFailed             Status = "failed"
)

// Response is the outward contract returned for every request.
type Response struct {
	RequestID             string            `json:"request_id"`
	SessionID             string            `json:"session_id,omitempty"`
	Status                Status            `json:"status"`
	InputType             InputType         `json:"input_type,omitempty"`
	ExtractedContent      *ExtractedContent `json:"extracted_content,omitempty"`
	ExecutionPlan         *ExecutionPlan    `json:"execution_plan,omitempty"`
	CostEstimate          *CostEstimate     `json:"cost_estimate,omitempty"`
	Result                *TaskResult       `json:"result,omitempty"`
	ClarificationQuestion string            `json:"clarification_question,omitempty"`
	ErrorCode             string            `json:"error_code,omitempty"`
	ErrorMessage          string            `json:"error_message,omitempty"`
	Logs                  []string          `json:"logs"`
	TotalCost             float64           `json:"total_cost"`
	Timestamp             time.Time         `json:"timestamp"`
}
