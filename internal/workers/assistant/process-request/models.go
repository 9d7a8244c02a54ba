// internal/workers/assistant/process-request/models.go
package processrequest

import "agentic-assistant/internal/models"

// Input carries the process variables a start form or an upstream task provides.
type Input struct {
	Text                  string `json:"text,omitempty"`
	ClarificationResponse string `json:"clarification_response,omitempty"`
	PreviousRequestID     string `json:"previous_request_id,omitempty"`
	SessionID             string `json:"session_id,omitempty"`
	FileName              string `json:"file_name,omitempty"`
	FileBase64            string `json:"file_base64,omitempty"`
}

// Output is flattened so gateways can branch on status and request_id directly.
type Output struct {
	RequestID string          `json:"request_id"`
	SessionID string          `json:"session_id"`
	Status    models.Status   `json:"status"`
	TotalCost float64         `json:"total_cost"`
	Response  models.Response `json:"response"`
}
