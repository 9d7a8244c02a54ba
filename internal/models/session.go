package models

import "time"

// PendingRequest is a request paused while it waits for a clarification answer.
type PendingRequest struct {
	RequestID        string           `json:"request_id"`
	SessionID        string           `json:"session_id,omitempty"`
	InputType        InputType        `json:"input_type"`
	ExtractedContent ExtractedContent `json:"extracted_content"`
	DraftPlan        ExecutionPlan    `json:"draft_plan"`
	CreatedAt        time.Time        `json:"created_at"`
}

// IsExpired reports whether the entry is older than ttl at now.
func (p *PendingRequest) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}
