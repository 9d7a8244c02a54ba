// internal/workers/assistant/plan-intent/models.go
package planintent

import "agentic-assistant/internal/models"

type Input struct {
	ExtractedContent models.ExtractedContent `json:"extracted_content"`
	UserText         string                  `json:"user_text,omitempty"`
	// DraftPlan is set when the call resumes a clarification; UserText then holds the answer.
	DraftPlan *models.ExecutionPlan `json:"draft_plan,omitempty"`
}

type Output struct {
	ExecutionPlan models.ExecutionPlan `json:"execution_plan"`
}
