// internal/workers/assistant/plan-intent/handler.go
package planintent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/models"
	"agentic-assistant/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "assistant-plan-intent"

var (
	ErrInvalidContent      = errors.New("INVALID_CONTENT")
	ErrRepeatClarification = errors.New("REPEAT_CLARIFICATION")
)

type Handler struct {
	config     *Config
	classifier *classifier
	logger     logger.Logger
}

func NewHandler(config *Config, reg *registry.TaskRegistry, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		classifier: newClassifier(reg, config.MaxInstructionRunes),
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, fmt.Errorf("parse input: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

// Plan classifies content and the user's text into an execution plan. A non-nil draft marks a
// resumed request, which always comes back executable.
func (h *Handler) Plan(content *models.ExtractedContent, userText string, draft *models.ExecutionPlan) models.ExecutionPlan {
	return h.classifier.plan(content, userText, draft)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := input.ExtractedContent.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	plan := h.Plan(&input.ExtractedContent, input.UserText, input.DraftPlan)
	if input.DraftPlan != nil && plan.NeedsClarification {
		return nil, ErrRepeatClarification
	}

	h.logger.Info("plan created", map[string]interface{}{
		"planTask":           plan.TaskType,
		"needsClarification": plan.NeedsClarification,
		"signal":             plan.Param(models.ParamSignal),
		"resumed":            input.DraftPlan != nil,
	})

	return &Output{ExecutionPlan: plan}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	errorCode := "PLANNING_FAILED"
	if errors.Is(err, ErrInvalidContent) {
		errorCode = "INVALID_CONTENT"
	}

	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":    job.Key,
		"error":     err.Error(),
		"errorCode": errorCode,
	})

	_, _ = client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(0).
		ErrorMessage(errorCode + ": " + err.Error()).
		Send(context.Background())
}
