// internal/workers/assistant/build-response/handler.go
package buildresponse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"
)

const TaskType = "assistant-build-response"

var (
	ErrIncomplete     = errors.New("RESPONSE_INCOMPLETE")
	ErrResultMismatch = errors.New("RESULT_MISMATCH")
	ErrContract       = errors.New("RESPONSE_INVALID")
)

type Handler struct {
	config *Config
	logger logger.Logger
	now    func() time.Time
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:    time.Now,
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

	output, err := h.Execute(context.Background(), &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	output, err := h.Assemble(input)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("response assembled", map[string]interface{}{
		"requestId": output.Response.RequestID,
		"status":    output.Response.Status,
		"costDelta": output.CostDelta,
		"totalCost": output.Response.TotalCost,
	})
	return output, nil
}

// Assemble builds the outward response. Only a completed response carries a result, and only its
// actual cost is added to the prior total.
func (h *Handler) Assemble(input *Input) (*Output, error) {
	if strings.TrimSpace(input.RequestID) == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrIncomplete)
	}

	resp := models.Response{
		RequestID:        input.RequestID,
		SessionID:        input.SessionID,
		InputType:        input.InputType,
		ExtractedContent: input.ExtractedContent,
		ExecutionPlan:    input.ExecutionPlan,
		CostEstimate:     input.CostEstimate,
		Logs:             h.logs(input.Logs),
		TotalCost:        round6(input.PriorTotal),
		Timestamp:        h.now().UTC(),
	}

	var delta float64
	switch {
	case input.ErrorCode != "" || input.ErrorMessage != "":
		resp.Status = models.StatusFailed
		resp.ErrorCode = input.ErrorCode
		resp.ErrorMessage = input.ErrorMessage
		if resp.ErrorCode == "" {
			resp.ErrorCode = "INTERNAL_ERROR"
		}
		if resp.ErrorMessage == "" {
			resp.ErrorMessage = "request failed"
		}

	case input.ExecutionPlan != nil && input.ExecutionPlan.NeedsClarification:
		resp.Status = models.StatusNeedsClarification
		resp.ClarificationQuestion = input.ExecutionPlan.ClarificationQuestion
		resp.CostEstimate = nil

	case input.Result != nil:
		if input.ExecutionPlan != nil && input.Result.TaskType != input.ExecutionPlan.TaskType {
			return nil, fmt.Errorf("%w: plan %s, result %s", ErrResultMismatch, input.ExecutionPlan.TaskType, input.Result.TaskType)
		}
		if input.Result.Output == nil || input.Result.Output.TaskType() != input.Result.TaskType {
			return nil, fmt.Errorf("%w: output does not match %s", ErrResultMismatch, input.Result.TaskType)
		}
		resp.Status = models.StatusCompleted
		resp.Result = input.Result
		delta = input.Result.ActualCost
		resp.TotalCost = round6(input.PriorTotal + delta)

	default:
		return nil, fmt.Errorf("%w: no result, clarification or error", ErrIncomplete)
	}

	if err := validateContract(&resp); err != nil {
		return nil, err
	}

	return &Output{Response: resp, CostDelta: delta}, nil
}

func (h *Handler) logs(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	if limit := h.config.MaxLogLines; limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func validateContract(resp *models.Response) error {
	res, err := responseContract.Validate(gojsonschema.NewGoLoader(resp))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContract, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrContract, strings.Join(msgs, "; "))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
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
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey": job.Key,
		"error":  err.Error(),
	})

	_, _ = client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(0).
		ErrorMessage(err.Error()).
		Send(context.Background())
}
