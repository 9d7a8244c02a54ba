// internal/workers/assistant/process-request/handler.go
package processrequest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	apperrors "agentic-assistant/internal/common/errors"
	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/common/metrics"
	"agentic-assistant/internal/common/validation"
	"agentic-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "assistant-process-request"

// Processor runs one request end to end.
type Processor interface {
	Process(ctx context.Context, req *models.Request) *models.Response
}

type Handler struct {
	config       *Config
	processor    Processor
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, processor Processor, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		processor:    processor,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, apperrors.NewValidationError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute runs the request and turns a failed response into a StandardError carrying its code.
// Clarification is a successful outcome; the process waits for the answer on its own path.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := h.request(input)
	if err != nil {
		return nil, err
	}

	resp := h.processor.Process(ctx, req)
	if resp.Status == models.StatusFailed {
		code := apperrors.ErrorCode(resp.ErrorCode)
		return nil, &apperrors.StandardError{
			Code:      code,
			Message:   resp.ErrorMessage,
			Retryable: apperrors.IsRetryableErrorCode(code),
			Metadata: map[string]interface{}{
				"requestId": resp.RequestID,
				"sessionId": resp.SessionID,
				"totalCost": resp.TotalCost,
			},
			Timestamp: time.Now().UTC(),
		}
	}

	h.logger.Info("request processed", map[string]interface{}{
		"requestId": resp.RequestID,
		"sessionId": resp.SessionID,
		"status":    resp.Status,
		"totalCost": resp.TotalCost,
	})

	return &Output{
		RequestID: resp.RequestID,
		SessionID: resp.SessionID,
		Status:    resp.Status,
		TotalCost: resp.TotalCost,
		Response:  *resp,
	}, nil
}

func (h *Handler) request(input *Input) (*models.Request, error) {
	fields := map[string]interface{}{
		"text":                   input.Text,
		"clarification_response": input.ClarificationResponse,
		"previous_request_id":    input.PreviousRequestID,
		"session_id":             input.SessionID,
		"file_name":              input.FileName,
		"file_base64":            input.FileBase64,
	}
	if res := validation.ValidateProcessRequest(fields); !res.Valid {
		return nil, apperrors.NewValidationError(res.Summary())
	}

	req := &models.Request{
		Text:                  input.Text,
		ClarificationResponse: input.ClarificationResponse,
		PreviousRequestID:     input.PreviousRequestID,
		SessionID:             input.SessionID,
	}
	if input.FileBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(input.FileBase64)
		if err != nil {
			return nil, apperrors.NewValidationError("file_base64 is not valid base64")
		}
		req.File = &models.File{Filename: input.FileName, Data: data}
	}
	return req, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
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

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.FromError(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
