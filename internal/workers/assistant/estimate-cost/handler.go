// internal/workers/assistant/estimate-cost/handler.go
package estimatecost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/common/metrics"
	"agentic-assistant/internal/models"
	"agentic-assistant/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "assistant-estimate-cost"

const (
	charsPerToken       = 4
	maxFramingTokens    = 500
	baseConfidence      = 0.85
	largeContentChars   = 5000
	minConfidence       = 0.5
	maxConfidence       = 0.95
	openEndedPenalty    = 0.15
	largeContentPenalty = 0.10
	passthroughBonus    = 0.10
)

var ErrNotExecutable = errors.New("PLAN_NOT_EXECUTABLE")

type Handler struct {
	config   *Config
	registry *registry.TaskRegistry
	logger   logger.Logger
}

func NewHandler(config *Config, reg *registry.TaskRegistry, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		registry: reg,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ExecutionPlan.NeedsClarification {
		return nil, ErrNotExecutable
	}

	estimate := h.Breakdown(&input.ExecutionPlan, input.ContentSize)
	metrics.CostEstimated.WithLabelValues(string(estimate.TaskType)).Add(estimate.TotalCost)

	h.logger.Info("cost estimated", map[string]interface{}{
		"planTask":     estimate.TaskType,
		"model":        estimate.Model,
		"inputTokens":  estimate.InputTokens,
		"outputTokens": estimate.OutputTokens,
		"totalCost":    estimate.TotalCost,
	})

	return &Output{CostEstimate: estimate}, nil
}

// Estimate returns the projected cost of running plan over content of the given size. It is
// non-decreasing in size for a fixed task type and never fails.
func (h *Handler) Estimate(plan *models.ExecutionPlan, contentSize int) float64 {
	return h.Breakdown(plan, contentSize).TotalCost
}

// Breakdown returns the projected cost with its token and price components.
func (h *Handler) Breakdown(plan *models.ExecutionPlan, contentSize int) models.CostEstimate {
	estimate := models.CostEstimate{TaskType: plan.TaskType}

	def, ok := h.registry.Lookup(string(plan.TaskType))
	if !ok || !plan.TaskType.Valid() {
		h.logger.Warn("no pricing for task type, estimating zero", map[string]interface{}{
			"planTask":    plan.TaskType,
			"contentSize": contentSize,
		})
		metrics.CostAnomalies.WithLabelValues(string(plan.TaskType)).Inc()
		return estimate
	}

	if contentSize < 0 {
		contentSize = 0
	}
	billed := contentSize
	if def.MaxInputChars > 0 && billed > def.MaxInputChars {
		billed = def.MaxInputChars
	}
	contentTokens := ceilDiv(billed, charsPerToken)
	framing := contentTokens / 10
	if framing > maxFramingTokens {
		framing = maxFramingTokens
	}

	estimate.InputTokens = contentTokens + framing + def.PromptOverheadTokens
	estimate.OutputTokens = def.EstimatedOutputTokens
	estimate.Confidence = confidence(plan.TaskType, contentSize)

	if plan.TaskType.Passthrough() || !def.ModelBacked {
		return estimate
	}

	estimate.Model = h.config.Pricing.ModelFor(string(plan.TaskType))
	rate := h.config.Pricing.RateFor(estimate.Model)

	inputCost := float64(estimate.InputTokens) / 1000 * rate.InputPer1K
	outputCost := float64(estimate.OutputTokens) / 1000 * rate.OutputPer1K
	estimate.InputCost = round6(inputCost)
	estimate.OutputCost = round6(outputCost)
	estimate.TotalCost = round6(inputCost + outputCost)

	return estimate
}

func confidence(t models.TaskType, contentSize int) float64 {
	c := baseConfidence
	if t == models.TaskCodeExplanation || t == models.TaskConversational {
		c -= openEndedPenalty
	}
	if contentSize > largeContentChars {
		c -= largeContentPenalty
	}
	if t.Passthrough() {
		c += passthroughBonus
	}
	c = math.Max(minConfidence, math.Min(maxConfidence, c))
	return math.Round(c*100) / 100
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
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
