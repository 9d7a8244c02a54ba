// internal/workers/assistant/execute-task/handler.go
package executetask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"agentic-assistant/internal/common/genai"
	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/common/metrics"
	"agentic-assistant/internal/models"
	"agentic-assistant/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"
)

const TaskType = "assistant-execute-task"

const charsPerToken = 4

var (
	ErrNotExecutable = errors.New("PLAN_NOT_EXECUTABLE")
	ErrUnknownTask   = errors.New("UNKNOWN_TASK")
)

// ModelClient is the slice of the generation client the executor needs.
type ModelClient interface {
	Invoke(ctx context.Context, req *genai.Request) (*genai.Completion, error)
}

type Handler struct {
	config   *Config
	registry *registry.TaskRegistry
	client   ModelClient
	schemas  map[models.TaskType]*gojsonschema.Schema
	logger   logger.Logger
	now      func() time.Time
}

func NewHandler(config *Config, reg *registry.TaskRegistry, client ModelClient, log logger.Logger) (*Handler, error) {
	schemas := make(map[models.TaskType]*gojsonschema.Schema)
	for _, t := range models.AllTaskTypes {
		def, ok := reg.Lookup(string(t))
		if !ok || !def.ModelBacked {
			continue
		}
		schema, err := def.CompileSchema()
		if err != nil {
			return nil, fmt.Errorf("compile %s output schema: %w", t, err)
		}
		schemas[t] = schema
	}

	return &Handler{
		config:   config,
		registry: reg,
		client:   client,
		schemas:  schemas,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:      time.Now,
	}, nil
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.Run(ctx, &input.ExecutionPlan, &input.ExtractedContent)
	if err != nil {
		return nil, err
	}
	return &Output{Result: *result}, nil
}

// Run executes an executable plan against the extracted content. The output variant always
// matches plan.TaskType and ActualCost is priced from the usage the model reported.
func (h *Handler) Run(ctx context.Context, plan *models.ExecutionPlan, content *models.ExtractedContent) (*models.TaskResult, error) {
	if plan.NeedsClarification {
		return nil, ErrNotExecutable
	}
	def, ok := h.registry.Lookup(string(plan.TaskType))
	if !ok || !plan.TaskType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, plan.TaskType)
	}

	start := h.now()
	result, err := h.run(ctx, def, plan, content)
	elapsed := h.now().Sub(start)
	metrics.TaskDuration.WithLabelValues(string(plan.TaskType)).Observe(elapsed.Seconds())

	if err != nil {
		metrics.TaskExecutions.WithLabelValues(string(plan.TaskType), outcome(err)).Inc()
		h.logger.Error("task failed", map[string]interface{}{
			"planTask": plan.TaskType,
			"duration": elapsed.String(),
			"error":    err.Error(),
		})
		return nil, err
	}

	metrics.TaskExecutions.WithLabelValues(string(plan.TaskType), "success").Inc()
	result.ExecutionTimeSeconds = math.Round(elapsed.Seconds()*1000) / 1000

	h.logger.Info("task executed", map[string]interface{}{
		"planTask":     plan.TaskType,
		"model":        result.Model,
		"inputTokens":  result.Usage.InputTokens,
		"outputTokens": result.Usage.OutputTokens,
		"actualCost":   result.ActualCost,
		"duration":     elapsed.String(),
	})

	return result, nil
}

func (h *Handler) run(ctx context.Context, def *registry.TaskDefinition, plan *models.ExecutionPlan, content *models.ExtractedContent) (*models.TaskResult, error) {
	switch plan.TaskType {
	case models.TaskTextExtraction:
		words, chars := counts(content.Text)
		return &models.TaskResult{
			TaskType: plan.TaskType,
			Output:   &models.ExtractionOutput{WordCount: words, CharacterCount: chars},
		}, nil
	case models.TaskYouTubeTranscript:
		words, chars := counts(content.Text)
		return &models.TaskResult{
			TaskType: plan.TaskType,
			Output:   &models.TranscriptOutput{WordCount: words, CharacterCount: chars},
		}, nil
	}

	if h.client == nil {
		return nil, fmt.Errorf("%w: no model client configured", genai.ErrModelFailed)
	}

	model := h.config.Pricing.ModelFor(def.ID)
	prompt := renderPrompt(def, plan, content.Text)

	completion, err := h.client.Invoke(ctx, &genai.Request{
		TaskType:     def.ID,
		Model:        model,
		SystemPrompt: def.SystemPrompt,
		Prompt:       prompt,
		Schema:       def.OutputSchema,
		MaxTokens:    def.MaxTokens,
		Temperature:  def.Temperature,
	})
	if err != nil {
		return nil, err
	}

	output, err := h.decode(plan.TaskType, completion.Output)
	if err != nil {
		return nil, err
	}
	if audio, ok := output.(*models.AudioSummaryOutput); ok {
		audio.DurationSeconds = content.DurationSeconds()
	}

	usage := completion.Usage
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		usage = approximateUsage(def, prompt, completion)
	}
	if completion.Model != "" && completion.Model != model {
		h.logger.Debug("backend served a different model", map[string]interface{}{
			"requested": model,
			"served":    completion.Model,
		})
	}

	return &models.TaskResult{
		TaskType:   plan.TaskType,
		Output:     output,
		ActualCost: h.price(model, usage),
		Usage:      usage,
		Model:      model,
	}, nil
}

func (h *Handler) decode(t models.TaskType, raw map[string]interface{}) (models.TaskOutput, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty output", genai.ErrModelOutputInvalid)
	}
	normalize(t, raw)

	if schema, ok := h.schemas[t]; ok {
		res, err := schema.Validate(gojsonschema.NewGoLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", genai.ErrModelOutputInvalid, err)
		}
		if !res.Valid() {
			msgs := make([]string, 0, len(res.Errors()))
			for _, e := range res.Errors() {
				msgs = append(msgs, e.String())
			}
			return nil, fmt.Errorf("%w: %s", genai.ErrModelOutputInvalid, strings.Join(msgs, "; "))
		}
	}

	// audio_summary shares the summary shape; duration is filled from the content.
	out, err := models.NewTaskOutput(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownTask, err)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", genai.ErrModelOutputInvalid, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("%w: %v", genai.ErrModelOutputInvalid, err)
	}
	if err := checkOutput(out); err != nil {
		return nil, fmt.Errorf("%w: %v", genai.ErrModelOutputInvalid, err)
	}
	return out, nil
}

func (h *Handler) price(model string, usage models.Usage) float64 {
	rate := h.config.Pricing.RateFor(model)
	cost := float64(usage.InputTokens)/1000*rate.InputPer1K + float64(usage.OutputTokens)/1000*rate.OutputPer1K
	return math.Round(cost*1e6) / 1e6
}

// approximateUsage stands in when the backend does not report token counts.
func approximateUsage(def *registry.TaskDefinition, prompt string, completion *genai.Completion) models.Usage {
	in := len([]rune(def.SystemPrompt)) + len([]rune(prompt))
	out := len([]rune(completion.Raw))
	if out == 0 {
		if data, err := json.Marshal(completion.Output); err == nil {
			out = len(data)
		}
	}
	return models.Usage{
		InputTokens:  (in + charsPerToken - 1) / charsPerToken,
		OutputTokens: (out + charsPerToken - 1) / charsPerToken,
	}
}

func counts(text string) (int, int) {
	return len(strings.Fields(text)), len([]rune(text))
}

func outcome(err error) string {
	switch {
	case errors.Is(err, genai.ErrModelTimeout):
		return "timeout"
	case errors.Is(err, genai.ErrModelOutputInvalid):
		return "invalid_output"
	default:
		return "failed"
	}
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
	errorCode := "TASK_FAILED"
	switch {
	case errors.Is(err, genai.ErrModelTimeout):
		errorCode = "MODEL_TIMEOUT"
	case errors.Is(err, genai.ErrModelOutputInvalid):
		errorCode = "MODEL_OUTPUT_INVALID"
	case errors.Is(err, ErrUnknownTask):
		errorCode = "UNKNOWN_TASK"
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
