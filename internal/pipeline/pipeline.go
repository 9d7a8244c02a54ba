// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agentic-assistant/internal/common/archive"
	apperrors "agentic-assistant/internal/common/errors"
	"agentic-assistant/internal/common/extraction"
	"agentic-assistant/internal/common/genai"
	"agentic-assistant/internal/common/ledger"
	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/common/metrics"
	"agentic-assistant/internal/common/observability"
	"agentic-assistant/internal/common/session"
	"agentic-assistant/internal/common/validation"
	"agentic-assistant/internal/models"
	buildresponse "agentic-assistant/internal/workers/assistant/build-response"
	estimatecost "agentic-assistant/internal/workers/assistant/estimate-cost"
	executetask "agentic-assistant/internal/workers/assistant/execute-task"
	planintent "agentic-assistant/internal/workers/assistant/plan-intent"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const archiveTimeout = 3 * time.Second

// Extractor turns a raw request into normalized text.
type Extractor interface {
	Extract(ctx context.Context, req *models.Request) (*models.ExtractedContent, error)
}

type Options struct {
	Extractor     Extractor
	Planner       *planintent.Handler
	Estimator     *estimatecost.Handler
	Executor      *executetask.Handler
	Assembler     *buildresponse.Handler
	Sessions      session.Store
	Ledger        ledger.Ledger
	Archiver      archive.Archiver
	Observability *observability.Observability
	Logger        logger.Logger
}

// Pipeline runs one request through extraction, planning, estimation, execution and assembly.
type Pipeline struct {
	extractor Extractor
	planner   *planintent.Handler
	estimator *estimatecost.Handler
	executor  *executetask.Handler
	assembler *buildresponse.Handler
	sessions  session.Store
	ledger    ledger.Ledger
	archiver  archive.Archiver
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Extractor == nil:
		return nil, fmt.Errorf("pipeline: extractor is required")
	case opts.Planner == nil, opts.Estimator == nil, opts.Executor == nil, opts.Assembler == nil:
		return nil, fmt.Errorf("pipeline: planner, estimator, executor and assembler are required")
	case opts.Sessions == nil:
		return nil, fmt.Errorf("pipeline: session store is required")
	case opts.Ledger == nil:
		return nil, fmt.Errorf("pipeline: cost ledger is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Pipeline{
		extractor: opts.Extractor,
		planner:   opts.Planner,
		estimator: opts.Estimator,
		executor:  opts.Executor,
		assembler: opts.Assembler,
		sessions:  opts.Sessions,
		ledger:    opts.Ledger,
		archiver:  opts.Archiver,
		obs:       opts.Observability,
		logger:    log.WithFields(map[string]interface{}{"component": "pipeline"}),
		now:       time.Now,
	}, nil
}

// run is the per-request state threaded through the stages.
type run struct {
	input   buildresponse.Input
	content *models.ExtractedContent
	log     logger.Logger
}

func (r *run) logf(format string, args ...interface{}) {
	r.input.Logs = append(r.input.Logs, fmt.Sprintf(format, args...))
}

// Process handles one request and always returns a response. Failures are reported in the
// response and never change the session total.
func (p *Pipeline) Process(ctx context.Context, req *models.Request) *models.Response {
	start := p.now()
	requestID := uuid.NewString()

	ctx, span := p.obs.StartSpan(ctx, "pipeline.process",
		attribute.String("request.id", requestID),
		attribute.Bool("request.resume", req.IsResume()),
	)
	defer span.End()

	r := &run{
		input: buildresponse.Input{
			RequestID: requestID,
			SessionID: strings.TrimSpace(req.SessionID),
		},
		log: p.logger.WithFields(map[string]interface{}{"requestId": requestID}),
	}
	r.logf("Processing request %s", requestID)

	var err error
	if req.IsResume() {
		err = p.resume(ctx, req, r)
	} else {
		if r.input.SessionID == "" {
			r.input.SessionID = uuid.NewString()
		}
		err = p.fresh(ctx, req, r)
	}

	if r.input.SessionID == "" {
		r.input.SessionID = uuid.NewString()
	}

	var resp *models.Response
	if err == nil {
		resp, err = p.complete(ctx, r)
	}
	if err != nil {
		resp = p.fail(ctx, r, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, resp.ErrorCode)
	}

	elapsed := p.now().Sub(start)
	metrics.RequestsTotal.WithLabelValues(string(resp.Status), string(resp.InputType)).Inc()
	metrics.RequestDuration.WithLabelValues(string(resp.Status)).Observe(elapsed.Seconds())
	p.obs.RecordRequest(ctx, string(resp.Status), elapsed)
	span.SetAttributes(attribute.String("response.status", string(resp.Status)))

	r.log.Info("request processed", map[string]interface{}{
		"status":    resp.Status,
		"sessionId": resp.SessionID,
		"errorCode": resp.ErrorCode,
		"totalCost": resp.TotalCost,
		"duration":  elapsed.String(),
	})

	return resp
}

// SessionTotal returns the running cost total of a session.
func (p *Pipeline) SessionTotal(ctx context.Context, sessionID string) (float64, error) {
	return p.ledger.Total(ctx, sessionID)
}

func (p *Pipeline) fresh(ctx context.Context, req *models.Request, r *run) error {
	if err := validate(req); err != nil {
		return err
	}
	r.input.InputType = extraction.DetectInputType(req)

	content, err := stage(ctx, p, "extract", func(ctx context.Context) (*models.ExtractedContent, error) {
		return p.extractor.Extract(ctx, req)
	})
	if err != nil {
		return err
	}
	r.content = content
	r.input.ExtractedContent = content
	r.input.InputType = content.SourceInputType
	r.logf("Extracted %d characters from %s input (%s, confidence %.2f)",
		content.Size(), content.SourceInputType, content.ExtractionMethod, content.Confidence)

	plan, err := p.plan(ctx, r, req.Text, nil)
	if err != nil {
		return err
	}

	if plan.NeedsClarification {
		pending := &models.PendingRequest{
			RequestID:        r.input.RequestID,
			SessionID:        r.input.SessionID,
			InputType:        r.input.InputType,
			ExtractedContent: *content,
			DraftPlan:        *plan,
			CreatedAt:        p.now().UTC(),
		}
		if _, err := p.sessions.Put(ctx, pending); err != nil {
			return apperrors.NewSessionStoreFailedError(err)
		}
		metrics.Clarifications.WithLabelValues("asked").Inc()
		r.logf("Clarification needed: %s", plan.ClarificationQuestion)
		return nil
	}

	return p.execute(ctx, r)
}

func (p *Pipeline) resume(ctx context.Context, req *models.Request, r *run) error {
	previousID := strings.TrimSpace(req.PreviousRequestID)
	if res := validation.ValidateProcessRequest(map[string]interface{}{
		"previous_request_id":    previousID,
		"clarification_response": req.ClarificationResponse,
		"session_id":             req.SessionID,
	}); !res.Valid {
		return apperrors.NewValidationError(res.Summary())
	}

	pending, err := p.sessions.Take(ctx, previousID)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		metrics.Clarifications.WithLabelValues("not_found").Inc()
		return apperrors.NewSessionNotFoundError(previousID)
	case errors.Is(err, session.ErrSessionExpired):
		metrics.Clarifications.WithLabelValues("expired").Inc()
		return apperrors.NewSessionExpiredError(previousID)
	case err != nil:
		return apperrors.NewSessionStoreFailedError(err)
	}
	metrics.Clarifications.WithLabelValues("resumed").Inc()

	if r.input.SessionID == "" {
		r.input.SessionID = pending.SessionID
	}
	content := pending.ExtractedContent
	r.content = &content
	r.input.ExtractedContent = &content
	r.input.InputType = pending.InputType
	r.logf("Resuming request %s", previousID)

	if _, err := p.plan(ctx, r, req.ClarificationAnswer(), &pending.DraftPlan); err != nil {
		return err
	}
	return p.execute(ctx, r)
}

func (p *Pipeline) plan(ctx context.Context, r *run, userText string, draft *models.ExecutionPlan) (*models.ExecutionPlan, error) {
	out, err := stage(ctx, p, "plan", func(ctx context.Context) (*planintent.Output, error) {
		return p.planner.Execute(ctx, &planintent.Input{
			ExtractedContent: *r.content,
			UserText:         userText,
			DraftPlan:        draft,
		})
	})
	if err != nil {
		return nil, err
	}

	plan := out.ExecutionPlan
	r.input.ExecutionPlan = &plan
	if !plan.NeedsClarification {
		r.logf("Planned task %s", plan.TaskType)
	}
	return &plan, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	plan := r.input.ExecutionPlan

	estimate, err := stage(ctx, p, "estimate", func(ctx context.Context) (*estimatecost.Output, error) {
		return p.estimator.Execute(ctx, &estimatecost.Input{
			ExecutionPlan: *plan,
			ContentSize:   r.content.Size(),
		})
	})
	if err != nil {
		return err
	}
	r.input.CostEstimate = &estimate.CostEstimate
	r.logf("Estimated cost $%.6f (%d input / %d output tokens)",
		estimate.CostEstimate.TotalCost, estimate.CostEstimate.InputTokens, estimate.CostEstimate.OutputTokens)

	result, err := stage(ctx, p, "execute", func(ctx context.Context) (*models.TaskResult, error) {
		return p.executor.Run(ctx, plan, r.content)
	})
	if err != nil {
		return err
	}
	r.input.Result = result
	r.logf("Executed %s in %.2fs, actual cost $%.6f", result.TaskType, result.ExecutionTimeSeconds, result.ActualCost)
	return nil
}

// complete assembles the response and commits its cost. A completed response is returned only
// once the ledger holds its cost.
func (p *Pipeline) complete(ctx context.Context, r *run) (*models.Response, error) {
	prior, err := p.ledger.Total(ctx, r.input.SessionID)
	switch {
	case err != nil && r.input.ExecutionPlan != nil && r.input.ExecutionPlan.NeedsClarification:
		// The pending entry is already stored; the caller still needs the question and its id.
		r.log.Warn("session total unavailable, reporting zero", map[string]interface{}{"error": err.Error()})
		prior = 0
	case err != nil:
		return nil, apperrors.NewCostCommitFailedError(err)
	}
	r.input.PriorTotal = prior

	out, err := p.assembler.Execute(ctx, &r.input)
	if err != nil {
		return nil, apperrors.NewResponseInvalidError(err.Error())
	}
	resp := &out.Response
	if resp.Status != models.StatusCompleted {
		return resp, nil
	}

	total, err := p.ledger.Add(ctx, r.input.SessionID, out.CostDelta)
	if err != nil {
		return nil, apperrors.NewCostCommitFailedError(err)
	}
	resp.TotalCost = total
	metrics.CostAccrued.WithLabelValues(string(resp.Result.TaskType)).Add(out.CostDelta)

	p.archive(ctx, r, resp)
	return resp, nil
}

// fail assembles a failed response carrying the session's unchanged total.
func (p *Pipeline) fail(ctx context.Context, r *run, err error) *models.Response {
	stdErr := classify(err)
	r.logf("Error: %s", stdErr.UserMessage())
	r.log.Warn("request failed", map[string]interface{}{
		"errorCode": stdErr.Code,
		"error":     err.Error(),
	})

	r.input.Result = nil
	r.input.ErrorCode = string(stdErr.Code)
	r.input.ErrorMessage = stdErr.UserMessage()
	if prior, terr := p.ledger.Total(ctx, r.input.SessionID); terr == nil {
		r.input.PriorTotal = prior
	}

	out, aerr := p.assembler.Execute(ctx, &r.input)
	if aerr != nil {
		r.log.Error("failed response did not assemble", map[string]interface{}{"error": aerr.Error()})
		return &models.Response{
			RequestID:    r.input.RequestID,
			SessionID:    r.input.SessionID,
			Status:       models.StatusFailed,
			InputType:    r.input.InputType,
			ErrorCode:    r.input.ErrorCode,
			ErrorMessage: r.input.ErrorMessage,
			Logs:         r.input.Logs,
			TotalCost:    r.input.PriorTotal,
			Timestamp:    p.now().UTC(),
		}
	}
	return &out.Response
}

func (p *Pipeline) archive(ctx context.Context, r *run, resp *models.Response) {
	if p.archiver == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	if err := p.archiver.Archive(actx, resp); err != nil {
		r.log.Warn("archive failed", map[string]interface{}{"error": err.Error()})
	}
}

// stage runs one pipeline step inside its own span and records its duration.
func stage[T any](ctx context.Context, p *Pipeline, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := p.obs.StartSpan(ctx, "pipeline."+name)
	defer span.End()

	start := p.now()
	out, err := fn(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.obs.RecordStage(ctx, name, p.now().Sub(start), outcome)
	return out, err
}

func validate(req *models.Request) error {
	res := validation.ValidateProcessRequest(map[string]interface{}{
		"text":                   req.Text,
		"clarification_response": req.ClarificationResponse,
		"session_id":             req.SessionID,
	})
	if !res.Valid {
		return apperrors.NewValidationError(res.Summary())
	}
	if !req.HasInput() {
		return apperrors.NewValidationError("either text or a file is required")
	}
	return nil
}

// classify maps stage errors onto response error codes.
func classify(err error) *apperrors.StandardError {
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}

	switch {
	case errors.Is(err, extraction.ErrNoInput):
		return apperrors.NewValidationError(err.Error())
	case errors.Is(err, extraction.ErrUnsupportedInput):
		return apperrors.NewUnsupportedInputError(err)
	case errors.Is(err, extraction.ErrExtractionFailed), errors.Is(err, planintent.ErrInvalidContent):
		return apperrors.NewExtractionFailedError(err)
	case errors.Is(err, genai.ErrModelTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return apperrors.NewModelTimeoutError(err)
	case errors.Is(err, genai.ErrModelOutputInvalid):
		return apperrors.NewModelOutputInvalidError(err)
	case errors.Is(err, genai.ErrModelFailed):
		return apperrors.NewModelFailedError(err)
	case errors.Is(err, buildresponse.ErrContract),
		errors.Is(err, buildresponse.ErrIncomplete),
		errors.Is(err, buildresponse.ErrResultMismatch):
		return apperrors.NewResponseInvalidError(err.Error())
	}
	return apperrors.NewInternalError(err)
}
