package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	commonhttp "agentic-assistant/internal/common/http"
	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/models"
)

var (
	ErrModelTimeout       = errors.New("MODEL_TIMEOUT")
	ErrModelFailed        = errors.New("MODEL_FAILED")
	ErrModelOutputInvalid = errors.New("MODEL_OUTPUT_INVALID")
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Request is one structured generation call.
type Request struct {
	TaskType     string
	Model        string
	SystemPrompt string
	Prompt       string
	Schema       map[string]interface{}
	MaxTokens    int
	Temperature  float64
}

// Completion is the decoded model answer plus the usage the backend reported.
type Completion struct {
	Output map[string]interface{}
	Raw    string
	Usage  models.Usage
	Model  string
}

type Client struct {
	config *Config
	http   *commonhttp.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	hc := commonhttp.NewClient(config.Timeout)
	if config.APIKey != "" {
		hc = hc.WithHeader("Authorization", "Bearer "+config.APIKey)
	}
	return &Client{
		config: config,
		http:   hc,
		logger: log.WithFields(map[string]interface{}{"component": "genai"}),
	}
}

type generateResponse struct {
	Output json.RawMessage `json:"output"`
	Text   string          `json:"text"`
	Model  string          `json:"model"`
	Usage  struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Invoke sends one generation request. Transport failures and 5xx/429 answers are retried up
// to MaxRetries with backoff; cancellation and deadlines surface as ErrModelTimeout.
func (c *Client) Invoke(ctx context.Context, req *Request) (*Completion, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body := map[string]interface{}{
		"task_type":   req.TaskType,
		"model":       req.Model,
		"system":      req.SystemPrompt,
		"prompt":      req.Prompt,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	if len(req.Schema) > 0 {
		body["response_format"] = map[string]interface{}{
			"type":   "json_schema",
			"schema": req.Schema,
		}
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/api/ai/generate"

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrModelTimeout, ctx.Err())
			}
		}

		completion, retry, err := c.call(ctx, url, body)
		if err == nil {
			return completion, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelTimeout, ctx.Err())
		}
		if !retry {
			break
		}

		c.logger.Warn("model call failed, retrying", map[string]interface{}{
			"taskType": req.TaskType,
			"attempt":  attempt + 1,
			"error":    err.Error(),
		})
	}

	return nil, lastErr
}

func (c *Client) call(ctx context.Context, url string, body map[string]interface{}) (*Completion, bool, error) {
	resp, err := c.http.PostJSON(ctx, url, body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, false, fmt.Errorf("%w: %v", ErrModelTimeout, err)
		}
		return nil, true, fmt.Errorf("%w: %v", ErrModelFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("%w: status %d: %s", ErrModelFailed, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrModelTimeout, ctx.Err())
		}
		return nil, false, fmt.Errorf("%w: decode response: %v", ErrModelOutputInvalid, err)
	}

	completion := &Completion{
		Raw:   gr.Text,
		Model: gr.Model,
		Usage: models.Usage{
			InputTokens:  gr.Usage.InputTokens,
			OutputTokens: gr.Usage.OutputTokens,
		},
	}

	if len(gr.Output) > 0 && string(gr.Output) != "null" {
		if err := json.Unmarshal(gr.Output, &completion.Output); err != nil {
			return nil, false, fmt.Errorf("%w: output is not an object: %v", ErrModelOutputInvalid, err)
		}
		return completion, false, nil
	}

	out, err := DecodeObject(gr.Text)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrModelOutputInvalid, err)
	}
	completion.Output = out
	return completion, false, nil
}
