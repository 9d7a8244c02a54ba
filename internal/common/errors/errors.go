// Package errors provides standardized error handling for the request pipeline and its BPMN worker.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeExtractionFailed   ErrorCode = "EXTRACTION_FAILED"
	ErrCodeUnsupportedInput   ErrorCode = "UNSUPPORTED_INPUT"
	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionExpired     ErrorCode = "SESSION_EXPIRED"
	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeModelTimeout       ErrorCode = "MODEL_TIMEOUT"
	ErrCodeModelFailed        ErrorCode = "MODEL_FAILED"
	ErrCodeModelOutputInvalid ErrorCode = "MODEL_OUTPUT_INVALID"
	ErrCodeCostCommitFailed   ErrorCode = "COST_COMMIT_FAILED"
	ErrCodeResponseInvalid    ErrorCode = "RESPONSE_INVALID"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// UserMessage is the text placed in a failed response's error_message.
func (e *StandardError) UserMessage() string {
	if e.Details == "" {
		return e.Message
	}
	return e.Message + ": " + e.Details
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewValidationError creates a non-retryable request validation error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionFailedError wraps a failure of the extraction collaborator.
func NewExtractionFailedError(err error) *StandardError {
	return newError(ErrCodeExtractionFailed, "Could not extract content from the input", err, true)
}

// NewUnsupportedInputError reports an upload the extraction service cannot handle.
func NewUnsupportedInputError(err error) *StandardError {
	return newError(ErrCodeUnsupportedInput, "Unsupported input type", err, false)
}

// NewSessionNotFoundError reports an unknown or already consumed previous_request_id.
func NewSessionNotFoundError(requestID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "No pending request found for this id; please start a new request",
		Details:   fmt.Sprintf("previousRequestId: %s", requestID),
		Retryable: false,
		Metadata:  map[string]interface{}{"previousRequestId": requestID},
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionExpiredError reports a pending request older than its time-to-live.
func NewSessionExpiredError(requestID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionExpired,
		Message:   "The pending request has expired; please start a new request",
		Details:   fmt.Sprintf("previousRequestId: %s", requestID),
		Retryable: false,
		Metadata:  map[string]interface{}{"previousRequestId": requestID},
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreFailedError wraps a backend failure of the session store.
func NewSessionStoreFailedError(err error) *StandardError {
	return newError(ErrCodeSessionStoreFailed, "Session store unavailable", err, true)
}

// NewModelTimeoutError reports a cancelled or timed out model call.
func NewModelTimeoutError(err error) *StandardError {
	return newError(ErrCodeModelTimeout, "Model call timed out", err, true)
}

// NewModelFailedError wraps a generative backend failure.
func NewModelFailedError(err error) *StandardError {
	return newError(ErrCodeModelFailed, "Model call failed", err, true)
}

// NewModelOutputInvalidError reports model output that does not fit the task's output shape.
func NewModelOutputInvalidError(err error) *StandardError {
	return newError(ErrCodeModelOutputInvalid, "Model returned malformed output", err, false)
}

// NewCostCommitFailedError reports that the session total could not be updated.
func NewCostCommitFailedError(err error) *StandardError {
	return newError(ErrCodeCostCommitFailed, "Could not record request cost", err, true)
}

// NewResponseInvalidError reports an assembled response that breaks the response contract.
func NewResponseInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseInvalid,
		Message:   "Assembled response failed contract validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps anything that has no more specific code.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// FromError returns err as a StandardError, wrapping unknown errors as internal.
func FromError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// ==========================
// 4. Mappings
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:   "ASSISTANT_VALIDATION_FAILED",
	ErrCodeExtractionFailed:   "ASSISTANT_EXTRACTION_FAILED",
	ErrCodeUnsupportedInput:   "ASSISTANT_UNSUPPORTED_INPUT",
	ErrCodeSessionNotFound:    "ASSISTANT_SESSION_NOT_FOUND",
	ErrCodeSessionExpired:     "ASSISTANT_SESSION_EXPIRED",
	ErrCodeSessionStoreFailed: "ASSISTANT_SESSION_STORE_FAILED",
	ErrCodeModelTimeout:       "ASSISTANT_MODEL_TIMEOUT",
	ErrCodeModelFailed:        "ASSISTANT_MODEL_FAILED",
	ErrCodeModelOutputInvalid: "ASSISTANT_MODEL_OUTPUT_INVALID",
	ErrCodeCostCommitFailed:   "ASSISTANT_COST_COMMIT_FAILED",
}

// GetRetryCount is the number of job retries a BPMN worker should allow for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeExtractionFailed,
		ErrCodeSessionStoreFailed,
		ErrCodeModelFailed,
		ErrCodeCostCommitFailed:
		return 3

	case ErrCodeModelTimeout:
		return 1

	default:
		return 0 // business errors: no retry
	}
}

// HTTPStatus maps an error code onto the status the HTTP transport answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	case ErrCodeUnsupportedInput:
		return http.StatusUnsupportedMediaType
	case ErrCodeExtractionFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeSessionNotFound:
		return http.StatusNotFound
	case ErrCodeSessionExpired:
		return http.StatusGone
	case ErrCodeModelTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeModelFailed, ErrCodeModelOutputInvalid:
		return http.StatusBadGateway
	case ErrCodeSessionStoreFailed, ErrCodeCostCommitFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "SESSION"):
		return "SESSION"
	case strings.HasPrefix(codeStr, "MODEL"):
		return "AI"
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "INPUT"):
		return "EXTRACTION"
	case strings.HasPrefix(codeStr, "COST"):
		return "BILLING"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
