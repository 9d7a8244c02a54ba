package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	cause := stderrors.New("MODEL_TIMEOUT")
	wrapped := fmt.Errorf("execute summarization: %w", NewModelTimeoutError(cause))

	stdErr := FromError(wrapped)
	assert.Equal(t, ErrCodeModelTimeout, stdErr.Code)
	assert.True(t, stderrors.Is(stdErr, cause))

	plain := FromError(context.Canceled)
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "context canceled", plain.Details)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeUnsupportedInput, http.StatusUnsupportedMediaType},
		{ErrCodeExtractionFailed, http.StatusUnprocessableEntity},
		{ErrCodeSessionNotFound, http.StatusNotFound},
		{ErrCodeSessionExpired, http.StatusGone},
		{ErrCodeModelTimeout, http.StatusGatewayTimeout},
		{ErrCodeModelOutputInvalid, http.StatusBadGateway},
		{ErrCodeCostCommitFailed, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewModelFailedError(stderrors.New("status 503")))
	assert.Equal(t, "ASSISTANT_MODEL_FAILED", bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
	assert.Equal(t, "MODEL_FAILED", bpmn.ToErrorVariables()["originalErrorCode"])

	notRetryable := ConvertToBPMNError(NewModelOutputInvalidError(stderrors.New("2 bullets")))
	assert.Zero(t, notRetryable.Retries)
	assert.False(t, notRetryable.Retryable)

	session := ConvertToBPMNError(NewSessionNotFoundError("abc"))
	assert.Equal(t, "ASSISTANT_SESSION_NOT_FOUND", session.Code)
	assert.Zero(t, session.Retries)
}

func TestUserMessage(t *testing.T) {
	err := NewValidationError("text or file is required")
	assert.Equal(t, "Invalid request: text or file is required", err.UserMessage())

	err = &StandardError{Message: "plain"}
	assert.Equal(t, "plain", err.UserMessage())
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "SESSION", GetErrorCategory(ErrCodeSessionExpired))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeModelOutputInvalid))
	assert.Equal(t, "EXTRACTION", GetErrorCategory(ErrCodeUnsupportedInput))
	assert.Equal(t, "BILLING", GetErrorCategory(ErrCodeCostCommitFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeResponseInvalid))
	require.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}
