// internal/workers/assistant/process-request/handler_test.go
package processrequest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	apperrors "agentic-assistant/internal/common/errors"
	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

type stubProcessor struct {
	resp *models.Response
	got  *models.Request
}

func (s *stubProcessor) Process(_ context.Context, req *models.Request) *models.Response {
	s.got = req
	return s.resp
}

func createTestHandler(t *testing.T, resp *models.Response) (*Handler, *stubProcessor) {
	p := &stubProcessor{resp: resp}
	return NewHandler(LoadConfig(0), p, logger.NewTestLogger(t)), p
}

// ==========================
// Execute
// ==========================

func TestExecute_Completed(t *testing.T) {
	h, p := createTestHandler(t, &models.Response{
		RequestID: "req-1",
		SessionID: "s1",
		Status:    models.StatusCompleted,
		TotalCost: 0.0045,
		Logs:      []string{"Processing request"},
	})

	out, err := h.Execute(context.Background(), &Input{Text: "summarize this", SessionID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, "summarize this", p.got.Text)
	assert.Equal(t, "s1", p.got.SessionID)
	assert.Nil(t, p.got.File)
	assert.Equal(t, "req-1", out.RequestID)
	assert.Equal(t, models.StatusCompleted, out.Status)
	assert.Equal(t, 0.0045, out.TotalCost)
	assert.Equal(t, "req-1", out.Response.RequestID)
}

func TestExecute_ClarificationIsNotAnError(t *testing.T) {
	h, _ := createTestHandler(t, &models.Response{
		RequestID:             "req-2",
		Status:                models.StatusNeedsClarification,
		ClarificationQuestion: "What would you like me to do?",
	})

	out, err := h.Execute(context.Background(), &Input{Text: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsClarification, out.Status)
	assert.Equal(t, "What would you like me to do?", out.Response.ClarificationQuestion)
}

func TestExecute_DecodesFile(t *testing.T) {
	h, p := createTestHandler(t, &models.Response{Status: models.StatusCompleted})

	_, err := h.Execute(context.Background(), &Input{
		FileName:   "notes.txt",
		FileBase64: base64.StdEncoding.EncodeToString([]byte("plain notes")),
	})
	require.NoError(t, err)
	require.NotNil(t, p.got.File)
	assert.Equal(t, "notes.txt", p.got.File.Filename)
	assert.Equal(t, []byte("plain notes"), p.got.File.Data)
}

func TestExecute_FailedResponseCarriesCode(t *testing.T) {
	tests := []struct {
		name      string
		code      apperrors.ErrorCode
		retryable bool
	}{
		{"model timeout", apperrors.ErrCodeModelTimeout, true},
		{"session not found", apperrors.ErrCodeSessionNotFound, false},
		{"validation", apperrors.ErrCodeValidationFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := createTestHandler(t, &models.Response{
				RequestID:    "req-3",
				Status:       models.StatusFailed,
				ErrorCode:    string(tt.code),
				ErrorMessage: "it broke",
				TotalCost:    0.01,
			})

			out, err := h.Execute(context.Background(), &Input{Text: "x"})
			require.Error(t, err)
			assert.Nil(t, out)

			var stdErr *apperrors.StandardError
			require.True(t, errors.As(err, &stdErr))
			assert.Equal(t, tt.code, stdErr.Code)
			assert.Equal(t, "it broke", stdErr.Message)
			assert.Equal(t, tt.retryable, stdErr.Retryable)
			assert.Equal(t, "req-3", stdErr.Metadata["requestId"])
		})
	}
}

func TestExecute_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{"bad previous id", Input{PreviousRequestID: "not a valid id!"}},
		{"bad session id", Input{Text: "x", SessionID: "has spaces"}},
		{"bad base64", Input{FileName: "a.txt", FileBase64: "%%%"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, p := createTestHandler(t, &models.Response{Status: models.StatusCompleted})

			_, err := h.Execute(context.Background(), &tt.input)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.FromError(err).Code)
			assert.Nil(t, p.got, "processor must not run")
		})
	}
}

// ==========================
// Job variables
// ==========================

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, req *models.Request) *models.Response {
	args := m.Called(ctx, req)
	return args.Get(0).(*models.Response)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "assistant-request",
		ElementId:          "Activity_ProcessRequest",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func TestExecute_FromJobVariables(t *testing.T) {
	job := createMockJob(7, map[string]interface{}{
		"clarification_response": "2",
		"previous_request_id":    "4f1c2a6e-9d1b-4c1e-8f57-0d2a9b7e3c11",
		"session_id":             "sess-7",
		"unrelated_process_var":  true,
	})

	var input Input
	require.NoError(t, json.Unmarshal([]byte(job.Variables), &input))

	p := new(MockProcessor)
	p.On("Process", mock.Anything, mock.MatchedBy(func(req *models.Request) bool {
		return req.IsResume() && req.ClarificationAnswer() == "2" && req.SessionID == "sess-7"
	})).Return(&models.Response{
		RequestID: "req-9",
		SessionID: "sess-7",
		Status:    models.StatusCompleted,
		TotalCost: 0.009,
	})

	h := NewHandler(LoadConfig(0), p, logger.NewNoOpLogger())
	out, err := h.Execute(context.Background(), &input)
	require.NoError(t, err)
	assert.Equal(t, "req-9", out.RequestID)
	assert.Equal(t, 0.009, out.TotalCost)

	vars := map[string]interface{}{}
	raw, err := json.Marshal(out)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &vars))
	assert.Equal(t, "completed", vars["status"])
	assert.Equal(t, "sess-7", vars["session_id"])

	p.AssertExpectations(t)
}
