package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"agentic-assistant/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

func newTestClient(t *testing.T, url string, retries int) *Client {
	return NewClient(&Config{
		BaseURL:    url,
		APIKey:     "test-key",
		MaxRetries: retries,
	}, logger.NewTestLogger(t))
}

func summaryRequest() *Request {
	return &Request{
		TaskType:     "summarization",
		Model:        "claude-3-sonnet",
		SystemPrompt: "You summarize.",
		Prompt:       "Summarize: the quick brown fox",
		Schema:       map[string]interface{}{"type": "object"},
		MaxTokens:    400,
		Temperature:  0.2,
	}
}

// ==========================
// Invoke
// ==========================

func TestInvoke_StructuredOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "summarization", body["task_type"])
		assert.Equal(t, "claude-3-sonnet", body["model"])
		assert.EqualValues(t, 400, body["max_tokens"])
		assert.NotNil(t, body["response_format"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"output": map[string]interface{}{"one_line": "A fox jumps."},
			"model":  "claude-3-sonnet",
			"usage":  map[string]int{"input_tokens": 120, "output_tokens": 45},
		})
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL, 0).Invoke(context.Background(), summaryRequest())
	require.NoError(t, err)
	assert.Equal(t, "A fox jumps.", out.Output["one_line"])
	assert.Equal(t, 120, out.Usage.InputTokens)
	assert.Equal(t, 45, out.Usage.OutputTokens)
	assert.Equal(t, "claude-3-sonnet", out.Model)
}

func TestInvoke_FallsBackToFencedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"text":  "Here you go:\n```json\n{\"label\": \"positive\", \"confidence\": 0.9,}\n```",
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL, 0).Invoke(context.Background(), summaryRequest())
	require.NoError(t, err)
	assert.Equal(t, "positive", out.Output["label"])
	assert.Equal(t, 0.9, out.Output["confidence"])
}

func TestInvoke_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"output": map[string]interface{}{"response": "ok"},
		})
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv.URL, 2).Invoke(context.Background(), summaryRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Output["response"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInvoke_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad prompt", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Invoke(context.Background(), summaryRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelFailed)
	assert.Contains(t, err.Error(), "bad prompt")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestInvoke_DeadlineMapsToTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(t, srv.URL, 2).Invoke(ctx, summaryRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelTimeout)
}

func TestInvoke_UnparseableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"text": "I cannot help with that."})
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 0).Invoke(context.Background(), summaryRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelOutputInvalid)
}

// ==========================
// DecodeObject
// ==========================

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		key     string
		want    interface{}
		wantErr bool
	}{
		{name: "bare", text: `{"response":"hi"}`, key: "response", want: "hi"},
		{name: "prose around", text: "Sure! {\"response\": \"hi\"} Hope that helps.", key: "response", want: "hi"},
		{name: "fenced", text: "```json\n{\"language\":\"go\"}\n```", key: "language", want: "go"},
		{name: "trailing comma", text: `{"bullets":["a","b","c",],}`, key: "bullets", want: []interface{}{"a", "b", "c"}},
		{name: "no object", text: "nothing here", wantErr: true},
		{name: "broken", text: `{"a": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DecodeObject(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out[tt.key])
		})
	}
}
