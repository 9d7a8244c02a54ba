// internal/workers/assistant/plan-intent/handler_test.go
package planintent

import (
	"context"
	"strings"
	"testing"

	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/models"
	"agentic-assistant/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Helpers
// ==========================

func createTestHandler(t *testing.T) *Handler {
	reg, err := registry.Default()
	require.NoError(t, err)
	return NewHandler(LoadConfig(), reg, logger.NewTestLogger(t))
}

func typed(text string) *models.ExtractedContent {
	return &models.ExtractedContent{
		Text:             text,
		Confidence:       1.0,
		ExtractionMethod: models.MethodDirect,
		SourceInputType:  models.InputText,
		Metadata:         map[string]interface{}{},
	}
}

func uploaded(text string, method models.ExtractionMethod, source models.InputType) *models.ExtractedContent {
	conf := 0.9
	if method == models.MethodDirect {
		conf = 1.0
	}
	return &models.ExtractedContent{
		Text:             text,
		Confidence:       conf,
		ExtractionMethod: method,
		SourceInputType:  source,
		Metadata: map[string]interface{}{
			models.MetaUploaded: true,
			models.MetaFilename: "upload",
		},
	}
}

func transcript(text string) *models.ExtractedContent {
	return &models.ExtractedContent{
		Text:             text,
		Confidence:       0.9,
		ExtractionMethod: models.MethodTranscript,
		SourceInputType:  models.InputURL,
		Metadata:         map[string]interface{}{models.MetaVideoID: "abc123"},
	}
}

const article = `The city council approved a new plan for public transport on Monday.
The plan adds three bus lines and extends tram service into the evening.
Officials expect ridership to grow by a fifth within two years.
Critics say the budget does not cover maintenance.
The first changes take effect in the spring.`

const pythonSnippet = `def fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)

print(fib(10))`

// ==========================
// Classification
// ==========================

func TestPlan_Classification(t *testing.T) {
	h := createTestHandler(t)

	tests := []struct {
		name     string
		content  *models.ExtractedContent
		userText string
		want     models.TaskType
		signal   string
	}{
		{
			name:    "summarize typed article",
			content: typed("Summarize this: " + article), userText: "Summarize this: " + article,
			want: models.TaskSummarization, signal: "keyword:summarization",
		},
		{
			name:    "sentiment outranks summary",
			content: typed("Summarize the tone of this review: I loved it"), userText: "Summarize the tone of this review: I loved it",
			want: models.TaskSentimentAnalysis,
		},
		{
			name:    "typed question",
			content: typed("What is the capital of France?"), userText: "What is the capital of France?",
			want: models.TaskConversational,
		},
		{
			name:    "typed statement defaults to conversation",
			content: typed("Translate good morning into French"), userText: "Translate good morning into French",
			want: models.TaskConversational, signal: "content:direct",
		},
		{
			name:    "typed programming question is a conversation",
			content: typed("How do I write a recursive function?"), userText: "How do I write a recursive function?",
			want: models.TaskConversational,
		},
		{
			name:    "pasted code defaults to code explanation",
			content: typed(pythonSnippet), userText: pythonSnippet,
			want: models.TaskCodeExplanation,
		},
		{
			name:    "code screenshot with explain",
			content: uploaded(pythonSnippet, models.MethodOCR, models.InputImage), userText: "explain",
			want: models.TaskCodeExplanation, signal: "keyword:explain",
		},
		{
			name:    "prose screenshot with explain",
			content: uploaded(article, models.MethodOCR, models.InputImage), userText: "explain",
			want: models.TaskConversational, signal: "keyword:explain",
		},
		{
			name:    "image without instruction is extracted",
			content: uploaded(article, models.MethodOCR, models.InputImage),
			want:    models.TaskTextExtraction, signal: "content:ocr",
		},
		{
			name:    "pdf without instruction is extracted",
			content: uploaded(article, models.MethodPDF, models.InputPDF),
			want:    models.TaskTextExtraction,
		},
		{
			name:    "audio defaults to audio summary",
			content: uploaded(article, models.MethodASR, models.InputAudio),
			want:    models.TaskAudioSummary, signal: "content:asr",
		},
		{
			name:    "summary request over audio",
			content: uploaded(article, models.MethodASR, models.InputAudio), userText: "give me a summary",
			want: models.TaskAudioSummary,
		},
		{
			name:    "audio with explicit code request",
			content: uploaded(article, models.MethodASR, models.InputAudio), userText: "explain this code",
			want: models.TaskCodeExplanation,
		},
		{
			name:    "youtube link defaults to transcript",
			content: transcript(article), userText: "https://www.youtube.com/watch?v=abc123",
			want: models.TaskYouTubeTranscript, signal: "content:transcript",
		},
		{
			name:    "youtube link with summary request",
			content: transcript(article), userText: "summarize https://youtu.be/abc123",
			want: models.TaskSummarization,
		},
		{
			name:    "extraction phrase outranks question words",
			content: uploaded(article, models.MethodPDF, models.InputPDF), userText: "what does it say",
			want: models.TaskTextExtraction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := h.Plan(tt.content, tt.userText, nil)
			assert.False(t, plan.NeedsClarification)
			assert.Empty(t, plan.ClarificationQuestion)
			assert.Equal(t, tt.want, plan.TaskType)
			assert.True(t, plan.Executable())
			if tt.signal != "" {
				assert.Equal(t, tt.signal, plan.Param(models.ParamSignal))
			}
		})
	}
}

func TestPlan_IsDeterministic(t *testing.T) {
	h := createTestHandler(t)
	content := uploaded(pythonSnippet, models.MethodOCR, models.InputImage)

	first := h.Plan(content, "what is wrong with this?", nil)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, h.Plan(content, "what is wrong with this?", nil))
	}
}

func TestPlan_Parameters(t *testing.T) {
	h := createTestHandler(t)

	plan := h.Plan(uploaded(pythonSnippet, models.MethodOCR, models.InputImage), "explain this code", nil)
	assert.Equal(t, "Python", plan.Param(models.ParamLanguageHint))

	plan = h.Plan(uploaded("fn main() {\n    let mut x = 1;\n}", models.MethodOCR, models.InputImage), "explain this rust code", nil)
	assert.Equal(t, "Rust", plan.Param(models.ParamLanguageHint))

	plan = h.Plan(typed("Who wrote Hamlet?"), "Who wrote Hamlet?", nil)
	assert.Equal(t, "Who wrote Hamlet?", plan.Param(models.ParamQuestion))
}

func TestPlan_EmptyContentFallsBack(t *testing.T) {
	h := createTestHandler(t)

	plan := h.Plan(uploaded("   ", models.MethodOCR, models.InputImage), "summarize", nil)
	assert.Equal(t, models.TaskTextExtraction, plan.TaskType)
	assert.Equal(t, "empty_content", plan.Param(models.ParamFallback))
	assert.False(t, plan.NeedsClarification)
}

// ==========================
// Clarification round-trip
// ==========================

func TestPlan_AmbiguousUploads(t *testing.T) {
	h := createTestHandler(t)

	tests := []struct {
		name     string
		content  *models.ExtractedContent
		userText string
	}{
		{name: "plain text file without instruction", content: uploaded(article, models.MethodDirect, models.InputText)},
		{name: "image with text that has no intent", content: uploaded(article, models.MethodOCR, models.InputImage), userText: "hmm ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := h.Plan(tt.content, tt.userText, nil)
			require.True(t, plan.NeedsClarification)
			assert.NotEmpty(t, plan.ClarificationQuestion)
			assert.False(t, plan.Executable())
			assert.Equal(t, "text_extraction,conversational,summarization,sentiment_analysis", plan.Param(models.ParamCandidates))
			assert.Contains(t, plan.ClarificationQuestion, "1) extract the text")
			assert.Contains(t, plan.ClarificationQuestion, "4) analyze its sentiment")
		})
	}
}

func TestPlan_AmbiguousCodeFileOffersCodeExplanation(t *testing.T) {
	h := createTestHandler(t)

	plan := h.Plan(uploaded(pythonSnippet, models.MethodDirect, models.InputText), "", nil)
	require.True(t, plan.NeedsClarification)
	assert.True(t, strings.HasSuffix(plan.Param(models.ParamCandidates), ",code_explanation"))
	assert.Contains(t, plan.ClarificationQuestion, "5) explain the code")
}

func TestPlan_ResumeNeverAsksAgain(t *testing.T) {
	h := createTestHandler(t)
	content := uploaded(article, models.MethodDirect, models.InputText)
	draft := h.Plan(content, "", nil)
	require.True(t, draft.NeedsClarification)

	tests := []struct {
		answer   string
		want     models.TaskType
		fallback string
	}{
		{answer: "extract the content", want: models.TaskTextExtraction},
		{answer: "summarize it please", want: models.TaskSummarization},
		{answer: "2", want: models.TaskConversational},
		{answer: "the third one", want: models.TaskSummarization},
		{answer: "option 4", want: models.TaskSentimentAnalysis},
		{answer: "first", want: models.TaskTextExtraction},
		{answer: "what is the main decision?", want: models.TaskConversational},
		{answer: "9", want: models.TaskTextExtraction, fallback: "ambiguous_clarification"},
		{answer: "not sure honestly", want: models.TaskTextExtraction, fallback: "ambiguous_clarification"},
		{answer: "", want: models.TaskTextExtraction, fallback: "ambiguous_clarification"},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			plan := h.Plan(content, tt.answer, &draft)
			assert.False(t, plan.NeedsClarification)
			assert.Equal(t, tt.want, plan.TaskType)
			assert.Equal(t, tt.fallback, plan.Param(models.ParamFallback))
		})
	}
}

func TestPlan_ResumeConversationCarriesQuestion(t *testing.T) {
	h := createTestHandler(t)
	content := uploaded(article, models.MethodDirect, models.InputText)
	draft := h.Plan(content, "", nil)

	plan := h.Plan(content, "why do critics object?", &draft)
	assert.Equal(t, models.TaskConversational, plan.TaskType)
	assert.Equal(t, "why do critics object?", plan.Param(models.ParamQuestion))

	plan = h.Plan(content, "2", &draft)
	assert.Equal(t, defaultQuestion, plan.Param(models.ParamQuestion))
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute(t *testing.T) {
	h := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{
		ExtractedContent: *typed("Summarize this: " + article),
		UserText:         "Summarize this: " + article,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskSummarization, out.ExecutionPlan.TaskType)

	_, err = h.Execute(context.Background(), &Input{
		ExtractedContent: models.ExtractedContent{Text: "x", Confidence: 0.5, ExtractionMethod: models.MethodDirect},
	})
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestParseOrdinal(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{"2)", 2, true},
		{"Option 3.", 3, true},
		{"the second one", 2, true},
		{"one", 1, true},
		{"#4", 4, true},
		{"go with 5th", 5, true},
		{"1 or 2", 0, false},
		{"summarize", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseOrdinal(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLooksLikeCode(t *testing.T) {
	assert.True(t, looksLikeCode(pythonSnippet))
	assert.True(t, looksLikeCode("int main() {\n  return 0;\n}"))
	assert.False(t, looksLikeCode(article))
	assert.False(t, looksLikeCode(""))
}

func TestLooksLikeCode_PlainStatements(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"loop with call", "for i in range(10):\n    print(i)", true},
		{"assignment and call", "x = [1, 2, 3]\nprint(sum(x))", true},
		{"method call and loop", "numbers = [3, 1, 2]\nnumbers.sort()\nfor n in numbers:\n    print(n)", true},
		{"augmented assignment", "total += 1\ncount -= 2", true},
		{"prose", "The plan adds three bus lines.\nCritics say the budget is short.", false},
		{"prose ending in colon", "Here is what we found:\nThe numbers went up.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeCode(tt.text))
		})
	}
}

func TestPlan_CodeScreenshotWithExplain(t *testing.T) {
	h := createTestHandler(t)

	snippets := []string{
		"for i in range(10):\n    print(i)",
		"x = [1, 2, 3]\nprint(sum(x))",
		"numbers = [3, 1, 2]\nnumbers.sort()\nfor n in numbers:\n    print(n)",
		"def add(a, b):\n    return a + b",
		// OCR lost the parentheses on the second line.
		"result = compute(data)\nprint result",
	}

	for _, code := range snippets {
		plan := h.Plan(uploaded(code, models.MethodOCR, models.InputImage), "explain", nil)
		assert.Equal(t, models.TaskCodeExplanation, plan.TaskType, "%q", code)
		assert.False(t, plan.NeedsClarification, "%q", code)
	}

	assert.False(t, looksLikeCode("result = compute(data)\nprint result"))

	plan := h.Plan(uploaded(article, models.MethodOCR, models.InputImage), "explain", nil)
	assert.Equal(t, models.TaskConversational, plan.TaskType)
}
