package models

// TaskType selects the task handler that fulfils a request.
type TaskType string

const (
	TaskTextExtraction    TaskType = "text_extraction"
	TaskYouTubeTranscript TaskType = "youtube_transcript"
	TaskConversational    TaskType = "conversational"
	TaskSummarization     TaskType = "summarization"
	TaskSentimentAnalysis TaskType = "sentiment_analysis"
	TaskCodeExplanation   TaskType = "code_explanation"
	TaskAudioSummary      TaskType = "audio_summary"
)

// AllTaskTypes lists every supported task type in a fixed order.
var AllTaskTypes = []TaskType{
	TaskTextExtraction,
	TaskYouTubeTranscript,
	TaskConversational,
	TaskSummarization,
	TaskSentimentAnalysis,
	TaskCodeExplanation,
	TaskAudioSummary,
}

// Valid reports whether t is a known task type.
func (t TaskType) Valid() bool {
	for _, known := range AllTaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Passthrough reports whether the task is served from extracted content without a model call.
func (t TaskType) Passthrough() bool {
	return t == TaskTextExtraction || t == TaskYouTubeTranscript
}

// Plan parameter keys.
const (
	ParamLanguageHint = "language_hint"
	ParamQuestion     = "question"
	ParamCandidates   = "candidates"
	ParamFallback     = "fallback"
	ParamSignal       = "signal"
)

// ExecutionPlan is the planner's decision for one request.
type ExecutionPlan struct {
	TaskType              TaskType          `json:"task_type"`
	NeedsClarification    bool              `json:"needs_clarification"`
	ClarificationQuestion string            `json:"clarification_question,omitempty"`
	Parameters            map[string]string `json:"parameters,omitempty"`
	Reasoning             string            `json:"reasoning,omitempty"`
}

// Executable reports whether the plan may be passed to cost estimation and execution.
func (p *ExecutionPlan) Executable() bool {
	return p != nil && !p.NeedsClarification && p.TaskType.Valid()
}

// Param returns a plan parameter or the empty string.
func (p *ExecutionPlan) Param(key string) string {
	if p == nil || p.Parameters == nil {
		return ""
	}
	return p.Parameters[key]
}

// CostEstimate is the projected cost computed before execution.
type CostEstimate struct {
	TaskType     TaskType `json:"task_type"`
	Model        string   `json:"model,omitempty"`
	InputTokens  int      `json:"input_tokens"`
	OutputTokens int      `json:"output_tokens"`
	InputCost    float64  `json:"input_cost"`
	OutputCost   float64  `json:"output_cost"`
	TotalCost    float64  `json:"total_cost"`
	Confidence   float64  `json:"confidence"`
}
