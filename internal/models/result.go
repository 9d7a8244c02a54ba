package models

import (
	"encoding/json"
	"fmt"
)

// TaskOutput is the task-specific payload of a TaskResult. Each task type has exactly one
// implementation, so the shape of the output is fixed by its task type.
type TaskOutput interface {
	TaskType() TaskType
}

// ExtractionOutput is returned by text_extraction.
type ExtractionOutput struct {
	WordCount      int `json:"word_count"`
	CharacterCount int `json:"character_count"`
}

func (ExtractionOutput) TaskType() TaskType { return TaskTextExtraction }

// TranscriptOutput is returned by youtube_transcript.
type TranscriptOutput struct {
	WordCount      int `json:"word_count"`
	CharacterCount int `json:"character_count"`
}

func (TranscriptOutput) TaskType() TaskType { return TaskYouTubeTranscript }

// ConversationalOutput is returned by conversational.
type ConversationalOutput struct {
	Response string `json:"response"`
}

func (ConversationalOutput) TaskType() TaskType { return TaskConversational }

// SummaryOutput is returned by summarization.
type SummaryOutput struct {
	OneLine      string   `json:"one_line"`
	Bullets      []string `json:"bullets"`
	FiveSentence string   `json:"five_sentence"`
}

func (SummaryOutput) TaskType() TaskType { return TaskSummarization }

// SentimentOutput is returned by sentiment_analysis.
type SentimentOutput struct {
	Label         string  `json:"label"`
	Confidence    float64 `json:"confidence"`
	Justification string  `json:"justification"`
}

func (SentimentOutput) TaskType() TaskType { return TaskSentimentAnalysis }

// CodeExplanationOutput is returned by code_explanation.
type CodeExplanationOutput struct {
	Language        string   `json:"language"`
	Explanation     string   `json:"explanation"`
	PotentialBugs   []string `json:"potential_bugs"`
	TimeComplexity  string   `json:"time_complexity"`
	SpaceComplexity string   `json:"space_complexity"`
}

func (CodeExplanationOutput) TaskType() TaskType { return TaskCodeExplanation }

// AudioSummaryOutput is returned by audio_summary.
type AudioSummaryOutput struct {
	OneLine         string   `json:"one_line"`
	Bullets         []string `json:"bullets"`
	FiveSentence    string   `json:"five_sentence"`
	DurationSeconds float64  `json:"duration_seconds"`
}

func (AudioSummaryOutput) TaskType() TaskType { return TaskAudioSummary }

// Usage is the token usage reported by the model backend.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TaskResult is the executor output for one request.
type TaskResult struct {
	TaskType             TaskType   `json:"task_type"`
	Output               TaskOutput `json:"output"`
	ExecutionTimeSeconds float64    `json:"execution_time_seconds"`
	ActualCost           float64    `json:"actual_cost"`
	Usage                Usage      `json:"usage"`
	Model                string     `json:"model,omitempty"`
}

// NewTaskOutput returns an empty output value for the given task type.
func NewTaskOutput(t TaskType) (TaskOutput, error) {
	switch t {
	case TaskTextExtraction:
		return &ExtractionOutput{}, nil
	case TaskYouTubeTranscript:
		return &TranscriptOutput{}, nil
	case TaskConversational:
		return &ConversationalOutput{}, nil
	case TaskSummarization:
		return &SummaryOutput{}, nil
	case TaskSentimentAnalysis:
		return &SentimentOutput{}, nil
	case TaskCodeExplanation:
		return &CodeExplanationOutput{}, nil
	case TaskAudioSummary:
		return &AudioSummaryOutput{}, nil
	}
	return nil, fmt.Errorf("unknown task type %q", t)
}

// UnmarshalJSON decodes the output into the variant selected by task_type.
func (r *TaskResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		TaskType             TaskType        `json:"task_type"`
		Output               json.RawMessage `json:"output"`
		ExecutionTimeSeconds float64         `json:"execution_time_seconds"`
		ActualCost           float64         `json:"actual_cost"`
		Usage                Usage           `json:"usage"`
		Model                string          `json:"model"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out, err := NewTaskOutput(raw.TaskType)
	if err != nil {
		return err
	}
	if len(raw.Output) > 0 && string(raw.Output) != "null" {
		if err := json.Unmarshal(raw.Output, out); err != nil {
			return fmt.Errorf("decode %s output: %w", raw.TaskType, err)
		}
	}

	*r = TaskResult{
		TaskType:             raw.TaskType,
		Output:               out,
		ExecutionTimeSeconds: raw.ExecutionTimeSeconds,
		ActualCost:           raw.ActualCost,
		Usage:                raw.Usage,
		Model:                raw.Model,
	}
	return nil
}
