// pkg/registry/schema.go
package registry

// TaskRegistry lists every task the executor can run.
type TaskRegistry struct {
	Version     string           `json:"version"`
	LastUpdated string           `json:"lastUpdated"`
	Tasks       []TaskDefinition `json:"tasks"`
}

// TaskDefinition describes how one task type is prompted, priced and validated.
type TaskDefinition struct {
	ID                    string                 `json:"id"`
	DisplayName           string                 `json:"displayName"`
	Description           string                 `json:"description"`
	ModelBacked           bool                   `json:"modelBacked"`
	SystemPrompt          string                 `json:"systemPrompt,omitempty"`
	PromptTemplate        string                 `json:"promptTemplate,omitempty"`
	MaxInputChars         int                    `json:"maxInputChars,omitempty"`
	PromptOverheadTokens  int                    `json:"promptOverheadTokens"`
	EstimatedOutputTokens int                    `json:"estimatedOutputTokens"`
	MaxTokens             int                    `json:"maxTokens,omitempty"`
	Temperature           float64                `json:"temperature,omitempty"`
	Keywords              []string               `json:"keywords,omitempty"`
	OutputSchema          map[string]interface{} `json:"outputSchema,omitempty"`
	Tags                  []string               `json:"tags,omitempty"`
}
