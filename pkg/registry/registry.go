// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"agentic-assistant/internal/common/validation"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed tasks.json
var defaultTasks []byte

// Default returns the registry compiled into the binary.
func Default() (*TaskRegistry, error) {
	return Parse(defaultTasks)
}

// LoadRegistry reads a registry file. An empty path returns the default registry.
func LoadRegistry(path string) (*TaskRegistry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*TaskRegistry, error) {
	var reg TaskRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return &reg, nil
}

// Lookup finds a task definition by id.
func (r *TaskRegistry) Lookup(id string) (*TaskDefinition, bool) {
	for i := range r.Tasks {
		if r.Tasks[i].ID == id {
			return &r.Tasks[i], true
		}
	}
	return nil, false
}

// Validate checks every definition: ids are unique snake_case names, model-backed tasks carry a
// prompt and an output schema that compiles, and token estimates are positive.
func (r *TaskRegistry) Validate() []error {
	var errs []error
	seen := map[string]bool{}

	for _, t := range r.Tasks {
		if err := validation.ValidateTaskID(t.ID); err != nil {
			errs = append(errs, err)
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate task id", t.ID))
		}
		seen[t.ID] = true

		if t.EstimatedOutputTokens <= 0 {
			errs = append(errs, fmt.Errorf("%s: estimatedOutputTokens must be positive", t.ID))
		}
		if t.PromptOverheadTokens < 0 {
			errs = append(errs, fmt.Errorf("%s: promptOverheadTokens must not be negative", t.ID))
		}

		if !t.ModelBacked {
			continue
		}
		if t.PromptTemplate == "" {
			errs = append(errs, fmt.Errorf("%s: model-backed task needs a promptTemplate", t.ID))
		}
		if len(t.OutputSchema) == 0 {
			errs = append(errs, fmt.Errorf("%s: model-backed task needs an outputSchema", t.ID))
			continue
		}
		if _, err := t.CompileSchema(); err != nil {
			errs = append(errs, fmt.Errorf("%s: output schema: %w", t.ID, err))
		}
	}

	return errs
}

// CompileSchema compiles the task's output schema.
func (t *TaskDefinition) CompileSchema() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(t.OutputSchema))
}
