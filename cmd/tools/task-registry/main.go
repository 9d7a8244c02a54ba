// cmd/tools/task-registry/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"agentic-assistant/pkg/registry"
)

var registryPath string

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{listCmd, validateCmd, updateCmd} {
		fs.StringVar(&registryPath, "path", "", "Path to registry file (default: built-in registry)")
	}

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Task ID to update (e.g., summarization)")
	field := updateCmd.String("field", "", "Field to update (displayName, description, maxInputChars, ...)")
	value := updateCmd.String("value", "", "New value for the field")

	// Export command flags
	exportPath := exportCmd.String("out", "configs/tasks.json", "Where to write the built-in registry")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		if err := listTasks(); err != nil {
			fmt.Printf("Error listing tasks: %v\n", err)
			os.Exit(1)
		}

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateRegistry(); err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}

	case "update":
		updateCmd.Parse(os.Args[2:])
		if registryPath == "" || *idUpdate == "" || *field == "" {
			fmt.Println("Error: path, id and field are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateTask(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating task: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated task %s, field %s to %s\n", *idUpdate, *field, *value)

	case "export":
		exportCmd.Parse(os.Args[2:])
		reg, err := registry.Default()
		if err != nil {
			fmt.Printf("Error loading built-in registry: %v\n", err)
			os.Exit(1)
		}
		if err := saveRegistry(reg, *exportPath); err != nil {
			fmt.Printf("Error exporting registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d tasks to %s\n", len(reg.Tasks), *exportPath)

	case "help":
		fallthrough
	default:
		help()
	}
}

func listTasks() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	fmt.Printf("%-20s %-6s %-10s %-8s %s\n", "ID", "MODEL", "MAX_INPUT", "OUTPUT", "TAGS")
	for _, t := range reg.Tasks {
		model := "no"
		if t.ModelBacked {
			model = "yes"
		}
		fmt.Printf("%-20s %-6s %-10d %-8d %s\n", t.ID, model, t.MaxInputChars, t.EstimatedOutputTokens, strings.Join(t.Tags, ","))
	}
	return nil
}

func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if errs := reg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Printf("  - %v\n", e)
		}
		return fmt.Errorf("%d problems found", len(errs))
	}

	fmt.Printf("Registry validation passed. Found %d tasks.\n", len(reg.Tasks))
	return nil
}

func updateTask(id, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	task, ok := reg.Lookup(id)
	if !ok {
		return fmt.Errorf("task with ID %s not found", id)
	}

	switch field {
	case "displayName":
		task.DisplayName = value
	case "description":
		task.Description = value
	case "systemPrompt":
		task.SystemPrompt = value
	case "promptTemplate":
		task.PromptTemplate = value
	case "maxInputChars", "promptOverheadTokens", "estimatedOutputTokens", "maxTokens":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid %s value: %q", field, value)
		}
		switch field {
		case "maxInputChars":
			task.MaxInputChars = n
		case "promptOverheadTokens":
			task.PromptOverheadTokens = n
		case "estimatedOutputTokens":
			task.EstimatedOutputTokens = n
		case "maxTokens":
			task.MaxTokens = n
		}
	case "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid temperature value: %w", err)
		}
		task.Temperature = f
	case "keywords":
		task.Keywords = splitList(value)
	case "tags":
		task.Tags = splitList(value)
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if errs := reg.Validate(); len(errs) > 0 {
		return fmt.Errorf("update leaves registry invalid: %v", errs[0])
	}

	reg.LastUpdated = time.Now().Format("2006-01-02")
	return saveRegistry(reg, registryPath)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.TaskRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}

	return nil
}

func help() {
	fmt.Print(`
Usage: task-registry <command> [flags]

Commands:
  list      List the tasks in a registry
  validate  Validate a registry file (or the built-in one)
  update    Update one field of a task in a registry file
  export    Write the built-in registry to a file for editing
  help      Show this help message

Examples:
  task-registry list
  task-registry export -out configs/tasks.json
  task-registry update -path configs/tasks.json -id summarization -field maxInputChars -value 12000
  task-registry validate -path configs/tasks.json

Use 'task-registry <command> -h' for more information about a command.

`)
}
