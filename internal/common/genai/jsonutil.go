package genai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencedObject  = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*\\})\\s*```")
	bareObject    = regexp.MustCompile(`(?s)\{.*\}`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// DecodeObject pulls the first JSON object out of model text. Models often wrap JSON in
// markdown fences, add prose around it or leave trailing commas.
func DecodeObject(text string) (map[string]interface{}, error) {
	raw := ""
	if m := fencedObject.FindStringSubmatch(text); len(m) > 1 {
		raw = m[1]
	} else {
		raw = bareObject.FindString(text)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}
	if err := json.Unmarshal([]byte(trailingComma.ReplaceAllString(raw, "$1")), &out); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	return out, nil
}
