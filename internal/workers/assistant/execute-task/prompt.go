// internal/workers/assistant/execute-task/prompt.go
package executetask

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"agentic-assistant/internal/models"
	"agentic-assistant/pkg/registry"
)

const (
	maxOneLineWords  = 20
	summaryBullets   = 3
	summarySentences = 5
	fallbackQuestion = "Respond helpfully to the content above."
	truncationMarker = "\n[truncated]"
)

var initialToken = regexp.MustCompile(`^\p{Lu}\.$`)

// Lowercased, without the final period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true, "sr": true, "jr": true, "st": true,
	"vs": true, "inc": true, "ltd": true, "corp": true, "co": true, "fig": true, "approx": true,
	"e.g": true, "i.e": true, "a.m": true, "p.m": true,
}

// renderPrompt fills the task's template. Content is cut to the task's input limit.
func renderPrompt(def *registry.TaskDefinition, plan *models.ExecutionPlan, content string) string {
	if def.MaxInputChars > 0 {
		if r := []rune(content); len(r) > def.MaxInputChars {
			content = string(r[:def.MaxInputChars]) + truncationMarker
		}
	}

	question := strings.TrimSpace(plan.Param(models.ParamQuestion))
	if question == "" {
		question = fallbackQuestion
	}

	tmpl := def.PromptTemplate
	hint := strings.TrimSpace(plan.Param(models.ParamLanguageHint))
	if hint == "" {
		tmpl = strings.ReplaceAll(tmpl, "{{language_hint}} ", "")
	}

	return strings.NewReplacer(
		"{{content}}", content,
		"{{question}}", question,
		"{{language_hint}}", hint,
	).Replace(tmpl)
}

// countSentences counts sentence boundaries. A token ending in terminal punctuation closes a sentence
// only when the next token starts with an uppercase letter or digit and the token is not a known
// abbreviation or a single initial. A trailing unterminated fragment counts as a sentence.
func countSentences(text string) int {
	tokens := strings.Fields(text)
	n := 0
	for i, tok := range tokens {
		if i == len(tokens)-1 || endsSentence(tok, tokens[i+1]) {
			n++
		}
	}
	return n
}

func endsSentence(tok, next string) bool {
	word := strings.TrimLeft(strings.TrimRight(tok, `"')]`), `"'([`)
	if word == "" || !strings.ContainsAny(word[len(word)-1:], ".!?") {
		return false
	}
	if strings.HasSuffix(word, ".") && !strings.HasSuffix(word, "..") {
		if initialToken.MatchString(word) || abbreviations[strings.ToLower(strings.TrimSuffix(word, "."))] {
			return false
		}
	}
	r, _ := utf8.DecodeRuneInString(strings.TrimLeft(next, `"'([`))
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

func checkSummary(oneLine string, bullets []string, fiveSentence string) error {
	if w := len(strings.Fields(oneLine)); w == 0 || w > maxOneLineWords {
		return fmt.Errorf("one_line has %d words, want 1..%d", w, maxOneLineWords)
	}
	if len(bullets) != summaryBullets {
		return fmt.Errorf("got %d bullets, want %d", len(bullets), summaryBullets)
	}
	for i, b := range bullets {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("bullet %d is empty", i+1)
		}
	}
	if n := countSentences(fiveSentence); n != summarySentences {
		return fmt.Errorf("five_sentence has %d sentences, want %d", n, summarySentences)
	}
	return nil
}

// checkOutput enforces the structural rules the schema cannot express.
func checkOutput(out models.TaskOutput) error {
	switch o := out.(type) {
	case *models.SummaryOutput:
		return checkSummary(o.OneLine, o.Bullets, o.FiveSentence)
	case *models.AudioSummaryOutput:
		return checkSummary(o.OneLine, o.Bullets, o.FiveSentence)
	case *models.ConversationalOutput:
		if strings.TrimSpace(o.Response) == "" {
			return fmt.Errorf("empty response")
		}
	case *models.SentimentOutput:
		if o.Confidence < 0 || o.Confidence > 1 {
			return fmt.Errorf("confidence %.3f outside [0,1]", o.Confidence)
		}
	case *models.CodeExplanationOutput:
		if strings.TrimSpace(o.TimeComplexity) == "" || strings.TrimSpace(o.SpaceComplexity) == "" {
			return fmt.Errorf("missing complexity")
		}
		if o.PotentialBugs == nil {
			o.PotentialBugs = []string{}
		}
	}
	return nil
}

// normalize tidies model output before validation.
func normalize(t models.TaskType, output map[string]interface{}) {
	switch t {
	case models.TaskSentimentAnalysis:
		if label, ok := output["label"].(string); ok {
			output["label"] = strings.ToLower(strings.TrimSpace(label))
		}
	case models.TaskSummarization, models.TaskAudioSummary:
		if bullets, ok := output["bullets"].([]interface{}); ok {
			for i, b := range bullets {
				if s, ok := b.(string); ok {
					bullets[i] = strings.TrimSpace(strings.TrimLeft(s, "-*• "))
				}
			}
		}
	}
}
