// internal/workers/assistant/plan-intent/classifier.go
package planintent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"agentic-assistant/internal/models"
	"agentic-assistant/pkg/registry"
)

// Explicit keywords are checked in this order; the first task whose keywords match wins.
var keywordOrder = []models.TaskType{
	models.TaskSentimentAnalysis,
	models.TaskCodeExplanation,
	models.TaskSummarization,
	models.TaskTextExtraction,
}

// Options offered when an upload arrives without a usable instruction, in question order.
var clarificationOptions = []models.TaskType{
	models.TaskTextExtraction,
	models.TaskConversational,
	models.TaskSummarization,
	models.TaskSentimentAnalysis,
}

var optionLabels = map[models.TaskType]string{
	models.TaskTextExtraction:    "extract the text",
	models.TaskYouTubeTranscript: "return the transcript",
	models.TaskConversational:    "answer a question about it",
	models.TaskSummarization:     "summarize it",
	models.TaskAudioSummary:      "summarize the recording",
	models.TaskSentimentAnalysis: "analyze its sentiment",
	models.TaskCodeExplanation:   "explain the code",
}

const defaultQuestion = "Respond helpfully to this content."

var (
	explainPattern = regexp.MustCompile(`(?i)\b(explain|describe|walk me through|break (it|this) down)\b`)
	urlToken       = regexp.MustCompile(`(?i)\S*(://|youtu\.be/|youtube\.com/)\S*`)
	codeLineStart  = regexp.MustCompile(`^\s*(def |class |import |from \S+ import |function |const |let |var |public |private |protected |#include|func |package |fn |impl |struct |return\b|if\s*\(|for\s*\(|while\s*\(|[{}])`)
	codeLineEnd    = regexp.MustCompile(`([;{}]|\)\s*:)\s*$|=>`)
	codeStatements = []*regexp.Regexp{
		regexp.MustCompile(`^\s*[\w.]+\(.*\)\s*$`),
		regexp.MustCompile(`^\s*[\w.\[\]]+\s*[+\-*/]?=\s*\S`),
		regexp.MustCompile(`^\s*(for|while|if|elif|else|try|except|with)\b.*:\s*$`),
	}
)

var explicitLanguages = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"TypeScript", regexp.MustCompile(`(?i)\btypescript\b`)},
	{"JavaScript", regexp.MustCompile(`(?i)\b(javascript|js|node\.?js)\b`)},
	{"Python", regexp.MustCompile(`(?i)\bpython\b`)},
	{"Java", regexp.MustCompile(`(?i)\bjava\b`)},
	{"C++", regexp.MustCompile(`(?i)\b(c\+\+|cpp)`)},
	{"C#", regexp.MustCompile(`(?i)\b(c#|csharp)`)},
	{"Rust", regexp.MustCompile(`(?i)\brust\b`)},
	{"Go", regexp.MustCompile(`(?i)\b(golang|go code|in go)\b`)},
	{"Ruby", regexp.MustCompile(`(?i)\bruby\b`)},
	{"PHP", regexp.MustCompile(`(?i)\bphp\b`)},
	{"SQL", regexp.MustCompile(`(?i)\bsql\b`)},
	{"Kotlin", regexp.MustCompile(`(?i)\bkotlin\b`)},
	{"Swift", regexp.MustCompile(`(?i)\bswift\b`)},
}

type classifier struct {
	keywords            map[models.TaskType][]*regexp.Regexp
	maxInstructionRunes int
}

func newClassifier(reg *registry.TaskRegistry, maxInstructionRunes int) *classifier {
	c := &classifier{
		keywords:            make(map[models.TaskType][]*regexp.Regexp),
		maxInstructionRunes: maxInstructionRunes,
	}
	for _, t := range models.AllTaskTypes {
		def, ok := reg.Lookup(string(t))
		if !ok {
			continue
		}
		for _, kw := range def.Keywords {
			c.keywords[t] = append(c.keywords[t], keywordPattern(kw))
		}
	}
	return c
}

func keywordPattern(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(strings.TrimSpace(kw)) + `(?:$|[^\p{L}\p{N}])`)
}

func (c *classifier) matches(t models.TaskType, text string) bool {
	for _, re := range c.keywords[t] {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// plan classifies content plus the user's text. draft is non-nil when the call answers a
// clarification question; such a call never asks again.
func (c *classifier) plan(content *models.ExtractedContent, userText string, draft *models.ExecutionPlan) models.ExecutionPlan {
	if content.IsEmpty() {
		p := c.build(c.adjust(models.TaskTextExtraction, content), content, "", "fallback",
			"no text could be extracted, so there is nothing to interpret")
		p.Parameters[models.ParamFallback] = "empty_content"
		return p
	}

	if draft != nil {
		return c.resume(content, userText, draft)
	}

	instruction := c.instruction(content, userText)
	if task, signal, ok := c.intent(instruction, content); ok {
		return c.build(task, content, userText, signal, fmt.Sprintf("the request asks for %s", task))
	}

	if content.Uploaded() && (strings.TrimSpace(userText) != "" || content.ExtractionMethod == models.MethodDirect) {
		return c.clarify(content)
	}

	task := c.defaultFor(content)
	return c.build(task, content, userText, "content:"+string(content.ExtractionMethod),
		fmt.Sprintf("%s content with no explicit instruction defaults to %s", content.ExtractionMethod, task))
}

func (c *classifier) resume(content *models.ExtractedContent, answer string, draft *models.ExecutionPlan) models.ExecutionPlan {
	candidates := splitCandidates(draft.Param(models.ParamCandidates))

	if n, ok := parseOrdinal(answer); ok && n <= len(candidates) {
		return c.build(candidates[n-1], content, "", "clarification:ordinal",
			fmt.Sprintf("the clarification picked option %d", n))
	}

	if task, signal, ok := c.intent(stripURLs(answer), content); ok {
		return c.build(task, content, answer, "clarification:"+signal,
			fmt.Sprintf("the clarification asks for %s", task))
	}

	p := c.build(c.adjust(models.TaskTextExtraction, content), content, "", "clarification:fallback",
		"the clarification answer was still ambiguous, so the content is returned as extracted")
	p.Parameters[models.ParamFallback] = "ambiguous_clarification"
	return p
}

// instruction returns the part of the user's text that can carry intent. For typed text that is
// also the content, only the leading segment counts, so words inside a pasted article do not.
func (c *classifier) instruction(content *models.ExtractedContent, userText string) string {
	text := stripURLs(userText)
	if content.Uploaded() || content.ExtractionMethod != models.MethodDirect {
		return text
	}

	if i := strings.IndexAny(text, "\n:"); i >= 0 {
		text = text[:i]
	}
	if r := []rune(text); c.maxInstructionRunes > 0 && len(r) > c.maxInstructionRunes {
		text = string(r[:c.maxInstructionRunes])
	}
	return strings.TrimSpace(text)
}

func (c *classifier) intent(instruction string, content *models.ExtractedContent) (models.TaskType, string, bool) {
	if strings.TrimSpace(instruction) == "" {
		return "", "", false
	}

	for _, t := range keywordOrder {
		if !c.matches(t, instruction) {
			continue
		}
		// A typed question about programming is a conversation, not code to explain.
		if t == models.TaskCodeExplanation && !content.Uploaded() && !looksLikeCode(content.Text) {
			return models.TaskConversational, "keyword:" + string(t), true
		}
		return c.adjust(t, content), "keyword:" + string(t), true
	}

	if explainPattern.MatchString(instruction) {
		if looksLikeCode(content.Text) || screenshotOfCode(content) {
			return models.TaskCodeExplanation, "keyword:explain", true
		}
		return models.TaskConversational, "keyword:explain", true
	}

	if c.matches(models.TaskConversational, instruction) || strings.HasSuffix(strings.TrimSpace(instruction), "?") {
		return models.TaskConversational, "keyword:" + string(models.TaskConversational), true
	}

	return "", "", false
}

// adjust maps a generic task onto the variant that fits the content's source.
func (c *classifier) adjust(t models.TaskType, content *models.ExtractedContent) models.TaskType {
	switch {
	case t == models.TaskSummarization && (content.ExtractionMethod == models.MethodASR || content.SourceInputType == models.InputAudio):
		return models.TaskAudioSummary
	case t == models.TaskTextExtraction && content.ExtractionMethod == models.MethodTranscript:
		return models.TaskYouTubeTranscript
	}
	return t
}

func (c *classifier) defaultFor(content *models.ExtractedContent) models.TaskType {
	switch {
	case content.ExtractionMethod == models.MethodASR:
		return models.TaskAudioSummary
	case content.ExtractionMethod == models.MethodTranscript:
		return models.TaskYouTubeTranscript
	case looksLikeCode(content.Text):
		return models.TaskCodeExplanation
	case content.ExtractionMethod == models.MethodDirect && !content.Uploaded():
		return models.TaskConversational
	}
	return models.TaskTextExtraction
}

func (c *classifier) clarify(content *models.ExtractedContent) models.ExecutionPlan {
	options := append([]models.TaskType(nil), clarificationOptions...)
	if looksLikeCode(content.Text) {
		options = append(options, models.TaskCodeExplanation)
	}

	seen := map[models.TaskType]bool{}
	var candidates []string
	var labels []string
	for _, t := range options {
		t = c.adjust(t, content)
		if seen[t] {
			continue
		}
		seen[t] = true
		candidates = append(candidates, string(t))
		labels = append(labels, fmt.Sprintf("%d) %s", len(candidates), optionLabels[t]))
	}

	subject := "this content"
	if name, _ := content.Metadata[models.MetaFilename].(string); name != "" {
		subject = fmt.Sprintf("%q", name)
	}

	return models.ExecutionPlan{
		TaskType:           c.adjust(models.TaskTextExtraction, content),
		NeedsClarification: true,
		ClarificationQuestion: fmt.Sprintf("What would you like me to do with %s? Reply with %s, or describe what you need.",
			subject, strings.Join(labels, ", ")),
		Parameters: map[string]string{
			models.ParamCandidates: strings.Join(candidates, ","),
			models.ParamSignal:     "ambiguous",
		},
		Reasoning: "the upload carries no instruction that selects a single task",
	}
}

func (c *classifier) build(t models.TaskType, content *models.ExtractedContent, userText, signal, reasoning string) models.ExecutionPlan {
	params := map[string]string{models.ParamSignal: signal}

	switch t {
	case models.TaskCodeExplanation:
		if lang := detectLanguage(userText, content.Text); lang != "" {
			params[models.ParamLanguageHint] = lang
		}
	case models.TaskConversational:
		q := strings.TrimSpace(stripURLs(userText))
		if q == "" {
			q = defaultQuestion
		}
		params[models.ParamQuestion] = q
	}

	return models.ExecutionPlan{
		TaskType:   t,
		Parameters: params,
		Reasoning:  reasoning,
	}
}

func stripURLs(s string) string {
	return strings.TrimSpace(urlToken.ReplaceAllString(s, " "))
}

func splitCandidates(s string) []models.TaskType {
	var out []models.TaskType
	for _, part := range strings.Split(s, ",") {
		if t := models.TaskType(strings.TrimSpace(part)); t.Valid() {
			out = append(out, t)
		}
	}
	return out
}

var ordinalWords = map[string]int{
	"1": 1, "first": 1, "1st": 1,
	"2": 2, "two": 2, "second": 2, "2nd": 2,
	"3": 3, "three": 3, "third": 3, "3rd": 3,
	"4": 4, "four": 4, "fourth": 4, "4th": 4,
	"5": 5, "five": 5, "fifth": 5, "5th": 5,
}

var ordinalFiller = map[string]bool{
	"option": true, "number": true, "no": true, "the": true, "choice": true, "please": true, "go": true, "with": true,
}

// parseOrdinal reads short answers such as "2", "option 3" or "the second one".
func parseOrdinal(answer string) (int, bool) {
	words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 || len(words) > 5 {
		return 0, false
	}

	var picks []int
	hasOne := false
	for _, w := range words {
		if w == "one" {
			hasOne = true
			continue
		}
		if v, ok := ordinalWords[w]; ok {
			picks = append(picks, v)
			continue
		}
		if !ordinalFiller[w] {
			return 0, false
		}
	}

	if len(picks) == 0 && hasOne {
		return 1, true
	}
	if len(picks) != 1 {
		return 0, false
	}
	return picks[0], true
}

// looksLikeCode reports whether enough lines carry programming syntax.
func looksLikeCode(text string) bool {
	nonEmpty, codeLines := countCodeLines(text)
	if nonEmpty == 0 {
		return false
	}
	if nonEmpty <= 2 {
		return codeLines == nonEmpty
	}
	return codeLines >= 2 && codeLines*3 >= nonEmpty
}

// screenshotOfCode applies a looser bar to OCR'd images, where recognition noise breaks some lines.
func screenshotOfCode(content *models.ExtractedContent) bool {
	if content.ExtractionMethod != models.MethodOCR || content.SourceInputType != models.InputImage {
		return false
	}
	nonEmpty, codeLines := countCodeLines(content.Text)
	return codeLines > 0 && codeLines*2 >= nonEmpty
}

func countCodeLines(text string) (nonEmpty, codeLines int) {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonEmpty++
		if isCodeLine(line) {
			codeLines++
		}
	}
	return nonEmpty, codeLines
}

func isCodeLine(line string) bool {
	if codeLineStart.MatchString(line) || codeLineEnd.MatchString(line) {
		return true
	}
	for _, re := range codeStatements {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func detectLanguage(userText, code string) string {
	for _, l := range explicitLanguages {
		if l.pattern.MatchString(userText) {
			return l.name
		}
	}

	switch {
	case strings.Contains(code, "package ") && strings.Contains(code, "func "):
		return "Go"
	case strings.Contains(code, "fn ") && (strings.Contains(code, "let mut") || strings.Contains(code, "->") || strings.Contains(code, "::")):
		return "Rust"
	case strings.Contains(code, "public class") || strings.Contains(code, "public static void"):
		return "Java"
	case strings.Contains(code, "#include") || strings.Contains(code, "int main"):
		return "C/C++"
	case strings.Contains(code, "function ") || strings.Contains(code, "const ") || strings.Contains(code, "let ") || strings.Contains(code, "=>"):
		return "JavaScript"
	case strings.Contains(code, "def ") || strings.Contains(code, "import ") || strings.Contains(code, "print("):
		return "Python"
	}
	return ""
}
