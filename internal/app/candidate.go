package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"docquiz-service/internal/domain"
)

// GenerationRequest is everything the generator receives for one attempt.
type GenerationRequest struct {
	Topic              string
	Difficulty         domain.Difficulty
	SourceTexts        []string
	NumberOfQuestions  int
	QuestionType       domain.QuestionType
	CustomInstructions string
	// StrictInstruction is set on the retry after malformed or short output.
	StrictInstruction string
}

// Generator is the boundary to the external text-generation service. It must
// not retry; errors wrap ErrGenerationTimeout, ErrGenerationService or
// ErrGenerationMalformed.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (RawCandidate, error)
}

// RawCandidate is unvalidated generator output. Nothing in it is trusted until
// NormalizeCandidate has run.
type RawCandidate struct {
	Questions []RawQuestion
}

// RawQuestion is one question exactly as the generator described it.
type RawQuestion struct {
	Prompt  string
	Options []RawOption
	// Answer is the correct answer as given: a letter, the option text, or a number.
	Answer string
	// AnswerIndex is an explicit zero-based index, or -1.
	AnswerIndex int
}

// RawOption is an option plus an optional inline correctness flag.
type RawOption struct {
	Text    string
	Correct bool
}

// ParseCandidate decodes generator text into a RawCandidate. It accepts a
// top-level array of questions or an object with a "questions" array, with
// surrounding prose or markdown fences stripped first.
func ParseCandidate(text string) (RawCandidate, error) {
	payload := ExtractJSON(text)
	if payload == "" {
		return RawCandidate{}, fmt.Errorf("%w: no JSON found in output", domain.ErrGenerationMalformed)
	}
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return RawCandidate{}, fmt.Errorf("%w: %v", domain.ErrGenerationMalformed, err)
	}

	var items []any
	switch v := root.(type) {
	case []any:
		items = v
	case map[string]any:
		qs, ok := v["questions"].([]any)
		if !ok {
			return RawCandidate{}, fmt.Errorf("%w: object has no questions array", domain.ErrGenerationMalformed)
		}
		items = qs
	default:
		return RawCandidate{}, fmt.Errorf("%w: unexpected top-level %T", domain.ErrGenerationMalformed, root)
	}

	candidate := RawCandidate{Questions: make([]RawQuestion, 0, len(items))}
	for _, item := range items {
		candidate.Questions = append(candidate.Questions, parseRawQuestion(item))
	}
	return candidate, nil
}

func parseRawQuestion(item any) RawQuestion {
	q := RawQuestion{AnswerIndex: -1}
	obj, ok := item.(map[string]any)
	if !ok {
		return q
	}
	q.Prompt = firstString(obj, "question", "prompt", "text")

	rawOptions, _ := obj["options"].([]any)
	if rawOptions == nil {
		rawOptions, _ = obj["choices"].([]any)
	}
	for _, ro := range rawOptions {
		switch o := ro.(type) {
		case string:
			q.Options = append(q.Options, RawOption{Text: o})
		case map[string]any:
			correct, _ := o["is_correct"].(bool)
			if c, ok := o["correct"].(bool); ok {
				correct = c
			}
			q.Options = append(q.Options, RawOption{Text: firstString(o, "text", "option", "value"), Correct: correct})
		case json.Number:
			q.Options = append(q.Options, RawOption{Text: o.String()})
		case bool:
			q.Options = append(q.Options, RawOption{Text: boolLabel(o)})
		}
	}

	numericAnswer := -1
answers:
	for _, key := range []string{"correct_answer", "answer", "correctAnswer"} {
		switch a := obj[key].(type) {
		case string:
			q.Answer = a
			break answers
		case json.Number:
			q.Answer = a.String()
			if i, err := a.Int64(); err == nil {
				numericAnswer = int(i)
			}
			break answers
		case bool:
			q.Answer = boolLabel(a)
			break answers
		}
	}
	for _, key := range []string{"correct_option_index", "correctOptionIndex", "answer_index"} {
		n, ok := obj[key].(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			q.AnswerIndex = int(i)
			break
		}
	}
	if q.AnswerIndex < 0 && numericAnswer >= 0 && !hasOptionText(q.Options, q.Answer) {
		// A bare number that is not itself an option is a zero-based index.
		q.AnswerIndex = numericAnswer
	}
	return q
}

func hasOptionText(options []RawOption, text string) bool {
	for _, o := range options {
		if strings.TrimSpace(o.Text) == text {
			return true
		}
	}
	return false
}

func boolLabel(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func firstString(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// ExtractJSON returns the outermost JSON array or object in text, ignoring
// markdown fences and prose around it. It returns "" when there is none.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			text = strings.TrimSpace(rest[:j])
		}
	}
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}
	open := text[start]
	closeCh := byte('}')
	if open == '[' {
		closeCh = ']'
	}
	end := strings.LastIndexByte(text, closeCh)
	if end < start {
		return ""
	}
	return text[start : end+1]
}
