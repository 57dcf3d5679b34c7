package app

import (
	"regexp"
	"strconv"
	"strings"

	"docquiz-service/internal/domain"
)

// labelPrefix matches option labels such as "A. ", "b) ", "(C) " or "D: ".
var labelPrefix = regexp.MustCompile(`^\(?([A-Za-z])[\.\):]\s+`)

// NormalizeCandidate turns untrusted generator output into valid questions.
// It repairs what it can, drops what it cannot, and returns at most want
// questions with ids q1..qN together with the number of valid questions seen.
func NormalizeCandidate(raw RawCandidate, questionType domain.QuestionType, want int) ([]domain.Question, int) {
	seenPrompts := make(map[string]bool, len(raw.Questions))
	valid := make([]domain.Question, 0, len(raw.Questions))
	for _, rq := range raw.Questions {
		q, ok := normalizeQuestion(rq, questionType)
		if !ok {
			continue
		}
		key := strings.ToLower(q.Prompt)
		if seenPrompts[key] {
			continue
		}
		seenPrompts[key] = true
		valid = append(valid, q)
	}

	count := len(valid)
	if want > 0 && len(valid) > want {
		valid = valid[:want]
	}
	for i := range valid {
		valid[i].ID = "q" + strconv.Itoa(i+1)
	}
	return valid, count
}

func normalizeQuestion(rq RawQuestion, questionType domain.QuestionType) (domain.Question, bool) {
	prompt := strings.TrimSpace(rq.Prompt)
	if prompt == "" {
		return domain.Question{}, false
	}

	rawOptions := rq.Options
	if questionType == domain.QuestionTypeTrueFalse && len(rawOptions) == 0 {
		rawOptions = []RawOption{{Text: "True"}, {Text: "False"}}
	}

	// rawToClean maps each raw option index to its position after cleanup, or -1.
	rawToClean := make([]int, len(rawOptions))
	var options []string
	var flagged []bool
	position := make(map[string]int, len(rawOptions))
	for i, ro := range rawOptions {
		text := stripLabel(ro.Text)
		if text == "" {
			rawToClean[i] = -1
			continue
		}
		key := strings.ToLower(text)
		if j, dup := position[key]; dup {
			rawToClean[i] = j
			flagged[j] = flagged[j] || ro.Correct
			continue
		}
		position[key] = len(options)
		rawToClean[i] = len(options)
		options = append(options, text)
		flagged = append(flagged, ro.Correct)
	}
	if len(options) < 2 {
		return domain.Question{}, false
	}

	correct, ok := resolveCorrect(rq, options, flagged, rawToClean)
	if !ok {
		return domain.Question{}, false
	}
	return domain.Question{
		Prompt:             prompt,
		Options:            options,
		CorrectOptionIndex: correct,
	}, true
}

func resolveCorrect(rq RawQuestion, options []string, flagged []bool, rawToClean []int) (int, bool) {
	marked := -1
	for i, f := range flagged {
		if !f {
			continue
		}
		if marked >= 0 {
			// More than one option claims to be correct.
			return 0, false
		}
		marked = i
	}
	if marked >= 0 {
		return marked, true
	}

	if rq.AnswerIndex >= 0 && rq.AnswerIndex < len(rawToClean) && rawToClean[rq.AnswerIndex] >= 0 {
		return rawToClean[rq.AnswerIndex], true
	}

	answer := strings.TrimSpace(rq.Answer)
	if answer == "" {
		return 0, false
	}
	if short := strings.Trim(answer, "().: "); len(short) == 1 {
		if idx := letterIndex(short[0]); idx >= 0 && idx < len(rawToClean) && rawToClean[idx] >= 0 {
			return rawToClean[idx], true
		}
	}
	if m := labelPrefix.FindStringSubmatch(answer); m != nil {
		// "A. text": prefer an exact text match, then the label.
		if i := indexFold(options, stripLabel(answer)); i >= 0 {
			return i, true
		}
		if idx := letterIndex(m[1][0]); idx >= 0 && idx < len(rawToClean) && rawToClean[idx] >= 0 {
			return rawToClean[idx], true
		}
	}
	if i := indexFold(options, answer); i >= 0 {
		return i, true
	}
	return 0, false
}

func stripLabel(s string) string {
	s = strings.TrimSpace(s)
	if m := labelPrefix.FindStringIndex(s); m != nil && m[1] < len(s) {
		return strings.TrimSpace(s[m[1]:])
	}
	return s
}

func letterIndex(b byte) int {
	switch {
	case b >= 'A' && b <= 'Z':
		return int(b - 'A')
	case b >= 'a' && b <= 'z':
		return int(b - 'a')
	}
	return -1
}

func indexFold(options []string, s string) int {
	for i, o := range options {
		if strings.EqualFold(o, s) {
			return i
		}
	}
	return -1
}
