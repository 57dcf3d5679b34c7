package domain

import (
	"strings"
	"time"
)

// Difficulty is the requested difficulty of a generated quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// QuestionType selects the shape of generated questions.
type QuestionType string

const (
	QuestionTypeMCQ       QuestionType = "mcq"
	QuestionTypeTrueFalse QuestionType = "true_false"
)

func (t QuestionType) Valid() bool {
	return t == QuestionTypeMCQ || t == QuestionTypeTrueFalse
}

// Document is uploaded source text. It is never modified after it is stored.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Metadata keys understood by the document index.
const (
	MetaName     = "name"
	MetaFileType = "file_type"
)

// DocumentSummary is a search hit without the document body.
type DocumentSummary struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	FileType  string            `json:"fileType,omitempty"`
	Relevance int               `json:"relevance"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Question models an MCQ question. CorrectOptionIndex never leaves the service
// in quiz-taker views; see PublicQuestion.
type Question struct {
	ID                 string   `json:"id"`
	Prompt             string   `json:"prompt"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
}

// IsCorrect reports whether selected names the correct option, either by its
// letter label (A, B, ...) or by its exact text.
func (q Question) IsCorrect(selected string) bool {
	if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
		return false
	}
	selected = strings.TrimSpace(selected)
	if selected == "" {
		return false
	}
	if strings.EqualFold(selected, OptionLabel(q.CorrectOptionIndex)) {
		return true
	}
	return selected == q.Options[q.CorrectOptionIndex]
}

// OptionLabel returns the letter label for an option index: 0 -> "A".
func OptionLabel(i int) string {
	if i < 0 || i >= 26 {
		return ""
	}
	return string(rune('A' + i))
}

// Quiz is an immutable set of generated questions plus creation parameters.
type Quiz struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Difficulty         Difficulty   `json:"difficulty"`
	Topic              string       `json:"topic"`
	QuestionType       QuestionType `json:"questionType"`
	CustomInstructions string       `json:"customInstructions,omitempty"`
	Questions          []Question   `json:"questions"`
	SourceDocumentIDs  []string     `json:"sourceDocumentIds"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// PublicQuestion is a question as served to quiz takers.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// PublicQuiz is a quiz without its answer key.
type PublicQuiz struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Difficulty         Difficulty       `json:"difficulty"`
	Topic              string           `json:"topic"`
	QuestionType       QuestionType     `json:"questionType"`
	CustomInstructions string           `json:"customInstructions,omitempty"`
	NumberOfQuestions  int              `json:"numberOfQuestions"`
	Questions          []PublicQuestion `json:"questions,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// Public strips the answer key.
func (q Quiz) Public() PublicQuiz {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, question := range q.Questions {
		options := make([]string, len(question.Options))
		copy(options, question.Options)
		questions = append(questions, PublicQuestion{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Options: options,
		})
	}
	return PublicQuiz{
		ID:                 q.ID,
		Name:               q.Name,
		Difficulty:         q.Difficulty,
		Topic:              q.Topic,
		QuestionType:       q.QuestionType,
		CustomInstructions: q.CustomInstructions,
		NumberOfQuestions:  len(q.Questions),
		Questions:          questions,
		CreatedAt:          q.CreatedAt,
	}
}

// Summary is the list-view projection of a quiz.
func (q Quiz) Summary() PublicQuiz {
	p := q.Public()
	p.Questions = nil
	return p
}

// Answer is one client-supplied answer.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedOption string `json:"selectedOption"`
}

// Submission is one user's recorded answers to a quiz. Score, TotalQuestions
// and Percentage are derived from Answers and the quiz.
type Submission struct {
	ID             string            `json:"id"`
	QuizID         string            `json:"quizId"`
	UserID         string            `json:"userId"`
	Answers        map[string]string `json:"answers"`
	SubmittedAt    time.Time         `json:"submittedAt"`
	Score          int               `json:"score"`
	TotalQuestions int               `json:"totalQuestions"`
	Percentage     float64           `json:"percentage"`
}

// DateRange bounds submitted_at inclusively. Zero values mean unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// SubmissionFilter selects submissions from the log.
type SubmissionFilter struct {
	QuizID string
	UserID string
	Range  DateRange
}

// Match reports whether s passes the filter.
func (f SubmissionFilter) Match(s Submission) bool {
	if f.QuizID != "" && s.QuizID != f.QuizID {
		return false
	}
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	return f.Range.Contains(s.SubmittedAt)
}

// AnalyticsQuery is the list-style analytics request.
type AnalyticsQuery struct {
	QuizID string
	UserID string
	Range  DateRange
	Page   int
	Limit  int
}

// Page is a paginated result.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// TotalPages derives the page count from Total and Limit.
func (p Page[T]) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
