package app

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"docquiz-service/internal/domain"
)

// fiveQuestionQuiz has correct answers A, B, C, D, A.
func fiveQuestionQuiz() domain.Quiz {
	quiz := domain.Quiz{ID: "quiz-5"}
	for i, correct := range []int{0, 1, 2, 3, 0} {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:                 fmt.Sprintf("q%d", i+1),
			Prompt:             fmt.Sprintf("Question %d", i+1),
			Options:            []string{"red", "green", "blue", "yellow"},
			CorrectOptionIndex: correct,
		})
	}
	return quiz
}

func TestScoreSubmissionPartialAnswers(t *testing.T) {
	answers := map[string]string{"q1": "A", "q2": "B", "q3": "X", "q5": "A"}
	got, err := ScoreSubmission(fiveQuestionQuiz(), answers)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got.Score != 3 || got.Total != 5 || got.Percentage != 60.0 {
		t.Fatalf("expected 3/5 60.0, got %+v", got)
	}
}

func TestScoreSubmissionAllCorrect(t *testing.T) {
	answers := map[string]string{"q1": "A", "q2": "green", "q3": "c", "q4": "D", "q5": "red"}
	got, err := ScoreSubmission(fiveQuestionQuiz(), answers)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got.Score != 5 || got.Percentage != 100.0 {
		t.Fatalf("expected full marks, got %+v", got)
	}
}

func TestScoreSubmissionEmptyAnswers(t *testing.T) {
	got, err := ScoreSubmission(fiveQuestionQuiz(), nil)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if got.Score != 0 || got.Percentage != 0 {
		t.Fatalf("expected zero score, got %+v", got)
	}
}

func TestScoreSubmissionIgnoresUnknownQuestions(t *testing.T) {
	quiz := fiveQuestionQuiz()
	base, _ := ScoreSubmission(quiz, map[string]string{"q1": "A"})
	extra, err := ScoreSubmission(quiz, map[string]string{"q1": "A", "q99": "B", "": "C"})
	if err != nil {
		t.Fatalf("score with unknown ids: %v", err)
	}
	if base != extra {
		t.Fatalf("unknown ids changed score: %+v vs %+v", base, extra)
	}
}

func TestScoreSubmissionIsDeterministic(t *testing.T) {
	quiz := fiveQuestionQuiz()
	answers := map[string]string{"q2": "B", "q4": "A"}
	first, _ := ScoreSubmission(quiz, answers)
	second, _ := ScoreSubmission(quiz, answers)
	if first != second {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestScoreSubmissionRejectsEmptyQuiz(t *testing.T) {
	_, err := ScoreSubmission(domain.Quiz{ID: "empty"}, map[string]string{"q1": "A"})
	if !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected ErrInvalidQuiz, got %v", err)
	}
}

func TestGradeReportsPerQuestion(t *testing.T) {
	graded, err := Grade(fiveQuestionQuiz(), map[string]string{"q1": "A", "q3": "B", "q4": "yellow"})
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	want := []bool{true, false, false, true, false}
	if !reflect.DeepEqual(graded, want) {
		t.Fatalf("expected %v, got %v", want, graded)
	}
}

func TestPercentageRoundsToTwoDecimals(t *testing.T) {
	cases := []struct {
		part, whole int
		want        float64
	}{
		{1, 3, 33.33},
		{2, 3, 66.67},
		{0, 0, 0},
		{7, 7, 100},
	}
	for _, tc := range cases {
		if got := percentage(tc.part, tc.whole); got != tc.want {
			t.Fatalf("percentage(%d, %d) = %v, want %v", tc.part, tc.whole, got, tc.want)
		}
	}
}
