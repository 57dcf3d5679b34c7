package app

import (
	"fmt"
	"math"

	"docquiz-service/internal/domain"
)

// Score is the outcome of scoring one submission.
type Score struct {
	Score      int
	Total      int
	Percentage float64
}

// ScoreSubmission scores answers against the quiz answer key. It is a pure
// function: missing answers count as incorrect and answers for question ids
// that are not in the quiz are ignored.
func ScoreSubmission(quiz domain.Quiz, answers map[string]string) (Score, error) {
	graded, err := Grade(quiz, answers)
	if err != nil {
		return Score{}, err
	}
	score := 0
	for _, ok := range graded {
		if ok {
			score++
		}
	}
	total := len(quiz.Questions)
	return Score{
		Score:      score,
		Total:      total,
		Percentage: percentage(score, total),
	}, nil
}

// Grade returns per-question correctness in quiz order.
func Grade(quiz domain.Quiz, answers map[string]string) ([]bool, error) {
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: quiz %s has no questions", domain.ErrInvalidQuiz, quiz.ID)
	}
	graded := make([]bool, len(quiz.Questions))
	for i, q := range quiz.Questions {
		selected, ok := answers[q.ID]
		graded[i] = ok && q.IsCorrect(selected)
	}
	return graded, nil
}

// percentage is 100*part/whole rounded to two decimals; zero when whole is zero.
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(100 * float64(part) / float64(whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
