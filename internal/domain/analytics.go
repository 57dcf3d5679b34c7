package domain

import "time"

// QuestionStats is the per-question accuracy inside a quiz rollup.
type QuestionStats struct {
	QuestionID         string  `json:"questionId"`
	Attempts           int     `json:"attempts"`
	Correct            int     `json:"correct"`
	AccuracyPercentage float64 `json:"accuracyPercentage"`
}

// QuizAnalytics aggregates submissions for one quiz.
type QuizAnalytics struct {
	QuizID            string          `json:"quizId"`
	SubmissionCount   int             `json:"submissionCount"`
	AverageScore      float64         `json:"averageScore"`
	AveragePercentage float64         `json:"averagePercentage"`
	ScoreDistribution map[int]int     `json:"scoreDistribution"`
	Questions         []QuestionStats `json:"questions"`
	Start             *time.Time      `json:"start,omitempty"`
	End               *time.Time      `json:"end,omitempty"`
}

// UserQuizStats is one quiz inside a user rollup.
type UserQuizStats struct {
	QuizID            string    `json:"quizId"`
	Attempts          int       `json:"attempts"`
	BestScore         int       `json:"bestScore"`
	AveragePercentage float64   `json:"averagePercentage"`
	LastSubmittedAt   time.Time `json:"lastSubmittedAt"`
}

// UserAnalytics aggregates submissions for one user.
type UserAnalytics struct {
	UserID            string          `json:"userId"`
	QuizzesTaken      int             `json:"quizzesTaken"`
	SubmissionCount   int             `json:"submissionCount"`
	AveragePercentage float64         `json:"averagePercentage"`
	PerQuiz           []UserQuizStats `json:"perQuiz"`
}
