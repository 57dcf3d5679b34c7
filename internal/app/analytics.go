package app

import (
	"context"
	"fmt"
	"sort"

	"docquiz-service/internal/domain"
)

// Aggregator is the read-side projection over the submission log. It never
// writes and keeps no state between calls.
type Aggregator struct {
	quizzes     QuizReader
	submissions SubmissionLog
}

func NewAggregator(quizzes QuizReader, submissions SubmissionLog) *Aggregator {
	return &Aggregator{quizzes: quizzes, submissions: submissions}
}

// QuizAnalytics folds every submission of quizID inside r.
func (a *Aggregator) QuizAnalytics(ctx context.Context, quizID string, r domain.DateRange) (domain.QuizAnalytics, error) {
	quiz, err := a.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizAnalytics{}, err
	}
	fold := newQuizFold(quiz)
	err = a.submissions.ScanSubmissions(ctx, domain.SubmissionFilter{QuizID: quizID, Range: r}, func(s domain.Submission) error {
		fold.add(s)
		return nil
	})
	if err != nil {
		return domain.QuizAnalytics{}, fmt.Errorf("scan submissions: %w", err)
	}
	out := fold.result()
	if !r.Start.IsZero() {
		start := r.Start
		out.Start = &start
	}
	if !r.End.IsZero() {
		end := r.End
		out.End = &end
	}
	return out, nil
}

// UserAnalytics folds every submission of userID.
func (a *Aggregator) UserAnalytics(ctx context.Context, userID string) (domain.UserAnalytics, error) {
	if userID == "" {
		return domain.UserAnalytics{}, &domain.FieldError{Kind: domain.ErrSubmissionValidation, Field: "user_id", Reason: "must not be empty"}
	}
	fold := newUserFold(userID)
	err := a.submissions.ScanSubmissions(ctx, domain.SubmissionFilter{UserID: userID}, func(s domain.Submission) error {
		fold.add(s)
		return nil
	})
	if err != nil {
		return domain.UserAnalytics{}, fmt.Errorf("scan submissions: %w", err)
	}
	return fold.result(), nil
}

// ListSubmissions returns one page of submissions, newest first.
func (a *Aggregator) ListSubmissions(ctx context.Context, q domain.AnalyticsQuery) (domain.Page[domain.Submission], error) {
	offset, err := domain.ValidatePage(q.Page, q.Limit)
	if err != nil {
		return domain.Page[domain.Submission]{}, err
	}
	if q.QuizID != "" {
		if _, err := a.quizzes.GetQuiz(ctx, q.QuizID); err != nil {
			return domain.Page[domain.Submission]{}, err
		}
	}
	items, total, err := a.submissions.ListSubmissions(ctx, domain.SubmissionFilter{
		QuizID: q.QuizID,
		UserID: q.UserID,
		Range:  q.Range,
	}, offset, q.Limit)
	if err != nil {
		return domain.Page[domain.Submission]{}, fmt.Errorf("list submissions: %w", err)
	}
	if items == nil {
		items = []domain.Submission{}
	}
	return domain.Page[domain.Submission]{Items: items, Page: q.Page, Limit: q.Limit, Total: total}, nil
}

type quizFold struct {
	quiz         domain.Quiz
	count        int
	scoreSum     int
	percentSum   float64
	distribution map[int]int
	attempts     []int
	correct      []int
}

func newQuizFold(quiz domain.Quiz) *quizFold {
	dist := make(map[int]int, len(quiz.Questions)+1)
	for i := 0; i <= len(quiz.Questions); i++ {
		dist[i] = 0
	}
	return &quizFold{
		quiz:         quiz,
		distribution: dist,
		attempts:     make([]int, len(quiz.Questions)),
		correct:      make([]int, len(quiz.Questions)),
	}
}

func (f *quizFold) add(s domain.Submission) {
	f.count++
	f.scoreSum += s.Score
	f.percentSum += s.Percentage
	f.distribution[s.Score]++

	graded, err := Grade(f.quiz, s.Answers)
	if err != nil {
		return
	}
	for i, q := range f.quiz.Questions {
		if _, answered := s.Answers[q.ID]; answered {
			f.attempts[i]++
		}
		if graded[i] {
			f.correct[i]++
		}
	}
}

func (f *quizFold) result() domain.QuizAnalytics {
	out := domain.QuizAnalytics{
		QuizID:            f.quiz.ID,
		SubmissionCount:   f.count,
		ScoreDistribution: f.distribution,
		Questions:         make([]domain.QuestionStats, 0, len(f.quiz.Questions)),
	}
	if f.count > 0 {
		out.AverageScore = round2(float64(f.scoreSum) / float64(f.count))
		out.AveragePercentage = round2(f.percentSum / float64(f.count))
	}
	for i, q := range f.quiz.Questions {
		out.Questions = append(out.Questions, domain.QuestionStats{
			QuestionID:         q.ID,
			Attempts:           f.attempts[i],
			Correct:            f.correct[i],
			AccuracyPercentage: percentage(f.correct[i], f.attempts[i]),
		})
	}
	return out
}

type userFold struct {
	userID     string
	count      int
	percentSum float64
	perQuiz    map[string]*userQuizFold
}

type userQuizFold struct {
	stats      domain.UserQuizStats
	percentSum float64
}

func newUserFold(userID string) *userFold {
	return &userFold{userID: userID, perQuiz: make(map[string]*userQuizFold)}
}

func (f *userFold) add(s domain.Submission) {
	f.count++
	f.percentSum += s.Percentage
	q, ok := f.perQuiz[s.QuizID]
	if !ok {
		q = &userQuizFold{stats: domain.UserQuizStats{QuizID: s.QuizID}}
		f.perQuiz[s.QuizID] = q
	}
	q.stats.Attempts++
	q.percentSum += s.Percentage
	if s.Score > q.stats.BestScore {
		q.stats.BestScore = s.Score
	}
	if s.SubmittedAt.After(q.stats.LastSubmittedAt) {
		q.stats.LastSubmittedAt = s.SubmittedAt
	}
}

func (f *userFold) result() domain.UserAnalytics {
	out := domain.UserAnalytics{
		UserID:          f.userID,
		QuizzesTaken:    len(f.perQuiz),
		SubmissionCount: f.count,
		PerQuiz:         make([]domain.UserQuizStats, 0, len(f.perQuiz)),
	}
	if f.count > 0 {
		out.AveragePercentage = round2(f.percentSum / float64(f.count))
	}
	for _, q := range f.perQuiz {
		q.stats.AveragePercentage = round2(q.percentSum / float64(q.stats.Attempts))
		out.PerQuiz = append(out.PerQuiz, q.stats)
	}
	sort.Slice(out.PerQuiz, func(i, j int) bool {
		a, b := out.PerQuiz[i], out.PerQuiz[j]
		if !a.LastSubmittedAt.Equal(b.LastSubmittedAt) {
			return a.LastSubmittedAt.After(b.LastSubmittedAt)
		}
		return a.QuizID < b.QuizID
	})
	return out
}
