package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"docquiz-service/internal/domain"
	"github.com/google/uuid"
)

// QuizService is the public surface of the core: documents, quiz creation,
// submissions and analytics.
type QuizService struct {
	documents   *DocumentIndex
	builder     *QuizBuilder
	quizzes     QuizStore
	reader      QuizReader
	submissions SubmissionLog
	analytics   *Aggregator
	feed        AnalyticsFeed
	events      SubmissionPublisher
	now         func() time.Time
	newID       func() string
}

// Option configures optional QuizService collaborators.
type Option func(*QuizService)

// WithAnalyticsFeed pushes fresh quiz analytics to live subscribers after each submission.
func WithAnalyticsFeed(feed AnalyticsFeed) Option {
	return func(s *QuizService) { s.feed = feed }
}

// WithSubmissionPublisher emits an event for every recorded submission.
func WithSubmissionPublisher(p SubmissionPublisher) Option {
	return func(s *QuizService) { s.events = p }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// NewQuizService wires the core. reader serves quiz reads and may be a cache
// in front of quizzes; pass nil to read straight from quizzes.
func NewQuizService(documents *DocumentIndex, builder *QuizBuilder, quizzes QuizStore, reader QuizReader, submissions SubmissionLog, opts ...Option) *QuizService {
	if reader == nil {
		reader = quizzes
	}
	s := &QuizService{
		documents:   documents,
		builder:     builder,
		quizzes:     quizzes,
		reader:      reader,
		submissions: submissions,
		analytics:   NewAggregator(reader, submissions),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreDocument adds a document to the index.
func (s *QuizService) StoreDocument(ctx context.Context, text string, metadata map[string]string) (string, error) {
	return s.documents.Store(ctx, text, metadata)
}

// GetDocument returns one stored document.
func (s *QuizService) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return s.documents.Get(ctx, id)
}

// SearchDocuments runs a ranked keyword search.
func (s *QuizService) SearchDocuments(ctx context.Context, q SearchQuery) (domain.Page[domain.DocumentSummary], error) {
	return s.documents.Search(ctx, q)
}

// CreateQuiz generates and persists a quiz from stored documents.
func (s *QuizService) CreateQuiz(ctx context.Context, p CreateQuizParams) (domain.Quiz, error) {
	return s.builder.CreateQuiz(ctx, p)
}

// GetQuiz returns a quiz without its answer key.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.PublicQuiz, error) {
	quiz, err := s.reader.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.PublicQuiz{}, err
	}
	return quiz.Public(), nil
}

// ListQuizzes returns quiz summaries, newest first.
func (s *QuizService) ListQuizzes(ctx context.Context, page, limit int) (domain.Page[domain.PublicQuiz], error) {
	offset, err := domain.ValidatePage(page, limit)
	if err != nil {
		return domain.Page[domain.PublicQuiz]{}, err
	}
	quizzes, total, err := s.quizzes.ListQuizzes(ctx, offset, limit)
	if err != nil {
		return domain.Page[domain.PublicQuiz]{}, fmt.Errorf("list quizzes: %w", err)
	}
	items := make([]domain.PublicQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		items = append(items, q.Summary())
	}
	return domain.Page[domain.PublicQuiz]{Items: items, Page: page, Limit: limit, Total: total}, nil
}

// SubmitQuiz scores answers and appends the submission to the log.
func (s *QuizService) SubmitQuiz(ctx context.Context, quizID, userID string, answers []domain.Answer) (domain.Submission, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Submission{}, &domain.FieldError{Kind: domain.ErrSubmissionValidation, Field: "user_id", Reason: "must not be empty"}
	}
	answerMap, err := AnswerMap(answers)
	if err != nil {
		return domain.Submission{}, err
	}

	quiz, err := s.reader.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Submission{}, err
	}
	score, err := ScoreSubmission(quiz, answerMap)
	if err != nil {
		return domain.Submission{}, err
	}

	submission := domain.Submission{
		ID:             s.newID(),
		QuizID:         quiz.ID,
		UserID:         userID,
		Answers:        answerMap,
		SubmittedAt:    s.now().UTC(),
		Score:          score.Score,
		TotalQuestions: score.Total,
		Percentage:     score.Percentage,
	}
	if err := s.submissions.AppendSubmission(ctx, submission); err != nil {
		return domain.Submission{}, fmt.Errorf("append submission: %w", err)
	}
	s.afterSubmit(ctx, submission)
	return submission, nil
}

// afterSubmit runs side effects that must never undo a recorded submission.
func (s *QuizService) afterSubmit(ctx context.Context, submission domain.Submission) {
	if s.events != nil {
		if err := s.events.PublishSubmission(ctx, submission); err != nil {
			log.Printf("publish submission %s: %v", submission.ID, err)
		}
	}
	if s.feed != nil && s.feed.HasSubscribers(ctx, submission.QuizID) {
		snapshot, err := s.analytics.QuizAnalytics(ctx, submission.QuizID, domain.DateRange{})
		if err != nil {
			log.Printf("refresh analytics for quiz %s: %v", submission.QuizID, err)
			return
		}
		if err := s.feed.Publish(ctx, snapshot); err != nil {
			log.Printf("publish analytics for quiz %s: %v", submission.QuizID, err)
		}
	}
}

// QuizAnalytics aggregates submissions of a quiz inside an optional range.
func (s *QuizService) QuizAnalytics(ctx context.Context, quizID string, r domain.DateRange) (domain.QuizAnalytics, error) {
	return s.analytics.QuizAnalytics(ctx, quizID, r)
}

// UserAnalytics aggregates every submission of a user.
func (s *QuizService) UserAnalytics(ctx context.Context, userID string) (domain.UserAnalytics, error) {
	return s.analytics.UserAnalytics(ctx, userID)
}

// ListSubmissions pages through submissions, newest first.
func (s *QuizService) ListSubmissions(ctx context.Context, q domain.AnalyticsQuery) (domain.Page[domain.Submission], error) {
	return s.analytics.ListSubmissions(ctx, q)
}

// Subscribe returns a channel of analytics snapshots for a quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, quizID string) (<-chan domain.QuizAnalytics, func(), error) {
	if s.feed == nil {
		return nil, nil, fmt.Errorf("analytics feed not configured")
	}
	// Users cannot subscribe to unknown quizzes.
	if _, err := s.reader.GetQuiz(ctx, quizID); err != nil {
		return nil, nil, err
	}
	return s.feed.Subscribe(ctx, quizID)
}

// AnswerMap validates an answer list and converts it into question_id -> option.
// Repeating the same answer is harmless; two different answers for one question are rejected.
func AnswerMap(answers []domain.Answer) (map[string]string, error) {
	out := make(map[string]string, len(answers))
	for i, a := range answers {
		id := strings.TrimSpace(a.QuestionID)
		if id == "" {
			return nil, &domain.FieldError{Kind: domain.ErrSubmissionValidation, Field: fmt.Sprintf("answers[%d].question_id", i), Reason: "must not be empty"}
		}
		selected := strings.TrimSpace(a.SelectedOption)
		if prev, ok := out[id]; ok && prev != selected {
			return nil, &domain.FieldError{Kind: domain.ErrSubmissionValidation, Field: fmt.Sprintf("answers[%d]", i), Reason: "conflicting answers for question " + id}
		}
		out[id] = selected
	}
	return out, nil
}
