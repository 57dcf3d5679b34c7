package app

import (
	"context"

	"docquiz-service/internal/domain"
)

// DocumentStore persists documents and allocates their ids.
type DocumentStore interface {
	InsertDocument(ctx context.Context, doc domain.Document) (string, error)
	// GetDocuments returns the subset of ids that exist; missing ids are simply absent.
	GetDocuments(ctx context.Context, ids []string) (map[string]domain.Document, error)
	// CandidateDocuments returns documents containing at least one term
	// (case-insensitive), optionally restricted to file types.
	CandidateDocuments(ctx context.Context, terms []string, fileTypes []string) ([]domain.Document, error)
}

// QuizReader loads quiz content (from cache/backing store).
type QuizReader interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizStore is the write side of quiz persistence.
type QuizStore interface {
	QuizReader
	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	ListQuizzes(ctx context.Context, offset, limit int) ([]domain.Quiz, int, error)
}

// SubmissionLog is the append-only submission store.
type SubmissionLog interface {
	AppendSubmission(ctx context.Context, s domain.Submission) error
	// ScanSubmissions streams matching submissions in no particular order.
	ScanSubmissions(ctx context.Context, f domain.SubmissionFilter, fn func(domain.Submission) error) error
	// ListSubmissions returns a page ordered by submitted_at desc, then id, plus the total match count.
	ListSubmissions(ctx context.Context, f domain.SubmissionFilter, offset, limit int) ([]domain.Submission, int, error)
}

// SearchCache caches search result pages. Invalidate must drop every entry.
type SearchCache interface {
	Get(ctx context.Context, key string) (domain.Page[domain.DocumentSummary], bool)
	Put(ctx context.Context, key string, page domain.Page[domain.DocumentSummary])
	Invalidate(ctx context.Context) error
}

// AnalyticsFeed fans fresh quiz analytics out to live subscribers.
// The caller must invoke the returned cancel function to avoid leaks.
type AnalyticsFeed interface {
	Publish(ctx context.Context, snapshot domain.QuizAnalytics) error
	Subscribe(ctx context.Context, quizID string) (<-chan domain.QuizAnalytics, func(), error)
	// HasSubscribers reports whether anyone is watching quizID. Snapshots are
	// only computed when it returns true.
	HasSubscribers(ctx context.Context, quizID string) bool
}

// SubmissionPublisher emits submission events to downstream consumers.
type SubmissionPublisher interface {
	PublishSubmission(ctx context.Context, s domain.Submission) error
}
