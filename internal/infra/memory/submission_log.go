package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docquiz-service/internal/domain"
)

// SubmissionLog is an append-only in-memory submission store. Readers work on
// a snapshot of the slice header, so they only ever see whole submissions.
type SubmissionLog struct {
	mu   sync.RWMutex
	ids  map[string]bool
	rows []domain.Submission
}

func NewSubmissionLog() *SubmissionLog {
	return &SubmissionLog{ids: make(map[string]bool)}
}

func (l *SubmissionLog) AppendSubmission(_ context.Context, s domain.Submission) error {
	s.Answers = copyMeta(s.Answers)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ids[s.ID] {
		return fmt.Errorf("submission %s already recorded", s.ID)
	}
	l.ids[s.ID] = true
	l.rows = append(l.rows, s)
	return nil
}

func (l *SubmissionLog) ScanSubmissions(ctx context.Context, f domain.SubmissionFilter, fn func(domain.Submission) error) error {
	for _, s := range l.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !f.Match(s) {
			continue
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (l *SubmissionLog) ListSubmissions(_ context.Context, f domain.SubmissionFilter, offset, limit int) ([]domain.Submission, int, error) {
	var matched []domain.Submission
	for _, s := range l.snapshot() {
		if f.Match(s) {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].SubmittedAt.Equal(matched[j].SubmittedAt) {
			return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	total := len(matched)
	start, end := domain.PageWindow(offset, limit, total)
	if start == end {
		return nil, total, nil
	}
	return matched[start:end], total, nil
}

func (l *SubmissionLog) snapshot() []domain.Submission {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rows[:len(l.rows):len(l.rows)]
}
