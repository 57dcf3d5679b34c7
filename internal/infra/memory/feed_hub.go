package memory

import (
	"context"
	"sync"

	"docquiz-service/internal/app"
	"docquiz-service/internal/domain"
)

// FeedHub is an in-process implementation of app.AnalyticsFeed. It keeps one
// session per quiz with live subscribers and drops sessions once empty.
type FeedHub struct {
	mu       sync.RWMutex
	sessions map[string]*app.FeedSession
}

func NewFeedHub() *FeedHub {
	return &FeedHub{
		sessions: make(map[string]*app.FeedSession),
	}
}

func (h *FeedHub) Publish(_ context.Context, snapshot domain.QuizAnalytics) error {
	if session, ok := h.Get(snapshot.QuizID); ok {
		session.Broadcast(snapshot)
	}
	return nil
}

func (h *FeedHub) Subscribe(_ context.Context, quizID string) (<-chan domain.QuizAnalytics, func(), error) {
	ch, cancel := h.GetOrCreateAndSubscribe(quizID)
	return ch, func() {
		cancel()
		h.DeleteIfEmpty(quizID)
	}, nil
}

func (h *FeedHub) HasSubscribers(_ context.Context, quizID string) bool {
	session, ok := h.Get(quizID)
	return ok && !session.IsEmpty()
}

// GetOrCreateAndSubscribe registers a subscriber under the hub lock, so a
// concurrent DeleteIfEmpty can never drop the session in between.
func (h *FeedHub) GetOrCreateAndSubscribe(quizID string) (<-chan domain.QuizAnalytics, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[quizID]
	if !ok {
		session = app.NewFeedSession(quizID)
		h.sessions[quizID] = session
	}
	return session.Subscribe()
}

func (h *FeedHub) Get(quizID string) (*app.FeedSession, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	session, ok := h.sessions[quizID]
	return session, ok
}

func (h *FeedHub) DeleteIfEmpty(quizID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	session, ok := h.sessions[quizID]
	if !ok {
		return
	}
	if session.IsEmpty() {
		delete(h.sessions, quizID)
	}
}
