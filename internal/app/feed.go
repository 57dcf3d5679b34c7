package app

import (
	"sync"

	"docquiz-service/internal/domain"
)

// FeedSession fans analytics snapshots for one quiz out to local subscribers.
// Hubs keep one session per quiz that has at least one subscriber.
type FeedSession struct {
	quizID      string
	mu          sync.Mutex
	latest      *domain.QuizAnalytics
	subscribers map[chan domain.QuizAnalytics]struct{}
}

func NewFeedSession(quizID string) *FeedSession {
	return &FeedSession{
		quizID:      quizID,
		subscribers: make(map[chan domain.QuizAnalytics]struct{}),
	}
}

// QuizID returns the quiz this session serves.
func (s *FeedSession) QuizID() string {
	return s.quizID
}

// Broadcast records snapshot as the latest and pushes it to every subscriber.
func (s *FeedSession) Broadcast(snapshot domain.QuizAnalytics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = &snapshot
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Drop the stale snapshot so a slow reader never blocks the broadcaster.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

// Subscribe registers a new subscriber; it first receives the latest snapshot
// if one was broadcast before.
func (s *FeedSession) Subscribe() (<-chan domain.QuizAnalytics, func()) {
	ch := make(chan domain.QuizAnalytics, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	if s.latest != nil {
		ch <- *s.latest
	}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// IsEmpty reports whether the session has no subscribers.
func (s *FeedSession) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0
}
