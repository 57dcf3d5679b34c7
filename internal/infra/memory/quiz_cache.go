package memory

import (
	"context"
	"sync"
	"time"

	"docquiz-service/internal/app"
	"docquiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizCache keeps recently read quizzes in process. A stored quiz never
// changes, so an entry is only dropped once its lifetime runs out.
type QuizCache struct {
	loader   app.QuizReader
	lifetime *app.TTLJitter
	clock    func() time.Time
	loads    singleflight.Group

	mu      sync.RWMutex
	entries map[string]quizEntry
}

type quizEntry struct {
	quiz  domain.Quiz
	until time.Time
}

func (e quizEntry) live(now time.Time) bool {
	return e.until.After(now)
}

func NewQuizCache(loader app.QuizReader, ttl time.Duration) *QuizCache {
	return &QuizCache{
		loader:   loader,
		lifetime: app.NewTTLJitter(ttl),
		clock:    time.Now,
		entries:  make(map[string]quizEntry),
	}
}

// GetQuiz serves from memory when it can. Concurrent misses for one quiz share
// a single loader call, and loader errors are returned without being cached.
func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := c.lookup(quizID); ok {
		return quiz, nil
	}
	loaded, err, _ := c.loads.Do(quizID, func() (any, error) {
		if quiz, ok := c.lookup(quizID); ok {
			return quiz, nil
		}
		quiz, err := c.loader.GetQuiz(ctx, quizID)
		if err != nil {
			return nil, err
		}
		c.store(quizID, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return loaded.(domain.Quiz), nil
}

// Len reports how many entries are held, expired ones included until the next store.
func (c *QuizCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QuizCache) lookup(quizID string) (domain.Quiz, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[quizID]
	if !ok || !entry.live(c.clock()) {
		return domain.Quiz{}, false
	}
	return entry.quiz, true
}

// store also sweeps expired entries so quizzes nobody reads again do not pile up.
func (c *QuizCache) store(quizID string, quiz domain.Quiz) {
	now := c.clock()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.entries {
		if !entry.live(now) {
			delete(c.entries, id)
		}
	}
	c.entries[quizID] = quizEntry{quiz: quiz, until: now.Add(c.lifetime.Next())}
}
