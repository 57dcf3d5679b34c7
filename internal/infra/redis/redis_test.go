package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"docquiz-service/internal/domain"
	"docquiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuizCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	reader := &countingReader{store: memory.NewQuizStoreWith(sampleQuiz())}
	cache := NewQuizCache(client, reader, time.Minute)

	quiz, err := cache.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if reader.count() != 1 {
		t.Fatalf("expected reader called once, got %d", reader.count())
	}
	if !mr.Exists("quiz:quiz-1") {
		t.Fatalf("expected quiz key in redis")
	}

	// Second call should hit the cache and round-trip the full quiz.
	cached, err := cache.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if reader.count() != 1 {
		t.Fatalf("expected cache hit, reader calls=%d", reader.count())
	}
	if cached.Questions[0].CorrectOptionIndex != quiz.Questions[0].CorrectOptionIndex ||
		cached.Questions[0].Options[1] != "4" {
		t.Fatalf("cached quiz lost content: %+v", cached.Questions[0])
	}
}

func TestSearchCacheInvalidateDropsPages(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewSearchCache(newClient(mr), time.Minute)
	page := domain.Page[domain.DocumentSummary]{
		Items: []domain.DocumentSummary{{ID: "file001", Name: "notes.txt", Relevance: 2}},
		Page:  1,
		Limit: 10,
		Total: 1,
	}

	if _, ok := cache.Get(ctx, "biology|relevance||1|10"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	cache.Put(ctx, "biology|relevance||1|10", page)
	got, ok := cache.Get(ctx, "biology|relevance||1|10")
	if !ok || got.Total != 1 || got.Items[0].ID != "file001" {
		t.Fatalf("expected cached page, got ok=%v page=%+v", ok, got)
	}

	if err := cache.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok := cache.Get(ctx, "biology|relevance||1|10"); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestFeedHubRelaysThroughPubSub(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	subscriber := NewFeedHub(newClient(mr), time.Minute)
	publisher := NewFeedHub(newClient(mr), time.Minute)

	ch, cancel, err := subscriber.Subscribe(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !mr.Exists("quiz:session:quiz-1") {
		t.Fatalf("expected liveness key to be set")
	}

	if err := publisher.Publish(ctx, domain.QuizAnalytics{QuizID: "quiz-1", SubmissionCount: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case snap := <-ch:
		if snap.SubmissionCount != 2 {
			t.Fatalf("unexpected snapshot %+v", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for relayed snapshot")
	}

	cancel()
	if mr.Exists("quiz:session:quiz-1") {
		t.Fatalf("expected liveness key to be removed")
	}
}

func TestFeedHubReportsSubscribersAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	watcher := NewFeedHub(newClient(mr), time.Minute)
	writer := NewFeedHub(newClient(mr), time.Minute)

	if writer.HasSubscribers(ctx, "quiz-1") {
		t.Fatalf("expected no subscribers before anyone watches")
	}
	_, cancel, err := watcher.Subscribe(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !watcher.HasSubscribers(ctx, "quiz-1") || !writer.HasSubscribers(ctx, "quiz-1") {
		t.Fatalf("expected both instances to see the subscriber")
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for writer.HasSubscribers(ctx, "quiz-1") {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber still reported after cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFeedHubSubscribeRacingCancelStaysAttached(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	hub := NewFeedHub(newClient(mr), time.Minute)

	for i := 0; i < 20; i++ {
		_, cancelFirst, err := hub.Subscribe(ctx, "quiz-1")
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}

		var (
			wg           sync.WaitGroup
			second       <-chan domain.QuizAnalytics
			cancelSecond func()
			subErr       error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			cancelFirst()
		}()
		go func() {
			defer wg.Done()
			second, cancelSecond, subErr = hub.Subscribe(ctx, "quiz-1")
		}()
		wg.Wait()
		if subErr != nil {
			t.Fatalf("subscribe: %v", subErr)
		}

		if err := hub.Publish(ctx, domain.QuizAnalytics{QuizID: "quiz-1", SubmissionCount: i}); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case snap := <-second:
			if snap.SubmissionCount != i {
				t.Fatalf("unexpected snapshot %+v", snap)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: subscriber detached from the hub", i)
		}
		cancelSecond()
	}
}

type countingReader struct {
	store *memory.QuizStore
	mu    sync.Mutex
	calls int
}

func (r *countingReader) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.store.GetQuiz(ctx, quizID)
}

func (r *countingReader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Name:         "Arithmetic",
		Difficulty:   domain.DifficultyEasy,
		Topic:        "math",
		QuestionType: domain.QuestionTypeMCQ,
		Questions: []domain.Question{
			{
				ID:                 "q1",
				Prompt:             "What is 2 + 2?",
				Options:            []string{"3", "4", "5", "6"},
				CorrectOptionIndex: 1,
			},
		},
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
