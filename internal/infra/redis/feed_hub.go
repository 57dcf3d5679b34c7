package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"docquiz-service/internal/app"
	"docquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// FeedHub is a Redis-backed implementation of app.AnalyticsFeed.
// Notes:
//   - Local subscribers still hang off an in-process app.FeedSession per quiz.
//   - Publish goes through Redis pub/sub so every instance with a live session
//     for the quiz rebroadcasts the snapshot to its own sockets.
//   - A liveness marker per session lets operators see which quizzes are watched.
type FeedHub struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*remoteSession
}

type remoteSession struct {
	session *app.FeedSession
	pubsub  *redis.PubSub
	done    chan struct{}
}

func NewFeedHub(client *redis.Client, ttl time.Duration) *FeedHub {
	return &FeedHub{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*remoteSession),
	}
}

func (h *FeedHub) Publish(ctx context.Context, snapshot domain.QuizAnalytics) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := h.client.Publish(ctx, h.channel(snapshot.QuizID), payload).Err(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

func (h *FeedHub) Subscribe(ctx context.Context, quizID string) (<-chan domain.QuizAnalytics, func(), error) {
	ch, cancel, err := h.GetOrCreateAndSubscribe(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	return ch, func() {
		cancel()
		h.DeleteIfEmpty(quizID)
	}, nil
}

// HasSubscribers checks local sessions first, then asks Redis whether any
// instance listens on the quiz channel. Errors count as watched.
func (h *FeedHub) HasSubscribers(ctx context.Context, quizID string) bool {
	if session, ok := h.Get(quizID); ok && !session.IsEmpty() {
		return true
	}
	counts, err := h.client.PubSubNumSub(ctx, h.channel(quizID)).Result()
	if err != nil {
		log.Printf("count feed subscribers for %s: %v", quizID, err)
		return true
	}
	return counts[h.channel(quizID)] > 0
}

// GetOrCreateAndSubscribe registers a local subscriber for quizID, subscribing
// to its Redis channel the first time. It holds the hub lock throughout so a
// concurrent DeleteIfEmpty cannot detach the session.
func (h *FeedHub) GetOrCreateAndSubscribe(ctx context.Context, quizID string) (<-chan domain.QuizAnalytics, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rs, ok := h.sessions[quizID]; ok {
		ch, cancel := rs.session.Subscribe()
		return ch, cancel, nil
	}

	pubsub := h.client.Subscribe(ctx, h.channel(quizID))
	// Wait for the subscription to be confirmed so no publish is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe feed %s: %w", quizID, err)
	}

	rs := &remoteSession{
		session: app.NewFeedSession(quizID),
		pubsub:  pubsub,
		done:    make(chan struct{}),
	}
	h.sessions[quizID] = rs
	go rs.pump()

	// best-effort liveness marker
	_ = h.client.Set(ctx, h.key(quizID), "1", h.ttl).Err()
	ch, cancel := rs.session.Subscribe()
	return ch, cancel, nil
}

func (h *FeedHub) Get(quizID string) (*app.FeedSession, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rs, ok := h.sessions[quizID]
	if !ok {
		return nil, false
	}
	return rs.session, true
}

func (h *FeedHub) DeleteIfEmpty(quizID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rs, ok := h.sessions[quizID]
	if !ok {
		return
	}
	if rs.session.IsEmpty() {
		delete(h.sessions, quizID)
		_ = rs.pubsub.Close()
		<-rs.done
		_ = h.client.Del(context.Background(), h.key(quizID)).Err()
	}
}

func (rs *remoteSession) pump() {
	defer close(rs.done)
	for msg := range rs.pubsub.Channel() {
		var snapshot domain.QuizAnalytics
		if err := json.Unmarshal([]byte(msg.Payload), &snapshot); err != nil {
			log.Printf("decode feed snapshot: %v", err)
			continue
		}
		rs.session.Broadcast(snapshot)
	}
}

func (h *FeedHub) channel(quizID string) string {
	return "quiz:analytics:" + quizID
}

func (h *FeedHub) key(quizID string) string {
	return "quiz:session:" + quizID
}
