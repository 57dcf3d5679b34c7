package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docquiz-service/internal/app"
	"docquiz-service/internal/domain"
	"docquiz-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketSubmitFlow(t *testing.T) {
	service, stores := newTestService(t, &stubGenerator{})
	seedQuiz(t, stores)
	server := httptest.NewServer(NewRouter(NewHandler(service, 0), NewWSHandler(service)))
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?quizId=quiz-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the current analytics first.
	_, payload := readNext(conn, t, "analytics")
	if payload["submissionCount"] != float64(0) {
		t.Fatalf("expected empty analytics, got %v", payload)
	}

	submit := map[string]any{
		"type": "submit",
		"payload": map[string]any{
			"userId": "alice",
			"answers": []map[string]any{
				{"questionId": "q1", "selectedOption": "B"},
			},
		},
	}
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write submit: %v", err)
	}

	// Expect submitted then a refreshed analytics snapshot, in either order.
	submittedSeen := false
	analyticsSeen := false
	for i := 0; i < 3 && !(submittedSeen && analyticsSeen); i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "submitted":
			submittedSeen = true
			if payload["score"] != float64(1) {
				t.Fatalf("expected score 1, got %v", payload["score"])
			}
		case "analytics":
			if payload["submissionCount"] == float64(1) {
				analyticsSeen = true
			}
		}
	}
	if !submittedSeen || !analyticsSeen {
		t.Fatalf("expected submitted and analytics, got submitted=%v analytics=%v", submittedSeen, analyticsSeen)
	}
}

func TestWebSocketRejectsUnknownQuiz(t *testing.T) {
	service, _ := newTestService(t, &stubGenerator{})
	server := httptest.NewServer(NewRouter(NewHandler(service, 0), NewWSHandler(service)))
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?quizId=missing"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "error")
	if payload["kind"] != "quiz_not_found" {
		t.Fatalf("expected quiz_not_found, got %v", payload)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

type stubGenerator struct {
	candidate app.RawCandidate
	err       error
}

func (g *stubGenerator) Generate(context.Context, app.GenerationRequest) (app.RawCandidate, error) {
	return g.candidate, g.err
}

type testStores struct {
	documents   *memory.DocumentStore
	quizzes     *memory.QuizStore
	submissions *memory.SubmissionLog
}

func newTestService(t *testing.T, gen app.Generator) (*app.QuizService, testStores) {
	t.Helper()
	stores := testStores{
		documents:   memory.NewDocumentStore(),
		quizzes:     memory.NewQuizStore(),
		submissions: memory.NewSubmissionLog(),
	}
	index := app.NewDocumentIndex(stores.documents, nil, 0)
	builder := app.NewQuizBuilder(index, gen, stores.quizzes, app.BuilderConfig{AttemptTimeout: time.Second})
	service := app.NewQuizService(index, builder, stores.quizzes, nil, stores.submissions,
		app.WithAnalyticsFeed(memory.NewFeedHub()),
	)
	return service, stores
}

func seedQuiz(t *testing.T, stores testStores) {
	t.Helper()
	if err := stores.quizzes.CreateQuiz(context.Background(), sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
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

func TestOutboxDoesNotBlockAfterWriterExit(t *testing.T) {
	out := newOutbox(1)
	close(out.writerDone)
	stop := make(chan struct{})

	done := make(chan int)
	go func() {
		queued := 0
		for i := 0; i < 5; i++ {
			if out.emit(outboundMessage[any]{Type: "analytics"}, stop) {
				queued++
			}
		}
		done <- queued
	}()

	select {
	case queued := <-done:
		if queued > 1 {
			t.Fatalf("expected at most the buffered message queued, got %d", queued)
		}
	case <-time.After(time.Second):
		t.Fatalf("emit blocked after the writer exited")
	}
}
