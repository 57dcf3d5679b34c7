package http

import (
	"encoding/json"
	"log"
	"net/http"

	"docquiz-service/internal/app"
	"docquiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler streams live quiz analytics and accepts submissions over the same socket.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	UserID  string          `json:"userId"`
	Answers []domain.Answer `json:"answers"`
}

type submitResult struct {
	SubmissionID   string  `json:"submissionId"`
	Score          int     `json:"score"`
	TotalQuestions int     `json:"totalQuestions"`
	Percentage     float64 `json:"percentage"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func wsError(err error) outboundMessage[any] {
	_, kind := statusFor(err)
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Kind: kind}}
}

// ServeWS upgrades to a websocket bound to one quiz. The client first gets the
// current analytics, then a fresh snapshot after every submission to the quiz.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	current, err := h.service.QuizAnalytics(r.Context(), quizID, domain.DateRange{})
	if err != nil {
		_ = conn.WriteJSON(wsError(err))
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), quizID)
	if err != nil {
		_ = conn.WriteJSON(wsError(err))
		return
	}
	defer cancel()

	out := newOutbox(16)
	closeSignals := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer; gorilla connections do not allow concurrent writes.
	go func() {
		defer close(out.writerDone)
		for msg := range out.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if !out.emit(outboundMessage[any]{Type: "analytics", Payload: update}, closeSignals) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	alive := out.emit(outboundMessage[any]{Type: "analytics", Payload: current}, closeSignals)
	for alive {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				alive = out.emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid submit payload"}}, closeSignals)
				continue
			}
			submission, err := h.service.SubmitQuiz(r.Context(), quizID, payload.UserID, payload.Answers)
			if err != nil {
				alive = out.emit(wsError(err), closeSignals)
				continue
			}
			alive = out.emit(outboundMessage[any]{Type: "submitted", Payload: submitResult{
				SubmissionID:   submission.ID,
				Score:          submission.Score,
				TotalQuestions: submission.TotalQuestions,
				Percentage:     submission.Percentage,
			}}, closeSignals)
		default:
			alive = out.emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}, closeSignals)
		}
	}

	close(closeSignals)
	<-updatesDone
	close(out.send)
	<-out.writerDone
}

// outbox queues messages for the single socket writer.
type outbox struct {
	send       chan outboundMessage[any]
	writerDone chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{
		send:       make(chan outboundMessage[any], size),
		writerDone: make(chan struct{}),
	}
}

// emit queues msg unless the writer has stopped or stop is closed. It reports
// whether the message was queued.
func (o *outbox) emit(msg outboundMessage[any], stop <-chan struct{}) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.writerDone:
		return false
	case <-stop:
		return false
	}
}
