package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"docquiz-service/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// SubmissionExchange is the topic exchange submission events go to.
	SubmissionExchange = "quiz.events"
	// SubmissionCreatedKey is the routing key for a recorded submission.
	SubmissionCreatedKey = "submission.created"
)

// SubmissionEvent is the wire form of a submission.created message. Raw
// answers stay inside the service.
type SubmissionEvent struct {
	SubmissionID   string    `json:"submissionId"`
	QuizID         string    `json:"quizId"`
	UserID         string    `json:"userId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Percentage     float64   `json:"percentage"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements app.SubmissionPublisher over a RabbitMQ topic exchange.
type Publisher struct {
	conn *amqp.Connection
	mu   sync.Mutex
	ch   publishChannel
}

// Dial connects to url and declares the durable topic exchange.
func Dial(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		SubmissionExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

func (p *Publisher) PublishSubmission(ctx context.Context, s domain.Submission) error {
	msg, err := EncodeSubmission(s)
	if err != nil {
		return err
	}
	// amqp channels are not safe for concurrent publishes
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, SubmissionExchange, SubmissionCreatedKey, false, false, msg); err != nil {
		return fmt.Errorf("publish submission %s: %w", s.ID, err)
	}
	return nil
}

// EncodeSubmission builds the persistent JSON message for s.
func EncodeSubmission(s domain.Submission) (amqp.Publishing, error) {
	body, err := json.Marshal(SubmissionEvent{
		SubmissionID:   s.ID,
		QuizID:         s.QuizID,
		UserID:         s.UserID,
		Score:          s.Score,
		TotalQuestions: s.TotalQuestions,
		Percentage:     s.Percentage,
		SubmittedAt:    s.SubmittedAt,
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode submission: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    s.ID,
		Timestamp:    s.SubmittedAt,
		Type:         SubmissionCreatedKey,
		Body:         body,
	}, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
