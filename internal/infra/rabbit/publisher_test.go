package rabbit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"docquiz-service/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	exchange string
	key      string
	msgs     []amqp.Publishing
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *recordingChannel) Close() error { return nil }

func TestPublishSubmissionRoutesEvent(t *testing.T) {
	ch := &recordingChannel{}
	p := &Publisher{ch: ch}
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	err := p.PublishSubmission(context.Background(), domain.Submission{
		ID:             "sub-1",
		QuizID:         "quiz-1",
		UserID:         "alice",
		Answers:        map[string]string{"q1": "A"},
		SubmittedAt:    at,
		Score:          3,
		TotalQuestions: 5,
		Percentage:     60,
	})
	require.NoError(t, err)
	require.Equal(t, SubmissionExchange, ch.exchange)
	require.Equal(t, SubmissionCreatedKey, ch.key)
	require.Len(t, ch.msgs, 1)

	msg := ch.msgs[0]
	require.Equal(t, "application/json", msg.ContentType)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.Equal(t, "sub-1", msg.MessageId)

	var event SubmissionEvent
	require.NoError(t, json.Unmarshal(msg.Body, &event))
	require.Equal(t, "quiz-1", event.QuizID)
	require.Equal(t, 3, event.Score)
	require.Equal(t, 60.0, event.Percentage)
	require.True(t, event.SubmittedAt.Equal(at))
	require.NotContains(t, string(msg.Body), "answers")
}
