package rabbitMQ

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/entity"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	key    string
	msg    amqp.Publishing
	err    error
	closed bool
}

func (c *recordingChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.key = key
	c.msg = msg
	return c.err
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	ch := &recordingChannel{}
	p := &EventPublisher{channel: ch, queueName: "reminder_events"}

	event := entity.ReminderEvent{
		ID:          "evt-1",
		TaskID:      12,
		Channel:     "+919876543210",
		Kind:        entity.ReminderOverdue,
		Success:     true,
		AttemptedAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, p.Publish(context.Background(), event))

	assert.Equal(t, "reminder_events", ch.key)
	assert.Equal(t, "evt-1", ch.msg.MessageId)
	assert.Equal(t, "reminder.overdue", ch.msg.Type)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)

	var decoded entity.ReminderEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, event, decoded)
}

func TestPublishError(t *testing.T) {
	p := &EventPublisher{channel: &recordingChannel{err: errors.New("channel closed")}, queueName: "q"}

	err := p.Publish(context.Background(), entity.ReminderEvent{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish event")
}

func TestCloseWithoutConnection(t *testing.T) {
	ch := &recordingChannel{}
	p := &EventPublisher{channel: ch}

	assert.NoError(t, p.Close())
	assert.True(t, ch.closed)
	assert.Error(t, p.HealthCheck())
}
