package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"contacts_service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	key    string
	msgs   []amqp.Publishing
	err    error
	closed bool
}

func (c *recordingChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}

	c.key = key
	c.msgs = append(c.msgs, msg)

	return nil
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	ch := &recordingChannel{}
	client := &RabbitMQClient{channel: ch, queue: "account_events"}

	event := models.Event{
		Type:       models.EventUserRegistered,
		UserID:     7,
		Username:   "alice",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	require.NoError(t, client.Publish(context.Background(), event))
	require.Len(t, ch.msgs, 1)

	msg := ch.msgs[0]
	assert.Equal(t, "account_events", ch.key)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, models.EventUserRegistered, msg.Type)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)

	var got models.Event
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, event, got)
}

func TestPublish_Error(t *testing.T) {
	client := &RabbitMQClient{channel: &recordingChannel{err: errors.New("channel closed")}, queue: "q"}

	err := client.Publish(context.Background(), models.Event{Type: models.EventUserLoggedOut})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestClose(t *testing.T) {
	ch := &recordingChannel{}
	client := &RabbitMQClient{channel: ch}

	client.Close()
	assert.True(t, ch.closed)
}
