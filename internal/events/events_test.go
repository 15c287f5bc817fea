package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []published
	err       error
	closed    bool
}

func (f *fakeChannel) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := NewAMQPPublisher(ch, "readinghub.events")

	err := p.Publish(context.Background(), ClubMemberJoined, map[string]uint{"clubId": 7, "userId": 3})
	require.NoError(t, err)
	require.Len(t, ch.published, 1)

	got := ch.published[0]
	assert.Equal(t, "readinghub.events", got.exchange)
	assert.Equal(t, ClubMemberJoined, got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.NotEmpty(t, got.msg.MessageId)

	var event struct {
		ID      string          `json:"id"`
		Type    string          `json:"type"`
		Payload map[string]uint `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(got.msg.Body, &event))
	assert.Equal(t, got.msg.MessageId, event.ID)
	assert.Equal(t, ClubMemberJoined, event.Type)
	assert.Equal(t, uint(7), event.Payload["clubId"])
}

func TestAMQPPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := NewAMQPPublisher(ch, "x")

	err := p.Publish(context.Background(), MessageSent, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel closed")
}

func TestAMQPPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := NewAMQPPublisher(ch, "x")
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestEmit_UsesCurrentPublisher(t *testing.T) {
	ch := &fakeChannel{}
	SetPublisher(NewAMQPPublisher(ch, "x"))
	t.Cleanup(func() { SetPublisher(nil) })

	Emit(context.Background(), UserRegistered, map[string]string{"username": "ana"})
	assert.Len(t, ch.published, 1)
}

func TestEmit_SwallowsErrors(t *testing.T) {
	SetPublisher(NewAMQPPublisher(&fakeChannel{err: errors.New("down")}, "x"))
	t.Cleanup(func() { SetPublisher(nil) })

	assert.NotPanics(t, func() {
		Emit(context.Background(), RatingUpserted, nil)
	})
}
