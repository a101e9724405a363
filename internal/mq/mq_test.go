package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxus-portfolio/apiserver/config"
)

type published struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type fakeBackend struct {
	published []published
	err       error
	closed    bool
}

func (f *fakeBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, published{channel: channel, data: data, attrs: attrs})
	return "msg-1", nil
}

func (f *fakeBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	for _, p := range f.published {
		if p.channel != channel {
			continue
		}
		if err := handler(ctx, Message{ID: "msg-1", Data: p.data, Attributes: p.attrs}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func TestPublishJSON(t *testing.T) {
	backend := &fakeBackend{}
	q := New(backend)

	id, err := q.PublishJSON(context.Background(), "contact-messages", map[string]string{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	require.Len(t, backend.published, 1)
	assert.Equal(t, "application/json", backend.published[0].attrs[AttrContentType])
	assert.JSONEq(t, `{"name":"Ada"}`, string(backend.published[0].data))

	var got map[string]string
	err = q.Subscribe(context.Background(), "contact-messages", func(_ context.Context, msg Message) error {
		return json.Unmarshal(msg.Data, &got)
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got["name"])

	require.NoError(t, q.Close())
	assert.True(t, backend.closed)
}

func TestPublishJSON_Errors(t *testing.T) {
	q := New(&fakeBackend{err: errors.New("broker down")})

	_, err := q.PublishJSON(context.Background(), "c", map[string]string{})
	assert.EqualError(t, err, "broker down")

	_, err = q.PublishJSON(context.Background(), "c", make(chan int))
	assert.ErrorContains(t, err, "encode message")
}

func TestNewFromConfig(t *testing.T) {
	q, err := NewFromConfig(context.Background(), config.MQConfig{})
	require.NoError(t, err)
	assert.Nil(t, q)

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.Error(t, err, "empty rabbitmq url must fail")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil, ""))

	attrs := headersToAttributes(amqp.Table{"source": "web", "attempt": int32(2), "raw": []byte("x")}, "application/json")
	assert.Equal(t, map[string]string{
		AttrContentType: "application/json",
		"source":        "web",
		"attempt":       "2",
		"raw":           "x",
	}, attrs)
}

func TestDeliveryAttempt(t *testing.T) {
	assert.Equal(t, 1, deliveryAttempt(&pubsub.Message{}))

	attempt := 3
	assert.Equal(t, 3, deliveryAttempt(&pubsub.Message{DeliveryAttempt: &attempt}))
}

func TestSubscriptionName(t *testing.T) {
	assert.Equal(t, "contact-messages-sub", subscriptionName("contact-messages", "-sub"))
	assert.Equal(t, "contact-messages", subscriptionName("contact-messages", ""))
}
