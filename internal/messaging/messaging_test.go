package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tableside/internal/config"
)

func TestNewClientDisabledIsNoop(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	client, err := NewClient(lc, config.Config{Messaging: config.Messaging{
		Driver: "noop",
		Kafka:  config.Kafka{Topic: "orders.events"},
	}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, client.Enabled())
	assert.Equal(t, "orders.events", client.Topic())
	assert.NoError(t, client.Publish(context.Background(), Message{Value: []byte("{}")}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = client.Consume(ctx, func(context.Context, Message) error {
		t.Fatal("noop client delivered a message")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientKafkaIsLazy(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	client, err := NewClient(lc, config.Config{Messaging: config.Messaging{
		Driver:        "kafka",
		Enabled:       true,
		ConsumerGroup: "tableside-kitchen",
		Kafka:         config.Kafka{Brokers: []string{"127.0.0.1:9092"}, Topic: "orders.events"},
	}}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, client.Enabled())
	assert.Equal(t, "orders.events", client.Topic())
	assert.Nil(t, client.(*kafkaClient).reader)

	lc.RequireStart().RequireStop()
}

func TestFromKafkaCopiesPayload(t *testing.T) {
	key := []byte("order-1")
	msg := kafka.Message{
		Topic:   "orders.events",
		Key:     key,
		Value:   []byte(`{"event":"order.created"}`),
		Offset:  7,
		Headers: []kafka.Header{{Key: "event", Value: []byte("order.created")}},
	}

	out := fromKafka(msg)
	key[0] = 'X'

	assert.Equal(t, "order-1", string(out.Key))
	assert.Equal(t, int64(7), out.Offset)
	assert.Equal(t, map[string]string{"event": "order.created"}, out.Headers)
	assert.Nil(t, fromKafka(kafka.Message{}).Headers)
}

func TestDeliverRetriesSameMessageUntilHandled(t *testing.T) {
	var offsets []int64
	handler := func(_ context.Context, msg Message) error {
		offsets = append(offsets, msg.Offset)
		if len(offsets) == 1 {
			return errors.New("journal unavailable")
		}
		return nil
	}

	err := deliver(context.Background(), handler, Message{Offset: 7}, time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 7}, offsets)
}

func TestDeliverStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(context.Context, Message) error {
		calls++
		cancel()
		return errors.New("still failing")
	}

	err := deliver(ctx, handler, Message{Offset: 1}, time.Hour, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
