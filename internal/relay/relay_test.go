package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tableside/internal/broadcast"
	"github.com/Additional-Code/tableside/internal/dto"
	"github.com/Additional-Code/tableside/internal/entity"
	"github.com/Additional-Code/tableside/internal/messaging"
)

type recordingClient struct {
	mu       sync.Mutex
	enabled  bool
	failNext bool
	sent     []messaging.Message
}

func (c *recordingClient) Publish(_ context.Context, msg messaging.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		c.failNext = false
		return errors.New("broker unavailable")
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingClient) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *recordingClient) Topic() string { return "orders.events" }

func (c *recordingClient) Enabled() bool { return c.enabled }

func (c *recordingClient) messages() []messaging.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]messaging.Message(nil), c.sent...)
}

func sampleOrder(status entity.Status) entity.Order {
	return entity.Order{
		ID:     "order-1",
		Number: 1000,
		Items: []entity.LineItem{
			{ItemID: "ribs", Name: "BBQ Ribs", Price: decimal.RequireFromString("10.00"), Quantity: 2},
		},
		CustomerName:  "Alice",
		CustomerPhone: "555-1234",
		Total:         decimal.RequireFromString("20.00"),
		Status:        status,
	}
}

func TestRelayForwardsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := broadcast.New(8, zaptest.NewLogger(t))
	client := &recordingClient{enabled: true}
	r := New(hub, client, zaptest.NewLogger(t))

	r.Start()
	r.Start()
	require.Equal(t, 1, hub.Listeners())

	hub.Publish(context.Background(), broadcast.OrderCreated, sampleOrder(entity.StatusPending))
	hub.Publish(context.Background(), broadcast.OrderUpdated, sampleOrder(entity.StatusPreparing))

	require.Eventually(t, func() bool { return len(client.messages()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, 0, hub.Listeners())

	sent := client.messages()
	assert.Equal(t, "order-1", string(sent[0].Key))
	assert.Equal(t, "order.created", sent[0].Headers[HeaderEvent])
	assert.Equal(t, "order.updated", sent[1].Headers[HeaderEvent])

	var ev dto.OrderEvent
	require.NoError(t, json.Unmarshal(sent[1].Value, &ev))
	assert.Equal(t, "order.updated", ev.Event)
	assert.Equal(t, "preparing", ev.Order.Status)
	assert.Equal(t, int64(1000), ev.Order.OrderNumber)
	assert.True(t, decimal.RequireFromString("20.00").Equal(ev.Order.Total))
}

func TestRelayKeepsGoingAfterPublishFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := broadcast.New(8, zaptest.NewLogger(t))
	client := &recordingClient{enabled: true, failNext: true}
	r := New(hub, client, zaptest.NewLogger(t))
	r.Start()

	hub.Publish(context.Background(), broadcast.OrderCreated, sampleOrder(entity.StatusPending))
	hub.Publish(context.Background(), broadcast.OrderUpdated, sampleOrder(entity.StatusPreparing))

	require.Eventually(t, func() bool { return len(client.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "order.updated", client.messages()[0].Headers[HeaderEvent])
	require.NoError(t, r.Stop(context.Background()))
}

func TestRelayIdleWhenMessagingDisabled(t *testing.T) {
	hub := broadcast.New(8, zaptest.NewLogger(t))
	r := New(hub, &recordingClient{}, zaptest.NewLogger(t))

	r.Start()
	assert.Equal(t, 0, hub.Listeners())
	assert.NoError(t, r.Stop(context.Background()))
}

func TestRelayStopsWhenHubCloses(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := broadcast.New(8, zaptest.NewLogger(t))
	r := New(hub, &recordingClient{enabled: true}, zaptest.NewLogger(t))
	r.Start()

	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.Stop(ctx))
}
