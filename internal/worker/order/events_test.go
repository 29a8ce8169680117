package order

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/dto"
	"github.com/Additional-Code/tableside/internal/entity"
	"github.com/Additional-Code/tableside/internal/messaging"
)

type memoryRecorder struct {
	events []entity.OrderEvent
	err    error
}

func (m *memoryRecorder) Record(_ context.Context, event *entity.OrderEvent) error {
	if m.err != nil {
		return m.err
	}
	event.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *event)
	return nil
}

func testConfig() config.Config {
	return config.Config{Messaging: config.Messaging{Kafka: config.Kafka{Topic: "orders.events"}}}
}

func encode(t *testing.T, kind, status string) messaging.Message {
	t.Helper()
	payload, err := json.Marshal(dto.OrderEvent{
		Event: kind,
		At:    time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC),
		Order: dto.OrderResponse{
			ID:           "order-1",
			OrderNumber:  1000,
			CustomerName: "Alice",
			Status:       status,
			Total:        decimal.RequireFromString("25"),
			Items: []dto.LineItem{
				{ID: "ribs", Name: "BBQ Ribs", Price: decimal.RequireFromString("10"), Quantity: 2},
				{ID: "beer", Name: "Craft Beer", Price: decimal.RequireFromString("5"), Quantity: 1},
			},
		},
	})
	require.NoError(t, err)
	return messaging.Message{Topic: "orders.events", Value: payload}
}

func TestHandlerPrintsTicketAndJournals(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	recorder := &memoryRecorder{}
	reg := NewEventHandler(recorder, zap.New(core), testConfig())
	assert.Equal(t, "orders.events", reg.Topic)

	require.NoError(t, reg.Handler(context.Background(), encode(t, "order.created", "pending")))
	require.NoError(t, reg.Handler(context.Background(), encode(t, "order.updated", "preparing")))

	tickets := logs.FilterMessage("kitchen ticket").All()
	require.Len(t, tickets, 1)
	assert.Equal(t, []interface{}{"2x BBQ Ribs", "1x Craft Beer"}, tickets[0].ContextMap()["items"])
	assert.Equal(t, "25.00", tickets[0].ContextMap()["total"])

	require.Len(t, recorder.events, 2)
	assert.Equal(t, "order.created", recorder.events[0].Kind)
	assert.Equal(t, "order-1", recorder.events[0].OrderID)
	assert.Equal(t, int64(1000), recorder.events[0].OrderNumber)
	assert.Equal(t, "25.00", recorder.events[0].Total)
	assert.Equal(t, "preparing", recorder.events[1].Status)
	assert.Contains(t, recorder.events[1].Payload, `"event":"order.updated"`)
}

func TestHandlerSkipsUndecodableMessages(t *testing.T) {
	recorder := &memoryRecorder{}
	reg := NewEventHandler(recorder, zap.NewNop(), testConfig())

	err := reg.Handler(context.Background(), messaging.Message{Value: []byte("not json")})
	assert.NoError(t, err)
	assert.Empty(t, recorder.events)
}

func TestHandlerReturnsJournalErrors(t *testing.T) {
	recorder := &memoryRecorder{err: errors.New("database is locked")}
	reg := NewEventHandler(recorder, zap.NewNop(), testConfig())

	err := reg.Handler(context.Background(), encode(t, "order.created", "pending"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "database is locked")
}
