package broadcast

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tableside/internal/entity"
)

func testOrder(id string, number int64) entity.Order {
	return entity.Order{
		ID:     id,
		Number: number,
		Items: []entity.LineItem{
			{ItemID: "1", Name: "Craft Beer", Price: decimal.RequireFromString("6.99"), Quantity: 1},
		},
		Total:  decimal.RequireFromString("6.99"),
		Status: entity.StatusPending,
	}
}

func drain(sub *Subscription) []Event {
	var events []Event
	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestPublishReachesCurrentSubscribersOnly(t *testing.T) {
	hub := New(4, zaptest.NewLogger(t))

	before := hub.Subscribe()
	hub.Publish(context.Background(), OrderCreated, testOrder("a", 1000))
	after := hub.Subscribe()

	got := drain(before)
	require.Len(t, got, 1)
	assert.Equal(t, OrderCreated, got[0].Kind)
	assert.Equal(t, testOrder("a", 1000), got[0].Order)
	assert.False(t, got[0].At.IsZero())

	assert.Empty(t, drain(after))
}

func TestPublishDeliversInSubscriptionOrder(t *testing.T) {
	hub := New(4, nil)
	subs := []*Subscription{hub.Subscribe(), hub.Subscribe(), hub.Subscribe()}

	assert.Less(t, subs[0].ID(), subs[1].ID())
	assert.Less(t, subs[1].ID(), subs[2].ID())

	hub.Publish(context.Background(), OrderUpdated, testOrder("a", 1000))
	for _, sub := range subs {
		require.Len(t, drain(sub), 1)
	}
}

func TestSlowListenerDoesNotBlockOthers(t *testing.T) {
	hub := New(1, zaptest.NewLogger(t))
	slow := hub.Subscribe()
	fast := hub.Subscribe()

	hub.Publish(context.Background(), OrderCreated, testOrder("a", 1000))
	require.Len(t, drain(fast), 1)

	// slow never reads, its single slot is still occupied.
	hub.Publish(context.Background(), OrderCreated, testOrder("b", 1001))

	got := drain(fast)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Order.ID)
	assert.Equal(t, uint64(1), slow.Dropped())

	slowGot := drain(slow)
	require.Len(t, slowGot, 1)
	assert.Equal(t, "a", slowGot[0].Order.ID)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	hub := New(2, nil)
	sub := hub.Subscribe()
	other := hub.Subscribe()
	require.Equal(t, 2, hub.Listeners())

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)
	assert.Equal(t, 1, hub.Listeners())

	_, ok := <-sub.C()
	assert.False(t, ok, "channel closed after unsubscribe")

	hub.Publish(context.Background(), OrderCreated, testOrder("a", 1000))
	assert.Len(t, drain(other), 1)
}

func TestPayloadIsDetachedFromPublisher(t *testing.T) {
	hub := New(1, nil)
	sub := hub.Subscribe()

	order := testOrder("a", 1000)
	hub.Publish(context.Background(), OrderCreated, order)
	order.Items[0].Quantity = 42

	got := drain(sub)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Order.Items[0].Quantity)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	hub := New(1, nil)
	sub := hub.Subscribe()

	hub.Close()
	hub.Close()
	_, ok := <-sub.C()
	assert.False(t, ok)

	late := hub.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)

	// publishing and unsubscribing after close are harmless.
	hub.Publish(context.Background(), OrderCreated, testOrder("a", 1000))
	hub.Unsubscribe(sub)
	assert.Zero(t, hub.Listeners())
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := New(8, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe()
			for range 4 {
				select {
				case <-sub.C():
				default:
				}
			}
			hub.Unsubscribe(sub)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			hub.Publish(context.Background(), OrderUpdated, testOrder("a", int64(1000+i)))
		}
	}()

	wg.Wait()
	assert.Zero(t, hub.Listeners())
}
