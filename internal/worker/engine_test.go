package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/messaging"
)

type chanClient struct {
	enabled bool
	inbox   chan messaging.Message

	mu      sync.Mutex
	results []error
}

func newChanClient() *chanClient {
	return &chanClient{enabled: true, inbox: make(chan messaging.Message, 8)}
}

func (c *chanClient) Publish(_ context.Context, msg messaging.Message) error {
	c.inbox <- msg
	return nil
}

func (c *chanClient) Consume(ctx context.Context, handler messaging.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.inbox:
			err := handler(ctx, msg)
			c.mu.Lock()
			c.results = append(c.results, err)
			c.mu.Unlock()
		}
	}
}

func (c *chanClient) Topic() string { return "orders.events" }

func (c *chanClient) Enabled() bool { return c.enabled }

func (c *chanClient) outcomes() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.results...)
}

func workers() config.Worker {
	return config.Worker{Enabled: true, Concurrency: 2, PollInterval: 10 * time.Millisecond}
}

func TestEngineDispatchesByTopic(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := newChanClient()
	var mu sync.Mutex
	var seen []string
	engine := New(client, workers(), zaptest.NewLogger(t), HandlerRegistration{
		Topic: "orders.events",
		Handler: func(_ context.Context, msg messaging.Message) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, string(msg.Key))
			return nil
		},
	})

	require.NoError(t, engine.Start(context.Background()))
	require.NoError(t, engine.Start(context.Background()))

	client.inbox <- messaging.Message{Topic: "orders.events", Key: []byte("order-1")}
	client.inbox <- messaging.Message{Topic: "unknown", Key: []byte("order-2")}

	require.Eventually(t, func() bool { return len(client.outcomes()) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, engine.Stop(context.Background()))
	require.NoError(t, engine.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"order-1"}, seen)
	for _, err := range client.outcomes() {
		assert.NoError(t, err)
	}
}

func TestEngineRecoversHandlerPanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := newChanClient()
	engine := New(client, workers(), zaptest.NewLogger(t), HandlerRegistration{
		Topic: "orders.events",
		Handler: func(context.Context, messaging.Message) error {
			panic("bad ticket")
		},
	})
	require.NoError(t, engine.Start(context.Background()))

	client.inbox <- messaging.Message{Topic: "orders.events"}
	require.Eventually(t, func() bool { return len(client.outcomes()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, engine.Stop(context.Background()))

	assert.ErrorContains(t, client.outcomes()[0], "handler panic")
}

func TestEngineDisabled(t *testing.T) {
	handler := HandlerRegistration{Topic: "orders.events", Handler: func(context.Context, messaging.Message) error { return nil }}

	client := newChanClient()
	client.enabled = false
	engine := New(client, workers(), zaptest.NewLogger(t), handler)
	require.NoError(t, engine.Start(context.Background()))
	assert.Nil(t, engine.cancel)

	off := workers()
	off.Enabled = false
	engine = New(newChanClient(), off, zaptest.NewLogger(t), handler)
	require.NoError(t, engine.Start(context.Background()))
	assert.Nil(t, engine.cancel)

	engine = New(newChanClient(), workers(), zaptest.NewLogger(t), HandlerRegistration{Topic: "orders.events"})
	require.NoError(t, engine.Start(context.Background()))
	assert.Nil(t, engine.cancel)
	assert.NoError(t, engine.Stop(context.Background()))
}

type failingClient struct {
	*chanClient
	calls int
	mu    sync.Mutex
}

func (f *failingClient) Consume(ctx context.Context, handler messaging.Handler) error {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()
	if first {
		return errors.New("broker unreachable")
	}
	return f.chanClient.Consume(ctx, handler)
}

func TestEngineRetriesAfterConsumeError(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &failingClient{chanClient: newChanClient()}
	cfg := workers()
	cfg.Concurrency = 1
	engine := New(client, cfg, zaptest.NewLogger(t), HandlerRegistration{
		Topic:   "orders.events",
		Handler: func(context.Context, messaging.Message) error { return nil },
	})
	require.NoError(t, engine.Start(context.Background()))

	client.inbox <- messaging.Message{Topic: "orders.events"}
	require.Eventually(t, func() bool { return len(client.outcomes()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, engine.Stop(context.Background()))
}

// scriptedClient fails each Consume cycle, delivering one message first when the
// cycle's entry is true, then blocks once the script is exhausted.
type scriptedClient struct {
	*chanClient
	script []bool

	mu    sync.Mutex
	calls int
}

func (s *scriptedClient) Consume(ctx context.Context, handler messaging.Handler) error {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.mu.Unlock()

	if call >= len(s.script) {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.script[call] {
		if err := handler(ctx, messaging.Message{Topic: "orders.events"}); err != nil {
			return err
		}
	}
	return errors.New("broker unreachable")
}

func TestEngineBackoffResetsAfterHandledMessages(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &scriptedClient{chanClient: newChanClient(), script: []bool{false, false, true, false}}
	cfg := workers()
	cfg.Concurrency = 1
	engine := New(client, cfg, zaptest.NewLogger(t), HandlerRegistration{
		Topic:   "orders.events",
		Handler: func(context.Context, messaging.Message) error { return nil },
	})

	var mu sync.Mutex
	var waits []time.Duration
	engine.after = func(d time.Duration) <-chan time.Time {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	require.NoError(t, engine.Start(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(waits) == 4
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, engine.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	base := cfg.PollInterval
	assert.Equal(t, []time.Duration{base, 2 * base, base, 2 * base}, waits)
}
