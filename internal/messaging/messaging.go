package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/config"
)

// Message is a record on the order event topic.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
	Time    time.Time
}

// Handler processes an inbound message. A non-nil error makes the client retry the
// same message with backoff; its offset is committed only once a call succeeds.
type Handler func(context.Context, Message) error

const maxRetryBackoff = 30 * time.Second

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
	Enabled() bool
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")
		return Noop(cfg.Messaging.Kafka.Topic), nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		client := newKafkaClient(cfg.Messaging, logger)
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

// Noop returns a client that drops published messages and blocks consumers
// until their context ends.
func Noop(topic string) Client {
	return noopClient{topic: topic}
}

type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, Message) error { return nil }

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }

func (n noopClient) Enabled() bool { return false }

// kafkaClient implements Client via kafka-go. The reader is created on first
// Consume so publish-only processes never join the consumer group.
type kafkaClient struct {
	cfg    config.Messaging
	writer *kafka.Writer
	logger *zap.Logger

	mu     sync.Mutex
	reader *kafka.Reader
}

func newKafkaClient(cfg config.Messaging, logger *zap.Logger) *kafkaClient {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger, errors: true},
	}
	return &kafkaClient{cfg: cfg, writer: writer, logger: logger}
}

// Publish writes msg keyed by msg.Key; the hash balancer keeps one order's
// events on one partition.
func (k *kafkaClient) Publish(ctx context.Context, msg Message) error {
	out := kafka.Message{Key: msg.Key, Value: msg.Value}
	for key, value := range msg.Headers {
		out.Headers = append(out.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return k.writer.WriteMessages(ctx, out)
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	reader := k.readerFor()
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, kafka.ErrGroupClosed) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))

			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := deliver(ctx, handler, fromKafka(msg), k.cfg.Workers.PollInterval, k.logger); err != nil {
			return err
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

// deliver calls handler until it accepts msg or ctx ends. Group offsets are
// cumulative, so a later commit would skip a failed message for good.
func deliver(ctx context.Context, handler Handler, msg Message, backoff time.Duration, logger *zap.Logger) error {
	if backoff <= 0 {
		backoff = time.Second
	}
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		logger.Error("message handler failed; retrying",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

func (k *kafkaClient) Topic() string { return k.cfg.Kafka.Topic }

func (k *kafkaClient) Enabled() bool { return true }

func (k *kafkaClient) readerFor() *kafka.Reader {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.reader == nil {
		k.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        k.cfg.Kafka.Brokers,
			GroupID:        k.cfg.ConsumerGroup,
			Topic:          k.cfg.Kafka.Topic,
			MinBytes:       k.cfg.Kafka.MinBytes,
			MaxBytes:       k.cfg.Kafka.MaxBytes,
			CommitInterval: k.cfg.Kafka.CommitInterval,
			Dialer: &kafka.Dialer{
				Timeout:  k.cfg.Kafka.ConnectTimeout,
				ClientID: k.cfg.Kafka.ClientID,
			},
		})
	}
	return k.reader
}

// Close flushes the writer and leaves the consumer group.
func (k *kafkaClient) Close() error {
	k.logger.Info("closing kafka client")
	err := k.writer.Close()

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.reader != nil {
		err = errors.Join(err, k.reader.Close())
	}
	return err
}

func fromKafka(msg kafka.Message) Message {
	out := Message{
		Topic:  msg.Topic,
		Key:    append([]byte(nil), msg.Key...),
		Value:  append([]byte(nil), msg.Value...),
		Offset: msg.Offset,
		Time:   msg.Time,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			out.Headers[h.Key] = string(h.Value)
		}
	}
	return out
}

type kafkaLogger struct {
	logger *zap.Logger
	errors bool
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	if k.errors {
		k.logger.Sugar().Warnf(msg, args...)
		return
	}
	k.logger.Sugar().Debugf(msg, args...)
}
