package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/observability"
)

var cacheMeter = otel.Meter("github.com/Additional-Code/tableside/cache")

// Store is a byte oriented cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ErrCacheMiss indicates the key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// Module provides the cache store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore initialises the configured cache store (redis or noop). Redis keys are
// prefixed with the service name so several deployments can share one instance.
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Cache.Driver {
	case "noop", "":
		logger.Info("cache disabled; using noop store")
		return Noop(), nil
	case "redis":
		store := NewRedis(cfg.Cache, cfg.Observability.ServiceName)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := store.Ping(ctx); err != nil {
					return err
				}
				logger.Info("redis cache connected", zap.String("addr", cfg.Cache.Redis.Addr))
				return nil
			},
			OnStop: func(context.Context) error {
				logger.Info("closing redis cache")
				return store.Close()
			},
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

// GetJSON reads key and decodes it into a T. A payload that no longer decodes is
// treated as a miss.
func GetJSON[T any](ctx context.Context, store Store, key string) (T, error) {
	var out T
	raw, err := store.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}
	return out, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, store Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return store.Set(ctx, key, raw, ttl)
}

// Noop returns a store that never holds anything.
func Noop() Store {
	return noopStore{}
}

type noopStore struct{}

func (noopStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (noopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (noopStore) Delete(context.Context, string) error {
	return nil
}

// RedisStore is a Store backed by go-redis.
type RedisStore struct {
	client     *goredis.Client
	prefix     string
	defaultTTL time.Duration
	lookups    metric.Int64Counter
}

// NewRedis builds a RedisStore; keys are stored under "<namespace>:".
func NewRedis(cfg config.Cache, namespace string) *RedisStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	prefix := ""
	if namespace != "" {
		prefix = namespace + ":"
	}
	return &RedisStore{
		client:     client,
		prefix:     prefix,
		defaultTTL: cfg.DefaultTTL,
		lookups:    observability.Int64Counter(cacheMeter, "tableside.cache.lookups", "Cache lookups by result"),
	}
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	res, err := s.client.Get(ctx, s.key(key)).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		s.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))
		return nil, ErrCacheMiss
	case err != nil:
		s.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		return nil, err
	}
	s.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "hit")))
	return res, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}
