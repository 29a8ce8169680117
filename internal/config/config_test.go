package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.HTTP.Port)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, int64(1000), cfg.Orders.StartingNumber)
	assert.Equal(t, 64, cfg.Broadcast.BufferSize)
	assert.True(t, cfg.Menu.SeedDefaults)
	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, "tableside", cfg.Observability.ServiceName)
}

func TestNewOverrides(t *testing.T) {
	t.Run("orders and broadcast", func(t *testing.T) {
		t.Setenv("ORDERS_STARTING_NUMBER", " 2000 ")
		t.Setenv("BROADCAST_BUFFER_SIZE", "0")
		t.Setenv("LIVE_PING_INTERVAL", "5s")

		cfg, err := New()
		require.NoError(t, err)

		assert.Equal(t, int64(2000), cfg.Orders.StartingNumber)
		assert.Equal(t, 64, cfg.Broadcast.BufferSize)
		assert.Equal(t, 5*time.Second, cfg.Live.PingInterval)
	})

	t.Run("origins are trimmed", func(t *testing.T) {
		t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	})

	t.Run("observability normalisation", func(t *testing.T) {
		t.Setenv("OBS_LOG_LEVEL", " DEBUG ")
		t.Setenv("OBS_PROMETHEUS_PATH", "prom")

		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Observability.LogLevel)
		assert.Equal(t, "/prom", cfg.Observability.PrometheusPath)
	})

	t.Run("redis enabled", func(t *testing.T) {
		t.Setenv("CACHE_ENABLED", "true")

		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, "redis", cfg.Cache.Driver)
	})
}

func TestNewRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"http port", map[string]string{"HTTP_PORT": "0"}},
		{"negative order number", map[string]string{"ORDERS_STARTING_NUMBER": "-1"}},
		{"cache driver", map[string]string{"CACHE_ENABLED": "true", "CACHE_DRIVER": "memcached"}},
		{"messaging driver", map[string]string{"MESSAGING_ENABLED": "true", "MESSAGING_DRIVER": "nats"}},
		{"kafka topic", map[string]string{"MESSAGING_ENABLED": "true", "KAFKA_TOPIC": ""}},
		{"database driver", map[string]string{"DB_DRIVER": "oracle"}},
		{"database dsn", map[string]string{"DB_WRITER_DSN": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestLookupFallsBackOnBadValues(t *testing.T) {
	t.Setenv("TABLESIDE_TEST_INT", "twelve")
	t.Setenv("TABLESIDE_TEST_BOOL", " true ")
	t.Setenv("TABLESIDE_TEST_LIST", " , ")

	assert.Equal(t, 7, getEnvAsInt("TABLESIDE_TEST_INT", 7))
	assert.True(t, getEnvAsBool("TABLESIDE_TEST_BOOL", false))
	assert.Equal(t, []string{"x"}, getEnvAsStringSlice("TABLESIDE_TEST_LIST", []string{"x"}))
	assert.Equal(t, time.Second, getEnvAsDuration("TABLESIDE_TEST_UNSET", time.Second))
}
