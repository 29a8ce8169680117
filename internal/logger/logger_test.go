package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/tableside/internal/config"
)

func TestBuildLevels(t *testing.T) {
	tests := []struct {
		name    string
		obs     config.Observability
		debugOn bool
	}{
		{"json info", config.Observability{LogLevel: "info", LogEncoding: "json"}, false},
		{"console debug", config.Observability{LogLevel: "debug", LogEncoding: "console"}, true},
		{"bad level falls back", config.Observability{LogLevel: "loud", LogEncoding: "json"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := Build(tt.obs)
			require.NoError(t, err)
			assert.Equal(t, tt.debugOn, logger.Core().Enabled(zapcore.DebugLevel))
			assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		})
	}
}
