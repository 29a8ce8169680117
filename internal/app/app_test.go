package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
)

func TestGraphsValidate(t *testing.T) {
	graphs := map[string]fx.Option{
		"http":    HTTP,
		"worker":  Worker,
		"migrate": Migrate,
		"journal": Journal,
	}
	for name, opts := range graphs {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, fx.ValidateApp(opts, fx.NopLogger))
		})
	}
}
