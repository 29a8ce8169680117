package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/tableside/pkg/errorbank"
)

// Envelope is the body of every successful API response.
type Envelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Failure is the body of every failed API response.
type Failure struct {
	Success bool           `json:"success"`
	Error   Problem        `json:"error"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Problem describes what went wrong in a form clients can branch on.
type Problem struct {
	Kind    errorbank.Kind `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Builder accumulates a response and renders it through echo.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// Created marks the response as 201 with data as payload.
func (b *Builder) Created(data any) *Builder {
	b.status = http.StatusCreated
	b.data = data
	return b
}

// List attaches a collection and records its size under meta.count.
func (b *Builder) List(items any, count int) *Builder {
	b.data = items
	return b.WithMeta("count", count)
}

func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata. Empty keys are ignored.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build writes the response. Errors are rendered with the status of their kind
// unless an explicit error status was set.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.fail()
	}
	switch b.status {
	case 0:
		b.status = http.StatusOK
	case http.StatusNoContent:
		return b.ctx.NoContent(b.status)
	}
	return b.ctx.JSON(b.status, Envelope{Success: true, Data: b.data, Meta: b.meta})
}

func (b *Builder) fail() error {
	appErr := errorbank.From(b.err)
	if appErr.Kind() == errorbank.KindInternal {
		// internal causes stay in the logs, never in the payload.
		b.ctx.Logger().Error(appErr.Error())
	}
	status := b.status
	if status < http.StatusBadRequest {
		status = appErr.StatusCode()
	}
	return b.ctx.JSON(status, Failure{
		Error: Problem{
			Kind:    appErr.Kind(),
			Message: appErr.Message(),
			Details: appErr.Details(),
		},
		Meta: b.meta,
	})
}
