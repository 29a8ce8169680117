package errorbank

import (
	"errors"
	"fmt"
	"maps"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind names a category of failure that every transport knows how to render.
type Kind string

const (
	KindBadRequest        Kind = "bad_request"
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindInternal          Kind = "internal"
)

type mapping struct {
	http int
	grpc codes.Code
}

var kinds = map[Kind]mapping{
	KindBadRequest:        {http.StatusBadRequest, codes.InvalidArgument},
	KindValidation:        {http.StatusBadRequest, codes.InvalidArgument},
	KindNotFound:          {http.StatusNotFound, codes.NotFound},
	KindInvalidTransition: {http.StatusConflict, codes.FailedPrecondition},
	KindInternal:          {http.StatusInternalServerError, codes.Internal},
}

func (k Kind) mapping() mapping {
	if m, ok := kinds[k]; ok {
		return m
	}
	return kinds[KindInternal]
}

// AppError is an error with a kind, a client-safe message and optional details.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// Option mutates an AppError during construction.
type Option func(*AppError)

// WithCause attaches an underlying error. It shows up in Error() but never in
// Message().
func WithCause(err error) Option {
	return func(e *AppError) { e.cause = err }
}

func WithDetail(key string, value any) Option {
	return func(e *AppError) {
		if e.details == nil {
			e.details = make(map[string]any)
		}
		e.details[key] = value
	}
}

func WithDetails(details map[string]any) Option {
	return func(e *AppError) {
		if len(details) == 0 {
			return
		}
		if e.details == nil {
			e.details = make(map[string]any, len(details))
		}
		maps.Copy(e.details, details)
	}
}

// New builds an AppError. An empty message falls back to the kind name.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	e := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

// Validation reports malformed input such as an empty cart or a missing customer field.
func Validation(message string, opts ...Option) *AppError {
	return New(KindValidation, message, opts...)
}

func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// InvalidTransition reports a status change the order lifecycle does not allow.
func InvalidTransition(message string, opts ...Option) *AppError {
	return New(KindInvalidTransition, message, opts...)
}

func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the category; a nil error is internal.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// StatusCode is the HTTP status for the error's kind.
func (e *AppError) StatusCode() int {
	return e.Kind().mapping().http
}

// GRPCCode is the gRPC code for the error's kind.
func (e *AppError) GRPCCode() codes.Code {
	return e.Kind().mapping().grpc
}

// GRPCStatus lets grpc/status recover the mapped code from an AppError.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.Message())
}

// From returns the AppError in err's chain, or wraps err as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal error", WithCause(err))
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind() == kind
}
