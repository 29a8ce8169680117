package entity

import (
	"errors"
	"fmt"
)

// Status is the lifecycle label of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
)

var (
	// ErrUnknownStatus is returned when a status label is not part of the lifecycle.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrInvalidTransition is returned when a status change is not the next forward step.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// next holds the single legal successor of each non-terminal status.
var next = map[Status]Status{
	StatusPending:   StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusCompleted,
}

// Statuses lists every lifecycle status in order.
func Statuses() []Status {
	return []Status{StatusPending, StatusPreparing, StatusReady, StatusCompleted}
}

// ParseStatus validates a raw label.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	_, ok := next[s]
	return !ok
}

// Next returns the successor of s, if any.
func (s Status) Next() (Status, bool) {
	n, ok := next[s]
	return n, ok
}

// CanTransition reports whether to is the single forward step from s.
func (s Status) CanTransition(to Status) bool {
	n, ok := next[s]
	return ok && n == to
}

// Transition returns to when the change is legal and ErrInvalidTransition otherwise.
func (s Status) Transition(to Status) (Status, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
	}
	return to, nil
}
