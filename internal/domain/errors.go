package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrOrderTerminal = errors.New("order already in terminal state")
	ErrRateLimited   = errors.New("rate limited")
	ErrWSDisconnect  = errors.New("websocket disconnected")
)

// ValidationError describes a request rejected before any network call.
// It unwraps to ErrInvalidOrder so callers can match the whole class.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidOrder }

// GatewayError is a structured rejection from the execution engine. It is
// always recoverable: the store rolls back its optimistic mutation and
// surfaces Message to the user.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("engine: %s", e.Message)
	}
	return fmt.Sprintf("engine: %s (status %d)", e.Message, e.StatusCode)
}
