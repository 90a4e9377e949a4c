package monitor

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid arguments: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned when a service has no retained monitoring data.
type NotFoundError struct {
	Service string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no monitoring data found for service '%s'. Run health-check first", e.Service)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps a store failure that aborts a command.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err as a PersistenceError for op; nil stays nil.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
