package command

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/NordCoder/opsmonitor/internal/domain/monitor"
)

type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindNotFound       Kind = "not_found"
	KindUnknownCommand Kind = "unknown_command"
	KindPersistence    Kind = "persistence_error"
	KindTimeout        Kind = "timeout"
	KindInternal       Kind = "internal_error"
)

// Error is the structured failure payload of a command. Raw transport
// errors are never copied into Message.
type Error struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// AsError maps any command failure onto the structured taxonomy.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var (
		ce *Error
		ve *domain.ValidationError
		nf *domain.NotFoundError
		pe *domain.PersistenceError
	)
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.As(err, &ve):
		e := &Error{Kind: KindValidation, Message: ve.Error()}
		if ve.Field != "" {
			e.Details = map[string]string{"field": ve.Field}
		}
		return e
	case errors.As(err, &nf):
		return &Error{Kind: KindNotFound, Message: nf.Error(), Details: map[string]string{"service": nf.Service}}
	case errors.As(err, &pe):
		return &Error{Kind: KindPersistence, Message: "store unavailable", Details: map[string]string{"op": pe.Op}}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "command timed out"}
	default:
		return &Error{Kind: KindInternal, Message: "internal error"}
	}
}
