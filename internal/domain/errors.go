package domain

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// KindNotFound marks a missing row. Callers usually treat it as a state, not a failure.
	KindNotFound Kind = "not_found"
	// KindStorage marks connection, query and DDL failures of the destination store.
	KindStorage Kind = "storage_error"
	// KindCoercion marks a value that cannot be converted to its column type.
	KindCoercion Kind = "coercion_failure"
	// KindConfiguration marks malformed requests or replication settings.
	KindConfiguration Kind = "configuration_error"
)

// Error wraps an error with its kind, the failing operation and a message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func WrapError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

func NewError(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// IsKind reports whether any error in err's chain is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
