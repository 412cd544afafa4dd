package services

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindUnavailable
	KindExternal
)

// Error is a service failure the API layer can map to a status code.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func notFoundError(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func forbiddenError(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func unauthorizedError(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func unavailableError(msg string) error {
	return &Error{Kind: KindUnavailable, Message: msg}
}

// externalError wraps a store or network failure. Message is what the caller
// sees; err is only logged.
func externalError(msg string, err error) error {
	return &Error{Kind: KindExternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindExternal for foreign errors.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindExternal
}

// MessageOf returns the message that is safe to show to the caller.
func MessageOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return "something went wrong, please try again"
}
