package query

import (
	"errors"
	"fmt"
)

// Kind classifies listing errors. The HTTP layer maps kinds to status codes.
type Kind string

const (
	KindInvalidFilter    Kind = "InvalidFilter"
	KindInvalidOrder     Kind = "InvalidOrder"
	KindInvalidCountMode Kind = "InvalidCountMode"
	KindInvalidColumn    Kind = "InvalidColumn"
	KindInvalidParameter Kind = "InvalidParameter"
	KindForbiddenScope   Kind = "ForbiddenScope"
	KindNotFound         Kind = "NotFound"
	KindStoreFailure     Kind = "StoreFailure"
)

// Error carries a stable Kind and a message suitable for clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidFilter    = &Error{Kind: KindInvalidFilter}
	ErrInvalidOrder     = &Error{Kind: KindInvalidOrder}
	ErrInvalidCountMode = &Error{Kind: KindInvalidCountMode}
	ErrInvalidColumn    = &Error{Kind: KindInvalidColumn}
	ErrInvalidParameter = &Error{Kind: KindInvalidParameter}
	ErrForbiddenScope   = &Error{Kind: KindForbiddenScope}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrStoreFailure     = &Error{Kind: KindStoreFailure}
)

// Errorf returns an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StoreError wraps err as a StoreFailure unless it already is an *Error. The
// cause stays reachable through errors.Is, e.g. for context.Canceled.
func StoreError(err error) error {
	if err == nil {
		return nil
	}
	var qe *Error
	if errors.As(err, &qe) {
		return err
	}
	return &Error{Kind: KindStoreFailure, Message: "database query failed", Err: err}
}

// KindOf returns the Kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}

// IsClientError reports whether err was caused by invalid request input.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindInvalidFilter, KindInvalidOrder, KindInvalidCountMode, KindInvalidColumn, KindInvalidParameter:
		return true
	}
	return false
}
