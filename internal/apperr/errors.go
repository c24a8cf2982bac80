// Package apperr holds the error taxonomy surfaced by the service layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPrecondition:
		return "precondition"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind onto the status code handlers respond with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindPrecondition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified, caller-facing error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: message}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// BlockingError refuses session completion while answers are not completed.
type BlockingError struct {
	Count       int
	ResponseIDs []string
}

func (e *BlockingError) Error() string {
	return fmt.Sprintf("%d response(s) are not completed yet: %s", e.Count, strings.Join(e.ResponseIDs, ", "))
}

// KindOf classifies any error; unclassified errors are internal.
func KindOf(err error) Kind {
	var blocking *BlockingError
	if errors.As(err, &blocking) {
		return KindPrecondition
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
