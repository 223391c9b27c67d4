// Package apperrors holds the error taxonomy shared by the checkout and booking
// flows. Each kind carries the HTTP status the boundary should answer with and a
// message that is safe to show to clients.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateSession = errors.New("booking already exists for checkout session")
	ErrInvalidAmount    = errors.New("amount must be a positive finite number")
	ErrSessionMismatch  = errors.New("checkout session does not match booking")
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindGateway     Kind = "gateway"
	KindPersistence Kind = "persistence"
	KindConflict    Kind = "conflict"
)

// Error is the structured failure returned by the orchestrator and recorder.
type Error struct {
	Kind       Kind
	StatusCode int
	Public     string
	Fields     []string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Public)
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(public string, fields ...string) *Error {
	return &Error{
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
		Public:     public,
		Fields:     fields,
	}
}

func Gateway(public string, err error) *Error {
	return &Error{
		Kind:       KindGateway,
		StatusCode: http.StatusInternalServerError,
		Public:     public,
		Err:        err,
	}
}

func Persistence(public string, err error) *Error {
	return &Error{
		Kind:       KindPersistence,
		StatusCode: http.StatusInternalServerError,
		Public:     public,
		Err:        err,
	}
}

// Conflict reports a request that contradicts state already held for the same
// checkout session.
func Conflict(public string, err error) *Error {
	return &Error{
		Kind:       KindConflict,
		StatusCode: http.StatusConflict,
		Public:     public,
		Err:        err,
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// StatusCode maps err to an HTTP status; unknown errors are internal.
func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
