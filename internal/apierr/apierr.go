package apierr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both a missing record and a record owned by
	// someone else; callers must not be able to tell the two apart.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is rejected before any storage interaction.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistence means a write transaction did not commit; no
	// partial rows exist for the attempt.
	ErrPersistence = errors.New("persistence failure")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}
