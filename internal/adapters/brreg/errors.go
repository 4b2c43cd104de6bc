package brreg

import (
	"errors"
	"fmt"
)

// ErrRegistry is the root of every error returned by the client.
var ErrRegistry = errors.New("registry")

type Category string

const (
	CategoryTimeout     Category = "timeout"
	CategoryBadStatus   Category = "bad_status"
	CategoryBadData     Category = "bad_data"
	CategoryRateLimited Category = "rate_limited"
	CategoryNotFound    Category = "not_found"
	CategoryTransport   Category = "transport"
)

// Error is a categorised registry failure.
type Error struct {
	Category  Category
	Op        string
	Status    int
	Retryable bool
	Err       error
}

func newError(cat Category, op string, status int, err error) *Error {
	retryable := cat == CategoryTimeout || cat == CategoryRateLimited || cat == CategoryTransport ||
		(cat == CategoryBadStatus && status >= 500)
	return &Error{Category: cat, Op: op, Status: status, Retryable: retryable, Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("registry %s [%s]", e.Op, e.Category)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrRegistry }

// CategoryOf returns the category of a registry error, or "" for other errors.
func CategoryOf(err error) Category {
	var re *Error
	if errors.As(err, &re) {
		return re.Category
	}
	return ""
}

func IsRetryable(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Retryable
}
