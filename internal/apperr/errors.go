// Package apperr classifies failures coming out of providers and services
// so callers can decide between retrying, falling back and reporting.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindNetwork    Kind = "network"
	KindRateLimit  Kind = "rate_limit"
	KindServer     Kind = "server"
	KindClient     Kind = "client"
	KindValidation Kind = "validation"
	KindUserInput  Kind = "user_input"
	KindNotFound   Kind = "not_found"
	KindUnknown    Kind = "unknown"
)

type Error struct {
	Kind       Kind
	Op         string
	Status     int
	Attempts   int
	// RetryAfter is the wait the upstream asked for, zero when unknown.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an Error whose cause is formatted like fmt.Errorf.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// KindForStatus maps an HTTP status to the kind used for retry decisions.
func KindForStatus(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimit
	case status == 404:
		return KindNotFound
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	}
	return KindUnknown
}
