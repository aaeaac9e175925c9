package check

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies why a check could not produce a verdict.
type Kind string

const (
	// KindConfig means the operator input was missing or invalid. No network
	// call was made.
	KindConfig Kind = "configuration"
	// KindTransport covers connection, DNS, TLS and timeout failures.
	KindTransport Kind = "transport"
	// KindAPI covers non-2xx responses and payloads that could not be understood.
	KindAPI Kind = "api"
)

// Error is the single error type surfaced to the operator.
type Error struct {
	Kind Kind
	// Op names the step that failed, e.g. "gitlab compare".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func ConfigError(err error) *Error {
	return &Error{Kind: KindConfig, Op: "config", Err: err}
}

// Classify wraps err in an *Error. An existing *Error anywhere in the chain is
// returned as is. Otherwise network-level failures and context expiry are
// transport errors and everything else is an API error.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if isTransport(err) {
		return NewError(KindTransport, op, err)
	}
	return NewError(KindAPI, op, err)
}

// KindOf reports the Kind of err, or "" when err is nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify("", err).Kind
}

func isTransport(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}
