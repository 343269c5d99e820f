package service

import (
	"errors"
	"fmt"
)

// Kind classifies business-rule failures. Every mutating ledger operation
// either commits fully or fails with one of these kinds and no state change.
type Kind string

const (
	KindUnauthorized        Kind = "unauthorized"
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindInvalidInput        Kind = "invalid_input"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindInsufficientSupply  Kind = "insufficient_supply"
)

// Error is a non-retryable business-rule failure surfaced directly to the
// caller. Infrastructure failures (db, io) stay plain errors.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func errf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the business kind of err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
