// Package bterrors defines the error kinds the backtest execution core
// uses to classify failures across feed, play validation, rule evaluation,
// and exchange simulation.
package bterrors

import (
	"errors"
	"fmt"
)

// Kind is a closed set of error classifications. Callers compare with
// errors.Is against the sentinel Kind values below, never by string
// matching a message.
type Kind string

const (
	// KindDataCoverage marks missing or insufficient bar history for the
	// requested warmup or simulation window.
	KindDataCoverage Kind = "data_coverage"
	// KindSchema marks a malformed or inconsistent Play document.
	KindSchema Kind = "schema"
	// KindNumeric marks a NaN, infinite, or out-of-domain numeric result
	// that cannot be attributed to warmup.
	KindNumeric Kind = "numeric"
	// KindExchange marks a simulated exchange rejection or invariant
	// violation (insufficient margin, liquidation, bad order shape).
	KindExchange Kind = "exchange"
	// KindInvariant marks an internal consistency check failing (e.g. a
	// lookahead guard trip).
	KindInvariant Kind = "invariant"
	// KindFatal marks an unrecoverable condition that must abort the run.
	KindFatal Kind = "fatal"
)

// Error wraps an underlying cause with a Kind, component tag, and message.
type Error struct {
	Kind      Kind
	Component string
	Msg       string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Component, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Component, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, bterrors.New(bterrors.KindExchange, "", "")) style checks.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, component, msg string) *Error {
	return &Error{Kind: kind, Component: component, Msg: msg}
}

// Wrap constructs an *Error of the given kind around a cause, in the
// teacher's fmt.Errorf("...: %w", err) wrapping convention.
func Wrap(kind Kind, component, msg string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Msg: msg, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, and
// reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err's Kind equals kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
