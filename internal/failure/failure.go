// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package failure classifies errors returned by the external-service adapters.
// Adapters never let raw transport errors escape; they wrap them in an *Error
// carrying one of the Kinds below so the pipeline can apply its per-phase
// retry/skip policy.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies why an external call did not produce a usable value.
type Kind int

const (
	// KindUnknown is reported for errors that carry no classification.
	KindUnknown Kind = iota
	// KindConfigMissing means a required credential is absent.
	KindConfigMissing
	// KindUpstream means the network call or the remote service failed.
	KindUpstream
	// KindEmptyResult means the call succeeded but produced zero usable items.
	KindEmptyResult
	// KindParse means structured output could not be parsed.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindConfigMissing:
		return "config_missing"
	case KindUpstream:
		return "upstream_failure"
	case KindEmptyResult:
		return "empty_result"
	case KindParse:
		return "parse_failure"
	default:
		return "unknown"
	}
}

// Error is a classified adapter failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed (e.g. "gemini generate").
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of the given kind.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// ConfigMissing reports an absent credential or setting.
func ConfigMissing(op, setting string) error {
	return &Error{Kind: KindConfigMissing, Op: op, Err: fmt.Errorf("%s is not configured", setting)}
}

// Upstream wraps a transport or service error.
func Upstream(op string, err error) error {
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// Empty reports a valid response with nothing usable in it.
func Empty(op string) error {
	return &Error{Kind: KindEmptyResult, Op: op}
}

// Parse wraps a structured-output parse error.
func Parse(op string, err error) error {
	return &Error{Kind: KindParse, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsEmpty reports whether err means "no usable items". Parse failures of
// list-producing calls count as empty.
func IsEmpty(err error) bool {
	k := KindOf(err)
	return k == KindEmptyResult || k == KindParse
}
