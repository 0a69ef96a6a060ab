// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registrar

import (
	"errors"
	"fmt"
)

// Kind classifies why a conversion failed.
type Kind uint8

const (
	// KindUnknown is for errors that did not come from this package.
	KindUnknown Kind = iota

	// UnsafeDestination means the output exists and overwrite was not requested.
	UnsafeDestination

	// SourceMissingOrTooSmall means the CSV is absent or under the size threshold.
	SourceMissingOrTooSmall

	// MissingRequiredField means a row lacks the record key or the degree status date.
	MissingRequiredField

	// FilesystemError covers directory creation, permission, and write failures.
	FilesystemError

	// MalformedInput means the CSV parser rejected the input.
	MalformedInput
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	UnsafeDestination:       "unsafe_destination",
	SourceMissingOrTooSmall: "source_missing_or_too_small",
	MissingRequiredField:    "missing_required_field",
	FilesystemError:         "filesystem_error",
	MalformedInput:          "malformed_input",
}

// String returns the snake_case name used in logs and the run ledger.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is a conversion failure. Path, Field and Row are set when they
// apply; Row is the 1-based data row (the header is row 0).
type Error struct {
	Kind  Kind
	Path  string
	Field string
	Row   int
	msg   string
	err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.msg
	if e.Row > 0 {
		msg = fmt.Sprintf("row %d: %s", e.Row, msg)
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.err }

func newError(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, a...)}
}

func wrapError(err error, kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, a...), err: err}
}

// AsError unwraps err to an *Error if there is one in the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
