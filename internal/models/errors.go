package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound marks an operation against an id the server no longer knows.
// Callers treat it as a no-op, not a failure.
var ErrNotFound = errors.New("not found")

// FieldErrors maps an input field name to the validation messages the server
// reported for it.
type FieldErrors map[string][]string

// ValidationError is a server-side, field-scoped validation failure. It is
// always recoverable: the caller renders the messages inline and may retry.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, f := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.Fields[f], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// TransportError wraps a network or server failure. Recoverable; the last
// known good state stays visible and the user may retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AsValidation returns the field errors when err is a ValidationError.
func AsValidation(err error) (FieldErrors, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields, true
	}
	return nil, false
}
