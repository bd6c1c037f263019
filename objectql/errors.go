package objectql

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("objectql: access denied")
	// ErrParse is wrapped by every ParseError.
	ErrParse = errors.New("objectql: invalid query")
	// ErrConfiguration is returned when an operation needs a data source
	// and none was supplied.
	ErrConfiguration = errors.New("objectql: a data source is needed for iterating records")
	// ErrHandleNotFound is wrapped by every HandleError.
	ErrHandleNotFound = errors.New("objectql: handle not found")
)

// ValidationError reports a query that names something outside the sandbox.
type ValidationError struct {
	Name   string // the offending identifier or attribute
	Offset int    // 1-based rune offset in the query text, 0 if unknown
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("access denied to %q", e.Name)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ParseError reports malformed query text.
// Offset is the 1-based rune offset of the problem, 0 when it could not be
// determined. Line and Column are 1-based.
type ParseError struct {
	Text   string
	Msg    string
	Offset int
	Line   int
	Column int
}

func (e *ParseError) Error() string {
	if e.Offset == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s at %d:%d", e.Msg, e.Line, e.Column)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// HandleError is raised by lookup functions when the data source has no
// record of the given kind under the handle.
type HandleError struct {
	Kind   string
	Handle string
}

func (e *HandleError) Error() string {
	return fmt.Sprintf("%s handle not found: %q", e.Kind, e.Handle)
}

func (e *HandleError) Unwrap() error {
	return ErrHandleNotFound
}
