package eval

import (
	"errors"
	"fmt"
)

// Runtime error kinds. Every error an evaluation produces wraps one of
// these, so callers can tell a missing key from a type mismatch.
var (
	ErrName         = errors.New("name error")
	ErrType         = errors.New("type error")
	ErrAttribute    = errors.New("attribute error")
	ErrKey          = errors.New("key error")
	ErrIndex        = errors.New("index error")
	ErrValue        = errors.New("value error")
	ErrZeroDivision = errors.New("division by zero")
	ErrOverflow     = errors.New("overflow")
	ErrLimit        = errors.New("resource limit exceeded")
	ErrPanic        = errors.New("function panicked")
)

func errorf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
