package formula

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax indicates a formula that does not parse.
	ErrSyntax = errors.New("formula: syntax error")

	// ErrUndefined indicates an identifier missing from the scope.
	ErrUndefined = errors.New("formula: undefined identifier")

	// ErrType indicates operands the operator cannot combine.
	ErrType = errors.New("formula: unsupported operand types")

	// ErrDivisionByZero indicates / // or % with a zero divisor.
	ErrDivisionByZero = errors.New("formula: division by zero")

	// ErrIndex indicates an index or key outside the indexed value.
	ErrIndex = errors.New("formula: index out of range")

	// ErrTooComplex indicates a formula beyond the length or nesting limits.
	ErrTooComplex = errors.New("formula: expression too complex")
)

// Error wraps a failure with the formula text and byte offset.
type Error struct {
	Formula string
	Pos     int
	Detail  string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v at offset %d in %q", e.Wrapped, e.Pos, e.Formula)
	}
	return fmt.Sprintf("%v: %s at offset %d in %q", e.Wrapped, e.Detail, e.Pos, e.Formula)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}
