package analyzer

import (
	"errors"
	"fmt"
)

var (
	// ErrTooLarge indicates source above the analyzer's size limit.
	ErrTooLarge = errors.New("analyzer: source too large")

	// ErrInvalidContent indicates source that is not valid UTF-8.
	ErrInvalidContent = errors.New("analyzer: invalid content")

	// ErrStatus indicates a non-200 reply from a remote analyzer.
	ErrStatus = errors.New("analyzer: unexpected status")

	// ErrDecode indicates a reply that is not a valid response document.
	ErrDecode = errors.New("analyzer: malformed response")
)

// StructureError describes a structure the conversion had to skip.
type StructureError struct {
	Index   int
	Name    string
	Type    string
	Wrapped error
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("structure %d (%q, %s): %v", e.Index, e.Name, e.Type, e.Wrapped)
}

func (e *StructureError) Unwrap() error {
	return e.Wrapped
}

var (
	errUnknownType = errors.New("unknown structure type")
	errBadData     = errors.New("data does not match type")
)
