package structure

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName indicates a descriptor without a name.
	ErrEmptyName = errors.New("structure: empty name")

	// ErrDuplicateName indicates two descriptors sharing a name in one registry.
	ErrDuplicateName = errors.New("structure: duplicate name")

	// ErrInvalidKind indicates a descriptor kind outside array/set/dictionary/scalar.
	ErrInvalidKind = errors.New("structure: invalid kind")
)

// DescriptorError wraps a validation failure with the offending descriptor.
type DescriptorError struct {
	Index   int
	Name    string
	Wrapped error
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("descriptor %d (%q): %v", e.Index, e.Name, e.Wrapped)
}

func (e *DescriptorError) Unwrap() error {
	return e.Wrapped
}
