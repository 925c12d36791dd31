package engine

import (
	"errors"
	"fmt"
)

// ErrNoTarget indicates an engine with no structure to iterate over.
var ErrNoTarget = errors.New("engine: no target structure")

// DependencyError reports a dependency whose formula failed at one step. The
// dependency keeps its previous value.
type DependencyError struct {
	Step       int
	Dependency string
	Formula    string
	Wrapped    error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %d: dependency %s = %s: %v", e.Step, e.Dependency, e.Formula, e.Wrapped)
}

func (e *DependencyError) Unwrap() error {
	return e.Wrapped
}
