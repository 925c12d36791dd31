package engine

import "github.com/san-kum/loopviz/internal/structure"

// Trigger says why a new program was loaded.
type Trigger int

const (
	// TriggerEdit is a passive re-parse while the source is edited. It never
	// starts playback.
	TriggerEdit Trigger = iota
	// TriggerRun is an explicit run. It starts playback when a loop exists.
	TriggerRun
)

func (t Trigger) String() string {
	if t == TriggerRun {
		return "run"
	}
	return "edit"
}

// StepFunc receives each step index at most once per run.
type StepFunc func(step int)

// Observer is notified alongside the step sink, under the same at-most-once
// guard.
type Observer interface {
	OnStep(step int, snap Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(step int, snap Snapshot)

func (f ObserverFunc) OnStep(step int, snap Snapshot) { f(step, snap) }

// Snapshot is a read-only copy of the engine state.
type Snapshot struct {
	Cursor    int
	Running   bool
	Target    string
	Len       int
	Iterator  string
	Overrides map[string]structure.Value
}

// Current returns the index of the element being visited, or -1 before the
// first step and after completion.
func (s Snapshot) Current() int {
	if s.Cursor < 0 || s.Cursor >= s.Len {
		return -1
	}
	return s.Cursor
}

// Override returns the computed value of name at the current step.
func (s Snapshot) Override(name string) (structure.Value, bool) {
	v, ok := s.Overrides[name]
	return v, ok
}

// StepResult describes one call to Tick.
type StepResult struct {
	// Step is the index visited, or -1 when nothing advanced.
	Step int
	// Done is set on the tick that completes the loop.
	Done bool
	// Failures lists dependencies whose formulas failed at this step.
	Failures []*DependencyError
}
