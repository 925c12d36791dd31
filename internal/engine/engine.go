package engine

import (
	"io"
	"log/slog"
	"maps"

	"github.com/san-kum/loopviz/internal/formula"
	"github.com/san-kum/loopviz/internal/structure"
)

// IndexVar is the scope name bound to the current step index.
const IndexVar = "_index"

type Option func(*Engine)

// WithStepFunc installs the step sink.
func WithStepFunc(fn StepFunc) Option {
	return func(e *Engine) { e.sink = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

type compiledDep struct {
	structure.Dependency
	expr *formula.Expr
	err  error
}

type Engine struct {
	reg    *structure.Registry
	loop   structure.Loop
	target *structure.Descriptor
	deps   []compiledDep

	cursor    int
	running   bool
	overrides map[string]structure.Value
	notified  map[int]struct{}

	sink      StepFunc
	observers []Observer
	logger    *slog.Logger
}

// New returns an inert engine. Call Load to give it something to iterate.
func New(opts ...Option) *Engine {
	e := &Engine{
		reg:       structure.Empty(),
		cursor:    -1,
		overrides: make(map[string]structure.Value),
		notified:  make(map[int]struct{}),
		observers: make([]Observer, 0),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) AddObserver(o Observer) { e.observers = append(e.observers, o) }

// Load replaces the registry and loop, always resetting first so no override
// computed against the previous registry survives. A run trigger starts
// playback when the program has a loop; an edit trigger never does.
func (e *Engine) Load(reg *structure.Registry, loop structure.Loop, trigger Trigger) {
	e.Reset()
	if reg == nil {
		reg = structure.Empty()
	}
	e.reg = reg
	e.loop = loop
	e.target = reg.ResolveTarget(loop.Target)

	e.deps = make([]compiledDep, len(loop.Dependencies))
	for i, dep := range loop.Dependencies {
		e.deps[i] = compiledDep{Dependency: dep}
		if dep.HasFormula {
			e.deps[i].expr, e.deps[i].err = formula.Compile(dep.Formula)
		}
	}

	target := ""
	if e.target != nil {
		target = e.target.Name
	}
	e.logger.Debug("program loaded",
		"trigger", trigger.String(),
		"structures", reg.Len(),
		"has_loop", loop.HasLoop,
		"target", target,
		"dependencies", len(loop.Dependencies))

	if trigger == TriggerRun && loop.HasLoop {
		e.Start()
	}
}

// Start begins playback from the first element, clearing overrides. Steps
// already reported this run are not reported again; use Reset for that. On a
// running engine Start changes nothing. It reports false when there is no
// target to iterate.
func (e *Engine) Start() bool {
	if e.target == nil {
		return false
	}
	if !e.running {
		e.cursor = -1
		clear(e.overrides)
	}
	e.running = true
	return true
}

// Pause stops playback, keeping the cursor and overrides.
func (e *Engine) Pause() {
	e.running = false
}

// Resume continues a paused engine without rewinding.
func (e *Engine) Resume() bool {
	if e.target == nil {
		return false
	}
	if e.cursor >= e.target.Len() {
		return false
	}
	e.running = true
	return true
}

// Reset stops playback and rewinds. It also forgets which steps were
// reported, so the next run reports every step again.
func (e *Engine) Reset() {
	e.running = false
	e.cursor = -1
	clear(e.overrides)
	clear(e.notified)
}

func (e *Engine) Running() bool { return e.running }

// HasTarget reports whether the loaded registry resolved a target.
func (e *Engine) HasTarget() bool { return e.target != nil }

func (e *Engine) Registry() *structure.Registry { return e.reg }

func (e *Engine) Loop() structure.Loop { return e.loop }

// Tick advances one element. It does nothing while the engine is not
// running.
func (e *Engine) Tick() StepResult {
	if !e.running || e.target == nil {
		return StepResult{Step: -1}
	}

	next := e.cursor + 1
	if next >= e.target.Len() {
		e.running = false
		clear(e.overrides)
		e.cursor = next
		e.logger.Debug("loop complete", "target", e.target.Name, "steps", next)
		return StepResult{Step: -1, Done: true}
	}

	e.cursor = next
	res := StepResult{Step: next}
	if e.loop.Iterator != "" {
		current, _ := e.target.At(next)
		e.overrides[e.loop.Iterator] = current
		res.Failures = e.evalDependencies(next, current)
	}

	if _, seen := e.notified[next]; !seen {
		e.notified[next] = struct{}{}
		if e.sink != nil {
			e.sink(next)
		}
		if len(e.observers) > 0 {
			snap := e.Snapshot()
			for _, o := range e.observers {
				o.OnStep(next, snap)
			}
		}
	}
	return res
}

func (e *Engine) evalDependencies(step int, current structure.Value) []*DependencyError {
	var failures []*DependencyError
	for i := range e.deps {
		dep := &e.deps[i]
		if !dep.HasFormula {
			e.overrides[dep.Name] = current
			continue
		}

		err := dep.err
		var v structure.Value
		if err == nil {
			v, err = dep.expr.Eval(e.scope(step))
		}
		if err != nil {
			derr := &DependencyError{Step: step, Dependency: dep.Name, Formula: dep.Formula, Wrapped: err}
			failures = append(failures, derr)
			e.logger.Warn("dependency not updated", "step", step, "dependency", dep.Name, "error", err)
			continue
		}
		e.overrides[dep.Name] = v
	}
	return failures
}

// scope layers the step index, then structure data, then overrides; later
// layers win.
func (e *Engine) scope(step int) formula.Scope {
	scope := formula.Scope{IndexVar: float64(step)}
	maps.Copy(scope, e.reg.Scope())
	maps.Copy(scope, e.overrides)
	return scope
}

// Snapshot copies the observable state.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Cursor:    e.cursor,
		Running:   e.running,
		Iterator:  e.loop.Iterator,
		Overrides: maps.Clone(e.overrides),
	}
	if e.target != nil {
		s.Target = e.target.Name
		s.Len = e.target.Len()
	}
	return s
}
