// Package session ties the analyzer, the iteration engine and the display
// log together the way an editor uses them: passive re-parses while the
// source is edited, and explicit runs that restart the animation.
package session

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/san-kum/loopviz/internal/analyzer"
	"github.com/san-kum/loopviz/internal/engine"
	"github.com/san-kum/loopviz/internal/highlight"
)

// Marker tags one explicit run. Seq grows with every run, so two runs of
// identical source are still different runs.
type Marker struct {
	Seq uint64
	At  time.Time
}

func (m Marker) IsZero() bool { return m.Seq == 0 }

// Request is a parse started by Begin and finished by Apply.
type Request struct {
	ID      uint64
	Trigger engine.Trigger
	Marker  Marker
	Code    string
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for run markers.
func WithClock(fn func() time.Time) Option {
	return func(s *Session) { s.clock = fn }
}

// WithEngineOptions passes options through to the engine. The step sink is
// always the session's.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *Session) { s.engineOpts = append(s.engineOpts, opts...) }
}

// Session is single-owner: only Parse may be called from another goroutine.
type Session struct {
	parser     analyzer.Parser
	engine     *engine.Engine
	engineOpts []engine.Option
	logger     *slog.Logger
	clock      func() time.Time

	source     string
	program    *analyzer.Program
	highlights highlight.Map
	output     []string

	marker  Marker
	runs    uint64
	issued  uint64
	applied uint64
}

// New builds a session around parser. Parser failures never surface: they
// degrade to an empty program.
func New(parser analyzer.Parser, opts ...Option) *Session {
	s := &Session{
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:   time.Now,
		program: analyzer.Neutral().Program(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = analyzer.NewFallback(parser, s.logger)
	engOpts := append([]engine.Option{engine.WithLogger(s.logger)}, s.engineOpts...)
	engOpts = append(engOpts, engine.WithStepFunc(s.onStep))
	s.engine = engine.New(engOpts...)
	return s
}

func (s *Session) Engine() *engine.Engine { return s.engine }

// Edit re-parses code without starting playback. Highlights are cleared and
// any animation in progress is reset; the display log is kept.
func (s *Session) Edit(ctx context.Context, code string) {
	req := s.Begin(engine.TriggerEdit, code)
	s.Apply(req, s.Parse(ctx, req))
}

// Run clears the display log and highlights, parses code, tags the result
// with a new marker and restarts playback.
func (s *Session) Run(ctx context.Context, code string) Marker {
	req := s.Begin(engine.TriggerRun, code)
	s.Apply(req, s.Parse(ctx, req))
	return req.Marker
}

// Begin starts a parse. For a run it clears the run-scoped state and issues
// the run marker immediately.
func (s *Session) Begin(trigger engine.Trigger, code string) Request {
	s.issued++
	req := Request{ID: s.issued, Trigger: trigger, Code: code}
	if trigger == engine.TriggerRun {
		s.runs++
		req.Marker = Marker{Seq: s.runs, At: s.clock()}
		s.output = nil
		s.highlights = highlight.Map{}
	}
	return req
}

// Parse runs the analyzer for req. It is safe to call from a goroutine.
func (s *Session) Parse(ctx context.Context, req Request) *analyzer.Program {
	resp, _ := s.parser.Parse(ctx, req.Code)
	prog := resp.Program()
	for _, err := range prog.Skipped {
		s.logger.Warn("structure skipped", "error", err)
	}
	return prog
}

// Apply installs a parsed program. Results older than one already applied
// are dropped; Apply reports whether prog was installed.
func (s *Session) Apply(req Request, prog *analyzer.Program) bool {
	if req.ID <= s.applied {
		s.logger.Debug("dropping stale parse", "request", req.ID, "applied", s.applied)
		return false
	}
	s.applied = req.ID
	s.source = req.Code
	s.program = prog

	if req.Trigger == engine.TriggerRun {
		s.marker = req.Marker
		s.output = append(s.output, prog.Output...)
		if prog.Error != "" {
			s.output = append(s.output, prog.Error)
		}
		s.highlights = highlight.Build(prog.IndexOperations)
		s.logger.Info("run started",
			"run", req.Marker.Seq,
			"structures", prog.Registry.Len(),
			"has_loop", prog.Loop.HasLoop)
	} else {
		s.highlights = highlight.Map{}
	}
	s.engine.Load(prog.Registry, prog.Loop, req.Trigger)
	return true
}

// onStep is the engine's step sink.
func (s *Session) onStep(step int) {
	s.output = append(s.output, s.program.Lines(step)...)
}

func (s *Session) Program() *analyzer.Program { return s.program }

func (s *Session) Source() string { return s.source }

// Marker returns the marker of the latest applied run.
func (s *Session) Marker() Marker { return s.marker }

func (s *Session) Highlights() highlight.Map { return s.highlights }

// Output returns a copy of the display log.
func (s *Session) Output() []string {
	return append([]string(nil), s.output...)
}

// Print appends lines to the display log.
func (s *Session) Print(lines ...string) {
	s.output = append(s.output, lines...)
}

func (s *Session) ClearOutput() {
	s.output = nil
}
