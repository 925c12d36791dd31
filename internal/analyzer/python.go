package analyzer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/san-kum/loopviz/internal/structure"
)

// DefaultMaxSize is the largest source the analyzer accepts.
const DefaultMaxSize = 1 << 20

// IteratorPlaceholder is the value shown for a loop variable that no
// top-level assignment defines.
const IteratorPlaceholder = "?"

// Parser turns source text into a Response.
type Parser interface {
	Parse(ctx context.Context, code string) (*Response, error)
}

type Option func(*Analyzer)

func WithMaxSize(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// Analyzer reads Python source with tree-sitter and describes its top-level
// data structures and its loop. It evaluates literals and simple arithmetic
// only; no program code is executed.
//
// Analyzer is safe for concurrent use; every call builds its own parser.
type Analyzer struct {
	maxSize int
	logger  *slog.Logger
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		maxSize: DefaultMaxSize,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Parse analyzes code. Empty code yields the neutral result and a syntax
// error yields a response carrying only the error message; neither is an
// error return.
func (a *Analyzer) Parse(ctx context.Context, code string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if strings.TrimSpace(code) == "" {
		return Neutral(), nil
	}
	if len(code) > a.maxSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrTooLarge, len(code), a.maxSize)
	}
	if !utf8.ValidString(code) {
		return nil, fmt.Errorf("%w: source is not valid UTF-8", ErrInvalidContent)
	}

	src := []byte(code)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return Neutral(), nil
	}
	if root.HasError() {
		msg := syntaxError(root)
		a.logger.Debug("source has syntax errors", "error", msg)
		return &Response{Structures: []Structure{}, Error: msg}, nil
	}

	w := newWalker(src, a.logger)
	w.module(root)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after analysis: %w", err)
	}
	return w.response(), nil
}

// syntaxError reports the line of the first ERROR or missing node.
func syntaxError(root *sitter.Node) string {
	var bad *sitter.Node
	walk(root, func(n *sitter.Node) bool {
		if bad != nil {
			return false
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			bad = n
			return false
		}
		return true
	})
	if bad == nil {
		return "Syntax Error: invalid syntax"
	}
	return fmt.Sprintf("Syntax Error: invalid syntax (line %d)", bad.StartPoint().Row+1)
}

// walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

// named returns the named children of n, without comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

// symbol is the analyzer's record of one top-level variable.
type symbol struct {
	kind    structure.Kind
	elems   []structure.Value
	entries []structure.Entry
	scalar  structure.Value
}

func (s *symbol) descriptor(name string) structure.Descriptor {
	return structure.Descriptor{Name: name, Kind: s.kind, Elements: s.elems, Entries: s.entries, Scalar: s.scalar}
}

// loopStep is one statement of the loop body that matters at run time.
type loopStep struct {
	dep   int
	print *sitter.Node
}

type walker struct {
	src    []byte
	root   *sitter.Node
	logger *slog.Logger

	symbols map[string]*symbol
	order   []string

	hasLoop  bool
	target   string
	iterator string
	deps     []Dependency
	plan     []loopStep

	output     []string
	iterations map[string][]string
}

func newWalker(src []byte, logger *slog.Logger) *walker {
	return &walker{
		src:     src,
		logger:  logger,
		symbols: make(map[string]*symbol),
	}
}

func (w *walker) text(n *sitter.Node) string { return n.Content(w.src) }

func (w *walker) set(name string, s *symbol) {
	if _, ok := w.symbols[name]; !ok {
		w.order = append(w.order, name)
	}
	w.symbols[name] = s
}

func (w *walker) module(root *sitter.Node) {
	w.root = root
	for _, stmt := range named(root) {
		switch stmt.Type() {
		case "expression_statement":
			w.statement(stmt)
		case "for_statement":
			w.forLoop(stmt)
		case "while_statement":
			w.hasLoop = true
		}
	}

	if w.iterator != "" {
		if _, ok := w.symbols[w.iterator]; !ok {
			w.set(w.iterator, &symbol{kind: structure.KindScalar, scalar: IteratorPlaceholder})
		}
	}
	w.simulate()
}

func (w *walker) statement(stmt *sitter.Node) {
	for _, expr := range named(stmt) {
		switch expr.Type() {
		case "assignment":
			w.assign(expr)
		case "augmented_assignment":
			w.augment(expr)
		case "call":
			if w.isPrint(expr) {
				w.output = append(w.output, w.printLine(expr, w.scope()))
			}
		}
	}
}

func (w *walker) assign(n *sitter.Node) {
	targets := []*sitter.Node{n.ChildByFieldName("left")}
	right := n.ChildByFieldName("right")
	for right != nil && right.Type() == "assignment" {
		targets = append(targets, right.ChildByFieldName("left"))
		right = right.ChildByFieldName("right")
	}
	if right == nil {
		// Annotation without a value: x: int
		return
	}

	for _, left := range targets {
		if left == nil {
			continue
		}
		switch left.Type() {
		case "identifier":
			w.bind(left, right)
		case "pattern_list", "tuple_pattern":
			lhs, rhs := named(left), named(right)
			if (right.Type() != "expression_list" && right.Type() != "tuple") || len(lhs) != len(rhs) {
				w.logger.Debug("skipping unpacking assignment", "line", left.StartPoint().Row+1)
				continue
			}
			// Evaluate every right side before binding, like the source
			// language: a, b = b, a swaps.
			values := make([]structure.Value, len(rhs))
			scope := w.scope()
			ok := true
			for i, r := range rhs {
				v, err := w.eval(r, scope)
				if err != nil {
					ok = false
					break
				}
				values[i] = v
			}
			if !ok {
				continue
			}
			for i, l := range lhs {
				if l.Type() == "identifier" {
					w.store(w.text(l), values[i])
				}
			}
		case "subscript":
			w.assignElement(left, right)
		}
	}
}

func (w *walker) bind(left, right *sitter.Node) {
	name := w.text(left)
	if right.Type() == "identifier" {
		if s, ok := w.symbols[w.text(right)]; ok {
			d := s.descriptor(name)
			c := d.Clone()
			w.set(name, &symbol{kind: c.Kind, elems: c.Elements, entries: c.Entries, scalar: c.Scalar})
			return
		}
	}
	v, err := w.eval(right, w.scope())
	if err != nil {
		w.logger.Debug("evaluation error", "name", name, "error", err)
		return
	}
	w.store(name, v)
}

// store records v under name when it is a value the visualizer can show.
func (w *walker) store(name string, v structure.Value) {
	if s, ok := symbolOf(v); ok {
		w.set(name, s)
	}
}

// assignElement applies arr[i] = v and d[k] = v to known structures.
func (w *walker) assignElement(left, right *sitter.Node) {
	value := left.ChildByFieldName("value")
	index := left.ChildByFieldName("subscript")
	if value == nil || index == nil || value.Type() != "identifier" {
		return
	}
	s, ok := w.symbols[w.text(value)]
	if !ok {
		return
	}
	scope := w.scope()
	v, err := w.eval(right, scope)
	if err != nil {
		return
	}
	key, err := w.eval(index, scope)
	if err != nil {
		return
	}
	v = plain(v)

	switch s.kind {
	case structure.KindArray:
		if i, ok := position(key, len(s.elems)); ok {
			s.elems[i] = v
		}
	case structure.KindDictionary:
		k := structure.Format(key)
		for i := range s.entries {
			if s.entries[i].Key == k {
				s.entries[i].Value = v
				return
			}
		}
		s.entries = append(s.entries, structure.Entry{Key: k, Value: v})
	}
}

// augment applies a top-level x op= e.
func (w *walker) augment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return
	}
	name := w.text(left)
	op := augmentedOperator(n)
	if op == "" {
		return
	}
	scope := w.scope()
	rhs, err := w.eval(n.ChildByFieldName("right"), scope)
	if err != nil {
		w.logger.Debug("evaluation error", "name", name, "error", err)
		return
	}
	scope[rhsVar] = toScope(rhs)
	v, err := evalFormula(name+" "+op+" "+rhsVar, scope)
	if err != nil {
		w.logger.Debug("evaluation error", "name", name, "error", err)
		return
	}
	if s, ok := w.symbols[name]; ok && s.kind == structure.KindSet {
		if list, ok := v.([]structure.Value); ok {
			v = setLit(dedupe(list))
		}
	}
	w.store(name, v)
}

// rhsVar holds an already evaluated right-hand side. It cannot collide with a
// source identifier.
const rhsVar = "__rhs__"

func augmentedOperator(n *sitter.Node) string {
	op := n.ChildByFieldName("operator")
	if op == nil {
		return ""
	}
	t := strings.TrimSuffix(op.Type(), "=")
	switch t {
	case "+", "-", "*", "/", "//", "%", "**":
		return t
	}
	return ""
}

func (w *walker) forLoop(n *sitter.Node) {
	w.hasLoop = true
	w.iterator, w.target = "", ""
	w.deps, w.plan = nil, nil

	if left := n.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
		w.iterator = w.text(left)
	}
	if right := n.ChildByFieldName("right"); right != nil && right.Type() == "identifier" {
		w.target = w.text(right)
	}
	if w.iterator == "" {
		return
	}
	w.collectDependencies(n.ChildByFieldName("body"))
}

// collectDependencies records, in statement order, assignments in the loop
// body that read the iterator or an earlier dependency, every augmented
// assignment, and print calls.
func (w *walker) collectDependencies(body *sitter.Node) {
	live := map[string]bool{w.iterator: true}
	for _, stmt := range named(body) {
		if stmt.Type() != "expression_statement" {
			continue
		}
		for _, expr := range named(stmt) {
			switch expr.Type() {
			case "assignment":
				left, right := expr.ChildByFieldName("left"), expr.ChildByFieldName("right")
				if left == nil || right == nil || left.Type() != "identifier" || right.Type() == "assignment" {
					continue
				}
				if !w.reads(right, live) {
					continue
				}
				f := w.text(right)
				w.addDependency(w.text(left), f, live)
			case "augmented_assignment":
				left, right := expr.ChildByFieldName("left"), expr.ChildByFieldName("right")
				op := augmentedOperator(expr)
				if left == nil || right == nil || left.Type() != "identifier" || op == "" {
					continue
				}
				name := w.text(left)
				w.addDependency(name, name+" "+op+" ("+w.text(right)+")", live)
			case "call":
				if w.isPrint(expr) {
					w.plan = append(w.plan, loopStep{dep: -1, print: expr})
				}
			}
		}
	}
}

func (w *walker) addDependency(name, f string, live map[string]bool) {
	w.deps = append(w.deps, Dependency{Name: name, Formula: &f})
	w.plan = append(w.plan, loopStep{dep: len(w.deps) - 1})
	live[name] = true
}

// reads reports whether n mentions any identifier in names.
func (w *walker) reads(n *sitter.Node, names map[string]bool) bool {
	found := false
	walk(n, func(c *sitter.Node) bool {
		if found {
			return false
		}
		if c.Type() == "identifier" && names[w.text(c)] {
			found = true
		}
		return true
	})
	return found
}

func (w *walker) isPrint(call *sitter.Node) bool {
	fn := call.ChildByFieldName("function")
	return fn != nil && fn.Type() == "identifier" && w.text(fn) == "print"
}

func (w *walker) registry() *structure.Registry {
	descs := make([]structure.Descriptor, 0, len(w.order))
	for _, name := range w.order {
		descs = append(descs, w.symbols[name].descriptor(name))
	}
	reg, err := structure.NewRegistry(descs...)
	if err != nil {
		w.logger.Debug("registry rejected", "error", err)
		return structure.Empty()
	}
	return reg
}

func (w *walker) response() *Response {
	r := &Response{
		Structures: make([]Structure, 0, len(w.order)),
		HasLoop:    w.hasLoop,
		Target:     w.target,
		Iterator:   w.iterator,
		Output:     w.output,
	}
	for _, name := range w.order {
		s := w.symbols[name]
		st := Structure{Name: name}
		switch s.kind {
		case structure.KindArray, structure.KindSet:
			st.Type = string(s.kind)
			st.Data = append([]structure.Value{}, s.elems...)
		case structure.KindDictionary:
			st.Type = TypeDictionary
			st.Data = append([]structure.Entry{}, s.entries...)
		default:
			st.Type = TypeVariable
			st.Data = s.scalar
		}
		r.Structures = append(r.Structures, st)
	}
	if len(w.deps) > 0 {
		r.LoopDependencies = w.deps
	}
	r.IndexOperations = w.indexOperations()
	if len(w.iterations) > 0 {
		r.IterationOutputs = w.iterations
	}
	return r
}
