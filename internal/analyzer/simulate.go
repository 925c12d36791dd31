package analyzer

import (
	"errors"
	"maps"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/san-kum/loopviz/internal/formula"
	"github.com/san-kum/loopviz/internal/structure"
)

// simulate replays the loop body once per target element to record what
// each step prints. Dependencies are computed the same way the engine
// computes them, so the printed values match the animation.
func (w *walker) simulate() {
	if w.iterator == "" || len(w.plan) == 0 {
		return
	}
	hasPrint := false
	for _, st := range w.plan {
		if st.print != nil {
			hasPrint = true
			break
		}
	}
	if !hasPrint {
		return
	}

	reg := w.registry()
	target := reg.ResolveTarget(w.target)
	if target == nil {
		return
	}

	exprs := make([]*formula.Expr, len(w.deps))
	for i, d := range w.deps {
		// A formula that does not compile leaves its dependency unchanged,
		// exactly as during playback.
		exprs[i], _ = formula.Compile(*d.Formula)
	}

	base := reg.Scope()
	overrides := make(map[string]structure.Value)
	w.iterations = make(map[string][]string)
	for step := 0; step < target.Len(); step++ {
		current, _ := target.At(step)
		overrides[w.iterator] = current

		var lines []string
		for _, st := range w.plan {
			scope := formula.Scope{"_index": float64(step)}
			maps.Copy(scope, base)
			maps.Copy(scope, overrides)

			if st.print != nil {
				lines = append(lines, w.printLine(st.print, scope))
				continue
			}
			if e := exprs[st.dep]; e != nil {
				if v, err := e.Eval(scope); err == nil {
					overrides[w.deps[st.dep].Name] = v
				}
			}
		}
		if len(lines) > 0 {
			w.iterations[stepKey(step)] = lines
		}
	}
}

// printLine renders one print(...) call. Failures print the error the
// source language would raise.
func (w *walker) printLine(call *sitter.Node, scope formula.Scope) string {
	sep := " "
	var parts []string
	for _, arg := range named(call.ChildByFieldName("arguments")) {
		if arg.Type() == "keyword_argument" {
			name := arg.ChildByFieldName("name")
			if name != nil && w.text(name) == "sep" {
				if v, err := w.eval(arg.ChildByFieldName("value"), scope); err == nil {
					if s, ok := v.(string); ok {
						sep = s
					}
				}
			}
			continue
		}

		v, err := w.eval(arg, scope)
		if err != nil {
			return errorLine(err)
		}
		parts = append(parts, pyStr(v))
	}
	return strings.Join(parts, sep)
}

func errorLine(err error) string {
	var ne *NameError
	switch {
	case errors.As(err, &ne):
		return "NameError: " + ne.Error()
	case errors.Is(err, formula.ErrDivisionByZero):
		return "ZeroDivisionError: division by zero"
	case errors.Is(err, formula.ErrIndex):
		return "IndexError: " + err.Error()
	case errors.Is(err, formula.ErrType):
		return "TypeError: " + err.Error()
	}
	return "Error: " + err.Error()
}

// indexOperations collects subscripts with a constant or top-level-variable
// index, grouped per structure in first-seen order.
func (w *walker) indexOperations() []IndexOperation {
	if w.root == nil {
		return nil
	}
	scope := w.scope()
	var ops []IndexOperation
	pos := map[string]int{}
	seen := map[string]map[int]bool{}

	walk(w.root, func(n *sitter.Node) bool {
		if n.Type() != "subscript" {
			return true
		}
		value := n.ChildByFieldName("value")
		index := n.ChildByFieldName("subscript")
		if value == nil || index == nil || value.Type() != "identifier" {
			return true
		}
		name := w.text(value)
		s, ok := w.symbols[name]
		if !ok || s.kind == structure.KindScalar {
			return true
		}
		if index.Type() != "identifier" && index.Type() != "integer" &&
			index.Type() != "unary_operator" && index.Type() != "string" {
			return true
		}
		key, err := w.eval(index, scope)
		if err != nil {
			return true
		}

		var i int
		switch s.kind {
		case structure.KindDictionary:
			i = -1
			k := structure.Format(key)
			for j, e := range s.entries {
				if e.Key == k {
					i = j
					break
				}
			}
			if i < 0 {
				return true
			}
		default:
			if i, ok = position(key, len(s.elems)); !ok {
				return true
			}
		}

		j, known := pos[name]
		if !known {
			j = len(ops)
			pos[name] = j
			seen[name] = map[int]bool{}
			ops = append(ops, IndexOperation{VarName: name})
		}
		if !seen[name][i] {
			seen[name][i] = true
			ops[j].Indices = append(ops[j].Indices, i)
		}
		return true
	})
	return ops
}
