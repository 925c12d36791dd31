package formula

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/san-kum/loopviz/internal/structure"
)

// Scope binds identifiers to values for one evaluation.
type Scope map[string]structure.Value

// Expr is a compiled formula. It is immutable and safe for concurrent use.
type Expr struct {
	src  string
	root node
}

// Compile parses a formula once so it can be evaluated at every loop step.
func Compile(src string) (*Expr, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Expr{src: src, root: root}, nil
}

// Evaluate compiles and evaluates src against scope.
func Evaluate(src string, scope Scope) (structure.Value, error) {
	e, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(scope)
}

func (e *Expr) String() string { return e.src }

// Eval computes the formula. scope is read, never written.
func (e *Expr) Eval(scope Scope) (structure.Value, error) {
	ev := &evaluator{src: e.src, scope: scope}
	return ev.eval(e.root)
}

// Identifiers lists the distinct scope names the formula reads, sorted.
func (e *Expr) Identifiers() []string {
	seen := map[string]struct{}{}
	var walk func(n node)
	walk = func(n node) {
		switch x := n.(type) {
		case *identNode:
			seen[x.name] = struct{}{}
		case *unaryNode:
			walk(x.operand)
		case *notNode:
			walk(x.operand)
		case *binaryNode:
			walk(x.left)
			walk(x.right)
		case *logicNode:
			walk(x.left)
			walk(x.right)
		case *compareNode:
			for _, o := range x.operands {
				walk(o)
			}
		case *indexNode:
			walk(x.value)
			walk(x.index)
		case *callNode:
			for _, a := range x.args {
				walk(a)
			}
		}
	}
	walk(e.root)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type evaluator struct {
	src   string
	scope Scope
}

func (ev *evaluator) fail(n node, sentinel error, format string, args ...any) error {
	return &Error{Formula: ev.src, Pos: n.position(), Detail: fmt.Sprintf(format, args...), Wrapped: sentinel}
}

func (ev *evaluator) eval(n node) (structure.Value, error) {
	switch x := n.(type) {
	case *numberLit:
		return x.val, nil
	case *stringLit:
		return x.val, nil
	case *constLit:
		return x.val, nil
	case *identNode:
		v, ok := ev.scope[x.name]
		if !ok {
			return nil, ev.fail(x, ErrUndefined, "name %q is not defined", x.name)
		}
		return normalize(v), nil
	case *unaryNode:
		return ev.evalUnary(x)
	case *notNode:
		v, err := ev.eval(x.operand)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case *logicNode:
		left, err := ev.eval(x.left)
		if err != nil {
			return nil, err
		}
		if (x.op == tokAnd) != truthy(left) {
			return left, nil
		}
		return ev.eval(x.right)
	case *binaryNode:
		left, err := ev.eval(x.left)
		if err != nil {
			return nil, err
		}
		right, err := ev.eval(x.right)
		if err != nil {
			return nil, err
		}
		return ev.binary(x, left, right)
	case *compareNode:
		return ev.evalCompare(x)
	case *indexNode:
		return ev.evalIndex(x)
	case *callNode:
		args := make([]structure.Value, len(x.args))
		for i, a := range x.args {
			v, err := ev.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		v, err := builtins[x.name](args)
		if err != nil {
			return nil, ev.wrapBuiltin(x, err)
		}
		return v, nil
	}
	return nil, ev.fail(n, ErrSyntax, "unknown expression")
}

func (ev *evaluator) wrapBuiltin(x *callNode, err error) error {
	if be, ok := err.(*builtinError); ok {
		return ev.fail(x, be.sentinel, "%s(): %s", x.name, be.detail)
	}
	return ev.fail(x, ErrType, "%s(): %v", x.name, err)
}

func (ev *evaluator) evalUnary(x *unaryNode) (structure.Value, error) {
	v, err := ev.eval(x.operand)
	if err != nil {
		return nil, err
	}
	f, ok := number(v)
	if !ok {
		return nil, ev.fail(x, ErrType, "bad operand type for unary %s: %s", x.op, typeName(v))
	}
	if x.op == tokMinus {
		return -f, nil
	}
	return f, nil
}

func (ev *evaluator) binary(x *binaryNode, left, right structure.Value) (structure.Value, error) {
	if x.op == tokPlus {
		switch l := left.(type) {
		case string:
			if r, ok := right.(string); ok {
				return l + r, nil
			}
		case []structure.Value:
			if r, ok := right.([]structure.Value); ok {
				out := make([]structure.Value, 0, len(l)+len(r))
				return append(append(out, l...), r...), nil
			}
		}
	}

	a, okA := number(left)
	b, okB := number(right)
	if !okA || !okB {
		return nil, ev.fail(x, ErrType, "%s and %s for %s", typeName(left), typeName(right), x.op)
	}

	switch x.op {
	case tokPlus:
		return a + b, nil
	case tokMinus:
		return a - b, nil
	case tokStar:
		return a * b, nil
	case tokSlash:
		if b == 0 {
			return nil, ev.fail(x, ErrDivisionByZero, "division by zero")
		}
		return a / b, nil
	case tokFloorDiv:
		if b == 0 {
			return nil, ev.fail(x, ErrDivisionByZero, "integer division by zero")
		}
		return math.Floor(a / b), nil
	case tokPercent:
		if b == 0 {
			return nil, ev.fail(x, ErrDivisionByZero, "modulo by zero")
		}
		return pyMod(a, b), nil
	case tokPow:
		if a == 0 && b < 0 {
			return nil, ev.fail(x, ErrDivisionByZero, "zero to a negative power")
		}
		return math.Pow(a, b), nil
	}
	return nil, ev.fail(x, ErrSyntax, "unknown operator %s", x.op)
}

// pyMod returns a remainder with the sign of the divisor.
func pyMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

func (ev *evaluator) evalCompare(x *compareNode) (structure.Value, error) {
	left, err := ev.eval(x.operands[0])
	if err != nil {
		return nil, err
	}
	for i, op := range x.ops {
		right, err := ev.eval(x.operands[i+1])
		if err != nil {
			return nil, err
		}
		ok, err := ev.compare(x, op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func (ev *evaluator) compare(x *compareNode, op tokenType, left, right structure.Value) (bool, error) {
	if op == tokEq || op == tokNeq {
		eq := equal(left, right)
		return eq == (op == tokEq), nil
	}

	var c int
	a, okA := number(left)
	b, okB := number(right)
	switch {
	case okA && okB:
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		case a == b:
			c = 0
		default:
			// NaN compares false with everything.
			return false, nil
		}
	default:
		ls, okL := left.(string)
		rs, okR := right.(string)
		if !okL || !okR {
			return false, ev.fail(x, ErrType, "%s not supported between %s and %s", op, typeName(left), typeName(right))
		}
		switch {
		case ls < rs:
			c = -1
		case ls > rs:
			c = 1
		}
	}

	switch op {
	case tokLess:
		return c < 0, nil
	case tokLessEq:
		return c <= 0, nil
	case tokGreater:
		return c > 0, nil
	}
	return c >= 0, nil
}

func (ev *evaluator) evalIndex(x *indexNode) (structure.Value, error) {
	container, err := ev.eval(x.value)
	if err != nil {
		return nil, err
	}
	key, err := ev.eval(x.index)
	if err != nil {
		return nil, err
	}

	switch c := container.(type) {
	case []structure.Value:
		i, err := ev.position(x, key, len(c))
		if err != nil {
			return nil, err
		}
		return normalize(c[i]), nil
	case string:
		runes := []rune(c)
		i, err := ev.position(x, key, len(runes))
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case map[string]structure.Value:
		k, ok := key.(string)
		if !ok {
			if _, num := number(key); !num || key == nil {
				return nil, ev.fail(x, ErrType, "unhashable key %s", typeName(key))
			}
			k = structure.Format(key)
		}
		v, ok := c[k]
		if !ok {
			return nil, ev.fail(x, ErrIndex, "key %q not found", k)
		}
		return normalize(v), nil
	}
	return nil, ev.fail(x, ErrType, "%s is not subscriptable", typeName(container))
}

// position converts a Python-style index, negative counting from the end.
func (ev *evaluator) position(x *indexNode, key structure.Value, n int) (int, error) {
	if _, isBool := key.(bool); isBool {
		return 0, ev.fail(x, ErrType, "indices must be integers, not bool")
	}
	f, ok := number(key)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, ev.fail(x, ErrType, "indices must be integers, not %s", typeName(key))
	}
	i := int(f)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, ev.fail(x, ErrIndex, "index %s out of range for length %d", strconv.FormatFloat(f, 'f', -1, 64), n)
	}
	return i, nil
}

// normalize maps integer kinds that may arrive from callers onto float64.
func normalize(v structure.Value) structure.Value {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}

// number reports v as a float64; booleans act as 0 and 1.
func number(v structure.Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func truthy(v structure.Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []structure.Value:
		return len(x) > 0
	case map[string]structure.Value:
		return len(x) > 0
	}
	f, ok := number(v)
	return !ok || f != 0
}

func equal(a, b structure.Value) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []structure.Value:
		y, ok := b.([]structure.Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]structure.Value:
		y, ok := b.(map[string]structure.Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

func typeName(v structure.Value) string {
	switch v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case float64, float32, int, int64:
		return "number"
	case string:
		return "str"
	case []structure.Value:
		return "list"
	case map[string]structure.Value:
		return "dict"
	}
	return fmt.Sprintf("%T", v)
}
