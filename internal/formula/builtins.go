package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/loopviz/internal/structure"
)

type builtin func(args []structure.Value) (structure.Value, error)

type builtinError struct {
	sentinel error
	detail   string
}

func (e *builtinError) Error() string { return e.detail }

func typeErr(format string, args ...any) error {
	return &builtinError{sentinel: ErrType, detail: fmt.Sprintf(format, args...)}
}

// builtins is the complete set of callable names. Nothing else is reachable
// from a formula.
var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"abs":   builtinAbs,
		"len":   builtinLen,
		"min":   func(args []structure.Value) (structure.Value, error) { return extremum("min", args, -1) },
		"max":   func(args []structure.Value) (structure.Value, error) { return extremum("max", args, 1) },
		"round": builtinRound,
		"int":   builtinInt,
		"float": builtinFloat,
		"sum":   builtinSum,
	}
}

func arity(args []structure.Value, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		if lo == hi {
			return typeErr("takes %d argument(s), got %d", lo, len(args))
		}
		return typeErr("takes %d to %d arguments, got %d", lo, hi, len(args))
	}
	return nil
}

func builtinAbs(args []structure.Value) (structure.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	f, ok := number(args[0])
	if !ok {
		return nil, typeErr("bad operand type %s", typeName(args[0]))
	}
	return math.Abs(f), nil
}

func builtinLen(args []structure.Value) (structure.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case string:
		return float64(len([]rune(x))), nil
	case []structure.Value:
		return float64(len(x)), nil
	case map[string]structure.Value:
		return float64(len(x)), nil
	}
	return nil, typeErr("object of type %s has no len()", typeName(args[0]))
}

// extremum implements min and max over either one list argument or several
// scalar arguments. sign is -1 for min.
func extremum(name string, args []structure.Value, sign int) (structure.Value, error) {
	items := args
	if len(args) == 1 {
		list, ok := args[0].([]structure.Value)
		if !ok {
			return nil, typeErr("%s object is not iterable", typeName(args[0]))
		}
		items = list
	}
	if len(items) == 0 {
		return nil, &builtinError{sentinel: ErrIndex, detail: name + " of an empty sequence"}
	}

	best := normalize(items[0])
	for _, raw := range items[1:] {
		v := normalize(raw)
		c, err := order(best, v)
		if err != nil {
			return nil, err
		}
		if c*sign < 0 {
			best = v
		}
	}
	return best, nil
}

// order compares two numbers or two strings.
func order(a, b structure.Value) (int, error) {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		if !ok {
			return 0, typeErr("cannot compare %s and %s", typeName(a), typeName(b))
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if !okA || !okB {
		return 0, typeErr("cannot compare %s and %s", typeName(a), typeName(b))
	}
	return strings.Compare(sa, sb), nil
}

// builtinRound rounds half to even, like the source language.
func builtinRound(args []structure.Value) (structure.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return nil, err
	}
	f, ok := number(args[0])
	if !ok {
		return nil, typeErr("type %s doesn't define round", typeName(args[0]))
	}
	if len(args) == 1 || args[1] == nil {
		return math.RoundToEven(f), nil
	}
	n, ok := number(args[1])
	if !ok || n != math.Trunc(n) {
		return nil, typeErr("ndigits must be an integer")
	}
	scale := math.Pow(10, n)
	return math.RoundToEven(f*scale) / scale, nil
}

func builtinInt(args []structure.Value) (structure.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	if s, ok := args[0].(string); ok {
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, typeErr("invalid literal for int(): %q", s)
		}
		return float64(i), nil
	}
	f, ok := number(args[0])
	if !ok {
		return nil, typeErr("argument must be a string or a number, not %s", typeName(args[0]))
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, typeErr("cannot convert %s to integer", structure.Format(f))
	}
	return math.Trunc(f), nil
}

func builtinFloat(args []structure.Value) (structure.Value, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	if s, ok := args[0].(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, typeErr("could not convert string to float: %q", s)
		}
		return f, nil
	}
	f, ok := number(args[0])
	if !ok {
		return nil, typeErr("argument must be a string or a number, not %s", typeName(args[0]))
	}
	return f, nil
}

func builtinSum(args []structure.Value) (structure.Value, error) {
	if err := arity(args, 1, 2); err != nil {
		return nil, err
	}
	list, ok := args[0].([]structure.Value)
	if !ok {
		return nil, typeErr("%s object is not iterable", typeName(args[0]))
	}
	total := 0.0
	if len(args) == 2 {
		start, ok := number(args[1])
		if !ok {
			return nil, typeErr("unsupported start %s", typeName(args[1]))
		}
		total = start
	}
	for _, v := range list {
		f, ok := number(v)
		if !ok {
			return nil, typeErr("unsupported operand %s", typeName(v))
		}
		total += f
	}
	return total, nil
}
