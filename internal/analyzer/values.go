package analyzer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/san-kum/loopviz/internal/formula"
	"github.com/san-kum/loopviz/internal/structure"
)

// maxRange caps range() so a literal like range(10**9) cannot exhaust memory.
const maxRange = 10000

// setLit and dictLit keep the container kind through evaluation; formulas
// see them as a list and a map.
type (
	setLit  []structure.Value
	dictLit []structure.Entry
)

// NameError reports an identifier with no top-level definition.
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("name '%s' is not defined", e.Name)
}

var errUnsupported = errors.New("unsupported expression")

// scope exposes every known symbol to formulas.
func (w *walker) scope() formula.Scope {
	scope := make(formula.Scope, len(w.symbols))
	for name, s := range w.symbols {
		d := s.descriptor(name)
		scope[name] = d.ScopeValue()
	}
	return scope
}

// eval evaluates an expression node. Container literals are built here;
// everything else is handed to the formula evaluator as source text.
func (w *walker) eval(n *sitter.Node, scope formula.Scope) (structure.Value, error) {
	if n == nil {
		return nil, errUnsupported
	}
	switch n.Type() {
	case "list", "tuple", "expression_list":
		items := named(n)
		out := make([]structure.Value, len(items))
		for i, item := range items {
			v, err := w.eval(item, scope)
			if err != nil {
				return nil, err
			}
			out[i] = plain(v)
		}
		return out, nil
	case "set":
		items := named(n)
		out := make([]structure.Value, 0, len(items))
		for _, item := range items {
			v, err := w.eval(item, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, plain(v))
		}
		return setLit(dedupe(out)), nil
	case "dictionary":
		var out dictLit
		for _, pair := range named(n) {
			if pair.Type() != "pair" {
				return nil, errUnsupported
			}
			k, err := w.eval(pair.ChildByFieldName("key"), scope)
			if err != nil {
				return nil, err
			}
			v, err := w.eval(pair.ChildByFieldName("value"), scope)
			if err != nil {
				return nil, err
			}
			out = out.put(structure.Format(plain(k)), plain(v))
		}
		if out == nil {
			out = dictLit{}
		}
		return out, nil
	case "parenthesized_expression":
		items := named(n)
		if len(items) != 1 {
			return nil, errUnsupported
		}
		return w.eval(items[0], scope)
	case "string", "concatenated_string":
		return w.stringValue(n, scope)
	case "identifier":
		name := w.text(n)
		v, ok := scope[name]
		if !ok {
			return nil, &NameError{Name: name}
		}
		if s, ok := w.symbols[name]; ok {
			switch s.kind {
			case structure.KindSet:
				return setLit(append([]structure.Value{}, s.elems...)), nil
			case structure.KindDictionary:
				return dictLit(append([]structure.Entry{}, s.entries...)), nil
			}
		}
		return v, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "none":
		return nil, nil
	case "call":
		if v, ok, err := w.constructor(n, scope); ok {
			return v, err
		}
	}

	v, err := evalFormula(w.text(n), scope)
	if err != nil {
		if errors.Is(err, formula.ErrUndefined) {
			if name := w.undefined(n, scope); name != "" {
				return nil, &NameError{Name: name}
			}
		}
		return nil, err
	}
	return v, nil
}

// constructor handles the calls that build containers: range, list, tuple,
// sorted, set and dict.
func (w *walker) constructor(n *sitter.Node, scope formula.Scope) (structure.Value, bool, error) {
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return nil, false, nil
	}
	args := named(n.ChildByFieldName("arguments"))
	for _, a := range args {
		if a.Type() == "keyword_argument" {
			return nil, false, nil
		}
	}

	name := w.text(fn)
	switch name {
	case "range":
		bounds := make([]float64, len(args))
		for i, a := range args {
			v, err := w.eval(a, scope)
			if err != nil {
				return nil, true, err
			}
			f, ok := v.(float64)
			if !ok || f != math.Trunc(f) {
				return nil, true, fmt.Errorf("%w: range() needs integers", errUnsupported)
			}
			bounds[i] = f
		}
		v, err := rangeOf(bounds)
		return v, true, err
	case "list", "tuple", "sorted", "set":
		var items []structure.Value
		switch len(args) {
		case 0:
		case 1:
			v, err := w.eval(args[0], scope)
			if err != nil {
				return nil, true, err
			}
			items = elements(v)
			if items == nil {
				return nil, true, fmt.Errorf("%w: %s() of a non-iterable", errUnsupported, name)
			}
		default:
			return nil, false, nil
		}
		switch name {
		case "set":
			return setLit(dedupe(items)), true, nil
		case "sorted":
			sorted, err := sortValues(items)
			return sorted, true, err
		}
		return append([]structure.Value{}, items...), true, nil
	case "dict":
		if len(args) == 0 {
			return dictLit{}, true, nil
		}
	}
	return nil, false, nil
}

func rangeOf(b []float64) (structure.Value, error) {
	start, stop, step := 0.0, 0.0, 1.0
	switch len(b) {
	case 1:
		stop = b[0]
	case 2:
		start, stop = b[0], b[1]
	case 3:
		start, stop, step = b[0], b[1], b[2]
	default:
		return nil, fmt.Errorf("%w: range() takes 1 to 3 arguments", errUnsupported)
	}
	if step == 0 {
		return nil, fmt.Errorf("%w: range() step must not be zero", errUnsupported)
	}
	n := math.Ceil((stop - start) / step)
	if n < 0 {
		n = 0
	}
	if n > maxRange {
		return nil, fmt.Errorf("%w: range() longer than %d", errUnsupported, maxRange)
	}
	out := make([]structure.Value, int(n))
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out, nil
}

// elements returns the items a loop over v would visit.
func elements(v structure.Value) []structure.Value {
	switch x := v.(type) {
	case []structure.Value:
		return x
	case setLit:
		return x
	case dictLit:
		out := make([]structure.Value, len(x))
		for i, e := range x {
			out[i] = e.Key
		}
		return out
	case string:
		out := make([]structure.Value, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out
	}
	return nil
}

func sortValues(items []structure.Value) ([]structure.Value, error) {
	out := append([]structure.Value{}, items...)
	var err error
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := out[i].(float64)
		b, bok := out[j].(float64)
		if aok && bok {
			return a < b
		}
		as, aok := out[i].(string)
		bs, bok := out[j].(string)
		if aok && bok {
			return as < bs
		}
		err = fmt.Errorf("%w: sorted() of mixed types", errUnsupported)
		return false
	})
	return out, err
}

func (d dictLit) put(key string, v structure.Value) dictLit {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = v
			return d
		}
	}
	return append(d, structure.Entry{Key: key, Value: v})
}

// dedupe keeps the first occurrence of each value.
func dedupe(items []structure.Value) []structure.Value {
	seen := make(map[string]bool, len(items))
	out := make([]structure.Value, 0, len(items))
	for _, v := range items {
		k := fmt.Sprintf("%T:%v", v, v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// plain converts kind-tagged containers into the shapes stored inside other
// containers.
func plain(v structure.Value) structure.Value {
	switch x := v.(type) {
	case setLit:
		return []structure.Value(x)
	case dictLit:
		return toScope(x)
	}
	return v
}

// toScope converts a value into what a formula sees.
func toScope(v structure.Value) structure.Value {
	switch x := v.(type) {
	case setLit:
		return []structure.Value(x)
	case dictLit:
		m := make(map[string]structure.Value, len(x))
		for _, e := range x {
			m[e.Key] = e.Value
		}
		return m
	}
	return v
}

// symbolOf classifies a value. None and unsupported values are not
// structures.
func symbolOf(v structure.Value) (*symbol, bool) {
	switch x := v.(type) {
	case setLit:
		return &symbol{kind: structure.KindSet, elems: []structure.Value(x)}, true
	case dictLit:
		return &symbol{kind: structure.KindDictionary, entries: []structure.Entry(x)}, true
	case []structure.Value:
		return &symbol{kind: structure.KindArray, elems: x}, true
	case map[string]structure.Value:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]structure.Entry, len(keys))
		for i, k := range keys {
			entries[i] = structure.Entry{Key: k, Value: x[k]}
		}
		return &symbol{kind: structure.KindDictionary, entries: entries}, true
	case float64, string, bool:
		return &symbol{kind: structure.KindScalar, scalar: x}, true
	}
	return nil, false
}

func evalFormula(src string, scope formula.Scope) (structure.Value, error) {
	return formula.Evaluate(src, scope)
}

// undefined returns the first identifier under n missing from scope.
func (w *walker) undefined(n *sitter.Node, scope formula.Scope) string {
	name := ""
	walk(n, func(c *sitter.Node) bool {
		if name != "" {
			return false
		}
		if c.Type() == "identifier" {
			id := w.text(c)
			if _, ok := scope[id]; !ok && !isBuiltin(id) {
				name = id
			}
		}
		return true
	})
	return name
}

func isBuiltin(name string) bool {
	switch name {
	case "abs", "len", "min", "max", "round", "int", "float", "sum":
		return true
	}
	return false
}

// position converts a Python index into a slice position.
func position(key structure.Value, n int) (int, bool) {
	f, ok := key.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	i := int(f)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// stringValue reads a string literal. f-strings are interpolated against
// scope.
func (w *walker) stringValue(n *sitter.Node, scope formula.Scope) (structure.Value, error) {
	if n.Type() == "concatenated_string" {
		var sb strings.Builder
		for _, part := range named(n) {
			v, err := w.stringValue(part, scope)
			if err != nil {
				return nil, err
			}
			sb.WriteString(v.(string))
		}
		return sb.String(), nil
	}

	raw := w.text(n)
	q := strings.IndexAny(raw, `'"`)
	if q < 0 {
		return nil, errUnsupported
	}
	prefix := strings.ToLower(raw[:q])
	body := raw[len(prefix):]
	quote := body[:1]
	if strings.HasPrefix(body, quote+quote+quote) && len(body) >= 6 {
		quote = body[:3]
	}
	body = strings.TrimSuffix(strings.TrimPrefix(body, quote), quote)

	if strings.Contains(prefix, "b") {
		return nil, fmt.Errorf("%w: bytes literal", errUnsupported)
	}
	if !strings.Contains(prefix, "r") {
		body = unescape(body)
	}
	if strings.Contains(prefix, "f") {
		return w.interpolate(body, scope)
	}
	return body, nil
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\', '\'', '"':
			sb.WriteByte(s[i])
		case '\n':
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// interpolate expands {expr}, {expr!r} and {expr:spec} fields. Format specs
// are ignored.
func (w *walker) interpolate(body string, scope formula.Scope) (structure.Value, error) {
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '{' && i+1 < len(body) && body[i+1] == '{':
			sb.WriteByte('{')
			i++
		case c == '}' && i+1 < len(body) && body[i+1] == '}':
			sb.WriteByte('}')
			i++
		case c == '{':
			end := closingBrace(body, i)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated f-string field", errUnsupported)
			}
			field := body[i+1 : end]
			repr := false
			if j := strings.LastIndex(field, "!r"); j >= 0 && strings.TrimSpace(field[j+2:]) == "" {
				field, repr = field[:j], true
			} else if j := topLevelColon(field); j >= 0 {
				field = field[:j]
			}
			v, err := evalFormula(strings.TrimSpace(field), scope)
			if err != nil {
				return nil, err
			}
			if repr {
				sb.WriteString(pyRepr(v))
			} else {
				sb.WriteString(pyStr(v))
			}
			i = end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

func closingBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func topLevelColon(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ':':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// pyStr renders v the way print does.
func pyStr(v structure.Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return pyRepr(v)
}

// pyRepr renders v with strings quoted, as inside a printed container.
func pyRepr(v structure.Value) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", `\'`) + "'"
	case []structure.Value:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = pyRepr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case setLit:
		if len(x) == 0 {
			return "set()"
		}
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = pyRepr(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case dictLit:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = pyRepr(e.Key) + ": " + pyRepr(e.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case map[string]structure.Value:
		s, _ := symbolOf(x)
		return pyRepr(dictLit(s.entries))
	}
	return structure.Format(v)
}
