package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"

	"github.com/san-kum/loopviz/internal/structure"
)

// Structure types on the wire. "variable" is the wire name of a scalar.
const (
	TypeArray      = "array"
	TypeSet        = "set"
	TypeDictionary = "dictionary"
	TypeVariable   = "variable"
)

// Request is the body of a parse request.
type Request struct {
	Code string `json:"code"`
}

type Structure struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Dependency is one loop dependency. On the wire it is either an object
// {"name", "formula"} or a bare name string.
type Dependency struct {
	Name    string  `json:"name"`
	Formula *string `json:"formula,omitempty"`
}

func (d *Dependency) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		*d = Dependency{Name: name}
		return nil
	}
	type plain Dependency
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = Dependency(p)
	return nil
}

type IndexOperation struct {
	VarName string `json:"varName"`
	Indices []int  `json:"indices"`
}

// Response is the analyzer's description of a program.
type Response struct {
	Structures       []Structure         `json:"structures"`
	HasLoop          bool                `json:"hasLoop"`
	Target           string              `json:"target,omitempty"`
	Iterator         string              `json:"iterator,omitempty"`
	LoopDependencies []Dependency        `json:"loopDependencies,omitempty"`
	IndexOperations  []IndexOperation    `json:"indexOperations,omitempty"`
	Output           []string            `json:"output,omitempty"`
	IterationOutputs map[string][]string `json:"iterationOutputs,omitempty"`
	Error            string              `json:"error,omitempty"`
}

// Neutral is the result for empty source and for any analyzer failure: no
// structures and no loop.
func Neutral() *Response {
	return &Response{Structures: []Structure{}}
}

// Program is a Response converted for the engine.
type Program struct {
	Registry         *structure.Registry
	Loop             structure.Loop
	IndexOperations  []structure.IndexOperation
	Output           []string
	IterationOutputs map[string][]string
	Error            string
	// Skipped lists structures that were dropped as malformed.
	Skipped []error
}

// Lines returns the display lines recorded for one loop step.
func (p *Program) Lines(step int) []string {
	return p.IterationOutputs[stepKey(step)]
}

func stepKey(step int) string { return strconv.Itoa(step) }

// Program converts the response. Malformed or duplicate structures are
// skipped and reported in Program.Skipped; conversion itself never fails.
func (r *Response) Program() *Program {
	p := &Program{
		Output:           append([]string(nil), r.Output...),
		IterationOutputs: r.IterationOutputs,
		Error:            r.Error,
	}

	descs := make([]structure.Descriptor, 0, len(r.Structures))
	seen := make(map[string]bool, len(r.Structures))
	for i, s := range r.Structures {
		d, err := s.descriptor()
		if err == nil && s.Name == "" {
			err = structure.ErrEmptyName
		}
		if err == nil && seen[s.Name] {
			err = structure.ErrDuplicateName
		}
		if err != nil {
			p.Skipped = append(p.Skipped, &StructureError{Index: i, Name: s.Name, Type: s.Type, Wrapped: err})
			continue
		}
		seen[s.Name] = true
		descs = append(descs, d)
	}
	reg, err := structure.NewRegistry(descs...)
	if err != nil {
		// Unreachable after the checks above; degrade to no structures.
		p.Skipped = append(p.Skipped, err)
		reg = structure.Empty()
	}
	p.Registry = reg

	p.Loop = structure.Loop{
		HasLoop:  r.HasLoop,
		Target:   r.Target,
		Iterator: r.Iterator,
	}
	for _, d := range r.LoopDependencies {
		if d.Name == "" {
			continue
		}
		dep := structure.Dependency{Name: d.Name}
		if d.Formula != nil && *d.Formula != "" {
			dep.Formula = *d.Formula
			dep.HasFormula = true
		}
		p.Loop.Dependencies = append(p.Loop.Dependencies, dep)
	}

	for _, op := range r.IndexOperations {
		p.IndexOperations = append(p.IndexOperations, structure.IndexOperation{
			Structure: op.VarName,
			Indices:   append([]int(nil), op.Indices...),
		})
	}
	return p
}

func (s Structure) descriptor() (structure.Descriptor, error) {
	d := structure.Descriptor{Name: s.Name}
	switch s.Type {
	case TypeArray, TypeSet:
		d.Kind = structure.KindArray
		if s.Type == TypeSet {
			d.Kind = structure.KindSet
		}
		elems, ok := s.Data.([]any)
		if !ok && s.Data != nil {
			return d, errBadData
		}
		d.Elements = make([]structure.Value, len(elems))
		for i, e := range elems {
			d.Elements[i] = wireValue(e)
		}
	case TypeDictionary:
		d.Kind = structure.KindDictionary
		entries, err := wireEntries(s.Data)
		if err != nil {
			return d, err
		}
		d.Entries = entries
	case TypeVariable, string(structure.KindScalar):
		d.Kind = structure.KindScalar
		d.Scalar = wireValue(s.Data)
	default:
		return d, errUnknownType
	}
	return d, nil
}

// wireEntries accepts the [{"key","value"}] list form, and a plain object as
// a lenient fallback with keys in sorted order.
func wireEntries(data any) ([]structure.Entry, error) {
	switch x := data.(type) {
	case nil:
		return []structure.Entry{}, nil
	case []any:
		out := make([]structure.Entry, 0, len(x))
		for _, raw := range x {
			obj, ok := raw.(map[string]any)
			if !ok {
				return nil, errBadData
			}
			key, ok := obj["key"]
			if !ok {
				return nil, errBadData
			}
			out = append(out, structure.Entry{Key: structure.Format(wireValue(key)), Value: wireValue(obj["value"])})
		}
		return out, nil
	case []structure.Entry:
		return append([]structure.Entry(nil), x...), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]structure.Entry, len(keys))
		for i, k := range keys {
			out[i] = structure.Entry{Key: k, Value: wireValue(x[k])}
		}
		return out, nil
	}
	return nil, errBadData
}

// wireValue normalizes decoded JSON and Go-built values onto the value set
// the engine works with.
func wireValue(v any) structure.Value {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case []any:
		out := make([]structure.Value, len(x))
		for i, e := range x {
			out[i] = wireValue(e)
		}
		return out
	}
	return v
}

// Decode reads a response document. Unknown fields are ignored.
func Decode(b []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, errors.Join(ErrDecode, err)
	}
	if r.Structures == nil {
		r.Structures = []Structure{}
	}
	return &r, nil
}
