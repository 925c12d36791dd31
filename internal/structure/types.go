package structure

// Value is a primitive carried by a structure or computed by a formula:
// float64, string, bool or nil. Formula scopes may also hold []Value and
// map[string]Value for whole structures.
type Value = any

type Kind string

const (
	KindArray      Kind = "array"
	KindSet        Kind = "set"
	KindDictionary Kind = "dictionary"
	KindScalar     Kind = "scalar"
)

func (k Kind) Valid() bool {
	switch k {
	case KindArray, KindSet, KindDictionary, KindScalar:
		return true
	}
	return false
}

// Entry is one key/value pair of a dictionary.
type Entry struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// Descriptor is a named data structure. Only the field matching Kind is used.
type Descriptor struct {
	Name     string
	Kind     Kind
	Elements []Value
	Entries  []Entry
	Scalar   Value
}

// Len returns the number of elements a loop over the structure visits.
// Dictionaries yield their keys; a string scalar yields its characters and
// any other scalar yields nothing.
func (d *Descriptor) Len() int {
	switch d.Kind {
	case KindArray, KindSet:
		return len(d.Elements)
	case KindDictionary:
		return len(d.Entries)
	case KindScalar:
		if s, ok := d.Scalar.(string); ok {
			return len([]rune(s))
		}
	}
	return 0
}

// At returns the value bound to the loop variable at step i.
func (d *Descriptor) At(i int) (Value, bool) {
	if i < 0 || i >= d.Len() {
		return nil, false
	}
	switch d.Kind {
	case KindArray, KindSet:
		return d.Elements[i], true
	case KindDictionary:
		return d.Entries[i].Key, true
	case KindScalar:
		return string([]rune(d.Scalar.(string))[i]), true
	}
	return nil, false
}

// ScopeValue is the value a formula sees when it names the structure.
func (d *Descriptor) ScopeValue() Value {
	switch d.Kind {
	case KindArray, KindSet:
		out := make([]Value, len(d.Elements))
		copy(out, d.Elements)
		return out
	case KindDictionary:
		out := make(map[string]Value, len(d.Entries))
		for _, e := range d.Entries {
			out[e.Key] = e.Value
		}
		return out
	}
	return d.Scalar
}

func (d *Descriptor) Clone() Descriptor {
	c := Descriptor{Name: d.Name, Kind: d.Kind, Scalar: d.Scalar}
	if d.Elements != nil {
		c.Elements = make([]Value, len(d.Elements))
		copy(c.Elements, d.Elements)
	}
	if d.Entries != nil {
		c.Entries = make([]Entry, len(d.Entries))
		copy(c.Entries, d.Entries)
	}
	return c
}

// Dependency is a variable recomputed on every loop step. Without a formula
// it mirrors the loop variable.
type Dependency struct {
	Name       string
	Formula    string
	HasFormula bool
}

// Loop describes the loop detected alongside a registry.
type Loop struct {
	HasLoop      bool
	Target       string
	Iterator     string
	Dependencies []Dependency
}

// IndexOperation lists indices of one structure accessed by the program.
type IndexOperation struct {
	Structure string
	Indices   []int
}
