package structure

// Registry is an ordered collection of uniquely named descriptors.
type Registry struct {
	items []Descriptor
	index map[string]int
}

// NewRegistry validates and copies descs. Order is preserved.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		items: make([]Descriptor, 0, len(descs)),
		index: make(map[string]int, len(descs)),
	}
	for i := range descs {
		d := &descs[i]
		if d.Name == "" {
			return nil, &DescriptorError{Index: i, Name: d.Name, Wrapped: ErrEmptyName}
		}
		if !d.Kind.Valid() {
			return nil, &DescriptorError{Index: i, Name: d.Name, Wrapped: ErrInvalidKind}
		}
		if _, dup := r.index[d.Name]; dup {
			return nil, &DescriptorError{Index: i, Name: d.Name, Wrapped: ErrDuplicateName}
		}
		r.index[d.Name] = len(r.items)
		r.items = append(r.items, d.Clone())
	}
	return r, nil
}

// Empty returns a registry with no structures.
func Empty() *Registry {
	return &Registry{index: map[string]int{}}
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.items)
}

// At returns the i-th descriptor in registry order.
func (r *Registry) At(i int) *Descriptor {
	if r == nil || i < 0 || i >= len(r.items) {
		return nil
	}
	return &r.items[i]
}

func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	if r == nil {
		return nil, false
	}
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return &r.items[i], true
}

// All returns copies of every descriptor in order.
func (r *Registry) All() []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, len(r.items))
	for i := range r.items {
		out[i] = r.items[i].Clone()
	}
	return out
}

// Names returns structure names in registry order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.items))
	for i := range r.items {
		out[i] = r.items[i].Name
	}
	return out
}

// Scope maps each structure name to the value a formula sees for it.
func (r *Registry) Scope() map[string]Value {
	scope := make(map[string]Value, r.Len())
	if r == nil {
		return scope
	}
	for i := range r.items {
		scope[r.items[i].Name] = r.items[i].ScopeValue()
	}
	return scope
}

// ResolveTarget picks the loop target: the named structure when it exists,
// otherwise the first structure in order. It returns nil for an empty registry.
func (r *Registry) ResolveTarget(name string) *Descriptor {
	if name != "" {
		if d, ok := r.Lookup(name); ok {
			return d
		}
	}
	return r.At(0)
}
