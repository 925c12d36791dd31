// Package highlight tracks which element indices a program accesses, per
// structure, for the duration of one run.
package highlight

import (
	"sort"

	"github.com/san-kum/loopviz/internal/structure"
)

// Map is the union of accessed indices keyed by structure name. The zero
// value is an empty map ready to use.
type Map struct {
	sets map[string]map[int]struct{}
}

// Build unions the indices of ops per structure. Names that match no
// structure are kept; they simply never render.
func Build(ops []structure.IndexOperation) Map {
	m := Map{sets: make(map[string]map[int]struct{}, len(ops))}
	for _, op := range ops {
		set, ok := m.sets[op.Structure]
		if !ok {
			set = make(map[int]struct{}, len(op.Indices))
			m.sets[op.Structure] = set
		}
		for _, i := range op.Indices {
			set[i] = struct{}{}
		}
	}
	return m
}

func (m Map) Has(name string, index int) bool {
	_, ok := m.sets[name][index]
	return ok
}

// Indices returns the accessed indices of name in ascending order.
func (m Map) Indices(name string) []int {
	set := m.sets[name]
	if len(set) == 0 {
		return nil
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Names returns the structures with at least one accessed index, sorted.
func (m Map) Names() []string {
	out := make([]string, 0, len(m.sets))
	for name, set := range m.sets {
		if len(set) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Len counts accessed indices across all structures.
func (m Map) Len() int {
	n := 0
	for _, set := range m.sets {
		n += len(set)
	}
	return n
}
