package render

import (
	"sort"

	"github.com/san-kum/loopviz/internal/engine"
	"github.com/san-kum/loopviz/internal/highlight"
	"github.com/san-kum/loopviz/internal/structure"
)

// Cell is one element of a collection.
type Cell struct {
	Index int
	// Key is set for dictionary entries.
	Key   string
	Label string
	// Current marks the element the loop is visiting.
	Current bool
	// Accessed marks an index the program reads.
	Accessed bool
}

// View is one structure as it should be drawn at the current step.
type View struct {
	Name   string
	Kind   structure.Kind
	Cells  []Cell
	Target bool
	// Value is the displayed value of a scalar: its override when the loop
	// computed one, else the base value.
	Value      string
	Overridden bool
}

// Frame is everything a renderer needs for one step.
type Frame struct {
	Views    []View
	Step     int
	Len      int
	Running  bool
	// Done is set once the loop has visited every element.
	Done     bool
	Target   string
	Iterator string
}

// Layout positions the registry's structures for the engine state in snap.
// It only reads its inputs.
func Layout(reg *structure.Registry, snap engine.Snapshot, hl highlight.Map) Frame {
	f := Frame{
		Step:     snap.Current(),
		Len:      snap.Len,
		Running:  snap.Running,
		Done:     snap.Len > 0 && snap.Cursor >= snap.Len,
		Target:   snap.Target,
		Iterator: snap.Iterator,
	}
	if reg == nil {
		return f
	}

	f.Views = make([]View, 0, reg.Len())
	for i := 0; i < reg.Len(); i++ {
		d := reg.At(i)
		v := View{
			Name:   d.Name,
			Kind:   d.Kind,
			Target: d.Name == snap.Target,
		}
		current := -1
		if v.Target {
			current = f.Step
		}

		switch d.Kind {
		case structure.KindArray, structure.KindSet:
			v.Cells = make([]Cell, len(d.Elements))
			for j, e := range d.Elements {
				v.Cells[j] = Cell{
					Index:    j,
					Label:    structure.Format(e),
					Current:  j == current,
					Accessed: hl.Has(d.Name, j),
				}
			}
		case structure.KindDictionary:
			v.Cells = make([]Cell, len(d.Entries))
			for j, e := range d.Entries {
				v.Cells[j] = Cell{
					Index:    j,
					Key:      e.Key,
					Label:    structure.Format(e.Value),
					Current:  j == current,
					Accessed: hl.Has(d.Name, j),
				}
			}
		default:
			val := d.Scalar
			if o, ok := snap.Override(d.Name); ok {
				val = o
				v.Overridden = true
			}
			v.Value = structure.Format(val)
			if s, ok := d.Scalar.(string); ok && v.Target {
				for j, r := range []rune(s) {
					v.Cells = append(v.Cells, Cell{Index: j, Label: string(r), Current: j == current})
				}
			}
		}
		f.Views = append(f.Views, v)
	}

	// Dependencies assigned only inside the loop have no structure of their
	// own but are still shown while the loop runs.
	names := make([]string, 0, len(snap.Overrides))
	for name := range snap.Overrides {
		if _, ok := reg.Lookup(name); !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		f.Views = append(f.Views, View{
			Name:       name,
			Kind:       structure.KindScalar,
			Value:      structure.Format(snap.Overrides[name]),
			Overridden: true,
		})
	}
	return f
}

// View returns the view named name.
func (f Frame) View(name string) (View, bool) {
	for _, v := range f.Views {
		if v.Name == name {
			return v, true
		}
	}
	return View{}, false
}
