package highlight

import (
	"reflect"
	"testing"

	"github.com/san-kum/loopviz/internal/structure"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name  string
		ops   []structure.IndexOperation
		query string
		want  []int
		total int
	}{
		{
			name:  "single operation",
			ops:   []structure.IndexOperation{{Structure: "arr", Indices: []int{2, 0}}},
			query: "arr",
			want:  []int{0, 2},
			total: 2,
		},
		{
			name: "union across operations",
			ops: []structure.IndexOperation{
				{Structure: "arr", Indices: []int{1}},
				{Structure: "arr", Indices: []int{1, 3}},
				{Structure: "other", Indices: []int{0}},
			},
			query: "arr",
			want:  []int{1, 3},
			total: 3,
		},
		{
			name:  "unknown structure retained",
			ops:   []structure.IndexOperation{{Structure: "ghost", Indices: []int{4}}},
			query: "ghost",
			want:  []int{4},
			total: 1,
		},
		{
			name:  "empty",
			query: "arr",
			want:  nil,
			total: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Build(tt.ops)
			if got := m.Indices(tt.query); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if m.Len() != tt.total {
				t.Errorf("expected %d indices, got %d", tt.total, m.Len())
			}
		})
	}
}

func TestMap_Has(t *testing.T) {
	m := Build([]structure.IndexOperation{{Structure: "arr", Indices: []int{2}}})
	if !m.Has("arr", 2) {
		t.Error("expected arr[2] to be accessed")
	}
	if m.Has("arr", 1) {
		t.Error("expected arr[1] not to be accessed")
	}
	if m.Has("other", 2) {
		t.Error("expected other[2] not to be accessed")
	}
}

func TestMap_ZeroValue(t *testing.T) {
	var m Map
	if m.Has("arr", 0) || m.Len() != 0 || m.Indices("arr") != nil || len(m.Names()) != 0 {
		t.Error("expected zero Map to be empty")
	}
}
