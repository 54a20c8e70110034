package taxonomy

import (
	"fmt"
)

// Entry is one nomenclature line: display code and name plus a sort rank.
type Entry struct {
	ID   string `json:"id" yaml:"id"`
	Code string `json:"code,omitempty" yaml:"code"`
	Name string `json:"name,omitempty" yaml:"name"`
	Rank int    `json:"rank" yaml:"rank"`
}

// Spec is the raw input of one axis.
type Spec struct {
	Entries []Entry `json:"entries,omitempty" yaml:"entries"`
	Edges   []Edge  `json:"edges" yaml:"edges"`
}

// Taxonomy is one validated axis.
type Taxonomy struct {
	Axis    Axis
	Tree    *Tree
	entries map[string]Entry
}

// Build validates a spec. When entries are given every tree id must be one
// of them; without entries the id doubles as code and name.
func Build(axis Axis, s Spec) (*Taxonomy, error) {
	tree, err := NewTree(axis, s.Edges)
	if err != nil {
		return nil, err
	}
	tx := &Taxonomy{Axis: axis, Tree: tree, entries: make(map[string]Entry, len(s.Entries))}
	for _, e := range s.Entries {
		if _, dup := tx.entries[e.ID]; dup {
			return nil, fmt.Errorf("%s nomenclature: duplicate id %s", axis, e.ID)
		}
		tx.entries[e.ID] = e
	}
	if len(tx.entries) > 0 {
		for _, n := range tree.nodes {
			if _, ok := tx.entries[n.id]; !ok {
				return nil, fmt.Errorf("%s nomenclature: %w: tree id %s", axis, ErrUnknownID, n.id)
			}
		}
	}
	return tx, nil
}

// Entry returns the nomenclature line of id.
func (t *Taxonomy) Entry(id string) Entry {
	if e, ok := t.entries[id]; ok {
		if e.Code == "" {
			e.Code = id
		}
		if e.Name == "" {
			e.Name = e.Code
		}
		return e
	}
	rank := 0
	if n, ok := t.Tree.Lookup(id); ok {
		rank = n.Depth
	}
	return Entry{ID: id, Code: id, Name: id, Rank: rank}
}

// Known reports whether id is part of the nomenclature or the tree.
func (t *Taxonomy) Known(id string) bool {
	if len(t.entries) > 0 {
		_, ok := t.entries[id]
		return ok
	}
	_, ok := t.Tree.Lookup(id)
	return ok
}

// Input is the taxonomy part of a run input.
type Input struct {
	Process  Spec `json:"process" yaml:"process"`
	Compound Spec `json:"compound" yaml:"compound"`
	Resource Spec `json:"resource" yaml:"resource"`
}

// Forest holds the three validated axes.
type Forest [3]*Taxonomy

// BuildForest validates all three axes.
func BuildForest(in Input) (Forest, error) {
	var f Forest
	specs := [3]Spec{in.Process, in.Compound, in.Resource}
	for _, axis := range Axes {
		t, err := Build(axis, specs[axis])
		if err != nil {
			return Forest{}, err
		}
		f[axis] = t
	}
	return f, nil
}

func (f Forest) Get(a Axis) *Taxonomy { return f[a] }
