// Package taxonomy holds the process, compound and resource nomenclatures
// and their aggregation trees.
//
// A tree is built from (child, parent, depth) edges and stored as an arena:
// every id is one node indexed by position, parents and children are indices
// into the same slice. Aggregation walks depths from the deepest level up,
// so no recursion is needed.
package taxonomy

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDuplicateChild    = errors.New("duplicate child id in aggregation tree")
	ErrInconsistentDepth = errors.New("inconsistent depth in aggregation tree")
	ErrUnknownID         = errors.New("id not found in taxonomy")
	ErrNoTotal           = errors.New("id does not resolve to the total node")
)

// Axis is one of the three dimensions of a category key.
type Axis int

const (
	Process Axis = iota
	Compound
	Resource
)

// Axes lists the axes in their default aggregation order.
var Axes = [3]Axis{Process, Compound, Resource}

func (a Axis) String() string {
	switch a {
	case Process:
		return "process"
	case Compound:
		return "compound"
	case Resource:
		return "resource"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

func (a Axis) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Axis) UnmarshalText(b []byte) error {
	for _, x := range Axes {
		if string(b) == x.String() {
			*a = x
			return nil
		}
	}
	return fmt.Errorf("unknown axis %q", string(b))
}

// Edge links a child id to its parent. Depth is the depth of the child; the
// root has depth 0 and never appears as a child.
type Edge struct {
	Child  string `json:"child" yaml:"child"`
	Parent string `json:"parent" yaml:"parent"`
	Depth  int    `json:"depth" yaml:"depth"`
}

// Node is the public view of one tree node.
type Node struct {
	ID        string
	Parent    string
	HasParent bool
	Depth     int
}

type node struct {
	id       string
	parent   int
	depth    int
	children []int
}

// Tree is an arena of nodes for one axis.
type Tree struct {
	axis  Axis
	nodes []node
	index map[string]int
	max   int
}

// NewTree validates edges and builds the arena. A child id may appear only
// once, and a node that is both parent and child must sit exactly one level
// above its children.
func NewTree(axis Axis, edges []Edge) (*Tree, error) {
	t := &Tree{axis: axis, index: make(map[string]int, len(edges)+1)}
	add := func(id string) int {
		if i, ok := t.index[id]; ok {
			return i
		}
		t.nodes = append(t.nodes, node{id: id, parent: -1, depth: -1})
		t.index[id] = len(t.nodes) - 1
		return len(t.nodes) - 1
	}
	seen := make(map[string]bool, len(edges))
	for _, e := range edges {
		if e.Child == "" || e.Parent == "" {
			return nil, fmt.Errorf("%s tree: empty id in edge %+v", axis, e)
		}
		if seen[e.Child] {
			return nil, fmt.Errorf("%s tree: %w: %s", axis, ErrDuplicateChild, e.Child)
		}
		seen[e.Child] = true
		if e.Depth < 1 {
			return nil, fmt.Errorf("%s tree: %w: %s has depth %d", axis, ErrInconsistentDepth, e.Child, e.Depth)
		}
		c := add(e.Child)
		p := add(e.Parent)
		t.nodes[c].parent = p
		t.nodes[c].depth = e.Depth
		t.nodes[p].children = append(t.nodes[p].children, c)
		if e.Depth > t.max {
			t.max = e.Depth
		}
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.parent < 0 {
			n.depth = 0
			continue
		}
		if pd := t.nodes[n.parent].depth; pd >= 0 && pd != n.depth-1 {
			return nil, fmt.Errorf("%s tree: %w: %s at depth %d under %s at depth %d",
				axis, ErrInconsistentDepth, n.id, n.depth, t.nodes[n.parent].id, pd)
		}
	}
	// roots got depth 0 above; children of roots must be at depth 1
	for i := range t.nodes {
		n := t.nodes[i]
		if n.parent >= 0 && t.nodes[n.parent].parent < 0 && n.depth != 1 {
			return nil, fmt.Errorf("%s tree: %w: %s at depth %d under root %s",
				axis, ErrInconsistentDepth, n.id, n.depth, t.nodes[n.parent].id)
		}
	}
	return t, nil
}

func (t *Tree) Axis() Axis { return t.axis }

// MaxDepth is the depth of the deepest edge.
func (t *Tree) MaxDepth() int { return t.max }

// Len is the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Lookup returns the node of id.
func (t *Tree) Lookup(id string) (Node, bool) {
	i, ok := t.index[id]
	if !ok {
		return Node{}, false
	}
	return t.view(i), true
}

// Contains reports whether id appears in the tree as a child, i.e. whether
// it can be aggregated further.
func (t *Tree) Contains(id string) bool {
	i, ok := t.index[id]
	return ok && t.nodes[i].parent >= 0
}

func (t *Tree) view(i int) Node {
	n := t.nodes[i]
	v := Node{ID: n.id, Depth: n.depth}
	if n.parent >= 0 {
		v.Parent = t.nodes[n.parent].id
		v.HasParent = true
	}
	return v
}

// Roots returns the ids of nodes without a parent, sorted.
func (t *Tree) Roots() []string {
	var out []string
	for _, n := range t.nodes {
		if n.parent < 0 {
			out = append(out, n.id)
		}
	}
	sort.Strings(out)
	return out
}

// Root returns the single root, or false when the tree is empty or a forest.
func (t *Tree) Root() (string, bool) {
	r := t.Roots()
	if len(r) != 1 {
		return "", false
	}
	return r[0], true
}

// Children returns the direct children of id in edge order.
func (t *Tree) Children(id string) []string {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(t.nodes[i].children))
	for _, c := range t.nodes[i].children {
		out = append(out, t.nodes[c].id)
	}
	return out
}

// Chain returns id followed by its ancestors up to the root.
func (t *Tree) Chain(id string) ([]string, error) {
	i, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("%s tree: %w: %s", t.axis, ErrUnknownID, id)
	}
	var out []string
	for ; i >= 0; i = t.nodes[i].parent {
		out = append(out, t.nodes[i].id)
	}
	return out, nil
}

// ResolvesTo checks that id reaches total through its parent chain.
func (t *Tree) ResolvesTo(id, total string) error {
	chain, err := t.Chain(id)
	if err != nil {
		return err
	}
	if chain[len(chain)-1] != total {
		return fmt.Errorf("%s tree: %w: %s ends at %s, want %s", t.axis, ErrNoTotal, id, chain[len(chain)-1], total)
	}
	return nil
}
