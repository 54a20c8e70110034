// Package aggregate replays the taxonomy trees bottom-up over category rows.
//
// The same walk serves scalar statistics and full sample vectors: a row
// carries an arbitrary payload and the caller supplies how two payloads
// combine.
package aggregate

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/taxonomy"
)

// Row is one category row. Import marks rows read from the input as opposed
// to rows synthesised by aggregation.
type Row[T any] struct {
	Key    inventory.Key
	Status inventory.Status
	Import bool
	Data   T
}

// Ops combines payloads. Add may reuse acc.
type Ops[T any] struct {
	Zero func() T
	Add  func(acc, v T) T
}

// Float sums scalars.
func Float() Ops[float64] {
	return Ops[float64]{
		Zero: func() float64 { return 0 },
		Add:  func(acc, v float64) float64 { return acc + v },
	}
}

// Samples sums sample vectors of length n column-wise.
func Samples(n int) Ops[[]float64] {
	return Ops[[]float64]{
		Zero: func() []float64 { return make([]float64, n) },
		Add: func(acc, v []float64) []float64 {
			floats.Add(acc, v)
			return acc
		},
	}
}

// MsgMergedInternal is logged for an input row that sits on an internal tree
// node and was merged with the aggregate of its children.
const MsgMergedInternal = "input row on an internal tree node merged with its children"

type group[T any] struct {
	key    inventory.Key
	status inventory.Status
	mixed  bool
	data   T
}

// ByAxis aggregates rows along one tree. For every depth from the deepest
// level up to 1, rows whose id on the axis sits at that depth are grouped by
// their parent id with the other two ids held fixed; the sums are appended
// as new rows and take part in the next level. An input row whose key is
// itself a group is merged into that group in place, so every key appears
// once. Input rows are never changed.
func ByAxis[T any](t *taxonomy.Tree, rows []Row[T], ops Ops[T], log *slog.Logger) []Row[T] {
	if log == nil {
		log = slog.Default()
	}
	axis := t.Axis()
	out := append([]Row[T](nil), rows...)

	missing := make(map[string]bool)
	pos := make(map[inventory.Key]int, len(rows))
	for i, r := range rows {
		pos[r.Key] = i
		id := r.Key.Get(axis)
		if _, ok := t.Lookup(id); !ok && !missing[id] {
			missing[id] = true
			log.Warn("not found in aggregation tree", "axis", axis, "id", id, "key", r.Key)
		}
	}

	for d := t.MaxDepth(); d >= 1; d-- {
		var groups []*group[T]
		index := make(map[inventory.Key]*group[T])
		for _, r := range out {
			n, ok := t.Lookup(r.Key.Get(axis))
			if !ok || !n.HasParent || n.Depth != d {
				continue
			}
			k := r.Key.With(axis, n.Parent)
			g, ok := index[k]
			if !ok {
				g = &group[T]{key: k, status: r.Status, data: ops.Zero()}
				index[k] = g
				groups = append(groups, g)
			} else if g.status != r.Status {
				g.mixed = true
			}
			g.data = ops.Add(g.data, r.Data)
		}
		for _, g := range groups {
			st := g.status
			if g.mixed {
				st = inventory.StatusES
			}
			if i, ok := pos[g.key]; ok {
				in := out[i]
				if in.Status != st {
					st = inventory.StatusES
				}
				log.Warn(MsgMergedInternal, "axis", axis, "key", g.key)
				out[i] = Row[T]{Key: g.key, Status: st, Import: in.Import, Data: ops.Add(g.data, in.Data)}
				continue
			}
			out = append(out, Row[T]{Key: g.key, Status: st, Data: g.data})
		}
	}
	return out
}

// Run aggregates along every planned axis in order, each pass building on
// the rows of the previous one.
func Run[T any](f taxonomy.Forest, p Plan, rows []Row[T], ops Ops[T], log *slog.Logger) []Row[T] {
	for _, a := range p.Axes {
		rows = ByAxis(f.Get(a).Tree, rows, ops, log)
	}
	return rows
}

// Find returns the index of the row carrying key, or -1.
func Find[T any](rows []Row[T], key inventory.Key) int {
	for i := range rows {
		if rows[i].Key == key {
			return i
		}
	}
	return -1
}
