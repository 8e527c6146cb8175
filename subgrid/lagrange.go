package subgrid

import (
	"math"

	"github.com/NNPDF/pineappl-go/interp"
	"gonum.org/v1/gonum/floats/scalar"
)

// staticNodeULPs is the tolerance used to decide whether every fill hit
// the same coordinate along one dimension.
const staticNodeULPs = 4

// Lagrange is the accumulating subgrid variant backing Fill. It stores
// raw, reweighting-divided values; Iterate multiplies the reweighting
// factors back in so consumers always see baked values.
type Lagrange struct {
	array packed
	specs []interp.Interp

	// staticNodes tracks, per dimension, the single coordinate every
	// fill supplied so far: -1 before the first fill, NaN once two
	// different coordinates were seen.
	staticNodes []float64
}

// NewLagrange constructs an empty accumulator over the given
// interpolation specifications.
func NewLagrange(specs []interp.Interp) *Lagrange {
	shape := make([]int, len(specs))
	for d, spec := range specs {
		shape[d] = spec.Nodes()
	}

	static := make([]float64, len(specs))
	for d := range static {
		static[d] = -1.0
	}

	return &Lagrange{
		array:       newPacked(shape),
		specs:       append([]interp.Interp(nil), specs...),
		staticNodes: static,
	}
}

type packedAcc struct{ p *packed }

func (a packedAcc) Add(index []int, value float64) { a.p.add(index, value) }

// Fill scatters one event weight onto the node grid.
func (l *Lagrange) Fill(ntuple []float64, weight float64) error {
	if err := interp.Interpolate(l.specs, ntuple, weight, packedAcc{&l.array}); err != nil {
		return err
	}
	if weight == 0.0 {
		return nil
	}

	for d, value := range ntuple {
		previous := l.staticNodes[d]
		switch {
		case math.IsNaN(previous):
		case previous < 0.0:
			l.staticNodes[d] = value
		case !scalar.EqualWithinULP(previous, value, staticNodeULPs):
			l.staticNodes[d] = math.NaN()
		}
	}

	return nil
}

// NodeValues returns the node coordinates of every dimension.
func (l *Lagrange) NodeValues() [][]float64 {
	values := make([][]float64, len(l.specs))
	for d, spec := range l.specs {
		values[d] = spec.NodeValues()
	}

	return values
}

// Shape returns the node counts per dimension.
func (l *Lagrange) Shape() []int { return append([]int(nil), l.array.shape...) }

// IsEmpty reports whether no weight was ever stored.
func (l *Lagrange) IsEmpty() bool { return len(l.array.entries) == 0 }

// Merge adds another Lagrange accumulator with the same interpolation
// layout. The raw values are summed directly, which is only valid when
// both sides divided by the same reweighting factors.
func (l *Lagrange) Merge(other Subgrid, transpose *[2]int) error {
	o, ok := other.(*Lagrange)
	if !ok {
		return ErrIncompatible
	}
	if len(o.specs) != len(l.specs) {
		return ErrIncompatible
	}
	for d := range l.specs {
		e := d
		if transpose != nil {
			if d == transpose[0] {
				e = transpose[1]
			} else if d == transpose[1] {
				e = transpose[0]
			}
		}
		if o.specs[e] != l.specs[d] {
			return ErrIncompatible
		}
	}

	index := make([]int, len(l.array.shape))
	o.array.iterate(func(oIndex []int, value float64) {
		copy(index, oIndex)
		if transpose != nil {
			index[transpose[0]], index[transpose[1]] = index[transpose[1]], index[transpose[0]]
		}
		l.array.add(index, value)
	})

	for d := range l.staticNodes {
		e := d
		if transpose != nil {
			if d == transpose[0] {
				e = transpose[1]
			} else if d == transpose[1] {
				e = transpose[0]
			}
		}
		l.staticNodes[d] = mergeStatic(l.staticNodes[d], o.staticNodes[e])
	}

	return nil
}

func mergeStatic(a, b float64) float64 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return math.NaN()
	case a < 0.0:
		return b
	case b < 0.0:
		return a
	case scalar.EqualWithinULP(a, b, staticNodeULPs):
		return a
	default:
		return math.NaN()
	}
}

// Scale multiplies every stored value by factor.
func (l *Lagrange) Scale(factor float64) { l.array.scale(factor) }

// Symmetrize folds every value at index[a] > index[b] onto the swapped
// index.
func (l *Lagrange) Symmetrize(a, b int) {
	folded := newPacked(l.array.shape)
	index := make([]int, len(l.array.shape))
	l.array.iterate(func(i []int, value float64) {
		copy(index, i)
		if index[b] < index[a] {
			index[a], index[b] = index[b], index[a]
		}
		folded.add(index, value)
	})
	l.array = folded
}

// Iterate yields the non-zero cells with the reweighting factors baked
// back in.
func (l *Lagrange) Iterate(fn func(index []int, value float64)) {
	reweights := make([][]float64, len(l.specs))
	for d, spec := range l.specs {
		nodes := spec.NodeValues()
		reweights[d] = make([]float64, len(nodes))
		for i, x := range nodes {
			reweights[d][i] = spec.Reweight(x)
		}
	}

	l.array.iterate(func(index []int, value float64) {
		for d, i := range index {
			value *= reweights[d][i]
		}
		fn(index, value)
	})
}

// Stats returns storage statistics.
func (l *Lagrange) Stats() Stats { return l.array.stats() }

// Clone returns a deep copy.
func (l *Lagrange) Clone() Subgrid {
	return &Lagrange{
		array:       l.array.clone(),
		specs:       append([]interp.Interp(nil), l.specs...),
		staticNodes: append([]float64(nil), l.staticNodes...),
	}
}

// TrimStaticNodes collapses every dimension whose fills all hit one
// coordinate down to a single node at that coordinate. A scale axis of
// a fixed-scale process shrinks from its full node count to one.
func (l *Lagrange) TrimStaticNodes() {
	collapse := false
	for _, static := range l.staticNodes {
		if static >= 0.0 && !math.IsNaN(static) {
			collapse = true
			break
		}
	}
	if !collapse {
		return
	}

	shape := append([]int(nil), l.array.shape...)
	for d, static := range l.staticNodes {
		if static >= 0.0 && !math.IsNaN(static) {
			shape[d] = 1
		}
	}

	folded := newPacked(shape)
	index := make([]int, len(shape))
	l.array.iterate(func(i []int, value float64) {
		copy(index, i)
		for d := range index {
			if shape[d] == 1 && l.array.shape[d] != 1 {
				index[d] = 0
			}
		}
		folded.add(index, value)
	})
	l.array = folded

	for d, static := range l.staticNodes {
		if static >= 0.0 && !math.IsNaN(static) {
			spec := l.specs[d]
			collapsed, err := interp.New(static, static, 1, 0,
				spec.ReweightMeth(), spec.Mapping(), spec.Method())
			if err != nil {
				panic(err)
			}
			l.specs[d] = collapsed
		}
	}
}
