package subgrid

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"
)

var (
	// ErrImmutable indicates a fill or merge into a read-only subgrid
	// variant.
	ErrImmutable = errors.New("subgrid: variant is read-only")

	// ErrIncompatible indicates a merge between subgrids whose node
	// layouts cannot be reconciled.
	ErrIncompatible = errors.New("subgrid: incompatible node layouts")
)

// nodeValueULPs is the tolerance used when deciding whether two node
// coordinates from different subgrids denote the same physical node.
const nodeValueULPs = 4096

// NodeValueEq reports whether two node coordinates are equal within the
// tolerance used throughout merging and optimization.
func NodeValueEq(a, b float64) bool {
	return scalar.EqualWithinULP(a, b, nodeValueULPs)
}

// Stats summarizes the storage footprint of a subgrid. Multiplying any
// count by BytesPerValue approximates a size in bytes.
type Stats struct {
	// Total is the number of cells the node box spans.
	Total int
	// Allocated is the number of cells backed by storage; at most Total.
	Allocated int
	// Zeros is the number of allocated cells holding an exact zero.
	Zeros int
	// Overhead counts auxiliary storage (indices, node tables) in value
	// units.
	Overhead int
	// BytesPerValue is the size of one stored value.
	BytesPerValue int
}

// Subgrid is the polymorphic value container of one (bin, order, channel)
// cell. Implementations are Lagrange (accumulating), Sparse and Dense
// (read-only imports) and Empty.
type Subgrid interface {
	// NodeValues returns the physical node coordinates per kinematic
	// dimension, innermost dimension last.
	NodeValues() [][]float64

	// Shape returns the node counts per dimension.
	Shape() []int

	// IsEmpty reports whether no value has ever been stored.
	IsEmpty() bool

	// Fill accumulates one event weight. Only the Lagrange variant
	// supports filling; the others return ErrImmutable.
	Fill(ntuple []float64, weight float64) error

	// Merge adds other into the receiver. A non-nil transpose swaps the
	// two named dimensions of other's indices first.
	Merge(other Subgrid, transpose *[2]int) error

	// Scale multiplies every stored value by factor.
	Scale(factor float64)

	// Symmetrize folds every value at index[a] > index[b] onto the
	// swapped index, exploiting a symmetric channel.
	Symmetrize(a, b int)

	// Iterate calls fn for every non-zero cell with its node indices and
	// the baked value. The index slice is reused between calls.
	Iterate(fn func(index []int, value float64))

	// Stats returns storage statistics.
	Stats() Stats

	// Clone returns a deep copy.
	Clone() Subgrid
}

// packed is a sparse row-major array over a fixed shape, shared by the
// Lagrange and Sparse variants.
type packed struct {
	shape   []int
	entries map[int]float64
}

func newPacked(shape []int) packed {
	return packed{shape: append([]int(nil), shape...), entries: map[int]float64{}}
}

func (p *packed) flatten(index []int) int {
	flat := 0
	for d, i := range index {
		flat = flat*p.shape[d] + i
	}

	return flat
}

func (p *packed) unflatten(flat int, index []int) {
	for d := len(p.shape) - 1; d >= 0; d-- {
		index[d] = flat % p.shape[d]
		flat /= p.shape[d]
	}
}

func (p *packed) add(index []int, value float64) {
	p.entries[p.flatten(index)] += value
}

func (p *packed) scale(factor float64) {
	for flat := range p.entries {
		p.entries[flat] *= factor
	}
}

// iterate walks the stored cells in ascending flat order so that output
// and serialization stay deterministic.
func (p *packed) iterate(fn func(index []int, value float64)) {
	flats := make([]int, 0, len(p.entries))
	for flat := range p.entries {
		flats = append(flats, flat)
	}
	sort.Ints(flats)

	index := make([]int, len(p.shape))
	for _, flat := range flats {
		value := p.entries[flat]
		if value == 0.0 {
			continue
		}
		p.unflatten(flat, index)
		fn(index, value)
	}
}

func (p *packed) clone() packed {
	entries := make(map[int]float64, len(p.entries))
	for flat, value := range p.entries {
		entries[flat] = value
	}

	return packed{shape: append([]int(nil), p.shape...), entries: entries}
}

func (p *packed) stats() Stats {
	total := 1
	for _, dim := range p.shape {
		total *= dim
	}

	zeros := 0
	for _, value := range p.entries {
		if value == 0.0 {
			zeros++
		}
	}

	return Stats{
		Total:         total,
		Allocated:     len(p.entries),
		Zeros:         zeros,
		Overhead:      len(p.entries),
		BytesPerValue: 8,
	}
}
