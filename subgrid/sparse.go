package subgrid

import "sort"

// Sparse is a read-only import variant: a coordinate→value mapping over
// explicitly listed node coordinates. Values are baked; no reweighting
// is applied on iteration.
type Sparse struct {
	array packed
	nodes [][]float64
}

// NewSparse constructs an empty sparse subgrid over the given node
// coordinates.
func NewSparse(nodeValues [][]float64) *Sparse {
	nodes := cloneNodes(nodeValues)
	shape := make([]int, len(nodes))
	for d, values := range nodes {
		shape[d] = len(values)
	}

	return &Sparse{array: newPacked(shape), nodes: nodes}
}

// Add accumulates a baked value at the given node indices. It is meant
// for construction (decoding, evolution); the variant is immutable once
// handed to a grid.
func (s *Sparse) Add(index []int, value float64) { s.array.add(index, value) }

// NodeValues returns the node coordinates of every dimension.
func (s *Sparse) NodeValues() [][]float64 { return cloneNodes(s.nodes) }

// Shape returns the node counts per dimension.
func (s *Sparse) Shape() []int { return append([]int(nil), s.array.shape...) }

// IsEmpty reports whether no value is stored.
func (s *Sparse) IsEmpty() bool { return len(s.array.entries) == 0 }

// Fill is unsupported on import variants.
func (s *Sparse) Fill([]float64, float64) error { return ErrImmutable }

// Merge adds other into the receiver, widening the node coordinate
// lists to their per-dimension union when the layouts differ. Node
// coordinates are matched within NodeValueEq tolerance.
func (s *Sparse) Merge(other Subgrid, transpose *[2]int) error {
	if other.IsEmpty() {
		return nil
	}

	rhsNodes := cloneNodes(other.NodeValues())
	if transpose != nil {
		rhsNodes[transpose[0]], rhsNodes[transpose[1]] = rhsNodes[transpose[1]], rhsNodes[transpose[0]]
	}
	if len(rhsNodes) != len(s.nodes) {
		return ErrIncompatible
	}

	if !nodesEqual(s.nodes, rhsNodes) {
		union := unionNodes(s.nodes, rhsNodes)
		remapped := NewSparse(union)

		target := make([]int, len(union))
		s.array.iterate(func(index []int, value float64) {
			for d, i := range index {
				target[d] = nodePosition(union[d], s.nodes[d][i])
			}
			remapped.array.add(target, value)
		})

		s.array = remapped.array
		s.nodes = remapped.nodes
	}

	target := make([]int, len(s.nodes))
	index := make([]int, len(s.nodes))
	var badNode bool
	other.Iterate(func(oIndex []int, value float64) {
		copy(index, oIndex)
		if transpose != nil {
			index[transpose[0]], index[transpose[1]] = index[transpose[1]], index[transpose[0]]
		}
		for d, i := range index {
			pos := nodePosition(s.nodes[d], rhsNodes[d][i])
			if pos < 0 {
				badNode = true
				return
			}
			target[d] = pos
		}
		s.array.add(target, value)
	})
	if badNode {
		return ErrIncompatible
	}

	return nil
}

// Scale multiplies every stored value by factor.
func (s *Sparse) Scale(factor float64) { s.array.scale(factor) }

// Symmetrize folds every value at index[a] > index[b] onto the swapped
// index.
func (s *Sparse) Symmetrize(a, b int) {
	folded := newPacked(s.array.shape)
	index := make([]int, len(s.array.shape))
	s.array.iterate(func(i []int, value float64) {
		copy(index, i)
		if index[b] < index[a] {
			index[a], index[b] = index[b], index[a]
		}
		folded.add(index, value)
	})
	s.array = folded
}

// Iterate yields the non-zero cells in row-major index order.
func (s *Sparse) Iterate(fn func(index []int, value float64)) { s.array.iterate(fn) }

// Stats returns storage statistics.
func (s *Sparse) Stats() Stats {
	stats := s.array.stats()
	for _, values := range s.nodes {
		stats.Overhead += len(values)
	}

	return stats
}

// Clone returns a deep copy.
func (s *Sparse) Clone() Subgrid {
	return &Sparse{array: s.array.clone(), nodes: cloneNodes(s.nodes)}
}

func cloneNodes(nodes [][]float64) [][]float64 {
	out := make([][]float64, len(nodes))
	for d, values := range nodes {
		out[d] = append([]float64(nil), values...)
	}

	return out
}

func nodesEqual(lhs, rhs [][]float64) bool {
	if len(lhs) != len(rhs) {
		return false
	}
	for d := range lhs {
		if len(lhs[d]) != len(rhs[d]) {
			return false
		}
		for i := range lhs[d] {
			if !NodeValueEq(lhs[d][i], rhs[d][i]) {
				return false
			}
		}
	}

	return true
}

// unionNodes merges two per-dimension coordinate lists, deduplicating
// within NodeValueEq tolerance.
func unionNodes(lhs, rhs [][]float64) [][]float64 {
	union := make([][]float64, len(lhs))
	for d := range lhs {
		merged := append(append([]float64(nil), lhs[d]...), rhs[d]...)
		sort.Float64s(merged)

		deduped := merged[:0]
		for _, value := range merged {
			if len(deduped) == 0 || !NodeValueEq(deduped[len(deduped)-1], value) {
				deduped = append(deduped, value)
			}
		}
		union[d] = append([]float64(nil), deduped...)
	}

	return union
}

func nodePosition(values []float64, v float64) int {
	for i, value := range values {
		if NodeValueEq(value, v) {
			return i
		}
	}

	return -1
}
