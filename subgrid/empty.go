package subgrid

// Empty is the zero-storage subgrid variant standing in for cells that
// were never filled.
type Empty struct{}

// NodeValues returns nil: an empty cell spans no nodes.
func (Empty) NodeValues() [][]float64 { return nil }

// Shape returns nil.
func (Empty) Shape() []int { return nil }

// IsEmpty always reports true.
func (Empty) IsEmpty() bool { return true }

// Fill accepts only zero weights; anything else belongs in a Lagrange
// accumulator.
func (Empty) Fill(_ []float64, weight float64) error {
	if weight != 0.0 {
		return ErrImmutable
	}

	return nil
}

// Merge accepts only empty subgrids; the owning grid swaps in a
// value-bearing variant before merging real content.
func (Empty) Merge(other Subgrid, _ *[2]int) error {
	if !other.IsEmpty() {
		return ErrImmutable
	}

	return nil
}

// Scale is a no-op.
func (Empty) Scale(float64) {}

// Symmetrize is a no-op.
func (Empty) Symmetrize(int, int) {}

// Iterate never calls fn.
func (Empty) Iterate(func(index []int, value float64)) {}

// Stats reports zero storage.
func (Empty) Stats() Stats { return Stats{} }

// Clone returns another Empty.
func (Empty) Clone() Subgrid { return Empty{} }
