package subgrid

// Dense is a read-only import variant holding a full rectangular
// row-major array over explicitly listed node coordinates. Values are
// baked; no reweighting is applied on iteration.
type Dense struct {
	shape []int
	nodes [][]float64
	data  []float64
}

// NewDense constructs a zeroed dense subgrid over the given node
// coordinates.
func NewDense(nodeValues [][]float64) *Dense {
	nodes := cloneNodes(nodeValues)
	shape := make([]int, len(nodes))
	size := 1
	for d, values := range nodes {
		shape[d] = len(values)
		size *= len(values)
	}

	return &Dense{shape: shape, nodes: nodes, data: make([]float64, size)}
}

func (d *Dense) flatten(index []int) int {
	flat := 0
	for dim, i := range index {
		flat = flat*d.shape[dim] + i
	}

	return flat
}

// Add accumulates a baked value at the given node indices. It is meant
// for construction (decoding, evolution); the variant is immutable once
// handed to a grid.
func (d *Dense) Add(index []int, value float64) { d.data[d.flatten(index)] += value }

// NodeValues returns the node coordinates of every dimension.
func (d *Dense) NodeValues() [][]float64 { return cloneNodes(d.nodes) }

// Shape returns the node counts per dimension.
func (d *Dense) Shape() []int { return append([]int(nil), d.shape...) }

// IsEmpty reports whether every cell is zero.
func (d *Dense) IsEmpty() bool {
	for _, value := range d.data {
		if value != 0.0 {
			return false
		}
	}

	return true
}

// Fill is unsupported on import variants.
func (d *Dense) Fill([]float64, float64) error { return ErrImmutable }

// Merge adds other into the receiver. Matching layouts sum in place;
// differing layouts go through a sparse union and re-densify.
func (d *Dense) Merge(other Subgrid, transpose *[2]int) error {
	if other.IsEmpty() {
		return nil
	}

	rhsNodes := cloneNodes(other.NodeValues())
	if transpose != nil {
		rhsNodes[transpose[0]], rhsNodes[transpose[1]] = rhsNodes[transpose[1]], rhsNodes[transpose[0]]
	}
	if len(rhsNodes) != len(d.nodes) {
		return ErrIncompatible
	}

	if nodesEqual(d.nodes, rhsNodes) {
		index := make([]int, len(d.shape))
		other.Iterate(func(oIndex []int, value float64) {
			copy(index, oIndex)
			if transpose != nil {
				index[transpose[0]], index[transpose[1]] = index[transpose[1]], index[transpose[0]]
			}
			d.data[d.flatten(index)] += value
		})

		return nil
	}

	tmp := NewSparse(d.nodes)
	d.Iterate(tmp.Add)
	if err := tmp.Merge(other, transpose); err != nil {
		return err
	}

	widened := NewDense(tmp.nodes)
	tmp.Iterate(widened.Add)
	*d = *widened

	return nil
}

// Scale multiplies every stored value by factor.
func (d *Dense) Scale(factor float64) {
	for i := range d.data {
		d.data[i] *= factor
	}
}

// Symmetrize folds every value at index[a] > index[b] onto the swapped
// index.
func (d *Dense) Symmetrize(a, b int) {
	folded := make([]float64, len(d.data))
	index := make([]int, len(d.shape))
	d.Iterate(func(i []int, value float64) {
		copy(index, i)
		if index[b] < index[a] {
			index[a], index[b] = index[b], index[a]
		}
		folded[d.flatten(index)] += value
	})
	d.data = folded
}

// Iterate yields the non-zero cells in row-major index order.
func (d *Dense) Iterate(fn func(index []int, value float64)) {
	index := make([]int, len(d.shape))
	for flat, value := range d.data {
		if value == 0.0 {
			continue
		}
		rest := flat
		for dim := len(d.shape) - 1; dim >= 0; dim-- {
			index[dim] = rest % d.shape[dim]
			rest /= d.shape[dim]
		}
		fn(index, value)
	}
}

// Stats returns storage statistics.
func (d *Dense) Stats() Stats {
	zeros := 0
	for _, value := range d.data {
		if value == 0.0 {
			zeros++
		}
	}

	overhead := 0
	for _, values := range d.nodes {
		overhead += len(values)
	}

	return Stats{
		Total:         len(d.data),
		Allocated:     len(d.data),
		Zeros:         zeros,
		Overhead:      overhead,
		BytesPerValue: 8,
	}
}

// Clone returns a deep copy.
func (d *Dense) Clone() Subgrid {
	return &Dense{
		shape: append([]int(nil), d.shape...),
		nodes: cloneNodes(d.nodes),
		data:  append([]float64(nil), d.data...),
	}
}
