package subgrid

// Trim re-packs any subgrid into its most compact read-only form. The
// node coordinate lists are cut down to the ranges actually populated,
// then the representation is chosen by occupancy: Dense when at least
// half of the trimmed node box is populated, Sparse otherwise, Empty
// when nothing is stored. Values come out baked.
func Trim(sg Subgrid) Subgrid {
	if sg.IsEmpty() {
		return Empty{}
	}

	nodes := sg.NodeValues()
	lo := make([]int, len(nodes))
	hi := make([]int, len(nodes))
	for d, values := range nodes {
		lo[d] = len(values)
		hi[d] = 0
	}

	populated := 0
	sg.Iterate(func(index []int, _ float64) {
		populated++
		for d, i := range index {
			if i < lo[d] {
				lo[d] = i
			}
			if i+1 > hi[d] {
				hi[d] = i + 1
			}
		}
	})

	trimmed := make([][]float64, len(nodes))
	total := 1
	for d, values := range nodes {
		trimmed[d] = append([]float64(nil), values[lo[d]:hi[d]]...)
		total *= hi[d] - lo[d]
	}

	index := make([]int, len(nodes))
	if 2*populated >= total {
		dense := NewDense(trimmed)
		sg.Iterate(func(i []int, value float64) {
			for d := range i {
				index[d] = i[d] - lo[d]
			}
			dense.Add(index, value)
		})

		return dense
	}

	sparse := NewSparse(trimmed)
	sg.Iterate(func(i []int, value float64) {
		for d := range i {
			index[d] = i[d] - lo[d]
		}
		sparse.Add(index, value)
	})

	return sparse
}
