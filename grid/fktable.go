package grid

import (
	"fmt"
	"math"
)

// FKTable is a grid whose perturbative and scale structure has been
// contracted away by evolution: a single all-zero order, unit-factor
// single-entry channels and one factorization scale. Convolving it
// needs densities only, no coupling.
type FKTable struct {
	grid *Grid
}

// NewFKTable validates the FK invariants and wraps the grid.
func NewFKTable(g *Grid) (*FKTable, error) {
	if len(g.orders) != 1 || g.orders[0] != (Order{}) {
		return nil, fmt.Errorf("%w: order list is not the single all-zero order", ErrNotFKTable)
	}
	for _, ch := range g.channels {
		entries := ch.Entries()
		if len(entries) != 1 || entries[0].Factor != 1.0 {
			return nil, fmt.Errorf("%w: channel %q is not a unit-factor single entry", ErrNotFKTable, ch)
		}
	}
	for _, sg := range g.subgrids {
		if sg == nil || sg.IsEmpty() {
			continue
		}
		if len(sg.NodeValues()[0]) != 1 {
			return nil, fmt.Errorf("%w: subgrid with more than one scale node", ErrNotFKTable)
		}
	}

	return &FKTable{grid: g}, nil
}

// Grid exposes the underlying grid.
func (fk *FKTable) Grid() *Grid { return fk.grid }

// MuF2 returns the single squared factorization scale, or NaN for a
// table without any content.
func (fk *FKTable) MuF2() float64 {
	for _, sg := range fk.grid.subgrids {
		if sg == nil || sg.IsEmpty() {
			continue
		}

		return sg.NodeValues()[0][0]
	}

	return math.NaN()
}

// XGrid returns the union of the momentum-fraction nodes over all legs
// and subgrids, sorted ascending.
func (fk *FKTable) XGrid() []float64 {
	var xs []float64
	scaleCount := fk.grid.scaleDimCount()

	for _, sg := range fk.grid.subgrids {
		if sg == nil || sg.IsEmpty() {
			continue
		}
		nodeValues := sg.NodeValues()
		for leg := range fk.grid.convolutions {
			for _, x := range nodeValues[scaleCount+leg] {
				xs = insertULPs(xs, x, evolveInfoULPs)
			}
		}
	}

	return xs
}

// Convolve evaluates the table against the supplied densities,
// returning one number per selected bin. A nil bin list selects all.
func (fk *FKTable) Convolve(funcs []ConvFunc, bins []int) ([]float64, error) {
	cache := NewCache(funcs, func(float64) float64 { return 1.0 })

	return fk.grid.Convolve(cache, ConvolveOptions{Bins: bins})
}

// Optimize shrinks the storage of the underlying grid.
func (fk *FKTable) Optimize() { fk.grid.Optimize() }
