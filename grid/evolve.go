package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/NNPDF/pineappl-go/interp"
	"github.com/NNPDF/pineappl-go/pids"
	"github.com/NNPDF/pineappl-go/subgrid"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

const (
	// evolveInfoULPs deduplicates the scale and momentum-fraction lists
	// handed to operator providers.
	evolveInfoULPs = 256

	// evolveULPs matches grid nodes against operator axes and couplings
	// during the contraction itself.
	evolveULPs = 1024
)

// EvolveInfo lists everything an operator provider must cover: the
// factorization scales, renormalization scales, momentum fractions and
// particle IDs appearing in the grid. All lists are sorted and
// deduplicated; the scales come unscaled, before any variation factor.
type EvolveInfo struct {
	Fac1  []float64
	Ren1  []float64
	X1    []float64
	Pids1 []int32
}

// EvolveInfo scans the non-empty subgrids of the selected orders. A nil
// mask selects every order.
func (g *Grid) EvolveInfo(orderMask []bool) EvolveInfo {
	var info EvolveInfo
	scaleCount := g.scaleDimCount()

	for order := range g.orders {
		if orderMask != nil && !orderMask[order] {
			continue
		}
		for bin := 0; bin < g.bins.Len(); bin++ {
			for channel, ch := range g.channels {
				sg := g.subgrids[g.cell(order, bin, channel)]
				if sg == nil || sg.IsEmpty() {
					continue
				}

				nodeValues := sg.NodeValues()
				for _, fac := range g.scales.Fac.Calc(nodeValues, g.kinematics) {
					info.Fac1 = insertULPs(info.Fac1, fac, evolveInfoULPs)
				}
				for _, ren := range g.scales.Ren.Calc(nodeValues, g.kinematics) {
					info.Ren1 = insertULPs(info.Ren1, ren, evolveInfoULPs)
				}
				for leg := range g.convolutions {
					for _, x := range nodeValues[scaleCount+leg] {
						info.X1 = insertULPs(info.X1, x, evolveInfoULPs)
					}
				}
				for _, entry := range ch.Entries() {
					for _, pid := range entry.PIDs {
						info.Pids1 = insertPid(info.Pids1, pid)
					}
				}
			}
		}
	}

	return info
}

// insertULPs keeps values sorted while dropping duplicates within the
// given tolerance.
func insertULPs(values []float64, v float64, ulps uint) []float64 {
	i := sort.SearchFloat64s(values, v)
	if i < len(values) && scalar.EqualWithinULP(values[i], v, ulps) {
		return values
	}
	if i > 0 && scalar.EqualWithinULP(values[i-1], v, ulps) {
		return values
	}

	values = append(values, 0)
	copy(values[i+1:], values[i:])
	values[i] = v

	return values
}

func insertPid(pidList []int32, pid int32) []int32 {
	i := sort.Search(len(pidList), func(i int) bool { return pidList[i] >= pid })
	if i < len(pidList) && pidList[i] == pid {
		return pidList
	}

	pidList = append(pidList, 0)
	copy(pidList[i+1:], pidList[i:])
	pidList[i] = pid

	return pidList
}

// OperatorSlice is one evolution-operator tensor at a single input
// scale Fac1: it maps densities labeled (Pids1, X1) at Fac1 onto
// densities labeled (Pids0, X0) at Fac0. Data is row-major over
// [pid1][x1][pid0][x0].
type OperatorSlice struct {
	Fac0     float64
	Fac1     float64
	Pids0    []int32
	X0       []float64
	Pids1    []int32
	X1       []float64
	Basis    pids.Basis
	ConvType ConvType
	Data     []float64
}

func (s OperatorSlice) validate() error {
	if len(s.Data) != len(s.Pids1)*len(s.X1)*len(s.Pids0)*len(s.X0) {
		return fmt.Errorf("%w: %d values for %dx%dx%dx%d axes",
			ErrOperatorShape, len(s.Data), len(s.Pids1), len(s.X1), len(s.Pids0), len(s.X0))
	}

	return nil
}

func (s OperatorSlice) at(pid1, ix1, pid0, ix0 int) float64 {
	return s.Data[((pid1*len(s.X1)+ix1)*len(s.Pids0)+pid0)*len(s.X0)+ix0]
}

// matrix extracts the (x1, x0) plane of one (pid1, pid0) pair.
func (s OperatorSlice) matrix(pid1, pid0 int) *mat.Dense {
	m := mat.NewDense(len(s.X1), len(s.X0), nil)
	for ix1 := range s.X1 {
		for ix0 := range s.X0 {
			m.Set(ix1, ix0, s.at(pid1, ix1, pid0, ix0))
		}
	}

	return m
}

// OperatorSource supplies per-leg operator slices on demand, keyed by
// the input factorization scale. Implementations may hold everything in
// memory or pull slices lazily from disk.
type OperatorSource interface {
	Slice(leg int, fac1 float64) (OperatorSlice, error)
}

// SliceMap is the in-memory OperatorSource: one slice list per leg,
// matched against the requested scale within a small tolerance.
type SliceMap struct {
	Slices [][]OperatorSlice
}

// Slice returns the slice of the given leg whose Fac1 matches.
func (m SliceMap) Slice(leg int, fac1 float64) (OperatorSlice, error) {
	if leg < 0 || leg >= len(m.Slices) {
		return OperatorSlice{}, fmt.Errorf("%w: no operator for leg %d", ErrIncompatible, leg)
	}
	for _, slice := range m.Slices[leg] {
		if scalar.EqualWithinULP(slice.Fac1, fac1, evolveInfoULPs) {
			return slice, nil
		}
	}

	return OperatorSlice{}, fmt.Errorf("%w: no operator slice at scale %v for leg %d",
		ErrIncompatible, fac1, leg)
}

// AlphasTable lists the strong coupling at every renormalization scale
// the evolution will request. Scales are matched within the evolution
// tolerance.
type AlphasTable struct {
	Ren1   []float64
	Alphas []float64
}

// AlphasTableForGrid evaluates a coupling function at every
// renormalization scale of the grid, scaled by the variation factor.
func AlphasTableForGrid(g *Grid, xiRen float64, alphas AlphasFunc) AlphasTable {
	info := g.EvolveInfo(nil)

	table := AlphasTable{
		Ren1:   make([]float64, 0, len(info.Ren1)),
		Alphas: make([]float64, 0, len(info.Ren1)),
	}
	for _, ren := range info.Ren1 {
		scaled := xiRen * xiRen * ren
		table.Ren1 = append(table.Ren1, scaled)
		table.Alphas = append(table.Alphas, alphas(scaled))
	}

	return table
}

func (t AlphasTable) lookup(ren float64) (float64, bool) {
	for i, r := range t.Ren1 {
		if scalar.EqualWithinULP(r, ren, evolveULPs) {
			return t.Alphas[i], true
		}
	}

	return 0, false
}

// EvolveOptions tunes an evolution. The zero value evolves every order
// at the central scales.
type EvolveOptions struct {
	// OrderMask selects the orders to evolve; nil selects all.
	OrderMask []bool

	// Xi holds the scale-variation factors applied before the
	// contraction; the zero value means (1, 1, 1).
	Xi Xi
}

func pid1Index(opPids []int32, pid int32, gluonZero bool) (int, error) {
	for i, p := range opPids {
		if p == pid || (gluonZero && pid == 0 && p == 21) {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: operator covers no particle ID %d", ErrIncompatible, pid)
}

// xNodeMap maps grid momentum-fraction nodes onto operator axis
// positions.
func xNodeMap(values, opX1 []float64) ([]int, error) {
	indexMap := make([]int, len(values))
	for i, v := range values {
		indexMap[i] = -1
		for j, o := range opX1 {
			if scalar.EqualWithinULP(v, o, evolveULPs) {
				indexMap[i] = j
				break
			}
		}
		if indexMap[i] < 0 {
			return nil, fmt.Errorf("%w: momentum fraction %v not covered by operator", ErrIncompatible, v)
		}
	}

	return indexMap, nil
}

func addScaled(dst *mat.Dense, factor float64, src mat.Matrix) {
	rows, cols := src.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst.Set(i, j, dst.At(i, j)+factor*src.At(i, j))
		}
	}
}

// Evolve contracts the grid with per-leg evolution operators, producing
// an FK table: a grid with a single all-zero order, unit channels in
// the operator's output basis and a single factorization scale. Only
// grids with one or two convolutions can be evolved.
func (g *Grid) Evolve(source OperatorSource, alphas AlphasTable, opts EvolveOptions) (*FKTable, error) {
	legs := len(g.convolutions)
	if legs < 1 || legs > 2 {
		return nil, fmt.Errorf("%w: evolution supports one or two convolutions, grid has %d",
			ErrIncompatible, legs)
	}
	if opts.OrderMask != nil && len(opts.OrderMask) != len(g.orders) {
		return nil, fmt.Errorf("%w: order mask of length %d", ErrBadIndex, len(opts.OrderMask))
	}

	xi := opts.Xi
	if xi == (Xi{}) {
		xi = DefaultXi()
	}

	scaleCount := g.scaleDimCount()

	// every distinct input factorization scale needs one operator slice
	// per leg
	var fac1s []float64
	for order := range g.orders {
		if opts.OrderMask != nil && !opts.OrderMask[order] {
			continue
		}
		for bin := 0; bin < g.bins.Len(); bin++ {
			for channel := range g.channels {
				sg := g.subgrids[g.cell(order, bin, channel)]
				if sg == nil || sg.IsEmpty() {
					continue
				}
				for _, fac := range g.scales.Fac.Calc(sg.NodeValues(), g.kinematics) {
					fac1s = insertULPs(fac1s, xi.Fac*xi.Fac*fac, evolveInfoULPs)
				}
			}
		}
	}
	if len(fac1s) == 0 {
		return nil, fmt.Errorf("%w: no filled subgrids to evolve", ErrIncompatible)
	}

	ops := make([][]OperatorSlice, legs)
	for leg := 0; leg < legs; leg++ {
		ops[leg] = make([]OperatorSlice, len(fac1s))
		for i, fac1 := range fac1s {
			slice, err := source.Slice(leg, fac1)
			if err != nil {
				return nil, err
			}
			if err := slice.validate(); err != nil {
				return nil, err
			}
			ops[leg][i] = slice
		}

		first := ops[leg][0]
		for _, slice := range ops[leg][1:] {
			if !scalar.EqualWithinULP(slice.Fac0, first.Fac0, evolveInfoULPs) ||
				slice.Basis != first.Basis ||
				!pidsEqual(slice.Pids0, first.Pids0) ||
				len(slice.X0) != len(first.X0) {
				return nil, fmt.Errorf("%w: operator slices of leg %d disagree on the target axes",
					ErrIncompatible, leg)
			}
		}
	}
	fac0 := ops[0][0].Fac0
	basis0 := ops[0][0].Basis
	for leg := 1; leg < legs; leg++ {
		if !scalar.EqualWithinULP(ops[leg][0].Fac0, fac0, evolveInfoULPs) || ops[leg][0].Basis != basis0 {
			return nil, fmt.Errorf("%w: operator legs disagree on the target scale or basis", ErrIncompatible)
		}
	}

	gluonZero := false
	if g.basis == pids.Pdg {
		for _, ch := range g.channels {
			for _, entry := range ch.Entries() {
				for _, pid := range entry.PIDs {
					if pid == 0 {
						gluonZero = true
					}
				}
			}
		}
	}

	pids0 := make([][]int32, legs)
	x0 := make([][]float64, legs)
	for leg := 0; leg < legs; leg++ {
		pids0[leg] = ops[leg][0].Pids0
		x0[leg] = ops[leg][0].X0
	}

	// output channels: the sorted cartesian product of the per-leg
	// target particle IDs, with unit factors
	type combo [2]int32
	var combos []combo
	for _, pidA := range pids0[0] {
		if legs == 1 {
			combos = append(combos, combo{pidA, 0})
			continue
		}
		for _, pidB := range pids0[1] {
			combos = append(combos, combo{pidA, pidB})
		}
	}
	sort.Slice(combos, func(i, j int) bool {
		if combos[i][0] != combos[j][0] {
			return combos[i][0] < combos[j][0]
		}
		return combos[i][1] < combos[j][1]
	})
	deduped := combos[:0]
	for _, c := range combos {
		if len(deduped) == 0 || deduped[len(deduped)-1] != c {
			deduped = append(deduped, c)
		}
	}
	combos = deduped
	comboIndex := make(map[combo]int, len(combos))
	for i, c := range combos {
		comboIndex[c] = i
	}

	nx0a := len(x0[0])
	nx0b := 1
	if legs == 2 {
		nx0b = len(x0[1])
	}

	// per-(bin, output channel) accumulators over (x0a, x0b)
	accs := make([][]*mat.Dense, g.bins.Len())
	for bin := range accs {
		accs[bin] = make([]*mat.Dense, len(combos))
	}
	acc := func(bin, channel int) *mat.Dense {
		if accs[bin][channel] == nil {
			accs[bin][channel] = mat.NewDense(nx0a, nx0b, nil)
		}
		return accs[bin][channel]
	}

	for si := range fac1s {
		sliceA := ops[0][si]
		var sliceB OperatorSlice
		nx1b := 1
		if legs == 2 {
			sliceB = ops[1][si]
			nx1b = len(sliceB.X1)
		}

		for order, o := range g.orders {
			if opts.OrderMask != nil && !opts.OrderMask[order] {
				continue
			}

			logs := 1.0
			zero := false
			for _, part := range []struct {
				exp uint8
				xi  float64
			}{
				{o.LogXiR, xi.Ren},
				{o.LogXiF, xi.Fac},
				{o.LogXiA, xi.Frg},
			} {
				factor, nonZero := logFactor(part.exp, part.xi)
				if !nonZero {
					zero = true
					break
				}
				logs *= factor
			}
			if zero {
				continue
			}

			for bin := 0; bin < g.bins.Len(); bin++ {
				for channel, ch := range g.channels {
					sg := g.subgrids[g.cell(order, bin, channel)]
					if sg == nil || sg.IsEmpty() {
						continue
					}

					nodeValues := sg.NodeValues()
					scaleDims := make([]int, scaleCount)
					for d := 0; d < scaleCount; d++ {
						scaleDims[d] = len(nodeValues[d])
					}
					facValues := scaleValues(g.scales.Fac, nodeValues, g.kinematics, xi.Fac)
					renValues := scaleValues(g.scales.Ren, nodeValues, g.kinematics, xi.Ren)

					mapA, err := xNodeMap(nodeValues[scaleCount], sliceA.X1)
					if err != nil {
						return nil, err
					}
					var mapB []int
					if legs == 2 {
						mapB, err = xNodeMap(nodeValues[scaleCount+1], sliceB.X1)
						if err != nil {
							return nil, err
						}
					}

					// sum the matching scale nodes into one coefficient
					// array over the operator's input axes
					coeff := mat.NewDense(len(sliceA.X1), nx1b, nil)
					any := false
					var iterErr error
					sg.Iterate(func(index []int, value float64) {
						if iterErr != nil {
							return
						}
						scaleIndices := index[:scaleCount]
						fac := facValues[g.scales.Fac.IdxOf(scaleIndices, scaleDims)]
						if !scalar.EqualWithinULP(fac, fac1s[si], evolveULPs) {
							return
						}

						coupling := 1.0
						if o.Alphas > 0 {
							ren := renValues[g.scales.Ren.IdxOf(scaleIndices, scaleDims)]
							a, ok := alphas.lookup(ren)
							if !ok {
								iterErr = fmt.Errorf("%w: %v", ErrMissingAlphas, ren)
								return
							}
							coupling = math.Pow(a, float64(o.Alphas))
						}

						row := mapA[index[scaleCount]]
						col := 0
						if legs == 2 {
							col = mapB[index[scaleCount+1]]
						}
						coeff.Set(row, col, coeff.At(row, col)+value*coupling*logs)
						any = true
					})
					if iterErr != nil {
						return nil, iterErr
					}
					if !any {
						continue
					}

					for _, entry := range ch.Entries() {
						pid1A, err := pid1Index(sliceA.Pids1, entry.PIDs[0], gluonZero)
						if err != nil {
							return nil, err
						}

						if legs == 1 {
							for i0a, pidA := range pids0[0] {
								opA := sliceA.matrix(pid1A, i0a)
								var out mat.Dense
								out.Mul(opA.T(), coeff)
								addScaled(acc(bin, comboIndex[combo{pidA, 0}]), entry.Factor, &out)
							}
							continue
						}

						pid1B, err := pid1Index(sliceB.Pids1, entry.PIDs[1], gluonZero)
						if err != nil {
							return nil, err
						}

						for i0b, pidB := range pids0[1] {
							opB := sliceB.matrix(pid1B, i0b)
							var tmp mat.Dense
							tmp.Mul(coeff, opB)
							for i0a, pidA := range pids0[0] {
								opA := sliceA.matrix(pid1A, i0a)
								var out mat.Dense
								out.Mul(opA.T(), &tmp)
								addScaled(acc(bin, comboIndex[combo{pidA, pidB}]), entry.Factor, &out)
							}
						}
					}
				}
			}
		}
	}

	channels0 := make([]Channel, len(combos))
	for i, c := range combos {
		channels0[i] = mustChannel([]ChannelEntry{{PIDs: append([]int32(nil), c[:legs]...), Factor: 1.0}})
	}

	bins, err := NewBins(g.bins.Bins(), g.bins.FillLimits())
	if err != nil {
		return nil, err
	}

	// the output interpolations must span the operator's target axes,
	// not the defaults, so the stored nodes stay within [min, max]
	outInterps := make([]interp.Interp, 0, legs+1)
	scaleSpec, err := interp.New(fac0, fac0, 1, 0, interp.NoReweight, interp.MapApplGridH0, interp.Lagrange)
	if err != nil {
		return nil, err
	}
	outInterps = append(outInterps, scaleSpec)
	for leg := 0; leg < legs; leg++ {
		if len(x0[leg]) == 0 {
			return nil, fmt.Errorf("%w: operator of leg %d spans no momentum fractions",
				ErrOperatorShape, leg)
		}
		lo, hi := x0[leg][0], x0[leg][0]
		for _, v := range x0[leg][1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		polyOrder := 3
		if len(x0[leg]) <= polyOrder {
			polyOrder = len(x0[leg]) - 1
		}
		xSpec, err := interp.New(lo, hi, len(x0[leg]), polyOrder, interp.NoReweight, interp.MapApplGridF2, interp.Lagrange)
		if err != nil {
			return nil, err
		}
		outInterps = append(outInterps, xSpec)
	}

	out, err := New(Config{
		Orders:       []Order{NewOrder(0, 0, 0, 0, 0)},
		Channels:     channels0,
		Bins:         bins,
		Convolutions: append([]Conv(nil), g.convolutions...),
		Interps:      outInterps,
		Kinematics:   DefaultKinematics(legs),
		Scales:       Scales{Ren: ScaleOf(0), Fac: ScaleOf(0), Frg: NoScaleForm()},
		Basis:        basis0,
	})
	if err != nil {
		return nil, err
	}
	for key, value := range g.metadata {
		out.metadata[key] = value
	}

	nodes := make([][]float64, 0, legs+1)
	nodes = append(nodes, []float64{fac0})
	for leg := 0; leg < legs; leg++ {
		nodes = append(nodes, append([]float64(nil), x0[leg]...))
	}

	index := make([]int, legs+1)
	for bin := range accs {
		for channel, a := range accs[bin] {
			if a == nil {
				continue
			}

			dense := subgrid.NewDense(nodes)
			for i0a := 0; i0a < nx0a; i0a++ {
				for i0b := 0; i0b < nx0b; i0b++ {
					value := a.At(i0a, i0b)
					if value == 0.0 {
						continue
					}
					index[0] = 0
					index[1] = i0a
					if legs == 2 {
						index[2] = i0b
					}
					dense.Add(index, value)
				}
			}
			if !dense.IsEmpty() {
				out.SetSubgrid(0, bin, channel, dense)
			}
		}
	}

	return &FKTable{grid: out}, nil
}
