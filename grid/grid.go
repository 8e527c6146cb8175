package grid

import (
	"fmt"
	"math"

	"github.com/NNPDF/pineappl-go/interp"
	"github.com/NNPDF/pineappl-go/pids"
	"github.com/NNPDF/pineappl-go/subgrid"
	"gonum.org/v1/gonum/floats/scalar"
)

// Config collects everything a new grid needs. All slices are copied by
// New; the caller keeps ownership of its inputs.
type Config struct {
	Orders       []Order
	Channels     []Channel
	Bins         *Bins
	Convolutions []Conv
	Interps      []interp.Interp
	Kinematics   []Kinematic
	Scales       Scales
	Basis        pids.Basis
}

// Grid is the aggregate container: the full cross product of
// bins x orders x channels of subgrids, plus the lists describing what
// each axis means. Subgrids are stored order-major; nil cells stand for
// empty subgrids.
type Grid struct {
	subgrids     []subgrid.Subgrid
	orders       []Order
	channels     []Channel
	bins         *Bins
	convolutions []Conv
	interps      []interp.Interp
	kinematics   []Kinematic
	scales       Scales
	basis        pids.Basis
	metadata     map[string]string
}

// DefaultKinematics returns the conventional kinematics layout of a
// grid with the given number of convolutions: one scale dimension
// followed by one momentum fraction per convolution.
func DefaultKinematics(convolutions int) []Kinematic {
	kinematics := make([]Kinematic, 0, convolutions+1)
	kinematics = append(kinematics, ScaleKin(0))
	for i := 0; i < convolutions; i++ {
		kinematics = append(kinematics, XKin(i))
	}

	return kinematics
}

// DefaultInterps returns the conventional interpolation specifications
// matching DefaultKinematics: 40 scale nodes over [1e2, 1e8] GeV² and
// 50 reweighted momentum-fraction nodes over [2e-7, 1] per convolution,
// both with third-order Lagrange polynomials.
func DefaultInterps(convolutions int) []interp.Interp {
	specs := make([]interp.Interp, 0, convolutions+1)

	scale, err := interp.New(1e2, 1e8, 40, 3, interp.NoReweight, interp.MapApplGridH0, interp.Lagrange)
	if err != nil {
		panic(err)
	}
	specs = append(specs, scale)

	for i := 0; i < convolutions; i++ {
		x, err := interp.New(2e-7, 1.0, 50, 3, interp.ApplGridX, interp.MapApplGridF2, interp.Lagrange)
		if err != nil {
			panic(err)
		}
		specs = append(specs, x)
	}

	return specs
}

// New validates a configuration and constructs an empty grid.
func New(cfg Config) (*Grid, error) {
	if len(cfg.Orders) == 0 {
		return nil, fmt.Errorf("%w: no orders", ErrBadConfig)
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrBadConfig)
	}
	if cfg.Bins == nil {
		return nil, fmt.Errorf("%w: no bins", ErrBadConfig)
	}
	for _, ch := range cfg.Channels {
		if ch.Legs() != len(cfg.Convolutions) {
			return nil, fmt.Errorf("%w: channel with %d legs in a grid with %d convolutions",
				ErrBadConfig, ch.Legs(), len(cfg.Convolutions))
		}
	}
	if len(cfg.Interps) != len(cfg.Kinematics) {
		return nil, fmt.Errorf("%w: %d interpolations for %d kinematic dimensions",
			ErrBadConfig, len(cfg.Interps), len(cfg.Kinematics))
	}
	if err := checkKinematics(cfg.Kinematics, len(cfg.Convolutions)); err != nil {
		return nil, err
	}
	if !cfg.Scales.CompatibleWith(cfg.Kinematics) {
		return nil, fmt.Errorf("%w: scale form references undeclared scale dimension", ErrBadConfig)
	}

	return &Grid{
		subgrids:     make([]subgrid.Subgrid, len(cfg.Orders)*cfg.Bins.Len()*len(cfg.Channels)),
		orders:       append([]Order(nil), cfg.Orders...),
		channels:     append([]Channel(nil), cfg.Channels...),
		bins:         cfg.Bins,
		convolutions: append([]Conv(nil), cfg.Convolutions...),
		interps:      append([]interp.Interp(nil), cfg.Interps...),
		kinematics:   append([]Kinematic(nil), cfg.Kinematics...),
		scales:       cfg.Scales,
		basis:        cfg.Basis,
		metadata:     map[string]string{},
	}, nil
}

// checkKinematics enforces the dimension layout the engines rely on:
// the scale dimensions come first, numbered 0..s-1 in order, followed by
// exactly one momentum fraction per convolution, numbered 0..n-1.
func checkKinematics(kinematics []Kinematic, convolutions int) error {
	scales := 0
	for i, kin := range kinematics {
		switch kin.Kind {
		case KinScale:
			if i != scales || kin.Index != scales {
				return fmt.Errorf("%w: scale dimensions must lead the kinematics in index order", ErrBadConfig)
			}
			scales++
		case KinX:
			if kin.Index != i-scales {
				return fmt.Errorf("%w: momentum fractions must follow the scales in index order", ErrBadConfig)
			}
		default:
			return fmt.Errorf("%w: unknown kinematic kind", ErrBadConfig)
		}
	}
	if len(kinematics)-scales != convolutions {
		return fmt.Errorf("%w: %d momentum fractions for %d convolutions",
			ErrBadConfig, len(kinematics)-scales, convolutions)
	}

	return nil
}

func (g *Grid) cell(order, bin, channel int) int {
	return (order*g.bins.Len()+bin)*len(g.channels) + channel
}

// Orders returns the order list. The slice must not be modified.
func (g *Grid) Orders() []Order { return g.orders }

// Channels returns the channel list. The slice must not be modified.
func (g *Grid) Channels() []Channel { return g.channels }

// BinInfo returns the bin container.
func (g *Grid) BinInfo() *Bins { return g.bins }

// Convolutions returns the convolution descriptors. The slice must not
// be modified.
func (g *Grid) Convolutions() []Conv { return g.convolutions }

// Kinematics returns the kinematic dimension list. The slice must not
// be modified.
func (g *Grid) Kinematics() []Kinematic { return g.kinematics }

// Interps returns the interpolation specifications, one per kinematic
// dimension. The slice must not be modified.
func (g *Grid) Interps() []interp.Interp { return g.interps }

// ScaleForms returns the functional forms of the unphysical scales.
func (g *Grid) ScaleForms() Scales { return g.scales }

// PidBasis returns the particle-ID convention the channels use.
func (g *Grid) PidBasis() pids.Basis { return g.basis }

// Metadata returns the live metadata map; callers mutate it directly.
func (g *Grid) Metadata() map[string]string { return g.metadata }

// Subgrid returns the subgrid of one (order, bin, channel) cell; cells
// never written to come back Empty.
func (g *Grid) Subgrid(order, bin, channel int) subgrid.Subgrid {
	sg := g.subgrids[g.cell(order, bin, channel)]
	if sg == nil {
		return subgrid.Empty{}
	}

	return sg
}

// SetSubgrid replaces the subgrid of one cell. It is meant for decoding
// and evolution; regular filling goes through Fill.
func (g *Grid) SetSubgrid(order, bin, channel int, sg subgrid.Subgrid) {
	if _, empty := sg.(subgrid.Empty); empty {
		sg = nil
	}
	g.subgrids[g.cell(order, bin, channel)] = sg
}

// Fill accumulates one event weight into the cell selected by the order
// and channel indices and the bin the observable falls into. The ntuple
// components follow the kinematics declaration. Observables outside all
// bins are ErrBinNotFound; ntuple components outside their
// interpolation range are rejected with interp.ErrOutOfRange.
func (g *Grid) Fill(order int, observable float64, channel int, ntuple []float64, weight float64) error {
	if order < 0 || order >= len(g.orders) {
		return fmt.Errorf("%w: order %d", ErrBadIndex, order)
	}
	if channel < 0 || channel >= len(g.channels) {
		return fmt.Errorf("%w: channel %d", ErrBadIndex, channel)
	}

	bin, ok := g.bins.FillIndex(observable)
	if !ok {
		return fmt.Errorf("%w: observable %v", ErrBinNotFound, observable)
	}

	cell := g.cell(order, bin, channel)
	sg := g.subgrids[cell]
	if sg == nil {
		sg = subgrid.NewLagrange(g.interps)
		g.subgrids[cell] = sg
	}

	return sg.Fill(ntuple, weight)
}

// FillAll accumulates one event into every channel at once, one weight
// per channel.
func (g *Grid) FillAll(order int, observable float64, ntuple []float64, weights []float64) error {
	if len(weights) != len(g.channels) {
		return fmt.Errorf("%w: %d weights for %d channels", ErrBadIndex, len(weights), len(g.channels))
	}

	for channel, weight := range weights {
		if err := g.Fill(order, observable, channel, ntuple, weight); err != nil {
			return err
		}
	}

	return nil
}

// FillArray accumulates a batch of events given as parallel arrays. All
// slices must share one length; the batch stops at the first rejected
// event.
func (g *Grid) FillArray(orders []int, observables []float64, channels []int, ntuples [][]float64, weights []float64) error {
	n := len(weights)
	if len(orders) != n || len(observables) != n || len(channels) != n || len(ntuples) != n {
		return fmt.Errorf("%w: parallel fill arrays have different lengths", ErrBadIndex)
	}

	for i := 0; i < n; i++ {
		if err := g.Fill(orders[i], observables[i], channels[i], ntuples[i], weights[i]); err != nil {
			return err
		}
	}

	return nil
}

// Scale multiplies every subgrid by factor.
func (g *Grid) Scale(factor float64) {
	for _, sg := range g.subgrids {
		if sg != nil {
			sg.Scale(factor)
		}
	}
}

// ScaleByOrder multiplies each order's subgrids by the given coupling
// and log values raised to that order's exponents, times a global
// factor.
func (g *Grid) ScaleByOrder(alphas, alpha, logxir, logxif, logxia, global float64) {
	for order, o := range g.orders {
		factor := global *
			math.Pow(alphas, float64(o.Alphas)) *
			math.Pow(alpha, float64(o.Alpha)) *
			math.Pow(logxir, float64(o.LogXiR)) *
			math.Pow(logxif, float64(o.LogXiF)) *
			math.Pow(logxia, float64(o.LogXiA))
		if factor == 1.0 {
			continue
		}

		for bin := 0; bin < g.bins.Len(); bin++ {
			for channel := range g.channels {
				if sg := g.subgrids[g.cell(order, bin, channel)]; sg != nil {
					sg.Scale(factor)
				}
			}
		}
	}
}

// ScaleByBin multiplies each bin's subgrids by the matching factor.
func (g *Grid) ScaleByBin(factors []float64) error {
	if len(factors) != g.bins.Len() {
		return fmt.Errorf("%w: %d factors for %d bins", ErrBadIndex, len(factors), g.bins.Len())
	}

	for order := range g.orders {
		for bin, factor := range factors {
			for channel := range g.channels {
				if sg := g.subgrids[g.cell(order, bin, channel)]; sg != nil {
					sg.Scale(factor)
				}
			}
		}
	}

	return nil
}

// keepMask turns a deletion index list into a keep mask of the given
// length, validating the indices.
func keepMask(length int, remove []int) ([]bool, error) {
	keep := make([]bool, length)
	for i := range keep {
		keep[i] = true
	}
	for _, index := range remove {
		if index < 0 || index >= length {
			return nil, fmt.Errorf("%w: index %d of %d", ErrBadIndex, index, length)
		}
		keep[index] = false
	}

	return keep, nil
}

// rebuildSubgrids re-packs the flat subgrid array after any axis lost
// entries.
func (g *Grid) rebuildSubgrids(keepOrder, keepBin, keepChannel []bool, bins *Bins, orders []Order, channels []Channel) {
	subgrids := make([]subgrid.Subgrid, 0, len(orders)*bins.Len()*len(channels))
	for order := range g.orders {
		if !keepOrder[order] {
			continue
		}
		for bin := 0; bin < g.bins.Len(); bin++ {
			if !keepBin[bin] {
				continue
			}
			for channel := range g.channels {
				if !keepChannel[channel] {
					continue
				}
				subgrids = append(subgrids, g.subgrids[g.cell(order, bin, channel)])
			}
		}
	}

	g.subgrids = subgrids
	g.orders = orders
	g.bins = bins
	g.channels = channels
}

func allTrue(length int) []bool {
	mask := make([]bool, length)
	for i := range mask {
		mask[i] = true
	}

	return mask
}

// DeleteOrders removes the orders at the given indices together with
// their subgrids.
func (g *Grid) DeleteOrders(indices []int) error {
	keep, err := keepMask(len(g.orders), indices)
	if err != nil {
		return err
	}

	orders := make([]Order, 0, len(g.orders))
	for i, o := range g.orders {
		if keep[i] {
			orders = append(orders, o)
		}
	}
	if len(orders) == 0 {
		return fmt.Errorf("%w: cannot delete every order", ErrBadIndex)
	}

	g.rebuildSubgrids(keep, allTrue(g.bins.Len()), allTrue(len(g.channels)), g.bins, orders, g.channels)

	return nil
}

// DeleteChannels removes the channels at the given indices together
// with their subgrids.
func (g *Grid) DeleteChannels(indices []int) error {
	keep, err := keepMask(len(g.channels), indices)
	if err != nil {
		return err
	}

	channels := make([]Channel, 0, len(g.channels))
	for i, ch := range g.channels {
		if keep[i] {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return fmt.Errorf("%w: cannot delete every channel", ErrBadIndex)
	}

	g.rebuildSubgrids(allTrue(len(g.orders)), allTrue(g.bins.Len()), keep, g.bins, g.orders, channels)

	return nil
}

// DeleteBins removes the bins at the given indices together with their
// subgrids.
func (g *Grid) DeleteBins(indices []int) error {
	keep, err := keepMask(g.bins.Len(), indices)
	if err != nil {
		return err
	}

	kept := make([]Bin, 0, g.bins.Len())
	for i, bin := range g.bins.Bins() {
		if keep[i] {
			kept = append(kept, bin)
		}
	}
	if len(kept) == 0 {
		return fmt.Errorf("%w: cannot delete every bin", ErrBadIndex)
	}

	// the fill limits lose their one-to-one meaning once arbitrary bins
	// are gone; renumber them like the explicit-limit constructor does
	fillLimits := make([]float64, len(kept)+1)
	for i := range fillLimits {
		fillLimits[i] = float64(i)
	}
	bins, err := NewBins(kept, fillLimits)
	if err != nil {
		return err
	}

	g.rebuildSubgrids(allTrue(len(g.orders)), keep, allTrue(len(g.channels)), bins, g.orders, g.channels)

	return nil
}

// mergeCell adds src into dst, converting dst to a baked representation
// when the variants cannot merge directly. A non-nil transpose swaps the
// two named dimensions of src first. The returned subgrid may be dst, a
// widened copy, or a clone of src.
func mergeCell(dst, src subgrid.Subgrid, transpose *[2]int) (subgrid.Subgrid, error) {
	if src == nil || src.IsEmpty() {
		return dst, nil
	}
	if dst == nil || dst.IsEmpty() {
		if transpose == nil {
			return src.Clone(), nil
		}
		nodes := src.NodeValues()
		nodes[transpose[0]], nodes[transpose[1]] = nodes[transpose[1]], nodes[transpose[0]]
		dst = subgrid.NewSparse(nodes)
	}

	if err := dst.Merge(src, transpose); err == nil {
		return dst, nil
	}

	baked := subgrid.Trim(dst)
	if err := baked.Merge(src, transpose); err != nil {
		return nil, err
	}

	return baked, nil
}

// MergeOptions tunes how Merge matches the two grids' bins.
type MergeOptions struct {
	// LimitULPs is the tolerance for comparing bin limits; zero selects
	// the default of 8 ULPs.
	LimitULPs uint

	// MatchByPosition skips the limit comparison entirely and matches
	// bins by index. Use it to combine grids whose limits differ only by
	// labeling.
	MatchByPosition bool
}

// Merge adds another grid into the receiver. The kinematic
// configuration must match exactly; bins are matched according to the
// options; orders and channels missing on the receiving side are
// appended.
func (g *Grid) Merge(other *Grid, opts MergeOptions) error {
	if len(other.convolutions) != len(g.convolutions) {
		return fmt.Errorf("%w: different convolution counts", ErrIncompatible)
	}
	for i, conv := range g.convolutions {
		if other.convolutions[i] != conv {
			return fmt.Errorf("%w: different convolutions", ErrIncompatible)
		}
	}
	if len(other.kinematics) != len(g.kinematics) {
		return fmt.Errorf("%w: different kinematics", ErrIncompatible)
	}
	for i, kin := range g.kinematics {
		if other.kinematics[i] != kin {
			return fmt.Errorf("%w: different kinematics", ErrIncompatible)
		}
	}
	if other.scales != g.scales {
		return fmt.Errorf("%w: different scale forms", ErrIncompatible)
	}
	if other.basis != g.basis {
		return fmt.Errorf("%w: different PID bases", ErrIncompatible)
	}

	ulps := opts.LimitULPs
	if ulps == 0 {
		ulps = 8
	}
	if opts.MatchByPosition {
		if other.bins.Len() != g.bins.Len() {
			return fmt.Errorf("%w: different bin counts", ErrIncompatible)
		}
	} else if !g.bins.EqWithULPs(other.bins, ulps) {
		return fmt.Errorf("%w: bin limits do not match", ErrIncompatible)
	}

	// map the other grid's orders and channels onto ours, appending
	// whatever we do not have yet
	orderMap := make([]int, len(other.orders))
	orders := g.orders
	for i, o := range other.orders {
		orderMap[i] = -1
		for j, mine := range orders {
			if o == mine {
				orderMap[i] = j
				break
			}
		}
		if orderMap[i] < 0 {
			orderMap[i] = len(orders)
			orders = append(orders, o)
		}
	}

	channelMap := make([]int, len(other.channels))
	channels := g.channels
	for i, ch := range other.channels {
		channelMap[i] = -1
		for j, mine := range channels {
			if ch.Equal(mine) {
				channelMap[i] = j
				break
			}
		}
		if channelMap[i] < 0 {
			channelMap[i] = len(channels)
			channels = append(channels, ch)
		}
	}

	bins := g.bins.Len()
	widened := make([]subgrid.Subgrid, len(orders)*bins*len(channels))
	for order := range g.orders {
		for bin := 0; bin < bins; bin++ {
			for channel := range g.channels {
				widened[(order*bins+bin)*len(channels)+channel] = g.subgrids[g.cell(order, bin, channel)]
			}
		}
	}
	g.subgrids = widened
	g.orders = orders
	g.channels = channels

	for order := range other.orders {
		for bin := 0; bin < bins; bin++ {
			for channel := range other.channels {
				src := other.subgrids[other.cell(order, bin, channel)]
				if src == nil || src.IsEmpty() {
					continue
				}

				cell := g.cell(orderMap[order], bin, channelMap[channel])
				merged, err := mergeCell(g.subgrids[cell], src, nil)
				if err != nil {
					return err
				}
				g.subgrids[cell] = merged
			}
		}
	}

	return nil
}

// MergeBins collapses the bins in [lo, hi) into one, summing the
// per-cell subgrids. Callers using non-default bin normalizations get
// the summed normalization, which approximates a width union.
func (g *Grid) MergeBins(lo, hi int) error {
	bins, err := g.bins.MergeRange(lo, hi)
	if err != nil {
		return err
	}

	subgrids := make([]subgrid.Subgrid, len(g.orders)*bins.Len()*len(g.channels))
	for order := range g.orders {
		for bin := 0; bin < g.bins.Len(); bin++ {
			target := bin
			if bin >= hi {
				target = bin - (hi - lo) + 1
			} else if bin > lo {
				target = lo
			}

			for channel := range g.channels {
				src := g.subgrids[g.cell(order, bin, channel)]
				cell := (order*bins.Len()+target)*len(g.channels) + channel
				merged, mergeErr := mergeCell(subgrids[cell], src, nil)
				if mergeErr != nil {
					return mergeErr
				}
				subgrids[cell] = merged
			}
		}
	}

	g.subgrids = subgrids
	g.bins = bins

	return nil
}

// Optimize shrinks the storage without changing any convolution result:
// transpose-equal channels are folded together, statically filled
// dimensions collapse to single nodes, node ranges are trimmed to the
// populated box, each subgrid is re-packed into its most compact
// representation, and orders or channels whose subgrids are all empty
// are dropped.
func (g *Grid) Optimize() {
	g.SymmetrizeChannels()

	for i, sg := range g.subgrids {
		if sg == nil {
			continue
		}
		if l, ok := sg.(*subgrid.Lagrange); ok {
			l.TrimStaticNodes()
		}

		trimmed := subgrid.Trim(sg)
		if _, empty := trimmed.(subgrid.Empty); empty {
			g.subgrids[i] = nil
			continue
		}
		g.subgrids[i] = trimmed
	}

	keepOrder := make([]bool, len(g.orders))
	keepChannel := make([]bool, len(g.channels))
	for order := range g.orders {
		for bin := 0; bin < g.bins.Len(); bin++ {
			for channel := range g.channels {
				if g.subgrids[g.cell(order, bin, channel)] != nil {
					keepOrder[order] = true
					keepChannel[channel] = true
				}
			}
		}
	}

	orders := make([]Order, 0, len(g.orders))
	removedOrders := false
	for i, o := range g.orders {
		if keepOrder[i] {
			orders = append(orders, o)
		} else {
			removedOrders = true
		}
	}
	channels := make([]Channel, 0, len(g.channels))
	removedChannels := false
	for i, ch := range g.channels {
		if keepChannel[i] {
			channels = append(channels, ch)
		} else {
			removedChannels = true
		}
	}

	// a grid with no content at all keeps one order and channel so the
	// configuration invariants survive
	if len(orders) == 0 || len(channels) == 0 {
		return
	}
	if removedOrders || removedChannels {
		g.rebuildSubgrids(keepOrder, allTrue(g.bins.Len()), keepChannel, g.bins, orders, channels)
	}
}

// SplitChannels expands every multi-entry channel into one channel per
// entry, duplicating the owning subgrids. Convolution results are
// unchanged because channel contributions add linearly.
func (g *Grid) SplitChannels() {
	split := make([]Channel, 0, len(g.channels))
	source := make([]int, 0, len(g.channels))
	for i, ch := range g.channels {
		for _, entry := range ch.Entries() {
			split = append(split, mustChannel([]ChannelEntry{entry}))
			source = append(source, i)
		}
	}
	if len(split) == len(g.channels) {
		return
	}

	bins := g.bins.Len()
	subgrids := make([]subgrid.Subgrid, len(g.orders)*bins*len(split))
	for order := range g.orders {
		for bin := 0; bin < bins; bin++ {
			for channel, from := range source {
				if sg := g.subgrids[g.cell(order, bin, from)]; sg != nil {
					subgrids[(order*bins+bin)*len(split)+channel] = sg.Clone()
				}
			}
		}
	}

	g.subgrids = subgrids
	g.channels = split
}

// DedupChannels coalesces channels whose subgrids are equal within the
// given ULP tolerance across every order and bin, concatenating their
// entry lists. It inverts SplitChannels.
func (g *Grid) DedupChannels(ulps uint) {
	for i := 0; i < len(g.channels); i++ {
		for j := i + 1; j < len(g.channels); j++ {
			equal := true
			for order := range g.orders {
				for bin := 0; bin < g.bins.Len(); bin++ {
					lhs := g.subgrids[g.cell(order, bin, i)]
					rhs := g.subgrids[g.cell(order, bin, j)]
					if !subgridsEqual(lhs, rhs, ulps) {
						equal = false
						break
					}
				}
				if !equal {
					break
				}
			}
			if !equal {
				continue
			}

			entries := append([]ChannelEntry(nil), g.channels[i].Entries()...)
			entries = append(entries, g.channels[j].Entries()...)
			g.channels[i] = mustChannel(entries)

			// deleting a channel with validated index cannot fail
			if err := g.DeleteChannels([]int{j}); err != nil {
				panic(err)
			}
			j--
		}
	}
}

// subgridsEqual compares node layouts and baked contents within the
// given ULP tolerance. Empty and nil cells compare equal to each other.
func subgridsEqual(a, b subgrid.Subgrid, ulps uint) bool {
	aEmpty := a == nil || a.IsEmpty()
	bEmpty := b == nil || b.IsEmpty()
	if aEmpty || bEmpty {
		return aEmpty == bEmpty
	}

	aNodes, bNodes := a.NodeValues(), b.NodeValues()
	if len(aNodes) != len(bNodes) {
		return false
	}
	for d := range aNodes {
		if len(aNodes[d]) != len(bNodes[d]) {
			return false
		}
		for i := range aNodes[d] {
			if !scalar.EqualWithinULP(aNodes[d][i], bNodes[d][i], ulps) {
				return false
			}
		}
	}

	flatten := func(index []int) int {
		flat := 0
		for d, i := range index {
			flat = flat*len(aNodes[d]) + i
		}
		return flat
	}

	aValues := map[int]float64{}
	a.Iterate(func(index []int, value float64) { aValues[flatten(index)] = value })
	bValues := map[int]float64{}
	b.Iterate(func(index []int, value float64) { bValues[flatten(index)] = value })

	if len(aValues) != len(bValues) {
		return false
	}
	for flat, value := range aValues {
		otherValue, ok := bValues[flat]
		if !ok || !scalar.EqualWithinULP(value, otherValue, ulps) {
			return false
		}
	}

	return true
}

// SymmetrizeChannels exploits transposition symmetry when the two
// convolutions are identical: a channel equal to its own transpose has
// its subgrids folded onto one triangle of the momentum-fraction plane,
// and a pair of mutually transposed channels collapses into one by
// merging the partner's subgrids with swapped momentum-fraction axes.
// Convolution results are unchanged.
func (g *Grid) SymmetrizeChannels() {
	if len(g.convolutions) != 2 || g.convolutions[0] != g.convolutions[1] {
		return
	}

	axes := [2]int{g.scaleDimCount(), g.scaleDimCount() + 1}

	merged := make([]bool, len(g.channels))
	var remove []int
	for i, ch := range g.channels {
		if merged[i] {
			continue
		}
		transposed := ch.Transpose(0, 1)

		if ch.Equal(transposed) {
			for order := range g.orders {
				for bin := 0; bin < g.bins.Len(); bin++ {
					sg := g.subgrids[g.cell(order, bin, i)]
					if sg != nil && xAxesEqual(sg, axes[0], axes[1]) {
						sg.Symmetrize(axes[0], axes[1])
					}
				}
			}
			continue
		}

		for j := i + 1; j < len(g.channels); j++ {
			if merged[j] || !g.channels[j].Equal(transposed) {
				continue
			}

			for order := range g.orders {
				for bin := 0; bin < g.bins.Len(); bin++ {
					src := g.subgrids[g.cell(order, bin, j)]
					cell := g.cell(order, bin, i)
					combined, err := mergeCell(g.subgrids[cell], src, &axes)
					if err != nil {
						// both x dimensions span one grid's kinematics,
						// so the union merge cannot fail
						panic(err)
					}
					g.subgrids[cell] = combined
				}
			}
			merged[j] = true
			remove = append(remove, j)
			break
		}
	}

	if len(remove) > 0 {
		if err := g.DeleteChannels(remove); err != nil {
			panic(err)
		}
	}
}

// xAxesEqual reports whether two dimensions of a subgrid share one node
// layout, the precondition for folding values across them.
func xAxesEqual(sg subgrid.Subgrid, a, b int) bool {
	nodes := sg.NodeValues()
	if len(nodes[a]) != len(nodes[b]) {
		return false
	}
	for k := range nodes[a] {
		if !subgrid.NodeValueEq(nodes[a][k], nodes[b][k]) {
			return false
		}
	}

	return true
}

// RotatePIDBasis relabels every channel in the target particle-ID
// basis. Subgrids are untouched; only the channel-space labeling
// changes, so two opposite rotations cancel.
func (g *Grid) RotatePIDBasis(target pids.Basis) {
	if g.basis == target {
		return
	}

	translator := pids.PdgToEvol
	if target == pids.Pdg {
		translator = pids.EvolToPdg
	}

	for i, ch := range g.channels {
		g.channels[i] = ch.Translate(translator)
	}
	g.basis = target
}
