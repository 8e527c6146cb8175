package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NNPDF/pineappl-go/grid"
	"github.com/NNPDF/pineappl-go/pids"
)

// multiGrid builds a two-order, two-channel variant of testGrid.
func multiGrid(t *testing.T) *grid.Grid {
	t.Helper()

	quarks, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, -2}, Factor: 1.0},
	})
	require.NoError(t, err)
	gluons, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{21, 21}, Factor: 1.0},
	})
	require.NoError(t, err)
	bins, err := grid.BinsFromFillLimits([]float64{0.0, 1.0, 2.0})
	require.NoError(t, err)

	g, err := grid.New(grid.Config{
		Orders: []grid.Order{
			grid.NewOrder(0, 2, 0, 0, 0),
			grid.NewOrder(1, 2, 0, 0, 0),
		},
		Channels: []grid.Channel{quarks, gluons},
		Bins:     bins,
		Convolutions: []grid.Conv{
			{Type: grid.UnpolPDF, PID: 2212},
			{Type: grid.UnpolPDF, PID: 2212},
		},
		Interps:    testInterps(t),
		Kinematics: grid.DefaultKinematics(2),
		Scales:     grid.Scales{Ren: grid.ScaleOf(0), Fac: grid.ScaleOf(0), Frg: grid.NoScaleForm()},
		Basis:      pids.Pdg,
	})
	require.NoError(t, err)

	return g
}

// TestGrid_Merge verifies that merging two separately filled grids gives
// the sum of their convolutions, with missing orders and channels
// appended.
func TestGrid_Merge(t *testing.T) {
	lhs := testGrid(t)
	require.NoError(t, lhs.Fill(0, 0.5, 0, []float64{1e4, 0.1, 0.3}, 2.0))

	rhs := multiGrid(t)
	require.NoError(t, rhs.Fill(0, 0.5, 0, []float64{1e4, 0.1, 0.3}, 1.0))
	require.NoError(t, rhs.Fill(1, 1.5, 1, []float64{1e5, 0.2, 0.4}, 4.0))

	lhsResults, err := lhs.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)
	rhsResults, err := rhs.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)

	require.NoError(t, lhs.Merge(rhs, grid.MergeOptions{}))
	assert.Len(t, lhs.Orders(), 2)
	assert.Len(t, lhs.Channels(), 2)

	merged, err := lhs.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)
	for bin := range merged {
		assert.InEpsilon(t, lhsResults[bin]+rhsResults[bin], merged[bin], 1e-9, "bin %d", bin)
	}
}

// TestGrid_MergeIncompatible verifies the configuration checks and the
// by-position escape hatch for relabeled bins.
func TestGrid_MergeIncompatible(t *testing.T) {
	g := testGrid(t)

	shifted, err := grid.BinsFromFillLimits([]float64{5.0, 6.0, 7.0})
	require.NoError(t, err)
	quarks, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, -2}, Factor: 1.0},
	})
	require.NoError(t, err)
	other, err := grid.New(grid.Config{
		Orders:   []grid.Order{grid.NewOrder(0, 2, 0, 0, 0)},
		Channels: []grid.Channel{quarks},
		Bins:     shifted,
		Convolutions: []grid.Conv{
			{Type: grid.UnpolPDF, PID: 2212},
			{Type: grid.UnpolPDF, PID: 2212},
		},
		Interps:    testInterps(t),
		Kinematics: grid.DefaultKinematics(2),
		Scales:     grid.Scales{Ren: grid.ScaleOf(0), Fac: grid.ScaleOf(0), Frg: grid.NoScaleForm()},
		Basis:      pids.Pdg,
	})
	require.NoError(t, err)
	require.NoError(t, other.Fill(0, 5.5, 0, []float64{1e4, 0.1, 0.3}, 3.0))

	assert.ErrorIs(t, g.Merge(other, grid.MergeOptions{}), grid.ErrIncompatible)

	require.NoError(t, g.Merge(other, grid.MergeOptions{MatchByPosition: true}))
	results, err := g.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, 3.0, results[0], 1e-9)

	evol := testGrid(t)
	evol.RotatePIDBasis(pids.Evol)
	assert.ErrorIs(t, g.Merge(evol, grid.MergeOptions{}), grid.ErrIncompatible)
}

// TestGrid_MergeBins verifies bin collapsing: the summed weights divided
// by the summed normalization.
func TestGrid_MergeBins(t *testing.T) {
	g := testGrid(t)
	require.NoError(t, g.Fill(0, 0.5, 0, []float64{1e4, 0.1, 0.3}, 2.0))
	require.NoError(t, g.Fill(0, 1.5, 0, []float64{1e5, 0.2, 0.4}, 3.0))

	require.NoError(t, g.MergeBins(0, 2))
	require.Equal(t, 1, g.BinInfo().Len())

	results, err := g.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, (2.0+3.0)/2.0, results[0], 1e-9)
}

// TestGrid_SplitDedupChannels verifies that splitting a multi-entry
// channel and deduplicating the clones are inverse operations, with the
// convolution unchanged throughout.
func TestGrid_SplitDedupChannels(t *testing.T) {
	mixed, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, -2}, Factor: 1.0},
		{PIDs: []int32{4, -4}, Factor: 2.0},
	})
	require.NoError(t, err)
	bins, err := grid.BinsFromFillLimits([]float64{0.0, 1.0})
	require.NoError(t, err)

	g, err := grid.New(grid.Config{
		Orders:   []grid.Order{grid.NewOrder(0, 2, 0, 0, 0)},
		Channels: []grid.Channel{mixed},
		Bins:     bins,
		Convolutions: []grid.Conv{
			{Type: grid.UnpolPDF, PID: 2212},
			{Type: grid.UnpolPDF, PID: 2212},
		},
		Interps:    testInterps(t),
		Kinematics: grid.DefaultKinematics(2),
		Scales:     grid.Scales{Ren: grid.ScaleOf(0), Fac: grid.ScaleOf(0), Frg: grid.NoScaleForm()},
		Basis:      pids.Pdg,
	})
	require.NoError(t, err)
	require.NoError(t, g.Fill(0, 0.5, 0, []float64{1e4, 0.1, 0.3}, 1.0))

	before, err := g.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, 3.0, before[0], 1e-9)

	g.SplitChannels()
	require.Len(t, g.Channels(), 2)
	split, err := g.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, before[0], split[0], 1e-9)

	g.DedupChannels(8)
	require.Len(t, g.Channels(), 1)
	assert.True(t, g.Channels()[0].Equal(mixed))
	deduped, err := g.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, before[0], deduped[0], 1e-9)
}

// TestGrid_SymmetrizeChannels verifies that a pair of mutually
// transposed channels collapses into one with the partner's subgrids
// folded in through swapped momentum-fraction axes, leaving the
// convolution unchanged.
func TestGrid_SymmetrizeChannels(t *testing.T) {
	up, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, -2}, Factor: 1.0},
	})
	require.NoError(t, err)
	down, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{-2, 2}, Factor: 1.0},
	})
	require.NoError(t, err)
	bins, err := grid.BinsFromFillLimits([]float64{0.0, 1.0})
	require.NoError(t, err)

	g, err := grid.New(grid.Config{
		Orders:   []grid.Order{grid.NewOrder(0, 2, 0, 0, 0)},
		Channels: []grid.Channel{up, down},
		Bins:     bins,
		Convolutions: []grid.Conv{
			{Type: grid.UnpolPDF, PID: 2212},
			{Type: grid.UnpolPDF, PID: 2212},
		},
		Interps:    testInterps(t),
		Kinematics: grid.DefaultKinematics(2),
		Scales:     grid.Scales{Ren: grid.ScaleOf(0), Fac: grid.ScaleOf(0), Frg: grid.NoScaleForm()},
		Basis:      pids.Pdg,
	})
	require.NoError(t, err)
	require.NoError(t, g.Fill(0, 0.5, 0, []float64{1e4, 0.1, 0.3}, 2.0))
	require.NoError(t, g.Fill(0, 0.5, 1, []float64{1e4, 0.2, 0.4}, 3.0))

	proton := grid.Conv{Type: grid.UnpolPDF, PID: 2212}
	density := func(pid int32, x, scale2 float64) float64 {
		return x * (1.0 + 0.01*float64(pid%7))
	}
	cache := grid.NewCache([]grid.ConvFunc{
		{Conv: proton, Density: density},
		{Conv: proton, Density: density},
	}, func(scale2 float64) float64 { return 1.0 })

	before, err := g.Convolve(cache, grid.ConvolveOptions{})
	require.NoError(t, err)

	// Optimize runs the symmetrization before compacting storage
	g.Optimize()
	require.Len(t, g.Channels(), 1)
	assert.True(t, g.Channels()[0].Equal(up))

	after, err := g.Convolve(cache, grid.ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, before[0], after[0], 1e-9)
}

// TestGrid_SymmetrizeChannels_SelfTransposed verifies that a channel
// equal to its own transpose keeps its convolution after its subgrids
// are folded onto one triangle.
func TestGrid_SymmetrizeChannels_SelfTransposed(t *testing.T) {
	sym, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, -2}, Factor: 1.0},
		{PIDs: []int32{-2, 2}, Factor: 1.0},
	})
	require.NoError(t, err)
	bins, err := grid.BinsFromFillLimits([]float64{0.0, 1.0})
	require.NoError(t, err)

	g, err := grid.New(grid.Config{
		Orders:   []grid.Order{grid.NewOrder(0, 2, 0, 0, 0)},
		Channels: []grid.Channel{sym},
		Bins:     bins,
		Convolutions: []grid.Conv{
			{Type: grid.UnpolPDF, PID: 2212},
			{Type: grid.UnpolPDF, PID: 2212},
		},
		Interps:    testInterps(t),
		Kinematics: grid.DefaultKinematics(2),
		Scales:     grid.Scales{Ren: grid.ScaleOf(0), Fac: grid.ScaleOf(0), Frg: grid.NoScaleForm()},
		Basis:      pids.Pdg,
	})
	require.NoError(t, err)
	require.NoError(t, g.Fill(0, 0.5, 0, []float64{1e4, 0.1, 0.3}, 2.0))

	proton := grid.Conv{Type: grid.UnpolPDF, PID: 2212}
	density := func(pid int32, x, scale2 float64) float64 {
		return x * (1.0 + 0.01*float64(pid%7))
	}
	cache := grid.NewCache([]grid.ConvFunc{
		{Conv: proton, Density: density},
		{Conv: proton, Density: density},
	}, func(scale2 float64) float64 { return 1.0 })

	before, err := g.Convolve(cache, grid.ConvolveOptions{})
	require.NoError(t, err)

	g.SymmetrizeChannels()
	require.Len(t, g.Channels(), 1)

	after, err := g.Convolve(cache, grid.ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, before[0], after[0], 1e-9)
}

// TestGrid_RotatePIDBasis verifies that two opposite basis rotations
// reproduce the original convolution with a flavor-sensitive density.
func TestGrid_RotatePIDBasis(t *testing.T) {
	g := testGrid(t)
	require.NoError(t, g.Fill(0, 0.5, 0, []float64{1e4, 0.1, 0.3}, 1.0))

	proton := grid.Conv{Type: grid.UnpolPDF, PID: 2212}
	density := func(pid int32, x, scale2 float64) float64 {
		return x * (1.0 + 0.01*float64(pid%7))
	}
	cache := grid.NewCache([]grid.ConvFunc{
		{Conv: proton, Density: density},
		{Conv: proton, Density: density},
	}, func(scale2 float64) float64 { return 1.0 })

	before, err := g.Convolve(cache, grid.ConvolveOptions{})
	require.NoError(t, err)

	g.RotatePIDBasis(pids.Evol)
	assert.Equal(t, pids.Evol, g.PidBasis())
	g.RotatePIDBasis(pids.Pdg)
	assert.Equal(t, pids.Pdg, g.PidBasis())

	after, err := g.Convolve(cache, grid.ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, before[0], after[0], 1e-9)
}

// TestGrid_Optimize verifies that optimization collapses a statically
// filled scale axis, drops empty orders and channels, and leaves the
// convolution untouched.
func TestGrid_Optimize(t *testing.T) {
	g := multiGrid(t)
	require.NoError(t, g.Fill(0, 0.5, 0, []float64{1e4, 0.1, 0.3}, 2.0))
	require.NoError(t, g.Fill(0, 1.5, 0, []float64{1e4, 0.2, 0.4}, 3.0))

	before, err := g.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)

	g.Optimize()

	assert.Len(t, g.Orders(), 1)
	assert.Len(t, g.Channels(), 1)

	// every fill sat at the same scale, so the scale axis is one node now
	nodes := g.Subgrid(0, 0, 0).NodeValues()
	assert.Len(t, nodes[0], 1)
	assert.InDelta(t, 1e4, nodes[0][0], 1e-7)

	after, err := g.Convolve(unitCache(), grid.ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, before[0], after[0], 1e-9)
	assert.InEpsilon(t, before[1], after[1], 1e-9)
}
