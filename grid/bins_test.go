package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NNPDF/pineappl-go/grid"
)

// TestBinsFromFillLimits verifies the derived limits and width
// normalizations.
func TestBinsFromFillLimits(t *testing.T) {
	bins, err := grid.BinsFromFillLimits([]float64{0.0, 0.5, 2.0})
	require.NoError(t, err)

	assert.Equal(t, 2, bins.Len())
	assert.Equal(t, 1, bins.Dimensions())
	assert.Equal(t, [][2]float64{{0.0, 0.5}}, bins.Bins()[0].Limits())
	assert.Equal(t, []float64{0.5, 1.5}, bins.Normalizations())

	_, err = grid.BinsFromFillLimits([]float64{1.0})
	assert.ErrorIs(t, err, grid.ErrBadBins)
	_, err = grid.BinsFromFillLimits([]float64{1.0, 1.0, 2.0})
	assert.ErrorIs(t, err, grid.ErrBadBins)
}

// TestBins_FillIndex verifies the edge semantics: the lower edge and
// interior limits belong to the bin above them, the upper edge and
// anything outside belong to no bin.
func TestBins_FillIndex(t *testing.T) {
	bins, err := grid.BinsFromFillLimits([]float64{0.0, 1.0, 2.0, 3.0})
	require.NoError(t, err)

	for _, tc := range []struct {
		value float64
		index int
		ok    bool
	}{
		{-0.5, 0, false},
		{0.0, 0, true},
		{0.5, 0, true},
		{1.0, 1, true},
		{1.5, 1, true},
		{2.0, 2, true},
		{2.999, 2, true},
		{3.0, 0, false},
		{3.5, 0, false},
	} {
		index, ok := bins.FillIndex(tc.value)
		assert.Equal(t, tc.ok, ok, "value %v", tc.value)
		if tc.ok {
			assert.Equal(t, tc.index, index, "value %v", tc.value)
		}
	}
}

// twoDimBins builds a 2x2 double-differential layout: two slices in the
// outer dimension with two inner bins each.
func twoDimBins(t *testing.T) *grid.Bins {
	t.Helper()

	bins, err := grid.BinsFromLimitsAndNormalizations([][][2]float64{
		{{0.0, 1.0}, {0.0, 10.0}},
		{{0.0, 1.0}, {10.0, 20.0}},
		{{1.0, 2.0}, {0.0, 10.0}},
		{{1.0, 2.0}, {10.0, 20.0}},
	}, []float64{10.0, 10.0, 10.0, 10.0})
	require.NoError(t, err)

	return bins
}

// TestBins_Slices verifies the contiguous-slice grouping of one- and
// two-dimensional layouts.
func TestBins_Slices(t *testing.T) {
	flat, err := grid.BinsFromFillLimits([]float64{0.0, 1.0, 2.0})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 2}}, flat.Slices())

	assert.Equal(t, [][2]int{{0, 2}, {2, 4}}, twoDimBins(t).Slices())
}

// TestBins_MergeRange verifies limit widening and normalization
// summation, and that ranges crossing a slice border are rejected.
func TestBins_MergeRange(t *testing.T) {
	flat, err := grid.BinsFromFillLimits([]float64{0.0, 1.0, 2.0, 4.0})
	require.NoError(t, err)

	merged, err := flat.MergeRange(1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Len())
	assert.Equal(t, [][2]float64{{1.0, 4.0}}, merged.Bins()[1].Limits())
	assert.InDelta(t, 3.0, merged.Bins()[1].Normalization(), 1e-15)

	_, err = flat.MergeRange(2, 2)
	assert.ErrorIs(t, err, grid.ErrBadIndex)

	_, err = twoDimBins(t).MergeRange(1, 3)
	assert.ErrorIs(t, err, grid.ErrBinsNotConnected)

	inner, err := twoDimBins(t).MergeRange(0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.Len())
	assert.Equal(t, [][2]float64{{0.0, 1.0}, {0.0, 20.0}}, inner.Bins()[0].Limits())
	assert.InDelta(t, 20.0, inner.Bins()[0].Normalization(), 1e-15)
}

// TestBins_Remove verifies bin deletion.
func TestBins_Remove(t *testing.T) {
	bins, err := grid.BinsFromFillLimits([]float64{0.0, 1.0, 2.0, 3.0})
	require.NoError(t, err)

	bins.Remove(1)
	assert.Equal(t, 2, bins.Len())
	assert.Equal(t, [][2]float64{{2.0, 3.0}}, bins.Bins()[1].Limits())
}

// TestBins_EqWithULPs verifies the tolerant comparison used by merge.
func TestBins_EqWithULPs(t *testing.T) {
	lhs, err := grid.BinsFromFillLimits([]float64{0.0, 1.0, 2.0})
	require.NoError(t, err)
	rhs, err := grid.BinsFromFillLimits([]float64{0.0, 1.0, 2.0})
	require.NoError(t, err)
	assert.True(t, lhs.EqWithULPs(rhs, 8))

	other, err := grid.BinsFromFillLimits([]float64{0.0, 1.5, 2.0})
	require.NoError(t, err)
	assert.False(t, lhs.EqWithULPs(other, 8))
}
