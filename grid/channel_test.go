package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NNPDF/pineappl-go/grid"
	"github.com/NNPDF/pineappl-go/pids"
)

// TestNewChannel_SortsAndCoalesces verifies that entry order does not
// matter, that identical tuples merge and that zero factors vanish.
func TestNewChannel_SortsAndCoalesces(t *testing.T) {
	lhs, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, 2}, Factor: 1.0},
		{PIDs: []int32{4, 4}, Factor: 1.0},
	})
	require.NoError(t, err)
	rhs, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{4, 4}, Factor: 1.0},
		{PIDs: []int32{2, 2}, Factor: 1.0},
	})
	require.NoError(t, err)
	assert.True(t, lhs.Equal(rhs))

	merged, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{1, 1}, Factor: 1.0},
		{PIDs: []int32{1, 1}, Factor: 3.0},
		{PIDs: []int32{3, 3}, Factor: 1.0},
		{PIDs: []int32{1, 1}, Factor: 6.0},
	})
	require.NoError(t, err)
	want, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{1, 1}, Factor: 10.0},
		{PIDs: []int32{3, 3}, Factor: 1.0},
	})
	require.NoError(t, err)
	assert.True(t, merged.Equal(want))

	cancelled, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{1, 1}, Factor: 2.0},
		{PIDs: []int32{1, 1}, Factor: -2.0},
		{PIDs: []int32{2, 2}, Factor: 1.0},
	})
	require.NoError(t, err)
	assert.Len(t, cancelled.Entries(), 1)
}

// TestNewChannel_Errors verifies the construction invariants.
func TestNewChannel_Errors(t *testing.T) {
	_, err := grid.NewChannel(nil)
	assert.ErrorIs(t, err, grid.ErrBadChannel)

	_, err = grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{1, 1, 1}, Factor: 1.0},
		{PIDs: []int32{1, 1}, Factor: 1.0},
	})
	assert.ErrorIs(t, err, grid.ErrBadChannel)
}

// TestParseChannel verifies the textual notation, whitespace included,
// and its round trip through String.
func TestParseChannel(t *testing.T) {
	ch, err := grid.ParseChannel(" 1   * (  2 , -2) + 2* (4,-4)")
	require.NoError(t, err)

	want, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, -2}, Factor: 1.0},
		{PIDs: []int32{4, -4}, Factor: 2.0},
	})
	require.NoError(t, err)
	assert.True(t, ch.Equal(want))

	reparsed, err := grid.ParseChannel(ch.String())
	require.NoError(t, err)
	assert.True(t, ch.Equal(reparsed))

	_, err = grid.ParseChannel("1 * (2, x)")
	assert.ErrorIs(t, err, grid.ErrParse)
	_, err = grid.ParseChannel("(2, 2)")
	assert.ErrorIs(t, err, grid.ErrParse)
}

// TestChannel_Transpose verifies the leg swap.
func TestChannel_Transpose(t *testing.T) {
	ch, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, -2}, Factor: 1.0},
		{PIDs: []int32{21, 1}, Factor: 3.0},
	})
	require.NoError(t, err)

	want, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{-2, 2}, Factor: 1.0},
		{PIDs: []int32{1, 21}, Factor: 3.0},
	})
	require.NoError(t, err)
	assert.True(t, ch.Transpose(0, 1).Equal(want))
}

// TestChannel_CommonFactor verifies the proportionality detection.
func TestChannel_CommonFactor(t *testing.T) {
	lhs, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, 2}, Factor: 2.0},
		{PIDs: []int32{4, 4}, Factor: 6.0},
	})
	require.NoError(t, err)
	rhs, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, 2}, Factor: 1.0},
		{PIDs: []int32{4, 4}, Factor: 3.0},
	})
	require.NoError(t, err)

	factor, ok := lhs.CommonFactor(rhs)
	require.True(t, ok)
	assert.InDelta(t, 2.0, factor, 1e-15)

	skewed, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, 2}, Factor: 1.0},
		{PIDs: []int32{4, 4}, Factor: 4.0},
	})
	require.NoError(t, err)
	_, ok = lhs.CommonFactor(skewed)
	assert.False(t, ok)
}

// TestChannel_Translate verifies the basis substitution on a channel
// whose IDs map to themselves, and a full rotation round trip on one
// that does not.
func TestChannel_Translate(t *testing.T) {
	gluons, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{21, 21}, Factor: 2.0},
	})
	require.NoError(t, err)
	assert.True(t, gluons.Translate(pids.PdgToEvol).Equal(gluons))

	quarks, err := grid.NewChannel([]grid.ChannelEntry{
		{PIDs: []int32{2, -2}, Factor: 1.0},
	})
	require.NoError(t, err)

	back := quarks.Translate(pids.PdgToEvol).Translate(pids.EvolToPdg)
	factor, ok := back.CommonFactor(quarks)
	require.True(t, ok, "round trip must reproduce the channel up to rounding")
	assert.InDelta(t, 1.0, factor, 1e-12)
}
