package grid

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/NNPDF/pineappl-go/pids"
)

// encodeV0 wraps a legacy payload in the file envelope.
func encodeV0(t *testing.T, fg fileGridV0) *bytes.Reader {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(fileMagic[:])
	buf.WriteByte(formatV0)
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(fg))

	return bytes.NewReader(buf.Bytes())
}

// TestReadV0_DIS verifies the legacy upgrade of a deep-inelastic grid:
// the lepton slot is recognized as inactive from the initial-state
// metadata, its momentum-fraction axis collapses, and the remaining
// proton slot convolves like a native one-convolution grid.
func TestReadV0_DIS(t *testing.T) {
	fg := fileGridV0{
		Orders: []fileOrderV0{
			{Alphas: 0, Alpha: 2},
			{Alphas: 0, Alpha: 2, LogXiR: 1, LogXiF: 1},
		},
		BinLimits: []float64{0.0, 1.0},
		Metadata: map[string]string{
			"initial_state_1": "2212",
			"initial_state_2": "11",
		},
		Lumi: []fileLumiV0{{Entries: []fileLumiEntryV0{
			{Pid1: 2, Pid2: 11, Factor: 1.0},
			{Pid1: -2, Pid2: 11, Factor: 1.0},
		}}},
		Subgrids: []fileSubgridV0{{
			Order: 0,
			Bin:   0,
			Lumi:  0,
			Q2:    []float64{1e4},
			X1:    []float64{0.1, 0.5},
			X2:    []float64{1.0},
			// shape (1, 2, 1): flat index i addresses x1 node i
			Indices: []int{0, 1},
			Values:  []float64{2.0, 3.0},
		}},
	}

	g, err := Read(encodeV0(t, fg))
	require.NoError(t, err)

	// the missing fragmentation-log exponent is zero-filled
	assert.Equal(t, []Order{
		NewOrder(0, 2, 0, 0, 0),
		NewOrder(0, 2, 1, 1, 0),
	}, g.Orders())
	assert.Equal(t, []Conv{{Type: UnpolPDF, PID: 2212}}, g.Convolutions())
	assert.Equal(t, DefaultKinematics(1), g.Kinematics())
	assert.Equal(t, Scales{Ren: ScaleOf(0), Fac: ScaleOf(0), Frg: NoScaleForm()}, g.ScaleForms())
	assert.Equal(t, pids.Pdg, g.PidBasis())
	assert.Equal(t, "11", g.Metadata()["initial_state_2"])

	// the lepton leg is gone from the channel tuples
	want, err := NewChannel([]ChannelEntry{
		{PIDs: []int32{2}, Factor: 1.0},
		{PIDs: []int32{-2}, Factor: 1.0},
	})
	require.NoError(t, err)
	require.Len(t, g.Channels(), 1)
	assert.True(t, g.Channels()[0].Equal(want))

	sg := g.Subgrid(0, 0, 0)
	assert.Equal(t, [][]float64{{1e4}, {0.1, 0.5}}, sg.NodeValues())

	// both surviving entries contribute, so unit densities double every
	// stored value
	unit := func(pid int32, x, scale2 float64) float64 { return 1.0 }
	cache := NewCache([]ConvFunc{
		{Conv: Conv{Type: UnpolPDF, PID: 2212}, Density: unit},
	}, func(scale2 float64) float64 { return 1.0 })
	results, err := g.Convolve(cache, ConvolveOptions{})
	require.NoError(t, err)
	assert.InEpsilon(t, 10.0, results[0], 1e-12)
}

// TestReadV0_HadronicDefaults verifies that a legacy grid without any
// convolution metadata upgrades to two unpolarized protons.
func TestReadV0_HadronicDefaults(t *testing.T) {
	fg := fileGridV0{
		Orders:    []fileOrderV0{{Alphas: 0, Alpha: 2}},
		BinLimits: []float64{0.0, 1.0},
		Lumi: []fileLumiV0{{Entries: []fileLumiEntryV0{
			{Pid1: 2, Pid2: -2, Factor: 1.0},
		}}},
		Subgrids: []fileSubgridV0{{
			Order:   0,
			Bin:     0,
			Lumi:    0,
			Q2:      []float64{1e4},
			X1:      []float64{0.3},
			X2:      []float64{0.7},
			Indices: []int{0},
			Values:  []float64{4.0},
		}},
	}

	g, err := Read(encodeV0(t, fg))
	require.NoError(t, err)

	assert.Equal(t, []Conv{
		{Type: UnpolPDF, PID: 2212},
		{Type: UnpolPDF, PID: 2212},
	}, g.Convolutions())
	assert.Equal(t, [][]float64{{1e4}, {0.3}, {0.7}}, g.Subgrid(0, 0, 0).NodeValues())
}

// TestReadV0_ModernMetadata verifies that the explicit convolution keys
// override the defaults, including the polarized types and the "None"
// marker for a missing slot.
func TestReadV0_ModernMetadata(t *testing.T) {
	fg := fileGridV0{
		Orders:    []fileOrderV0{{Alphas: 0, Alpha: 2}},
		BinLimits: []float64{0.0, 1.0},
		Metadata: map[string]string{
			"convolution_particle_1": "2212",
			"convolution_type_1":     "PolPDF",
			"convolution_particle_2": "0",
			"convolution_type_2":     "None",
			"lumi_id_types":          "evol",
		},
		Lumi: []fileLumiV0{{Entries: []fileLumiEntryV0{
			{Pid1: 100, Pid2: 0, Factor: 1.0},
		}}},
	}

	g, err := Read(encodeV0(t, fg))
	require.NoError(t, err)

	assert.Equal(t, []Conv{{Type: PolPDF, PID: 2212}}, g.Convolutions())
	assert.Equal(t, pids.Evol, g.PidBasis())
}

// TestReadV0_Errors verifies the metadata validation.
func TestReadV0_Errors(t *testing.T) {
	missingType := fileGridV0{
		Orders:    []fileOrderV0{{Alpha: 2}},
		BinLimits: []float64{0.0, 1.0},
		Metadata:  map[string]string{"convolution_particle_1": "2212"},
		Lumi: []fileLumiV0{{Entries: []fileLumiEntryV0{
			{Pid1: 2, Pid2: -2, Factor: 1.0},
		}}},
	}
	_, err := Read(encodeV0(t, missingType))
	assert.ErrorIs(t, err, ErrParse)

	bothInactive := fileGridV0{
		Orders:    []fileOrderV0{{Alpha: 2}},
		BinLimits: []float64{0.0, 1.0},
		Metadata: map[string]string{
			"convolution_particle_1": "0",
			"convolution_type_1":     "None",
			"convolution_particle_2": "0",
			"convolution_type_2":     "None",
		},
		Lumi: []fileLumiV0{{Entries: []fileLumiEntryV0{
			{Pid1: 2, Pid2: -2, Factor: 1.0},
		}}},
	}
	_, err = Read(encodeV0(t, bothInactive))
	assert.ErrorIs(t, err, ErrParse)
}
