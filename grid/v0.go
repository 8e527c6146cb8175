package grid

import (
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/NNPDF/pineappl-go/pids"
	"github.com/NNPDF/pineappl-go/subgrid"
)

// The legacy layout predates fragmentation functions, flexible
// kinematics and explicit convolution descriptors: always two hadronic
// slots, four order exponents, one-dimensional bins and fixed
// (q2, x1, x2) subgrids. readV0 upgrades it into the current model.

type fileOrderV0 struct {
	Alphas uint8
	Alpha  uint8
	LogXiR uint8
	LogXiF uint8
}

type fileLumiEntryV0 struct {
	Pid1   int32
	Pid2   int32
	Factor float64
}

type fileLumiV0 struct {
	Entries []fileLumiEntryV0
}

type fileSubgridV0 struct {
	Order   int
	Bin     int
	Lumi    int
	Q2      []float64
	X1      []float64
	X2      []float64
	Indices []int
	Values  []float64
}

type fileGridV0 struct {
	Orders    []fileOrderV0
	Lumi      []fileLumiV0
	BinLimits []float64
	Metadata  map[string]string
	Subgrids  []fileSubgridV0
}

// v0Convolution resolves the convolution descriptor of one legacy
// hadronic slot. The modern metadata keys take precedence; the older
// initial-state keys mark a slot as inactive when its particle shows up
// unchanged in every luminosity entry (the lepton of a DIS grid);
// without any metadata the slot defaults to an unpolarized proton.
func v0Convolution(metadata map[string]string, slot int, slotPids []int32) (*Conv, error) {
	if particle, ok := metadata["convolution_particle_"+strconv.Itoa(slot)]; ok {
		convTypeName, ok := metadata["convolution_type_"+strconv.Itoa(slot)]
		if !ok {
			return nil, fmt.Errorf("%w: convolution_particle_%d without convolution_type_%d",
				ErrParse, slot, slot)
		}
		if convTypeName == "None" {
			return nil, nil
		}

		pid, err := strconv.ParseInt(particle, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad convolution_particle_%d: %v", ErrParse, slot, err)
		}
		convType, err := ParseConvType(convTypeName)
		if err != nil {
			return nil, err
		}

		return &Conv{Type: convType, PID: int32(pid)}, nil
	}

	if initial, ok := metadata["initial_state_"+strconv.Itoa(slot)]; ok {
		pid, err := strconv.ParseInt(initial, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad initial_state_%d: %v", ErrParse, slot, err)
		}

		inactive := len(slotPids) > 0
		for _, slotPid := range slotPids {
			if slotPid != int32(pid) {
				inactive = false
				break
			}
		}
		if inactive {
			return nil, nil
		}

		return &Conv{Type: UnpolPDF, PID: int32(pid)}, nil
	}

	return &Conv{Type: UnpolPDF, PID: 2212}, nil
}

func readV0(dec *msgpack.Decoder) (*Grid, error) {
	var fg fileGridV0
	if err := dec.Decode(&fg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	orders := make([]Order, len(fg.Orders))
	for i, o := range fg.Orders {
		orders[i] = NewOrder(o.Alphas, o.Alpha, o.LogXiR, o.LogXiF, 0)
	}

	bins, err := BinsFromFillLimits(fg.BinLimits)
	if err != nil {
		return nil, err
	}

	basis := pids.Pdg
	if name, ok := fg.Metadata["lumi_id_types"]; ok {
		basis, err = pids.ParseBasis(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
	}

	slotPids := func(slot int) []int32 {
		var pidList []int32
		for _, lumi := range fg.Lumi {
			for _, entry := range lumi.Entries {
				pid := entry.Pid1
				if slot == 2 {
					pid = entry.Pid2
				}
				pidList = append(pidList, pid)
			}
		}
		return pidList
	}

	conv1, err := v0Convolution(fg.Metadata, 1, slotPids(1))
	if err != nil {
		return nil, err
	}
	conv2, err := v0Convolution(fg.Metadata, 2, slotPids(2))
	if err != nil {
		return nil, err
	}
	if conv1 == nil && conv2 == nil {
		return nil, fmt.Errorf("%w: both convolutions are inactive", ErrParse)
	}

	var convolutions []Conv
	if conv1 != nil {
		convolutions = append(convolutions, *conv1)
	}
	if conv2 != nil {
		convolutions = append(convolutions, *conv2)
	}
	legs := len(convolutions)

	channels := make([]Channel, len(fg.Lumi))
	for i, lumi := range fg.Lumi {
		entries := make([]ChannelEntry, len(lumi.Entries))
		for j, entry := range lumi.Entries {
			var tuple []int32
			if conv1 != nil {
				tuple = append(tuple, entry.Pid1)
			}
			if conv2 != nil {
				tuple = append(tuple, entry.Pid2)
			}
			entries[j] = ChannelEntry{PIDs: tuple, Factor: entry.Factor}
		}
		ch, err := NewChannel(entries)
		if err != nil {
			return nil, err
		}
		channels[i] = ch
	}

	g, err := New(Config{
		Orders:       orders,
		Channels:     channels,
		Bins:         bins,
		Convolutions: convolutions,
		Interps:      DefaultInterps(legs),
		Kinematics:   DefaultKinematics(legs),
		Scales:       Scales{Ren: ScaleOf(0), Fac: ScaleOf(0), Frg: NoScaleForm()},
		Basis:        basis,
	})
	if err != nil {
		return nil, err
	}
	for key, value := range fg.Metadata {
		g.metadata[key] = value
	}

	for _, fs := range fg.Subgrids {
		if fs.Order < 0 || fs.Order >= len(orders) ||
			fs.Bin < 0 || fs.Bin >= bins.Len() ||
			fs.Lumi < 0 || fs.Lumi >= len(channels) {
			return nil, fmt.Errorf("%w: subgrid cell (%d, %d, %d) outside the grid",
				ErrParse, fs.Order, fs.Bin, fs.Lumi)
		}
		if len(fs.Indices) != len(fs.Values) {
			return nil, fmt.Errorf("%w: subgrid index and value lists disagree", ErrParse)
		}

		shape := []int{len(fs.Q2), len(fs.X1), len(fs.X2)}
		total := shape[0] * shape[1] * shape[2]

		// inactive slots collapse their momentum-fraction axis
		nodes := [][]float64{fs.Q2}
		if conv1 != nil {
			nodes = append(nodes, fs.X1)
		}
		if conv2 != nil {
			nodes = append(nodes, fs.X2)
		}

		sparse := subgrid.NewSparse(nodes)
		index := make([]int, 3)
		target := make([]int, len(nodes))
		for i, flat := range fs.Indices {
			if flat < 0 || flat >= total {
				return nil, fmt.Errorf("%w: subgrid index %d outside shape", ErrParse, flat)
			}
			unflattenIndex(shape, flat, index)

			target = target[:0]
			target = append(target, index[0])
			if conv1 != nil {
				target = append(target, index[1])
			}
			if conv2 != nil {
				target = append(target, index[2])
			}
			sparse.Add(target, fs.Values[i])
		}

		if !sparse.IsEmpty() {
			g.SetSubgrid(fs.Order, fs.Bin, fs.Lumi, sparse)
		}
	}

	return g, nil
}
