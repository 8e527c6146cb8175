package grid

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/NNPDF/pineappl-go/interp"
	"github.com/NNPDF/pineappl-go/pids"
	"github.com/NNPDF/pineappl-go/subgrid"
)

// Every file starts with the magic, one format-version byte and a
// msgpack payload; the whole envelope may additionally be wrapped in an
// LZ4 frame, which Read detects transparently.
var (
	fileMagic = [8]byte{'P', 'i', 'n', 'e', 'A', 'P', 'P', 'L'}
	lz4Magic  = [4]byte{0x04, 0x22, 0x4D, 0x18}
)

const (
	formatV0 = 0
	formatV1 = 1
)

type fileOrder struct {
	Alphas uint8
	Alpha  uint8
	LogXiR uint8
	LogXiF uint8
	LogXiA uint8
}

type fileChannelEntry struct {
	Pids   []int32
	Factor float64
}

type fileChannel struct {
	Entries []fileChannelEntry
}

type fileBins struct {
	Limits         [][][2]float64
	Normalizations []float64
	FillLimits     []float64
}

type fileConv struct {
	Type string
	Pid  int32
}

type fileInterp struct {
	Min      float64
	Max      float64
	Nodes    int
	Order    int
	Reweight uint8
	Mapping  uint8
	Method   uint8
}

type fileKinematic struct {
	Kind  uint8
	Index int
}

type fileScaleForm struct {
	Kind uint8
	Idx1 int
	Idx2 int
}

type fileScales struct {
	Ren fileScaleForm
	Fac fileScaleForm
	Frg fileScaleForm
}

// fileSubgrid stores one non-empty cell: its cell coordinates, the node
// coordinates per dimension and the values as parallel flat-index and
// value lists.
type fileSubgrid struct {
	Order   int
	Bin     int
	Channel int
	Nodes   [][]float64
	Indices []int
	Values  []float64
}

type fileGrid struct {
	Orders       []fileOrder
	Channels     []fileChannel
	Bins         fileBins
	Convolutions []fileConv
	Interps      []fileInterp
	Kinematics   []fileKinematic
	Scales       fileScales
	Basis        string
	Metadata     map[string]string
	Subgrids     []fileSubgrid
}

func flattenIndex(shape, index []int) int {
	flat := 0
	for d, i := range index {
		flat = flat*shape[d] + i
	}

	return flat
}

func unflattenIndex(shape []int, flat int, index []int) {
	for d := len(shape) - 1; d >= 0; d-- {
		index[d] = flat % shape[d]
		flat /= shape[d]
	}
}

func (g *Grid) toFile() fileGrid {
	fg := fileGrid{
		Basis:    g.basis.String(),
		Metadata: g.metadata,
	}

	for _, o := range g.orders {
		fg.Orders = append(fg.Orders, fileOrder{
			Alphas: o.Alphas, Alpha: o.Alpha, LogXiR: o.LogXiR, LogXiF: o.LogXiF, LogXiA: o.LogXiA,
		})
	}
	for _, ch := range g.channels {
		fc := fileChannel{}
		for _, entry := range ch.Entries() {
			fc.Entries = append(fc.Entries, fileChannelEntry{Pids: entry.PIDs, Factor: entry.Factor})
		}
		fg.Channels = append(fg.Channels, fc)
	}
	for _, bin := range g.bins.Bins() {
		fg.Bins.Limits = append(fg.Bins.Limits, bin.Limits())
		fg.Bins.Normalizations = append(fg.Bins.Normalizations, bin.Normalization())
	}
	fg.Bins.FillLimits = g.bins.FillLimits()
	for _, conv := range g.convolutions {
		fg.Convolutions = append(fg.Convolutions, fileConv{Type: conv.Type.String(), Pid: conv.PID})
	}
	for _, in := range g.interps {
		fg.Interps = append(fg.Interps, fileInterp{
			Min:      in.Min(),
			Max:      in.Max(),
			Nodes:    in.Nodes(),
			Order:    in.Order(),
			Reweight: uint8(in.ReweightMeth()),
			Mapping:  uint8(in.Mapping()),
			Method:   uint8(in.Method()),
		})
	}
	for _, kin := range g.kinematics {
		fg.Kinematics = append(fg.Kinematics, fileKinematic{Kind: uint8(kin.Kind), Index: kin.Index})
	}
	fg.Scales = fileScales{
		Ren: fileScaleForm{Kind: uint8(g.scales.Ren.Kind), Idx1: g.scales.Ren.Idx1, Idx2: g.scales.Ren.Idx2},
		Fac: fileScaleForm{Kind: uint8(g.scales.Fac.Kind), Idx1: g.scales.Fac.Idx1, Idx2: g.scales.Fac.Idx2},
		Frg: fileScaleForm{Kind: uint8(g.scales.Frg.Kind), Idx1: g.scales.Frg.Idx1, Idx2: g.scales.Frg.Idx2},
	}

	for order := range g.orders {
		for bin := 0; bin < g.bins.Len(); bin++ {
			for channel := range g.channels {
				sg := g.subgrids[g.cell(order, bin, channel)]
				if sg == nil || sg.IsEmpty() {
					continue
				}

				fs := fileSubgrid{Order: order, Bin: bin, Channel: channel, Nodes: sg.NodeValues()}
				shape := make([]int, len(fs.Nodes))
				for d, values := range fs.Nodes {
					shape[d] = len(values)
				}
				sg.Iterate(func(index []int, value float64) {
					fs.Indices = append(fs.Indices, flattenIndex(shape, index))
					fs.Values = append(fs.Values, value)
				})
				fg.Subgrids = append(fg.Subgrids, fs)
			}
		}
	}

	return fg
}

// Write serializes the grid in the current format, uncompressed.
func (g *Grid) Write(w io.Writer) error {
	if _, err := w.Write(fileMagic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{formatV1}); err != nil {
		return err
	}

	return msgpack.NewEncoder(w).Encode(g.toFile())
}

// WriteCompressed serializes the grid wrapped in an LZ4 frame.
func (g *Grid) WriteCompressed(w io.Writer) error {
	zw := lz4.NewWriter(w)
	if err := g.Write(zw); err != nil {
		return err
	}

	return zw.Close()
}

// WriteFile serializes to a file, compressing when the path ends in
// ".lz4".
func (g *Grid) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if strings.HasSuffix(path, ".lz4") {
		err = g.WriteCompressed(f)
	} else {
		err = g.Write(f)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	return err
}

// Read deserializes a grid in any supported format version, detecting
// LZ4 compression transparently.
func Read(r io.Reader) (*Grid, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(lz4Magic))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}

	var payload io.Reader = br
	if bytes.Equal(head, lz4Magic[:]) {
		payload = lz4.NewReader(br)
	}

	var header [9]byte
	if _, err := io.ReadFull(payload, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if !bytes.Equal(header[:8], fileMagic[:]) {
		return nil, ErrBadMagic
	}

	dec := msgpack.NewDecoder(payload)
	switch header[8] {
	case formatV0:
		return readV0(dec)
	case formatV1:
		return readV1(dec)
	default:
		return nil, fmt.Errorf("%w: version %d", ErrBadVersion, header[8])
	}
}

// ReadFile deserializes a grid from a file.
func ReadFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

func readV1(dec *msgpack.Decoder) (*Grid, error) {
	var fg fileGrid
	if err := dec.Decode(&fg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	orders := make([]Order, len(fg.Orders))
	for i, o := range fg.Orders {
		orders[i] = NewOrder(o.Alphas, o.Alpha, o.LogXiR, o.LogXiF, o.LogXiA)
	}

	channels := make([]Channel, len(fg.Channels))
	for i, fc := range fg.Channels {
		entries := make([]ChannelEntry, len(fc.Entries))
		for j, entry := range fc.Entries {
			entries[j] = ChannelEntry{PIDs: entry.Pids, Factor: entry.Factor}
		}
		ch, err := NewChannel(entries)
		if err != nil {
			return nil, err
		}
		channels[i] = ch
	}

	if len(fg.Bins.Normalizations) != len(fg.Bins.Limits) {
		return nil, fmt.Errorf("%w: %d bin limits with %d normalizations",
			ErrParse, len(fg.Bins.Limits), len(fg.Bins.Normalizations))
	}
	binList := make([]Bin, len(fg.Bins.Limits))
	for i, limits := range fg.Bins.Limits {
		bin, err := NewBin(limits, fg.Bins.Normalizations[i])
		if err != nil {
			return nil, err
		}
		binList[i] = bin
	}
	bins, err := NewBins(binList, fg.Bins.FillLimits)
	if err != nil {
		return nil, err
	}

	convolutions := make([]Conv, len(fg.Convolutions))
	for i, fc := range fg.Convolutions {
		convType, err := ParseConvType(fc.Type)
		if err != nil {
			return nil, err
		}
		convolutions[i] = Conv{Type: convType, PID: fc.Pid}
	}

	interps := make([]interp.Interp, len(fg.Interps))
	for i, fi := range fg.Interps {
		in, err := interp.New(fi.Min, fi.Max, fi.Nodes, fi.Order,
			interp.ReweightMeth(fi.Reweight), interp.Map(fi.Mapping), interp.Method(fi.Method))
		if err != nil {
			return nil, fmt.Errorf("%w: interpolation %d: %v", ErrParse, i, err)
		}
		interps[i] = in
	}

	kinematics := make([]Kinematic, len(fg.Kinematics))
	for i, fk := range fg.Kinematics {
		kinematics[i] = Kinematic{Kind: KinKind(fk.Kind), Index: fk.Index}
	}

	scales, err := scalesFromFile(fg.Scales)
	if err != nil {
		return nil, err
	}

	basis, err := pids.ParseBasis(fg.Basis)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	g, err := New(Config{
		Orders:       orders,
		Channels:     channels,
		Bins:         bins,
		Convolutions: convolutions,
		Interps:      interps,
		Kinematics:   kinematics,
		Scales:       scales,
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
			fs.Channel < 0 || fs.Channel >= len(channels) {
			return nil, fmt.Errorf("%w: subgrid cell (%d, %d, %d) outside the grid",
				ErrParse, fs.Order, fs.Bin, fs.Channel)
		}
		if len(fs.Indices) != len(fs.Values) {
			return nil, fmt.Errorf("%w: subgrid index and value lists disagree", ErrParse)
		}

		shape := make([]int, len(fs.Nodes))
		total := 1
		for d, values := range fs.Nodes {
			shape[d] = len(values)
			total *= len(values)
		}

		sparse := subgrid.NewSparse(fs.Nodes)
		index := make([]int, len(shape))
		for i, flat := range fs.Indices {
			if flat < 0 || flat >= total {
				return nil, fmt.Errorf("%w: subgrid index %d outside shape", ErrParse, flat)
			}
			unflattenIndex(shape, flat, index)
			sparse.Add(index, fs.Values[i])
		}

		g.SetSubgrid(fs.Order, fs.Bin, fs.Channel, sparse)
	}

	return g, nil
}

func scalesFromFile(fs fileScales) (Scales, error) {
	form := func(f fileScaleForm) (ScaleForm, error) {
		if f.Kind > uint8(FormExpProd2) {
			return ScaleForm{}, fmt.Errorf("%w: unknown scale form %d", ErrParse, f.Kind)
		}

		return ScaleForm{Kind: ScaleFormKind(f.Kind), Idx1: f.Idx1, Idx2: f.Idx2}, nil
	}

	ren, err := form(fs.Ren)
	if err != nil {
		return Scales{}, err
	}
	fac, err := form(fs.Fac)
	if err != nil {
		return Scales{}, err
	}
	frg, err := form(fs.Frg)
	if err != nil {
		return Scales{}, err
	}

	return Scales{Ren: ren, Fac: fac, Frg: frg}, nil
}
