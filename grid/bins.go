package grid

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats/scalar"
)

// Bin is one observable bin: its limits in every observable dimension
// and the normalization its convolution results are divided by.
type Bin struct {
	limits        [][2]float64
	normalization float64
}

// NewBin validates and constructs a bin. Inverted limits are ErrBadBins.
func NewBin(limits [][2]float64, normalization float64) (Bin, error) {
	for _, lim := range limits {
		if lim[1] < lim[0] {
			return Bin{}, fmt.Errorf("%w: inverted limits [%v, %v]", ErrBadBins, lim[0], lim[1])
		}
	}

	return Bin{
		limits:        append([][2]float64(nil), limits...),
		normalization: normalization,
	}, nil
}

// Limits returns the per-dimension limits. The slice must not be
// modified.
func (b Bin) Limits() [][2]float64 { return b.limits }

// Normalization returns the bin normalization.
func (b Bin) Normalization() float64 { return b.normalization }

// Dimensions returns the number of observable dimensions.
func (b Bin) Dimensions() int { return len(b.limits) }

// EqWithULPs compares limits and normalization within the given ULP
// tolerance.
func (b Bin) EqWithULPs(other Bin, ulps uint) bool {
	if len(b.limits) != len(other.limits) {
		return false
	}
	for i, lim := range b.limits {
		if !scalar.EqualWithinULP(lim[0], other.limits[i][0], ulps) ||
			!scalar.EqualWithinULP(lim[1], other.limits[i][1], ulps) {
			return false
		}
	}

	return scalar.EqualWithinULP(b.normalization, other.normalization, ulps)
}

// Bins couples the bin list with the one-dimensional fill limits that
// map a fill observable onto a bin index.
type Bins struct {
	bins       []Bin
	fillLimits []float64
}

// NewBins validates and constructs the container. The number of fill
// limits must exceed the number of bins by one, the fill limits must
// ascend and all bins must share one dimensionality.
func NewBins(bins []Bin, fillLimits []float64) (*Bins, error) {
	if len(bins) == 0 {
		return nil, fmt.Errorf("%w: no bins", ErrBadBins)
	}
	if len(fillLimits) != len(bins)+1 {
		return nil, fmt.Errorf("%w: %d bins need %d fill limits, got %d",
			ErrBadBins, len(bins), len(bins)+1, len(fillLimits))
	}
	for i := 1; i < len(fillLimits); i++ {
		if fillLimits[i] <= fillLimits[i-1] {
			return nil, fmt.Errorf("%w: fill limits not ascending", ErrBadBins)
		}
	}
	for _, bin := range bins[1:] {
		if bin.Dimensions() != bins[0].Dimensions() {
			return nil, fmt.Errorf("%w: bins with different dimensions", ErrBadBins)
		}
	}

	return &Bins{
		bins:       append([]Bin(nil), bins...),
		fillLimits: append([]float64(nil), fillLimits...),
	}, nil
}

// BinsFromFillLimits builds one-dimensional bins whose limits equal the
// fill limits and whose normalizations equal the bin widths.
func BinsFromFillLimits(fillLimits []float64) (*Bins, error) {
	if len(fillLimits) < 2 {
		return nil, fmt.Errorf("%w: need at least two fill limits", ErrBadBins)
	}

	bins := make([]Bin, len(fillLimits)-1)
	for i := range bins {
		lo, hi := fillLimits[i], fillLimits[i+1]
		bin, err := NewBin([][2]float64{{lo, hi}}, hi-lo)
		if err != nil {
			return nil, err
		}
		bins[i] = bin
	}

	return NewBins(bins, fillLimits)
}

// BinsFromLimitsAndNormalizations builds N-dimensional bins with
// explicit normalizations; the fill limits become the unit steps
// 0, 1, ..., N.
func BinsFromLimitsAndNormalizations(limits [][][2]float64, normalizations []float64) (*Bins, error) {
	if len(limits) != len(normalizations) {
		return nil, fmt.Errorf("%w: %d limits vs %d normalizations",
			ErrBadBins, len(limits), len(normalizations))
	}

	bins := make([]Bin, len(limits))
	for i, lim := range limits {
		bin, err := NewBin(lim, normalizations[i])
		if err != nil {
			return nil, err
		}
		bins[i] = bin
	}

	fillLimits := make([]float64, len(limits)+1)
	for i := range fillLimits {
		fillLimits[i] = float64(i)
	}

	return NewBins(bins, fillLimits)
}

// Len returns the number of bins.
func (b *Bins) Len() int { return len(b.bins) }

// Dimensions returns the shared observable dimensionality.
func (b *Bins) Dimensions() int { return b.bins[0].Dimensions() }

// Bins returns the bin list. The slice must not be modified.
func (b *Bins) Bins() []Bin { return b.bins }

// FillLimits returns the fill limits. The slice must not be modified.
func (b *Bins) FillLimits() []float64 { return b.fillLimits }

// Normalizations returns the per-bin normalizations.
func (b *Bins) Normalizations() []float64 {
	norms := make([]float64, len(b.bins))
	for i, bin := range b.bins {
		norms[i] = bin.normalization
	}

	return norms
}

// FillIndex maps a fill observable onto its bin index. Values outside
// the fill limits, including the upper edge itself, report false.
func (b *Bins) FillIndex(value float64) (int, bool) {
	index := sort.SearchFloat64s(b.fillLimits, value)

	switch {
	case index == len(b.fillLimits):
		return 0, false
	case b.fillLimits[index] == value:
		// exact hit on a limit: the value belongs to the bin above,
		// except on the last limit which is exclusive
		if index == len(b.fillLimits)-1 {
			return 0, false
		}
		return index, true
	case index == 0:
		return 0, false
	default:
		return index - 1, true
	}
}

// Slices returns the contiguous bin ranges [start, end) sharing the
// same limits in all but the innermost observable dimension. For
// one-dimensional bins this is the single full range.
func (b *Bins) Slices() [][2]int {
	if b.Dimensions() == 1 {
		return [][2]int{{0, len(b.bins)}}
	}

	outerEqual := func(lhs, rhs Bin) bool {
		for d := 0; d < lhs.Dimensions()-1; d++ {
			if lhs.limits[d] != rhs.limits[d] {
				return false
			}
		}
		return true
	}

	var slices [][2]int
	start := 0
	for i := 1; i <= len(b.bins); i++ {
		if i == len(b.bins) || !outerEqual(b.bins[i-1], b.bins[i]) {
			slices = append(slices, [2]int{start, i})
			start = i
		}
	}

	return slices
}

// MergeRange produces a new container with the bins in [lo, hi) merged
// into one: the innermost upper limit is extended and the
// normalizations are summed. The range must lie within one contiguous
// slice.
func (b *Bins) MergeRange(lo, hi int) (*Bins, error) {
	if lo < 0 || hi > len(b.bins) || lo >= hi {
		return nil, fmt.Errorf("%w: range [%d, %d)", ErrBadIndex, lo, hi)
	}

	inSlice := false
	for _, slice := range b.Slices() {
		if slice[0] <= lo && hi <= slice[1] {
			inSlice = true
			break
		}
	}
	if !inSlice {
		return nil, ErrBinsNotConnected
	}

	dim := b.Dimensions()
	merged := make([]Bin, 0, len(b.bins)-(hi-lo)+1)
	fillLimits := make([]float64, 0, len(b.fillLimits)-(hi-lo)+1)
	fillLimits = append(fillLimits, b.fillLimits[:lo+1]...)

	for i := 0; i < len(b.bins); i++ {
		if i > lo && i < hi {
			continue
		}

		bin := b.bins[i]
		if i == lo {
			limits := append([][2]float64(nil), bin.limits...)
			limits[dim-1][1] = b.bins[hi-1].limits[dim-1][1]
			normalization := bin.normalization
			for j := lo + 1; j < hi; j++ {
				normalization += b.bins[j].normalization
			}
			widened, err := NewBin(limits, normalization)
			if err != nil {
				return nil, err
			}
			bin = widened
		}

		merged = append(merged, bin)
		if i >= hi {
			fillLimits = append(fillLimits, b.fillLimits[i])
		}
	}
	fillLimits = append(fillLimits, b.fillLimits[len(b.fillLimits)-1])

	return NewBins(merged, fillLimits)
}

// Remove deletes the bin at index, dropping the last fill limit.
func (b *Bins) Remove(index int) {
	b.bins = append(b.bins[:index], b.bins[index+1:]...)
	b.fillLimits = b.fillLimits[:len(b.fillLimits)-1]
}

// EqWithULPs compares the bin lists within the given ULP tolerance.
func (b *Bins) EqWithULPs(other *Bins, ulps uint) bool {
	if len(b.bins) != len(other.bins) {
		return false
	}
	for i, bin := range b.bins {
		if !bin.EqWithULPs(other.bins[i], ulps) {
			return false
		}
	}

	return true
}
