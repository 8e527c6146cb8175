package grid

import (
	"fmt"
	"math"
	"runtime"

	"github.com/NNPDF/pineappl-go/pids"
	"github.com/NNPDF/pineappl-go/subgrid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats/scalar"
)

// xiUnityULPs is the tolerance for recognizing a scale-variation factor
// of exactly one, which zeroes every log-carrying order.
const xiUnityULPs = 4

// DensityFunc evaluates one parton density f(pid, x) at the given
// squared scale.
type DensityFunc func(pid int32, x, scale2 float64) float64

// AlphasFunc evaluates the strong coupling at the given squared
// renormalization scale.
type AlphasFunc func(scale2 float64) float64

// ConvFunc pairs a density callable with the convolution it implements.
type ConvFunc struct {
	Conv    Conv
	Density DensityFunc
}

// Cache bundles the caller-supplied functions of one convolution call.
// The same cache may serve grids with convolutions in any order, or
// charge-conjugated ones; the matching happens per grid.
type Cache struct {
	funcs  []ConvFunc
	alphas AlphasFunc
}

// NewCache constructs a cache from per-convolution densities and one
// strong coupling.
func NewCache(funcs []ConvFunc, alphas AlphasFunc) *Cache {
	return &Cache{funcs: append([]ConvFunc(nil), funcs...), alphas: alphas}
}

// Xi is the triple of scale-variation factors multiplying the
// renormalization, factorization and fragmentation scales.
type Xi struct {
	Ren float64
	Fac float64
	Frg float64
}

// DefaultXi returns the central scale choice (1, 1, 1).
func DefaultXi() Xi { return Xi{Ren: 1.0, Fac: 1.0, Frg: 1.0} }

// ConvolveOptions narrows and tunes a convolution call. The zero value
// selects every order, channel and bin at the central scale, running on
// all CPUs.
type ConvolveOptions struct {
	// OrderMask selects orders; nil selects all.
	OrderMask []bool

	// ChannelMask selects channels; nil selects all.
	ChannelMask []bool

	// Bins selects the bin indices to compute; nil selects all.
	Bins []int

	// Xi holds the scale-variation factors; the zero value means
	// (1, 1, 1).
	Xi Xi

	// Parallel caps the number of bins evaluated concurrently; zero or
	// negative means GOMAXPROCS.
	Parallel int
}

// legFunc is the per-leg resolution of a grid convolution against the
// supplied functions.
type legFunc struct {
	fn ConvFunc
	cc bool
}

// matchConvolutions maps every grid convolution onto a supplied
// function, either directly or through charge conjugation. Later
// entries win so a proton density also serves an antiproton leg.
func (g *Grid) matchConvolutions(cache *Cache) ([]legFunc, error) {
	perm := make([]legFunc, len(g.convolutions))

	for leg, conv := range g.convolutions {
		found := false
		for i := len(cache.funcs) - 1; i >= 0; i-- {
			switch cache.funcs[i].Conv {
			case conv:
				perm[leg] = legFunc{fn: cache.funcs[i]}
				found = true
			case conv.CC():
				perm[leg] = legFunc{fn: cache.funcs[i], cc: true}
				found = true
			}
			if found {
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: no density for convolution %d", ErrIncompatible, leg)
		}
	}

	return perm, nil
}

// Convolve evaluates the grid against the supplied densities and
// coupling, returning one number per selected bin.
func (g *Grid) Convolve(cache *Cache, opts ConvolveOptions) ([]float64, error) {
	if opts.OrderMask != nil && len(opts.OrderMask) != len(g.orders) {
		return nil, fmt.Errorf("%w: order mask of length %d", ErrBadIndex, len(opts.OrderMask))
	}
	if opts.ChannelMask != nil && len(opts.ChannelMask) != len(g.channels) {
		return nil, fmt.Errorf("%w: channel mask of length %d", ErrBadIndex, len(opts.ChannelMask))
	}

	perm, err := g.matchConvolutions(cache)
	if err != nil {
		return nil, err
	}

	if g.scales.Ren.Kind == FormNoScale {
		return nil, fmt.Errorf("%w: grid declares no renormalization scale", ErrIncompatible)
	}
	for leg, conv := range g.convolutions {
		if conv.Type.IsPDF() && g.scales.Fac.Kind == FormNoScale {
			return nil, fmt.Errorf("%w: PDF leg %d without factorization scale", ErrIncompatible, leg)
		}
		if !conv.Type.IsPDF() && g.scales.Frg.Kind == FormNoScale {
			return nil, fmt.Errorf("%w: FF leg %d without fragmentation scale", ErrIncompatible, leg)
		}
	}

	bins := opts.Bins
	if bins == nil {
		bins = make([]int, g.bins.Len())
		for i := range bins {
			bins[i] = i
		}
	}
	for _, bin := range bins {
		if bin < 0 || bin >= g.bins.Len() {
			return nil, fmt.Errorf("%w: bin %d", ErrBadIndex, bin)
		}
	}

	xi := opts.Xi
	if xi == (Xi{}) {
		xi = DefaultXi()
	}

	limit := opts.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]float64, len(bins))
	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, bin := range bins {
		eg.Go(func() error {
			results[i] = g.convolveBin(bin, cache, perm, opts.OrderMask, opts.ChannelMask, xi)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

type densityKey struct {
	leg       int
	pid       int32
	x, scale2 float64
}

// binCache memoizes density and coupling evaluations of one bin. Every
// bin runs with its own cache so no locking is needed.
type binCache struct {
	basis     pids.Basis
	perm      []legFunc
	alphas    AlphasFunc
	densities map[densityKey]float64
	couplings map[float64]float64
}

func (c *binCache) density(leg int, pid int32, x, scale2 float64) float64 {
	key := densityKey{leg: leg, pid: pid, x: x, scale2: scale2}
	if value, ok := c.densities[key]; ok {
		return value
	}

	lookupPid, factor := pid, 1.0
	if c.perm[leg].cc {
		lookupPid, factor = pids.ChargeConjugate(c.basis, pid)
	}
	value := factor * c.perm[leg].fn.Density(lookupPid, x, scale2)
	c.densities[key] = value

	return value
}

func (c *binCache) coupling(scale2 float64) float64 {
	if value, ok := c.couplings[scale2]; ok {
		return value
	}

	value := c.alphas(scale2)
	c.couplings[scale2] = value

	return value
}

// scaleValues evaluates one scale form over a subgrid's nodes,
// multiplied by the squared variation factor.
func scaleValues(form ScaleForm, nodeValues [][]float64, kinematics []Kinematic, xi float64) []float64 {
	values := form.Calc(nodeValues, kinematics)
	if xi != 1.0 {
		for i := range values {
			values[i] *= xi * xi
		}
	}

	return values
}

// logFactor returns ln(xi²)^exp, reporting false when the order carries
// a log of a unit variation factor and therefore vanishes.
func logFactor(exp uint8, xi float64) (float64, bool) {
	if exp == 0 {
		return 1.0, true
	}
	if scalar.EqualWithinULP(xi, 1.0, xiUnityULPs) {
		return 0.0, false
	}

	return math.Pow(math.Log(xi*xi), float64(exp)), true
}

func (g *Grid) scaleDimCount() int {
	count := 0
	for _, kin := range g.kinematics {
		if kin.Kind == KinScale {
			count++
		}
	}

	return count
}

func (g *Grid) convolveBin(bin int, cache *Cache, perm []legFunc, orderMask, channelMask []bool, xi Xi) float64 {
	bc := &binCache{
		basis:     g.basis,
		perm:      perm,
		alphas:    cache.alphas,
		densities: map[densityKey]float64{},
		couplings: map[float64]float64{},
	}

	scaleCount := g.scaleDimCount()
	total := 0.0

	for order, o := range g.orders {
		if orderMask != nil && !orderMask[order] {
			continue
		}

		logs := 1.0
		ok := true
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
				ok = false
				break
			}
			logs *= factor
		}
		if !ok {
			continue
		}

		for channel, ch := range g.channels {
			if channelMask != nil && !channelMask[channel] {
				continue
			}

			sg := g.subgrids[g.cell(order, bin, channel)]
			if sg == nil || sg.IsEmpty() {
				continue
			}

			total += g.convolveCell(sg, o, ch, bc, xi, scaleCount, logs)
		}
	}

	return total / g.bins.Bins()[bin].Normalization()
}

func (g *Grid) convolveCell(sg subgrid.Subgrid, o Order, ch Channel, bc *binCache, xi Xi, scaleCount int, logs float64) float64 {
	nodeValues := sg.NodeValues()
	scaleDims := make([]int, scaleCount)
	for d := 0; d < scaleCount; d++ {
		scaleDims[d] = len(nodeValues[d])
	}

	renValues := scaleValues(g.scales.Ren, nodeValues, g.kinematics, xi.Ren)
	facValues := scaleValues(g.scales.Fac, nodeValues, g.kinematics, xi.Fac)
	frgValues := scaleValues(g.scales.Frg, nodeValues, g.kinematics, xi.Frg)

	entries := ch.Entries()
	cell := 0.0

	sg.Iterate(func(index []int, value float64) {
		scaleIndices := index[:scaleCount]

		coupling := 1.0
		if o.Alphas > 0 {
			ren := renValues[g.scales.Ren.IdxOf(scaleIndices, scaleDims)]
			coupling = math.Pow(bc.coupling(ren), float64(o.Alphas))
		}

		var fac, frg float64
		if facValues != nil {
			fac = facValues[g.scales.Fac.IdxOf(scaleIndices, scaleDims)]
		}
		if frgValues != nil {
			frg = frgValues[g.scales.Frg.IdxOf(scaleIndices, scaleDims)]
		}

		lumi := 0.0
		for _, entry := range entries {
			product := entry.Factor
			for leg := range g.convolutions {
				x := nodeValues[scaleCount+leg][index[scaleCount+leg]]
				scale2 := fac
				if !g.convolutions[leg].Type.IsPDF() {
					scale2 = frg
				}
				product *= bc.density(leg, entry.PIDs[leg], x, scale2)
			}
			lumi += product
		}

		cell += value * coupling * lumi
	})

	return cell * logs
}
