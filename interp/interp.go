package interp

import "errors"

// maxOrder limits the polynomial order so that per-dimension weight
// buffers have a small fixed upper bound.
const maxOrder = 7

var (
	// ErrBadSpec indicates an interpolation specification that violates
	// nodes >= 1, nodes > order, order <= 7 or min <= max.
	ErrBadSpec = errors.New("interp: invalid interpolation specification")

	// ErrOutOfRange indicates a value outside the declared [Min, Max]
	// interpolation range. Out-of-range values are rejected, not clamped.
	ErrOutOfRange = errors.New("interp: value outside interpolation range")

	// ErrDimensionMismatch indicates an ntuple whose length differs from
	// the number of interpolation specifications.
	ErrDimensionMismatch = errors.New("interp: ntuple length does not match specifications")
)

// ReweightMeth selects the reweighting factor applied around interpolation.
type ReweightMeth uint8

const (
	// NoReweight stores event weights unmodified.
	NoReweight ReweightMeth = iota

	// ApplGridX divides by (√x/(1−0.99x))³ at fill time; readers multiply
	// the factor back in, flattening steep small-x behavior in between.
	ApplGridX
)

// Map selects the coordinate mapping that spaces the nodes.
type Map uint8

const (
	// MapApplGridH0 is the log-log scale mapping tau = ln(ln(q2/0.0625)).
	MapApplGridH0 Map = iota

	// MapApplGridF2 is the momentum-fraction mapping y = 5(1−x) − ln x.
	MapApplGridF2
)

// Method selects the interpolation method. Lagrange is the only variant.
type Method uint8

const (
	// Lagrange uses the classical Lagrange basis over equally spaced
	// nodes in the mapped coordinate.
	Lagrange Method = iota
)

// Interp is the interpolation specification of one kinematic dimension:
// node placement over the mapped coordinate plus the Lagrange order used
// when scattering values onto those nodes. The zero value is not usable;
// construct through New.
type Interp struct {
	rawMin, rawMax float64 // the caller-facing range, before mapping
	min, max       float64 // mapped range, swapped so min <= max
	nodes          int
	order          int
	reweight       ReweightMeth
	mapping        Map
	method         Method
}

// New validates and constructs an interpolation specification.
// The requirements are nodes >= 1, nodes > order, order <= 7 and
// min <= max; violations return ErrBadSpec.
func New(min, max float64, nodes, order int, reweight ReweightMeth, mapping Map, method Method) (Interp, error) {
	if min > max || nodes < 1 || nodes <= order || order > maxOrder || order < 0 {
		return Interp{}, ErrBadSpec
	}

	in := Interp{
		rawMin:   min,
		rawMax:   max,
		nodes:    nodes,
		order:    order,
		reweight: reweight,
		mapping:  mapping,
		method:   method,
	}

	in.min = in.mapXToY(min)
	in.max = in.mapXToY(max)

	// some maps reverse the orientation of the range
	if in.min > in.max {
		in.min, in.max = in.max, in.min
	}

	return in, nil
}

// Nodes returns the number of interpolation nodes.
func (in Interp) Nodes() int { return in.nodes }

// Order returns the Lagrange polynomial order.
func (in Interp) Order() int { return in.order }

// Min returns the lower bound of the caller-facing range.
func (in Interp) Min() float64 { return in.rawMin }

// Max returns the upper bound of the caller-facing range.
func (in Interp) Max() float64 { return in.rawMax }

// ReweightMeth returns the configured reweighting method.
func (in Interp) ReweightMeth() ReweightMeth { return in.reweight }

// Mapping returns the configured coordinate map.
func (in Interp) Mapping() Map { return in.mapping }

// Method returns the configured interpolation method.
func (in Interp) Method() Method { return in.method }

func (in Interp) deltaY() float64 {
	return (in.max - in.min) / float64(in.nodes-1)
}

func (in Interp) getY(index int) float64 {
	// a single-node axis has no spacing; its only node sits at min
	if in.nodes == 1 {
		return in.min
	}

	return float64(index)*in.deltaY() + in.min
}

func (in Interp) mapXToY(x float64) float64 {
	if in.mapping == MapApplGridF2 {
		return fy2(x)
	}

	return ftau0(x)
}

func (in Interp) mapYToX(y float64) float64 {
	if in.mapping == MapApplGridF2 {
		return fx2(y)
	}

	return fq20(y)
}

// Reweight returns the reweighting factor at x, or one when reweighting
// is disabled.
func (in Interp) Reweight(x float64) float64 {
	if in.reweight == ApplGridX {
		return reweightX(x)
	}

	return 1.0
}

// NodeValues returns the physical values of all nodes, in node order.
func (in Interp) NodeValues() []float64 {
	values := make([]float64, in.nodes)
	for node := range values {
		values[node] = in.mapYToX(in.getY(node))
	}

	return values
}

// Interpolate locates the first of the order+1 nodes contributing to x
// and the fractional offset of x past that node in mapped units.
// Values outside [Min, Max] return ErrOutOfRange.
func (in Interp) Interpolate(x float64) (int, float64, error) {
	y := in.mapXToY(x)

	if in.min > y || y > in.max {
		return 0, 0, ErrOutOfRange
	}

	if in.nodes == 1 {
		return 0, 0.0, nil
	}

	index := int((y-in.min)/in.deltaY() - float64(in.order/2))
	if index < 0 {
		index = 0
	}
	if index > in.nodes-in.order-1 {
		index = in.nodes - in.order - 1
	}
	fraction := (y - in.getY(index)) / in.deltaY()

	return index, fraction, nil
}

// NodeWeights returns the order+1 Lagrange basis weights for the given
// fractional offset, as produced by Interpolate.
func (in Interp) NodeWeights(fraction float64) []float64 {
	weights := make([]float64, in.order+1)
	for i := range weights {
		weights[i] = lagrangeWeights(i, in.order, fraction)
	}

	return weights
}

// lagrangeWeights evaluates the i-th Lagrange basis polynomial of degree
// n at u, with nodes at the integers 0..n.
func lagrangeWeights(i, n int, u float64) float64 {
	factorials := 1
	product := 1.0
	for z := 0; z < i; z++ {
		product *= u - float64(z)
		factorials *= i - z
	}
	for z := i + 1; z <= n; z++ {
		product *= float64(z) - u
		factorials *= z - i
	}

	return product / float64(factorials)
}

// Accumulator receives the scattered node weights of one fill. The index
// slice is only valid for the duration of the call.
type Accumulator interface {
	Add(index []int, value float64)
}

// Interpolate scatters one event weight onto the node grid spanned by
// specs. Each ntuple component is interpolated along its own dimension
// and the outer product of the per-dimension Lagrange weights, divided
// by the combined reweighting factor, is accumulated into acc.
//
// A zero weight is dropped without touching acc. Any component outside
// its declared range rejects the whole fill with ErrOutOfRange.
func Interpolate(specs []Interp, ntuple []float64, weight float64, acc Accumulator) error {
	if len(specs) != len(ntuple) {
		return ErrDimensionMismatch
	}
	if weight == 0.0 {
		return nil
	}

	dims := len(specs)
	indices := make([]int, dims)
	fractions := make([]float64, dims)
	for d, spec := range specs {
		index, fraction, err := spec.Interpolate(ntuple[d])
		if err != nil {
			return err
		}
		indices[d] = index
		fractions[d] = fraction
	}

	for d, spec := range specs {
		weight /= spec.Reweight(ntuple[d])
	}

	nodeWeights := make([][]float64, dims)
	for d, spec := range specs {
		nodeWeights[d] = spec.NodeWeights(fractions[d])
	}

	// walk the outer product in row-major order
	index := make([]int, dims)
	offsets := make([]int, dims)
	for {
		value := weight
		for d := range offsets {
			value *= nodeWeights[d][offsets[d]]
			index[d] = indices[d] + offsets[d]
		}
		acc.Add(index, value)

		d := dims - 1
		for d >= 0 {
			offsets[d]++
			if offsets[d] <= specs[d].Order() {
				break
			}
			offsets[d] = 0
			d--
		}
		if d < 0 {
			return nil
		}
	}
}
