package grid

import "math"

// KinKind distinguishes the two kinds of interpolated kinematic
// variables.
type KinKind uint8

const (
	// KinScale is a squared scale dimension.
	KinScale KinKind = iota
	// KinX is a momentum-fraction dimension belonging to one
	// convolution.
	KinX
)

// Kinematic names one interpolated dimension of the subgrids: either
// the Index-th scale or the momentum fraction of the Index-th
// convolution.
type Kinematic struct {
	Kind  KinKind
	Index int
}

// ScaleKin constructs the Index-th scale dimension.
func ScaleKin(index int) Kinematic { return Kinematic{Kind: KinScale, Index: index} }

// XKin constructs the momentum-fraction dimension of the Index-th
// convolution.
func XKin(index int) Kinematic { return Kinematic{Kind: KinX, Index: index} }

// ScaleFormKind enumerates the functional forms an unphysical scale can
// take over the interpolated scale dimensions.
type ScaleFormKind uint8

const (
	// FormNoScale marks a scale that does not participate (e.g. no
	// fragmentation scale in a purely space-like process).
	FormNoScale ScaleFormKind = iota
	// FormScale passes one scale dimension through unchanged.
	FormScale
	// FormQuadraticSum is s1 + s2.
	FormQuadraticSum
	// FormQuadraticMean is (s1 + s2)/2.
	FormQuadraticMean
	// FormQuadraticSumOver4 is (s1 + s2)/4.
	FormQuadraticSumOver4
	// FormLinearMean is ((√s1 + √s2)/2)².
	FormLinearMean
	// FormLinearSum is (√s1 + √s2)².
	FormLinearSum
	// FormScaleMax is max(s1, s2).
	FormScaleMax
	// FormScaleMin is min(s1, s2).
	FormScaleMin
	// FormProd is s1·s2.
	FormProd
	// FormS2plusS1half is (s1 + 2·s2)/2.
	FormS2plusS1half
	// FormPow4Sum is √(s1² + s2²).
	FormPow4Sum
	// FormWgtAvg is (s1² + s2²)/(s1 + s2).
	FormWgtAvg
	// FormS2plusS1fourth is s1/4 + s2.
	FormS2plusS1fourth
	// FormExpProd2 is (√s1 · exp(0.3·√s2))².
	FormExpProd2
)

// ScaleForm is one unphysical scale's functional form over the scale
// dimensions named by Idx1 (and Idx2 for the two-argument combiners).
type ScaleForm struct {
	Kind ScaleFormKind
	Idx1 int
	Idx2 int
}

// NoScaleForm constructs the absent scale.
func NoScaleForm() ScaleForm { return ScaleForm{Kind: FormNoScale} }

// ScaleOf passes the index-th scale dimension through unchanged.
func ScaleOf(index int) ScaleForm { return ScaleForm{Kind: FormScale, Idx1: index} }

func (f ScaleForm) combine(s1, s2 float64) float64 {
	switch f.Kind {
	case FormQuadraticSum:
		return s1 + s2
	case FormQuadraticMean:
		return 0.5 * (s1 + s2)
	case FormQuadraticSumOver4:
		return 0.25 * (s1 + s2)
	case FormLinearMean:
		r := math.Sqrt(s1) + math.Sqrt(s2)
		return 0.25 * r * r
	case FormLinearSum:
		r := math.Sqrt(s1) + math.Sqrt(s2)
		return r * r
	case FormScaleMax:
		return math.Max(s1, s2)
	case FormScaleMin:
		return math.Min(s1, s2)
	case FormProd:
		return s1 * s2
	case FormS2plusS1half:
		return 0.5 * (s1 + 2.0*s2)
	case FormPow4Sum:
		return math.Hypot(s1, s2)
	case FormWgtAvg:
		return (s1*s1 + s2*s2) / (s1 + s2)
	case FormS2plusS1fourth:
		return 0.25*s1 + s2
	case FormExpProd2:
		r := math.Sqrt(s1) * math.Exp(0.3*math.Sqrt(s2))
		return r * r
	default:
		panic("grid: combine called on non-combining scale form")
	}
}

func scaleDimPosition(kinematics []Kinematic, index int) int {
	for pos, kin := range kinematics {
		if kin.Kind == KinScale && kin.Index == index {
			return pos
		}
	}

	return -1
}

// Calc evaluates the scale form over the node values of one subgrid,
// producing the flat list of scale values addressed by IdxOf. NoScale
// yields nil.
func (f ScaleForm) Calc(nodeValues [][]float64, kinematics []Kinematic) []float64 {
	switch f.Kind {
	case FormNoScale:
		return nil
	case FormScale:
		if len(nodeValues) == 0 {
			return nil
		}
		pos := scaleDimPosition(kinematics, f.Idx1)
		return append([]float64(nil), nodeValues[pos]...)
	default:
		scales1 := nodeValues[scaleDimPosition(kinematics, f.Idx1)]
		scales2 := nodeValues[scaleDimPosition(kinematics, f.Idx2)]

		values := make([]float64, 0, len(scales1)*len(scales2))
		for _, s1 := range scales1 {
			for _, s2 := range scales2 {
				values = append(values, f.combine(s1, s2))
			}
		}
		return values
	}
}

// IdxOf maps the per-dimension scale node indices of one subgrid cell
// onto the flat index into the Calc output. scaleDims holds the node
// counts of the scale dimensions, in kinematics order.
func (f ScaleForm) IdxOf(indices []int, scaleDims []int) int {
	switch f.Kind {
	case FormNoScale:
		panic("grid: IdxOf called on NoScale")
	case FormScale:
		return indices[f.Idx1]
	default:
		return indices[f.Idx1]*scaleDims[f.Idx2] + indices[f.Idx2]
	}
}

// compatibleWith reports whether every referenced scale dimension is
// declared in the kinematics list.
func (f ScaleForm) compatibleWith(kinematics []Kinematic) bool {
	switch f.Kind {
	case FormNoScale:
		return true
	case FormScale:
		return scaleDimPosition(kinematics, f.Idx1) >= 0
	default:
		return scaleDimPosition(kinematics, f.Idx1) >= 0 &&
			scaleDimPosition(kinematics, f.Idx2) >= 0
	}
}

// Scales bundles the functional forms of the renormalization,
// factorization and fragmentation scales.
type Scales struct {
	Ren ScaleForm
	Fac ScaleForm
	Frg ScaleForm
}

// CompatibleWith reports whether all three forms only reference scale
// dimensions declared in the kinematics list.
func (s Scales) CompatibleWith(kinematics []Kinematic) bool {
	return s.Ren.compatibleWith(kinematics) &&
		s.Fac.compatibleWith(kinematics) &&
		s.Frg.compatibleWith(kinematics)
}
