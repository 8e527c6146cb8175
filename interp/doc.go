// Package interp places interpolation nodes over mapped coordinates and
// computes Lagrange basis weights for scattering event weights onto them.
//
// 🚀 What is a fill, numerically?
//
//	A Monte-Carlo event arrives as a tuple of continuous kinematic values
//	(a squared scale, one momentum fraction per hadron). Each dimension
//	owns an Interp: node count, polynomial order, a coordinate map that
//	spaces the nodes (log-log for scales, a double-log form for momentum
//	fractions) and an optional reweighting that flattens the steep
//	small-x behavior of typical densities. Interpolate spreads the event
//	weight over the (order+1)^dims nearest nodes so that summing the
//	stored node weights against any smooth function reproduces the
//	original integrand to polynomial accuracy.
//
// ✨ Key features:
//   - exact applgrid-compatible coordinate maps (MapApplGridF2, MapApplGridH0)
//   - optional (√x/(1−0.99x))³ reweighting (ApplGridX)
//   - closed-form Lagrange weights up to order 7
//   - strict range handling: values outside [Min, Max] are rejected with
//     ErrOutOfRange, never clamped
//
// ⚙️ Usage:
//
//	spec, err := interp.New(1e2, 1e8, 40, 3,
//		interp.NoReweight, interp.MapApplGridH0, interp.Lagrange)
//	if err != nil { ... }
//	idx, frac, err := spec.Interpolate(q2)
//
// Determinism: identical inputs always produce identical node/weight
// sets, which the convolution engine exploits for caching.
package interp
