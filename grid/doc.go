// Package grid implements the interpolation-grid container and the
// operations that make it useful: filling, convolution, evolution into
// FK tables and a versioned binary codec.
//
// 🚀 What is a grid?
//
//	A grid holds the full cross product of bins x orders x channels of
//	subgrids, together with the lists that give each axis meaning: the
//	perturbative Order exponents, the partonic Channel combinations, the
//	observable Bins, the Conv descriptors naming which densities enter,
//	the kinematic dimension layout and the functional forms of the
//	unphysical scales. Events are scattered onto interpolation nodes at
//	fill time; any density and coupling can then be applied afterwards,
//	as often as needed, without re-running the generator.
//
// ✨ Key features:
//   - Fill: Lagrange scattering of weighted events into lazily created
//     subgrids, with strict range checking
//   - Convolve: per-bin evaluation against caller-supplied densities and
//     coupling, with order/channel masks, bin subsets, scale-variation
//     factors and parallel bin evaluation
//   - Evolve: contraction with per-leg evolution operators producing an
//     FKTable that needs densities only
//   - Optimize, Merge, MergeBins, SplitChannels, DedupChannels,
//     RotatePIDBasis and the structural delete/scale transforms
//   - Read/Write: the current format plus transparent LZ4 detection and
//     a read-only upgrade path for the legacy layout
//
// ⚙️ Usage:
//
//	g, err := grid.New(grid.Config{...})
//	err = g.Fill(order, observable, channel, []float64{q2, x1, x2}, w)
//	g.Optimize()
//	results, err := g.Convolve(grid.NewCache(funcs, alphas), grid.ConvolveOptions{})
//
// Every operation that can fail returns a sentinel error from errors.go
// wrapped with context; match with errors.Is.
package grid
