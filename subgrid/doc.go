// Package subgrid provides the value containers holding the interpolated
// node weights of one (bin, order, channel) cell.
//
// 🚀 Why several representations?
//
//	Monte-Carlo filling touches only a tiny neighborhood of the node grid
//	per event, so the accumulating container (Lagrange) is sparse and
//	keeps raw, reweighting-divided values. Once filling is over, Trim
//	re-packs each cell into the most compact read-only form: Dense when
//	at least half the trimmed node box is populated, Sparse otherwise,
//	and Empty when nothing was ever filled. The read-only variants store
//	baked values (reweighting multiplied back in) together with the
//	literal node coordinates they cover, so two cells may legitimately
//	span different slices of the global node grid.
//
// ✨ Key features:
//   - Lagrange: fill-capable accumulator with static-dimension detection
//   - Sparse/Dense: immutable imports with union-style merging over
//     ULP-matched node values
//   - Empty: zero storage, zero cost
//   - Stats for occupancy-driven representation choices
//
// ⚙️ Usage:
//
//	sg := subgrid.NewLagrange(specs)
//	err := sg.Fill([]float64{q2, x1, x2}, weight)
//	...
//	packed := subgrid.Trim(sg) // Dense, Sparse or Empty
//
// All variants satisfy the Subgrid interface; Iterate always yields the
// baked values a convolution consumes.
package subgrid
