// Package pineappl is your toolkit for producing, transforming and
// evaluating interpolation grids — cross-section predictions that stay
// independent of any particular parton density or coupling choice.
//
// 🚀 What is pineappl-go?
//
//	A library that represents weighted Monte-Carlo events on Lagrange
//	interpolation grids, so the expensive generator run happens once and
//	every density/coupling combination afterwards is a cheap lookup:
//		• Interpolation: applgrid-compatible node placement & reweighting
//		• Subgrids: sparse/dense/empty containers with merge & trim
//		• Grid: fill, optimize, merge, split/dedup, basis rotation
//		• Convolution: per-bin results with masks & scale variations
//		• Evolution: contraction into FK tables via operator tensors
//		• Codec: versioned binary format with LZ4 and a legacy reader
//
// ✨ Why choose pineappl-go?
//
//   - Faithful numerics – node tables bit-comparable with other tools
//   - Strict boundaries – out-of-range fills fail loudly, never clamp
//   - Pure Go – parallel convolution without cgo
//
// Everything is organized under four subpackages:
//
//	interp/  — node placement, coordinate maps, Lagrange weights
//	subgrid/ — the per-cell value containers
//	pids/    — particle-ID bases and the PDG↔evolution transform
//	grid/    — the aggregate container, engines and codec
//
//	go get github.com/NNPDF/pineappl-go/grid
package pineappl
