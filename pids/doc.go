// Package pids translates particle identifiers between the PDG Monte-Carlo
// convention and the evolution basis used by PDF-fitting tooling.
//
// 🚀 What lives here?
//
//	Channels of an interpolation grid label their partonic legs with
//	particle IDs. Two conventions coexist:
//	  • PDG Monte-Carlo IDs — quarks ±1..±6, the gluon 21, the photon 22
//	  • evolution basis — singlet/valence combinations 100, 103, …, 235
//	A fixed, invertible linear map connects the two; this package holds
//	the coefficient tables and the charge-conjugation rules built on top.
//
// ✨ Key features:
//   - EvolToPdg / PdgToEvol: the exact linear-combination tables
//   - ChargeConjugate: basis-aware conjugation with its sign factor
//   - GuessBasis: heuristic detection from a set of channel PIDs
//
// All functions are pure lookups over fixed rational coefficients; there
// is no state and nothing to configure.
package pids
