package pids

import "errors"

// Basis tags the particle-identifier convention used by a grid's channels.
type Basis int

const (
	// Pdg labels channels with PDG Monte-Carlo IDs (±1..±6, 21, 22).
	Pdg Basis = iota

	// Evol labels channels with evolution-basis combinations
	// (100, 103, 108, ..., 235, plus 21 and 22 which map to themselves).
	Evol
)

// ErrUnknownBasis indicates a basis string that is neither "pdg_mc_ids" nor "evol".
var ErrUnknownBasis = errors.New("pids: unknown particle-ID basis")

// String returns the canonical metadata spelling of the basis.
func (b Basis) String() string {
	if b == Evol {
		return "evol"
	}

	return "pdg_mc_ids"
}

// ParseBasis converts the canonical metadata spelling back into a Basis.
func ParseBasis(s string) (Basis, error) {
	switch s {
	case "pdg_mc_ids":
		return Pdg, nil
	case "evol":
		return Evol, nil
	default:
		return Pdg, ErrUnknownBasis
	}
}

// PidFactor is one term of a linear combination of particle IDs.
type PidFactor struct {
	PID    int32
	Factor float64
}

// evolBasisIDs lists every evolution-basis combination with a dedicated ID.
var evolBasisIDs = [12]int32{100, 103, 108, 115, 124, 135, 200, 203, 208, 215, 224, 235}

// EvolToPdg expands an evolution-basis ID into its PDG MC ID combination.
// IDs outside the evolution basis map to themselves with factor one.
func EvolToPdg(id int32) []PidFactor {
	switch id {
	case 100: // singlet
		return []PidFactor{
			{2, 1.0}, {-2, 1.0}, {1, 1.0}, {-1, 1.0}, {3, 1.0}, {-3, 1.0},
			{4, 1.0}, {-4, 1.0}, {5, 1.0}, {-5, 1.0}, {6, 1.0}, {-6, 1.0},
		}
	case 103: // T3
		return []PidFactor{{2, 1.0}, {-2, 1.0}, {1, -1.0}, {-1, -1.0}}
	case 108: // T8
		return []PidFactor{{2, 1.0}, {-2, 1.0}, {1, 1.0}, {-1, 1.0}, {3, -2.0}, {-3, -2.0}}
	case 115: // T15
		return []PidFactor{
			{2, 1.0}, {-2, 1.0}, {1, 1.0}, {-1, 1.0}, {3, 1.0}, {-3, 1.0},
			{4, -3.0}, {-4, -3.0},
		}
	case 124: // T24
		return []PidFactor{
			{2, 1.0}, {-2, 1.0}, {1, 1.0}, {-1, 1.0}, {3, 1.0}, {-3, 1.0},
			{4, 1.0}, {-4, 1.0}, {5, -4.0}, {-5, -4.0},
		}
	case 135: // T35
		return []PidFactor{
			{2, 1.0}, {-2, 1.0}, {1, 1.0}, {-1, 1.0}, {3, 1.0}, {-3, 1.0},
			{4, 1.0}, {-4, 1.0}, {5, 1.0}, {-5, 1.0}, {6, -5.0}, {-6, -5.0},
		}
	case 200: // valence
		return []PidFactor{
			{1, 1.0}, {-1, -1.0}, {2, 1.0}, {-2, -1.0}, {3, 1.0}, {-3, -1.0},
			{4, 1.0}, {-4, -1.0}, {5, 1.0}, {-5, -1.0}, {6, 1.0}, {-6, -1.0},
		}
	case 203: // V3
		return []PidFactor{{2, 1.0}, {-2, -1.0}, {1, -1.0}, {-1, 1.0}}
	case 208: // V8
		return []PidFactor{{2, 1.0}, {-2, -1.0}, {1, 1.0}, {-1, -1.0}, {3, -2.0}, {-3, 2.0}}
	case 215: // V15
		return []PidFactor{
			{2, 1.0}, {-2, -1.0}, {1, 1.0}, {-1, -1.0}, {3, 1.0}, {-3, -1.0},
			{4, -3.0}, {-4, 3.0},
		}
	case 224: // V24
		return []PidFactor{
			{2, 1.0}, {-2, -1.0}, {1, 1.0}, {-1, -1.0}, {3, 1.0}, {-3, -1.0},
			{4, 1.0}, {-4, -1.0}, {5, -4.0}, {-5, 4.0},
		}
	case 235: // V35
		return []PidFactor{
			{2, 1.0}, {-2, -1.0}, {1, 1.0}, {-1, -1.0}, {3, 1.0}, {-3, -1.0},
			{4, 1.0}, {-4, -1.0}, {5, 1.0}, {-5, -1.0}, {6, -5.0}, {-6, 5.0},
		}
	default:
		return []PidFactor{{id, 1.0}}
	}
}

// plusCoeffs holds, per quark flavor, the T-series coefficients of the
// flavor-plus combination q+ = q + qbar. The V-series coefficients of
// q- = q - qbar are numerically identical with 2xx in place of 1xx.
// Row order follows PDG flavor numbering: d, u, s, c, b, t.
var plusCoeffs = [6][]PidFactor{
	{{100, 1.0 / 6.0}, {103, -1.0 / 2.0}, {108, 1.0 / 6.0}, {115, 1.0 / 12.0}, {124, 1.0 / 20.0}, {135, 1.0 / 30.0}},
	{{100, 1.0 / 6.0}, {103, 1.0 / 2.0}, {108, 1.0 / 6.0}, {115, 1.0 / 12.0}, {124, 1.0 / 20.0}, {135, 1.0 / 30.0}},
	{{100, 1.0 / 6.0}, {108, -1.0 / 3.0}, {115, 1.0 / 12.0}, {124, 1.0 / 20.0}, {135, 1.0 / 30.0}},
	{{100, 1.0 / 6.0}, {115, -1.0 / 4.0}, {124, 1.0 / 20.0}, {135, 1.0 / 30.0}},
	{{100, 1.0 / 6.0}, {124, -1.0 / 5.0}, {135, 1.0 / 30.0}},
	{{100, 1.0 / 6.0}, {135, -1.0 / 6.0}},
}

// PdgToEvol expands a PDG MC ID into its evolution-basis combination.
// This inverts EvolToPdg; IDs without a quark interpretation (21, 22)
// map to themselves with factor one.
func PdgToEvol(pid int32) []PidFactor {
	flavor := pid
	if flavor < 0 {
		flavor = -flavor
	}
	if flavor < 1 || flavor > 6 {
		return []PidFactor{{pid, 1.0}}
	}

	// q    = (q+ + q-)/2
	// qbar = (q+ - q-)/2
	vSign := 0.5
	if pid < 0 {
		vSign = -0.5
	}

	plus := plusCoeffs[flavor-1]
	result := make([]PidFactor, 0, 2*len(plus))
	for _, pf := range plus {
		result = append(result, PidFactor{pf.PID, 0.5 * pf.Factor})
	}
	for _, pf := range plus {
		result = append(result, PidFactor{pf.PID + 100, vSign * pf.Factor})
	}

	return result
}

// ChargeConjugatePDG returns the charge-conjugated PDG MC ID.
func ChargeConjugatePDG(pid int32) int32 {
	if pid == 21 || pid == 22 {
		return pid
	}

	return -pid
}

// ChargeConjugate returns the charge conjugate of pid in the given basis
// together with the sign factor picked up by the conjugation. In the
// evolution basis the T-series combinations are even under conjugation
// and the V-series combinations are odd.
func ChargeConjugate(basis Basis, pid int32) (int32, float64) {
	if basis == Evol {
		switch pid {
		case 100, 103, 108, 115, 124, 135:
			return pid, 1.0
		case 200, 203, 208, 215, 224, 235:
			return pid, -1.0
		}
	}

	return ChargeConjugatePDG(pid), 1.0
}

// GuessBasis decides which basis a set of channel PIDs most likely uses.
// More than three recognized evolution-basis IDs declare the evolution
// basis; anything else is treated as PDG MC IDs.
func GuessBasis(ids []int32) Basis {
	count := 0
	for _, id := range ids {
		for _, evolID := range evolBasisIDs {
			if id == evolID {
				count++

				break
			}
		}
	}

	if count > 3 {
		return Evol
	}

	return Pdg
}
