package grid

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/NNPDF/pineappl-go/pids"
	"gonum.org/v1/gonum/floats/scalar"
)

// channelFactorEps is the absolute threshold below which an entry factor
// counts as zero and is dropped during channel normalization.
const channelFactorEps = 1e-14

// ChannelEntry is one PID combination of a channel, together with the
// numerical factor multiplying its contribution.
type ChannelEntry struct {
	PIDs   []int32
	Factor float64
}

// Channel is a sum of PID combinations sharing one set of subgrids.
// Entries are kept sorted by PID tuple, equal tuples coalesced and zero
// factors dropped, so equal channels compare equal structurally.
type Channel struct {
	entries []ChannelEntry
}

// NewChannel normalizes and constructs a channel. Empty input and
// entries with unequal PID tuple lengths are ErrBadChannel.
func NewChannel(entries []ChannelEntry) (Channel, error) {
	if len(entries) == 0 {
		return Channel{}, fmt.Errorf("%w: empty entry list", ErrBadChannel)
	}
	for _, entry := range entries[1:] {
		if len(entry.PIDs) != len(entries[0].PIDs) {
			return Channel{}, fmt.Errorf("%w: PID tuples have different lengths", ErrBadChannel)
		}
	}

	sorted := make([]ChannelEntry, len(entries))
	for i, entry := range entries {
		sorted[i] = ChannelEntry{PIDs: append([]int32(nil), entry.PIDs...), Factor: entry.Factor}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return pidsLess(sorted[i].PIDs, sorted[j].PIDs)
	})

	coalesced := make([]ChannelEntry, 0, len(sorted))
	for _, entry := range sorted {
		if n := len(coalesced); n > 0 && pidsEqual(coalesced[n-1].PIDs, entry.PIDs) {
			coalesced[n-1].Factor += entry.Factor
			continue
		}
		coalesced = append(coalesced, entry)
	}

	filtered := coalesced[:0]
	for _, entry := range coalesced {
		if math.Abs(entry.Factor) > channelFactorEps {
			filtered = append(filtered, entry)
		}
	}

	return Channel{entries: append([]ChannelEntry(nil), filtered...)}, nil
}

// mustChannel wraps NewChannel for internal call sites whose inputs are
// valid by construction.
func mustChannel(entries []ChannelEntry) Channel {
	ch, err := NewChannel(entries)
	if err != nil {
		panic(err)
	}

	return ch
}

// Entries returns the normalized entry list. The slice must not be
// modified.
func (c Channel) Entries() []ChannelEntry { return c.entries }

// Legs returns the PID tuple length, i.e. the number of convolutions.
func (c Channel) Legs() int {
	if len(c.entries) == 0 {
		return 0
	}

	return len(c.entries[0].PIDs)
}

// Equal reports structural equality of the normalized entry lists.
func (c Channel) Equal(other Channel) bool {
	if len(c.entries) != len(other.entries) {
		return false
	}
	for i, entry := range c.entries {
		if entry.Factor != other.entries[i].Factor || !pidsEqual(entry.PIDs, other.entries[i].PIDs) {
			return false
		}
	}

	return true
}

// Translate substitutes every PID by its expansion in another basis,
// expanding products over all legs.
func (c Channel) Translate(translator func(pid int32) []pids.PidFactor) Channel {
	var result []ChannelEntry

	for _, entry := range c.entries {
		expansions := make([][]pids.PidFactor, len(entry.PIDs))
		for leg, pid := range entry.PIDs {
			expansions[leg] = translator(pid)
		}

		// walk the cartesian product of the per-leg expansions
		offsets := make([]int, len(expansions))
		for {
			tuple := make([]int32, len(expansions))
			factor := entry.Factor
			for leg, off := range offsets {
				tuple[leg] = expansions[leg][off].PID
				factor *= expansions[leg][off].Factor
			}
			result = append(result, ChannelEntry{PIDs: tuple, Factor: factor})

			leg := len(offsets) - 1
			for leg >= 0 {
				offsets[leg]++
				if offsets[leg] < len(expansions[leg]) {
					break
				}
				offsets[leg] = 0
				leg--
			}
			if leg < 0 {
				break
			}
		}
	}

	return mustChannel(result)
}

// Transpose returns the channel with the PIDs at legs i and j swapped.
func (c Channel) Transpose(i, j int) Channel {
	entries := make([]ChannelEntry, len(c.entries))
	for k, entry := range c.entries {
		swapped := append([]int32(nil), entry.PIDs...)
		swapped[i], swapped[j] = swapped[j], swapped[i]
		entries[k] = ChannelEntry{PIDs: swapped, Factor: entry.Factor}
	}

	return mustChannel(entries)
}

// CommonFactor reports whether other is the same channel up to one
// overall factor, and returns that factor.
func (c Channel) CommonFactor(other Channel) (float64, bool) {
	if len(c.entries) != len(other.entries) {
		return 0, false
	}

	ratios := make([]float64, len(c.entries))
	for i, entry := range c.entries {
		if !pidsEqual(entry.PIDs, other.entries[i].PIDs) {
			return 0, false
		}
		ratios[i] = entry.Factor / other.entries[i].Factor
	}

	for i := 1; i < len(ratios); i++ {
		if !scalar.EqualWithinULP(ratios[i-1], ratios[i], 4) {
			return 0, false
		}
	}

	return ratios[0], true
}

// String renders the channel in the "1 * (2, -2) + 2 * (4, -4)" form
// accepted by ParseChannel.
func (c Channel) String() string {
	parts := make([]string, len(c.entries))
	for i, entry := range c.entries {
		pidStrs := make([]string, len(entry.PIDs))
		for j, pid := range entry.PIDs {
			pidStrs[j] = strconv.FormatInt(int64(pid), 10)
		}
		parts[i] = fmt.Sprintf("%v * (%s)", entry.Factor, strings.Join(pidStrs, ", "))
	}

	return strings.Join(parts, " + ")
}

// ParseChannel parses the textual channel notation: '+'-separated terms
// of the form "factor * (pid, pid, ...)".
func ParseChannel(s string) (Channel, error) {
	var entries []ChannelEntry

	for _, term := range strings.Split(s, "+") {
		factorStr, pidsStr, found := strings.Cut(term, "*")
		if !found {
			return Channel{}, fmt.Errorf("%w: missing '*' in %q", ErrParse, term)
		}

		factor, err := strconv.ParseFloat(strings.TrimSpace(factorStr), 64)
		if err != nil {
			return Channel{}, fmt.Errorf("%w: bad factor in %q: %v", ErrParse, term, err)
		}

		pidsStr = strings.TrimSpace(pidsStr)
		pidsStr, found = strings.CutPrefix(pidsStr, "(")
		if !found {
			return Channel{}, fmt.Errorf("%w: missing '(' in %q", ErrParse, term)
		}
		pidsStr, found = strings.CutSuffix(pidsStr, ")")
		if !found {
			return Channel{}, fmt.Errorf("%w: missing ')' in %q", ErrParse, term)
		}

		var tuple []int32
		for _, pidStr := range strings.Split(pidsStr, ",") {
			pid, err := strconv.ParseInt(strings.TrimSpace(pidStr), 10, 32)
			if err != nil {
				return Channel{}, fmt.Errorf("%w: bad PID %q: %v", ErrParse, pidStr, err)
			}
			tuple = append(tuple, int32(pid))
		}

		entries = append(entries, ChannelEntry{PIDs: tuple, Factor: factor})
	}

	return NewChannel(entries)
}

func pidsLess(a, b []int32) bool {
	for i := range a {
		if i >= len(b) {
			return false
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}

	return len(a) < len(b)
}

func pidsEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
