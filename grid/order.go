package grid

import (
	"fmt"
	"sort"
	"strings"
)

// Order holds the coupling powers of one perturbative contribution.
type Order struct {
	// Alphas is the exponent of the strong coupling.
	Alphas uint8
	// Alpha is the exponent of the electromagnetic coupling.
	Alpha uint8
	// LogXiR is the exponent of the renormalization scale-factor log.
	LogXiR uint8
	// LogXiF is the exponent of the factorization scale-factor log.
	LogXiF uint8
	// LogXiA is the exponent of the fragmentation scale-factor log.
	LogXiA uint8
}

// NewOrder is shorthand for constructing an Order from its exponents.
func NewOrder(alphas, alpha, logxir, logxif, logxia uint8) Order {
	return Order{Alphas: alphas, Alpha: alpha, LogXiR: logxir, LogXiF: logxif, LogXiA: logxia}
}

// HasLogs reports whether any scale-factor log exponent is non-zero.
func (o Order) HasLogs() bool {
	return o.LogXiR > 0 || o.LogXiF > 0 || o.LogXiA > 0
}

// Less orders leading orders before next-to-leading orders, then by the
// power of alpha and the log exponents.
func (o Order) Less(other Order) bool {
	lhs := o.Alphas + o.Alpha
	rhs := other.Alphas + other.Alpha
	if lhs != rhs {
		return lhs < rhs
	}

	a := [4]uint8{o.Alpha, o.LogXiR, o.LogXiF, o.LogXiA}
	b := [4]uint8{other.Alpha, other.LogXiR, other.LogXiF, other.LogXiA}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}

	return false
}

// SortOrders sorts in the canonical ordering defined by Less.
func SortOrders(orders []Order) {
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].Less(orders[j]) })
}

// String renders the non-zero exponents in the compact "as1a2lr1lf1la1"
// notation; the all-zero order renders as the empty string.
func (o Order) String() string {
	var sb strings.Builder
	for _, part := range []struct {
		label string
		value uint8
	}{
		{"as", o.Alphas},
		{"a", o.Alpha},
		{"lr", o.LogXiR},
		{"lf", o.LogXiF},
		{"la", o.LogXiA},
	} {
		if part.value > 0 {
			fmt.Fprintf(&sb, "%s%d", part.label, part.value)
		}
	}

	return sb.String()
}

// ParseOrder parses the compact notation produced by String. Unknown
// coupling labels and overflowing exponents are ErrParse.
func ParseOrder(s string) (Order, error) {
	var result Order

	rest := s
	for len(rest) > 0 {
		split := 0
		for split < len(rest) && !isDigit(rest[split]) {
			split++
		}
		label := rest[:split]
		rest = rest[split:]

		split = 0
		for split < len(rest) && isDigit(rest[split]) {
			split++
		}
		digits := rest[:split]
		rest = rest[split:]

		if label == "" || digits == "" {
			return Order{}, fmt.Errorf("%w: malformed order %q", ErrParse, s)
		}

		value := 0
		for i := 0; i < len(digits); i++ {
			value = value*10 + int(digits[i]-'0')
			if value > 255 {
				return Order{}, fmt.Errorf("%w: exponent of %q too large", ErrParse, label)
			}
		}

		switch label {
		case "as":
			result.Alphas = uint8(value)
		case "a":
			result.Alpha = uint8(value)
		case "lr":
			result.LogXiR = uint8(value)
		case "lf":
			result.LogXiF = uint8(value)
		case "la":
			result.LogXiA = uint8(value)
		default:
			return Order{}, fmt.Errorf("%w: unknown coupling %q", ErrParse, label)
		}
	}

	return result, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// OrderMask computes the boolean selection of orders up to maxAs powers
// of the strong and maxAl powers of the electromagnetic coupling beyond
// the leading order. Setting maxAs=1, maxAl=0 selects the LO QCD only,
// maxAs=2 the NLO QCD, and so on. Orders carrying scale-factor logs are
// excluded unless logs is set.
func OrderMask(orders []Order, maxAs, maxAl uint8, logs bool) []bool {
	var lo uint8
	for i, o := range orders {
		if sum := o.Alphas + o.Alpha; i == 0 || sum < lo {
			lo = sum
		}
	}

	// the highest coupling powers among the leading orders
	var loAs, loAl uint8
	for _, o := range orders {
		if o.Alphas+o.Alpha != lo {
			continue
		}
		if o.Alphas > loAs {
			loAs = o.Alphas
		}
		if o.Alpha > loAl {
			loAl = o.Alpha
		}
	}

	max, min := maxAs, maxAl
	if min > max {
		max, min = min, max
	}

	mask := make([]bool, len(orders))
	for i, o := range orders {
		if !logs && o.HasLogs() {
			continue
		}

		sum := o.Alphas + o.Alpha
		pto := sum - lo

		switch {
		case sum < min+lo:
			mask[i] = true
		case sum < max+lo && maxAs > maxAl:
			mask[i] = loAs+pto == o.Alphas
		case sum < max+lo && maxAs < maxAl:
			mask[i] = loAl+pto == o.Alpha
		}
	}

	return mask
}
