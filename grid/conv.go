package grid

import (
	"fmt"

	"github.com/NNPDF/pineappl-go/pids"
)

// ConvType distinguishes the four kinds of convolution functions.
type ConvType uint8

const (
	// UnpolPDF is an unpolarized parton distribution function.
	UnpolPDF ConvType = iota
	// PolPDF is a polarized parton distribution function.
	PolPDF
	// UnpolFF is an unpolarized fragmentation function.
	UnpolFF
	// PolFF is a polarized fragmentation function.
	PolFF
)

// NewConvType maps the (polarized, time-like) flags onto a ConvType.
func NewConvType(polarized, timeLike bool) ConvType {
	switch {
	case !polarized && !timeLike:
		return UnpolPDF
	case !polarized && timeLike:
		return UnpolFF
	case polarized && !timeLike:
		return PolPDF
	default:
		return PolFF
	}
}

// IsPDF reports whether the convolution function is space-like, i.e.
// evaluated at the factorization rather than the fragmentation scale.
func (t ConvType) IsPDF() bool { return t == UnpolPDF || t == PolPDF }

// String returns the metadata spelling of the convolution type.
func (t ConvType) String() string {
	switch t {
	case UnpolPDF:
		return "UnpolPDF"
	case PolPDF:
		return "PolPDF"
	case UnpolFF:
		return "UnpolFF"
	case PolFF:
		return "PolFF"
	default:
		return fmt.Sprintf("ConvType(%d)", uint8(t))
	}
}

// ParseConvType inverts String; unknown spellings are ErrParse.
func ParseConvType(s string) (ConvType, error) {
	switch s {
	case "UnpolPDF":
		return UnpolPDF, nil
	case "PolPDF":
		return PolPDF, nil
	case "UnpolFF":
		return UnpolFF, nil
	case "PolFF":
		return PolFF, nil
	default:
		return 0, fmt.Errorf("%w: unknown convolution type %q", ErrParse, s)
	}
}

// Conv describes one convolution of a grid: the kind of function it is
// convolved with and the PDG identifier of the participating hadron.
type Conv struct {
	Type ConvType
	PID  int32
}

// CC returns the convolution of the charge-conjugated hadron.
func (c Conv) CC() Conv {
	return Conv{Type: c.Type, PID: pids.ChargeConjugatePDG(c.PID)}
}
