package interp_test

import (
	"errors"
	"fmt"

	"github.com/NNPDF/pineappl-go/interp"
)

// ExampleInterp shows the shape of one interpolation axis: twenty nodes
// of cubic Lagrange interpolation over the momentum fraction, values
// outside [min, max] rejected rather than clamped.
func ExampleInterp() {
	axis, err := interp.New(1e-2, 1.0, 20, 3, interp.NoReweight, interp.MapApplGridF2, interp.Lagrange)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	fmt.Println("nodes:", axis.Nodes())
	fmt.Println("order:", axis.Order())

	if _, _, err = axis.Interpolate(2.0); errors.Is(err, interp.ErrOutOfRange) {
		fmt.Println("x=2.0 rejected")
	}
	// Output:
	// nodes: 20
	// order: 3
	// x=2.0 rejected
}

// ExampleInterp_NodeWeights shows the partition of unity: the Lagrange
// weights of any in-range point sum to one, so interpolation conserves
// the filled weight.
func ExampleInterp_NodeWeights() {
	axis, err := interp.New(1e2, 1e8, 10, 3, interp.NoReweight, interp.MapApplGridH0, interp.Lagrange)
	if err != nil {
		fmt.Println("error:", err)

		return
	}

	weights := axis.NodeWeights(0.3)
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	fmt.Printf("%d weights summing to %.0f\n", len(weights), sum)
	// Output:
	// 4 weights summing to 1
}
