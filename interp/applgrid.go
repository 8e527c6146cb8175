package interp

import "math"

// The coordinate maps below reproduce the applgrid convention exactly, so
// node tables stay bit-comparable with grids produced by other tools.

// reweightX is the applgrid momentum-fraction reweighting (√x/(1−0.99x))³.
func reweightX(x float64) float64 {
	r := math.Sqrt(x) / (1.0 - 0.99*x)

	return r * r * r
}

// fy2 maps a momentum fraction x to the interpolation coordinate
// y = 5(1−x) − ln x. It is strictly decreasing on (0, 1].
func fy2(x float64) float64 {
	return 5.0*(1.0-x) - math.Log(x)
}

// fx2 inverts fy2 by Newton iteration. The iteration converges in a
// handful of steps for every y produced by fy2 over (0, 1].
func fx2(y float64) float64 {
	yp := y

	for i := 0; i < 100; i++ {
		x := math.Exp(-yp)
		delta := y - yp - 5.0*(1.0-x)
		if math.Abs(delta) < 1e-12 {
			return x
		}
		deriv := -1.0 - 5.0*x
		yp -= delta / deriv
	}

	// fy2 is monotone and smooth; 100 Newton steps never fail to converge
	// for inputs inside its range.
	panic("interp: Newton iteration for fx2 did not converge")
}

// ftau0 maps a squared scale q2 to tau = ln(ln(q2/0.0625)).
func ftau0(q2 float64) float64 {
	return math.Log(math.Log(q2 / 0.0625))
}

// fq20 inverts ftau0.
func fq20(tau float64) float64 {
	return 0.0625 * math.Exp(math.Exp(tau))
}
