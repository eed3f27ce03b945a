package normalize

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const minSmoothingWindow = 5

// smoothingWindow fits the configured window to n samples: shrunk to n,
// forced odd, at least minSmoothingWindow. The order is capped below the window.
func smoothingWindow(window, order, n int) (int, int) {
	if window > n {
		window = n
	}
	if window%2 == 0 {
		window--
	}
	if window < minSmoothingWindow {
		window = minSmoothingWindow
	}
	if order > window-1 {
		order = window - 1
	}
	return window, order
}

// savgolProjection returns the window x window least-squares projection onto
// polynomials of the given order. Row k smooths the sample at offset k.
func savgolProjection(window, order int) *mat.Dense {
	half := float64(window / 2)
	vander := mat.NewDense(window, order+1, nil)
	for i := 0; i < window; i++ {
		x := (float64(i) - half) / half
		p := 1.0
		for j := 0; j <= order; j++ {
			vander.Set(i, j, p)
			p *= x
		}
	}

	var qr mat.QR
	qr.Factorize(vander)
	var q mat.Dense
	qr.QTo(&q)
	basis := q.Slice(0, window, 0, order+1)

	var proj mat.Dense
	proj.Mul(basis, basis.T())
	return &proj
}

// savgol applies a Savitzky-Golay filter. Edges are fitted with the polynomial
// of the first and last full windows.
func savgol(y []float64, window, order int) ([]float64, error) {
	n := len(y)
	if window > n {
		return nil, fmt.Errorf("window %d exceeds %d samples", window, n)
	}
	if order < 0 || order >= window {
		return nil, fmt.Errorf("polynomial order %d invalid for window %d", order, window)
	}
	proj := savgolProjection(window, order)

	half := window / 2
	out := make([]float64, n)
	apply := func(row, start int) float64 {
		sum := 0.0
		for j := 0; j < window; j++ {
			sum += proj.At(row, j) * y[start+j]
		}
		return sum
	}

	for i := 0; i < half; i++ {
		out[i] = apply(i, 0)
		out[n-half+i] = apply(half+1+i, n-window)
	}
	for i := half; i < n-half; i++ {
		out[i] = apply(half, i-half)
	}
	return out, nil
}
