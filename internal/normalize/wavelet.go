package normalize

import (
	"fmt"
	"math"
	"sort"
)

// db4 decomposition low-pass filter; the other three are derived from it
var db4 = []float64{
	-0.010597401784997278,
	0.032883011666982945,
	0.030841381835986965,
	-0.18703481171888114,
	-0.02798376941698385,
	0.6308807679295904,
	0.7148465705525415,
	0.23037781330885523,
}

// filterBank holds the decomposition and reconstruction filters of an orthogonal wavelet
type filterBank struct {
	decLo, decHi, recLo, recHi []float64
}

func newFilterBank(decLo []float64) filterBank {
	n := len(decLo)
	fb := filterBank{
		decLo: decLo,
		decHi: make([]float64, n),
		recLo: make([]float64, n),
		recHi: make([]float64, n),
	}
	for i := range decLo {
		fb.recLo[i] = decLo[n-1-i]
	}
	for i := range fb.recLo {
		sign := 1.0
		if i%2 == 0 {
			sign = -1
		}
		fb.decHi[i] = sign * fb.recLo[i]
	}
	for i := range fb.decHi {
		fb.recHi[i] = fb.decHi[n-1-i]
	}
	return fb
}

var daubechies4 = newFilterBank(db4)

// maxLevel is the deepest useful decomposition for n samples
func (fb filterBank) maxLevel(n int) int {
	f := len(fb.decLo)
	if n < f-1 {
		return 0
	}
	return int(math.Floor(math.Log2(float64(n) / float64(f-1))))
}

// symmetric maps an index outside [0, n) by half-sample reflection
func symmetric(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// decompose runs one analysis step with symmetric extension
func (fb filterBank) decompose(x []float64) (approx, detail []float64) {
	n, f := len(x), len(fb.decLo)
	size := (n + f - 1) / 2
	approx = make([]float64, size)
	detail = make([]float64, size)
	for k := 0; k < size; k++ {
		var a, d float64
		for j := 0; j < f; j++ {
			v := x[symmetric(2*k+1-j, n)]
			a += fb.decLo[j] * v
			d += fb.decHi[j] * v
		}
		approx[k], detail[k] = a, d
	}
	return approx, detail
}

// reconstruct runs one synthesis step, keeping the valid part of the
// upsampled convolution
func (fb filterBank) reconstruct(approx, detail []float64) ([]float64, error) {
	if len(approx) != len(detail) {
		return nil, fmt.Errorf("coefficient lengths differ: %d and %d", len(approx), len(detail))
	}
	n, f := len(approx), len(fb.recLo)
	size := 2*n - f + 2
	if size <= 0 {
		return nil, fmt.Errorf("too few coefficients (%d) to reconstruct", n)
	}
	out := make([]float64, size)
	for o := range out {
		m := o + f - 2
		sum := 0.0
		for j := m % 2; j < f; j += 2 {
			k := (m - j) / 2
			if k < 0 || k >= n {
				continue
			}
			sum += fb.recLo[j]*approx[k] + fb.recHi[j]*detail[k]
		}
		out[o] = sum
	}
	return out, nil
}

// denoise soft-thresholds the detail coefficients of a multilevel
// decomposition; the approximation band is kept as is. sigma <= 0 estimates
// the noise from successive differences.
func (fb filterBank) denoise(x []float64, sigma float64) ([]float64, error) {
	n := len(x)
	level := fb.maxLevel(n)
	if level < 1 {
		return nil, fmt.Errorf("%d samples too short for wavelet decomposition", n)
	}
	if sigma <= 0 {
		sigma = noiseSigma(x)
	}
	threshold := sigma * math.Sqrt(2*math.Log(float64(n)))

	approx := x
	details := make([][]float64, level)
	for l := 0; l < level; l++ {
		var d []float64
		approx, d = fb.decompose(approx)
		details[l] = softThreshold(d, threshold)
	}

	for l := level - 1; l >= 0; l-- {
		d := details[l]
		if len(approx) == len(d)+1 {
			approx = approx[:len(d)]
		}
		var err error
		approx, err = fb.reconstruct(approx, d)
		if err != nil {
			return nil, err
		}
	}
	if len(approx) < n {
		return nil, fmt.Errorf("reconstruction returned %d of %d samples", len(approx), n)
	}
	return approx[:n], nil
}

func softThreshold(c []float64, t float64) []float64 {
	out := make([]float64, len(c))
	for i, v := range c {
		mag := math.Abs(v) - t
		if mag > 0 {
			out[i] = math.Copysign(mag, v)
		}
	}
	return out
}

// noiseSigma is the median absolute successive difference scaled to a
// Gaussian standard deviation
func noiseSigma(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	diffs := make([]float64, len(x)-1)
	for i := range diffs {
		diffs[i] = math.Abs(x[i+1] - x[i])
	}
	return median(diffs) / 0.6745
}

// median sorts vals in place
func median(vals []float64) float64 {
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 0 {
		return (vals[mid-1] + vals[mid]) / 2
	}
	return vals[mid]
}
