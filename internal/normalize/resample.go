package normalize

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Interpolation strategy names recorded in processing metadata
const (
	StrategyCubicLog = "cubic-log"
	StrategyLinear   = "linear"
)

var errNonFinite = errors.New("interpolation produced non-finite values")

// series is a sorted, de-duplicated sweep. phases are unwrapped degrees.
type series struct {
	freqs  []float64
	mags   []float64
	phases []float64
}

// resampler interpolates a series onto grid
type resampler struct {
	name string
	run  func(s series, grid []float64) (mags, phases []float64, err error)
}

// resamplers are tried in order until one yields finite output
var resamplers = []resampler{
	{StrategyCubicLog, cubicLog},
	{StrategyLinear, linearHold},
}

// logGrid returns n points spaced evenly in log10 between lo and hi
func logGrid(lo, hi float64, n int) []float64 {
	grid := make([]float64, n)
	floats.Span(grid, math.Log10(lo), math.Log10(hi))
	for i, v := range grid {
		grid[i] = math.Pow(10, v)
	}
	grid[0], grid[n-1] = lo, hi
	return grid
}

// prepare sorts by frequency, keeps the first of duplicate frequencies and
// drops points outside [lo, hi]. Input slices are not modified.
func prepare(freqs, mags, phases []float64, lo, hi float64) series {
	idx := make([]int, len(freqs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return freqs[idx[a]] < freqs[idx[b]] })

	hasPhases := len(phases) == len(freqs) && len(phases) > 0
	var s series
	for _, i := range idx {
		f := freqs[i]
		if f < lo || f > hi || math.IsNaN(f) {
			continue
		}
		if n := len(s.freqs); n > 0 && s.freqs[n-1] == f {
			continue
		}
		s.freqs = append(s.freqs, f)
		s.mags = append(s.mags, mags[i])
		if hasPhases {
			s.phases = append(s.phases, phases[i])
		}
	}
	if hasPhases {
		s.phases = unwrapDegrees(s.phases)
	}
	return s
}

// unwrapDegrees removes 360 degree jumps between neighbours
func unwrapDegrees(deg []float64) []float64 {
	out := make([]float64, len(deg))
	if len(deg) == 0 {
		return out
	}
	out[0] = deg[0] * math.Pi / 180
	correction := 0.0
	for i := 1; i < len(deg); i++ {
		d := (deg[i] - deg[i-1]) * math.Pi / 180
		dmod := math.Mod(d+math.Pi, 2*math.Pi)
		if dmod < 0 {
			dmod += 2 * math.Pi
		}
		dmod -= math.Pi
		if dmod == -math.Pi && d > 0 {
			dmod = math.Pi
		}
		if math.Abs(d) >= math.Pi {
			correction += dmod - d
		}
		out[i] = deg[i]*math.Pi/180 + correction
	}
	for i := range out {
		out[i] *= 180 / math.Pi
	}
	return out
}

// cubicLog fits not-a-knot cubic splines in log10 frequency and extrapolates
// the end polynomials beyond the data
func cubicLog(s series, grid []float64) ([]float64, []float64, error) {
	x := make([]float64, len(s.freqs))
	for i, f := range s.freqs {
		x[i] = math.Log10(f)
	}
	xt := make([]float64, len(grid))
	for i, f := range grid {
		xt[i] = math.Log10(f)
	}

	magSpline, err := newSpline(x, s.mags)
	if err != nil {
		return nil, nil, err
	}
	mags := magSpline.evalAll(xt)

	var phases []float64
	if s.phases != nil {
		phaseSpline, err := newSpline(x, s.phases)
		if err != nil {
			return nil, nil, err
		}
		phases = phaseSpline.evalAll(xt)
	}
	return mags, phases, nil
}

// linearHold interpolates linearly in frequency and holds the edge values
// outside the data range
func linearHold(s series, grid []float64) ([]float64, []float64, error) {
	if len(s.freqs) < 2 {
		return nil, nil, fmt.Errorf("linear interpolation needs 2 points, got %d", len(s.freqs))
	}
	mags := interpLinear(s.freqs, s.mags, grid)
	var phases []float64
	if s.phases != nil {
		phases = interpLinear(s.freqs, s.phases, grid)
	}
	return mags, phases, nil
}

func interpLinear(x, y, xt []float64) []float64 {
	out := make([]float64, len(xt))
	last := len(x) - 1
	for i, v := range xt {
		switch {
		case v <= x[0]:
			out[i] = y[0]
		case v >= x[last]:
			out[i] = y[last]
		default:
			j := sort.SearchFloat64s(x, v)
			if x[j] == v {
				out[i] = y[j]
				continue
			}
			t := (v - x[j-1]) / (x[j] - x[j-1])
			out[i] = y[j-1] + t*(y[j]-y[j-1])
		}
	}
	return out
}

// spline is a cubic spline stored as knot values and second derivatives
type spline struct {
	x, y, m []float64
}

// newSpline solves for second derivatives with not-a-knot end conditions
func newSpline(x, y []float64) (*spline, error) {
	n := len(x)
	if n < 4 {
		return nil, fmt.Errorf("cubic spline needs 4 points, got %d", n)
	}
	h := make([]float64, n-1)
	for i := range h {
		h[i] = x[i+1] - x[i]
		if !(h[i] > 0) {
			return nil, fmt.Errorf("knots must be strictly increasing at %d", i)
		}
	}

	// tridiagonal system for M[1..n-2]
	size := n - 2
	sub := make([]float64, size)
	diag := make([]float64, size)
	sup := make([]float64, size)
	rhs := make([]float64, size)
	for k := 0; k < size; k++ {
		i := k + 1
		sub[k] = h[i-1]
		diag[k] = 2 * (h[i-1] + h[i])
		sup[k] = h[i]
		rhs[k] = 6 * ((y[i+1]-y[i])/h[i] - (y[i]-y[i-1])/h[i-1])
	}
	// not-a-knot: the third derivative is continuous at x[1] and x[n-2]
	h0, h1 := h[0], h[1]
	diag[0] += h0 + h0*h0/h1
	sup[0] -= h0 * h0 / h1
	a, b := h[n-3], h[n-2]
	diag[size-1] += b + b*b/a
	sub[size-1] -= b * b / a

	inner, err := solveTridiagonal(sub, diag, sup, rhs)
	if err != nil {
		return nil, err
	}

	m := make([]float64, n)
	copy(m[1:], inner)
	m[0] = m[1] + h0*(m[1]-m[2])/h1
	m[n-1] = m[n-2] + b*(m[n-2]-m[n-3])/a
	return &spline{x: x, y: y, m: m}, nil
}

// solveTridiagonal runs the Thomas algorithm; sub[0] and sup[n-1] are ignored
func solveTridiagonal(sub, diag, sup, rhs []float64) ([]float64, error) {
	n := len(diag)
	c := make([]float64, n)
	d := make([]float64, n)
	pivot := diag[0]
	if pivot == 0 {
		return nil, errors.New("singular spline system")
	}
	c[0] = sup[0] / pivot
	d[0] = rhs[0] / pivot
	for i := 1; i < n; i++ {
		pivot = diag[i] - sub[i]*c[i-1]
		if pivot == 0 {
			return nil, errors.New("singular spline system")
		}
		c[i] = sup[i] / pivot
		d[i] = (rhs[i] - sub[i]*d[i-1]) / pivot
	}
	out := make([]float64, n)
	out[n-1] = d[n-1]
	for i := n - 2; i >= 0; i-- {
		out[i] = d[i] - c[i]*out[i+1]
	}
	return out, nil
}

// eval evaluates the piece containing v; outside the knots the end piece is extended
func (s *spline) eval(v float64) float64 {
	last := len(s.x) - 2
	i := sort.SearchFloat64s(s.x, v) - 1
	if i < 0 {
		i = 0
	}
	if i > last {
		i = last
	}
	h := s.x[i+1] - s.x[i]
	l := s.x[i+1] - v
	r := v - s.x[i]
	return s.m[i]*l*l*l/(6*h) + s.m[i+1]*r*r*r/(6*h) +
		(s.y[i]/h-s.m[i]*h/6)*l + (s.y[i+1]/h-s.m[i+1]*h/6)*r
}

func (s *spline) evalAll(xt []float64) []float64 {
	out := make([]float64, len(xt))
	for i, v := range xt {
		out[i] = s.eval(v)
	}
	return out
}

func allFinite(vals ...[]float64) bool {
	for _, vs := range vals {
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
