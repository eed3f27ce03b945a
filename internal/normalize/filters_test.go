package normalize

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoothingWindow(t *testing.T) {
	testCases := []struct {
		name                  string
		window, order, n      int
		wantWindow, wantOrder int
	}{
		{name: "fits", window: 51, order: 3, n: 4096, wantWindow: 51, wantOrder: 3},
		{name: "shrunk to input", window: 51, order: 3, n: 20, wantWindow: 19, wantOrder: 3},
		{name: "forced odd", window: 50, order: 3, n: 4096, wantWindow: 49, wantOrder: 3},
		{name: "minimum five", window: 3, order: 2, n: 100, wantWindow: 5, wantOrder: 2},
		{name: "order capped", window: 7, order: 9, n: 100, wantWindow: 7, wantOrder: 6},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, o := smoothingWindow(tc.window, tc.order, tc.n)
			assert.Equal(t, tc.wantWindow, w)
			assert.Equal(t, tc.wantOrder, o)
		})
	}
}

func TestSavgol_PreservesPolynomial(t *testing.T) {
	y := make([]float64, 40)
	for i := range y {
		x := float64(i) / 10
		y[i] = 0.5*x*x*x - x*x + 2
	}
	got, err := savgol(y, 11, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, got, 1e-9)
}

func TestSavgol_ReducesNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	clean := make([]float64, 500)
	noisy := make([]float64, 500)
	for i := range clean {
		clean[i] = math.Sin(float64(i) / 40)
		noisy[i] = clean[i] + rng.NormFloat64()*0.1
	}
	got, err := savgol(noisy, 51, 3)
	require.NoError(t, err)
	assert.Less(t, rmse(got, clean), rmse(noisy, clean))
}

func TestSavgol_RejectsOversizedWindow(t *testing.T) {
	_, err := savgol(make([]float64, 4), 5, 3)
	assert.Error(t, err)

	_, err = savgol(make([]float64, 10), 5, 5)
	assert.Error(t, err)
}

func TestFilterBank_Orthogonal(t *testing.T) {
	fb := daubechies4
	sumLo, sumHi, energy := 0.0, 0.0, 0.0
	for i := range fb.decLo {
		sumLo += fb.decLo[i]
		sumHi += fb.decHi[i]
		energy += fb.decLo[i] * fb.decLo[i]
	}
	assert.InDelta(t, math.Sqrt2, sumLo, 1e-9)
	assert.InDelta(t, 0, sumHi, 1e-9)
	assert.InDelta(t, 1, energy, 1e-9)
}

func TestWavelet_PerfectReconstruction(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{16, 37, 100, 1000, 4096} {
		x := make([]float64, n)
		for i := range x {
			x[i] = rng.NormFloat64() + float64(i)*0.01
		}
		// a tiny sigma makes the threshold negligible
		got, err := daubechies4.denoise(x, 1e-300)
		require.NoError(t, err)
		require.Len(t, got, n)
		assert.InDeltaSlice(t, x, got, 1e-8, "n=%d", n)
	}
}

func TestWavelet_ReducesNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	clean := make([]float64, 1024)
	noisy := make([]float64, 1024)
	for i := range clean {
		clean[i] = 10 * math.Sin(float64(i)/100)
		noisy[i] = clean[i] + rng.NormFloat64()*0.5
	}
	got, err := daubechies4.denoise(noisy, 0)
	require.NoError(t, err)
	assert.Less(t, rmse(got, clean), rmse(noisy, clean))
}

func TestWavelet_KeepsApproximation(t *testing.T) {
	flat := make([]float64, 256)
	for i := range flat {
		flat[i] = 7
	}
	// the threshold dwarfs every coefficient, so only the untouched
	// approximation band survives
	got, err := daubechies4.denoise(flat, 1e3)
	require.NoError(t, err)
	for i, v := range got {
		require.InDelta(t, 7, v, 1e-6, "sample %d", i)
	}
}

func TestWavelet_TooShort(t *testing.T) {
	_, err := daubechies4.denoise(make([]float64, 6), 1)
	assert.Error(t, err)
}

func TestNoiseSigma(t *testing.T) {
	// successive differences 1, 2, 3, 4
	assert.InDelta(t, 2.5/0.6745, noiseSigma([]float64{0, 1, 3, 6, 10}), 1e-12)
	assert.Equal(t, 0.0, noiseSigma([]float64{1}))
}

func rmse(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(a)))
}
