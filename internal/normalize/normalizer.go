// Package normalize resamples a validated record onto a common log-spaced
// grid, optionally smooths and denoises it, and attaches ML-ready arrays
// scaled to fixed ranges.
//
// Only resampling can fail. Smoothing and denoising fall back to their input
// on any numerical problem and are then left out of the recorded steps.
package normalize

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/unifra/pkg/models"
)

// Step names recorded in processing metadata
const (
	StepResample  = "resampling_to_common_grid"
	StepSmoothing = "savitzky_golay_filtering"
	StepDenoising = "wavelet_denoising"
	StepNormalize = "normalization"
)

// FallbackHook observes a step that did not run as configured.
// strategy is the resampler used, or "skipped" for filters.
type FallbackHook func(step, strategy string)

// Normalizer holds immutable settings and may be shared between goroutines
type Normalizer struct {
	cfg        Config
	grid       []float64
	now        func() time.Time
	onFallback FallbackHook
}

// Option customizes a Normalizer
type Option func(*Normalizer)

// WithClock sets the time source for processed_date
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithFallbackHook registers a callback for fallbacks and skipped filters
func WithFallbackHook(hook FallbackHook) Option {
	return func(n *Normalizer) { n.onFallback = hook }
}

// New validates cfg and precomputes the target grid
func New(cfg Config, opts ...Option) (*Normalizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid normalizer config: %w", err)
	}
	n := &Normalizer{
		cfg:  cfg,
		grid: logGrid(cfg.FreqMin, cfg.FreqMax, cfg.TargetPoints),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Config returns the settings the normalizer was built with
func (n *Normalizer) Config() Config {
	return n.cfg
}

// Normalize returns a new record on the target grid. rec is not modified.
func (n *Normalizer) Normalize(rec *models.Record) (*models.Record, error) {
	if rec == nil || rec.Measurement == nil {
		return nil, fmt.Errorf("%w: no measurement to normalize", models.ErrMalformedRecord)
	}
	if in := rec.Measurement; len(in.Magnitudes) != len(in.Frequencies) ||
		(len(in.Phases) != 0 && len(in.Phases) != len(in.Frequencies)) {
		return nil, fmt.Errorf("%w: %d frequencies, %d magnitudes, %d phases",
			models.ErrMalformedRecord, len(in.Frequencies), len(in.Magnitudes), len(in.Phases))
	}
	out := rec.Clone()
	m := out.Measurement

	mags := toDecibels(m.Magnitudes, m.Unit)

	// Step 1: Resample onto the common grid
	s := prepare(m.Frequencies, mags, m.Phases, n.cfg.FreqMin, n.cfg.FreqMax)
	if len(s.freqs) < models.MinPoints {
		return nil, fmt.Errorf("%w: %d points inside [%g, %g] Hz, need at least %d",
			models.ErrInsufficientData, len(s.freqs), n.cfg.FreqMin, n.cfg.FreqMax, models.MinPoints)
	}
	strategy, resMags, resPhases, err := n.resample(s)
	if err != nil {
		return nil, err
	}
	steps := []string{StepResample}

	// Step 2: Smooth magnitude and phase
	if n.cfg.Smoothing {
		smMags, smPhases, ok := n.smooth(resMags, resPhases)
		if ok {
			resMags, resPhases = smMags, smPhases
			steps = append(steps, StepSmoothing)
		} else {
			n.fallback(StepSmoothing, "skipped")
		}
	}

	// Step 3: Denoise magnitude
	if n.cfg.Denoise {
		if dn, ok := n.denoise(resMags); ok {
			resMags = dn
			steps = append(steps, StepDenoising)
		} else {
			n.fallback(StepDenoising, "skipped")
		}
	}

	// Step 4: Scale into model ranges
	logFreqs := make([]float64, len(n.grid))
	for i, f := range n.grid {
		logFreqs[i] = math.Log10(f)
	}
	normMags := scaleMagnitudes(resMags, n.cfg.MagMin, n.cfg.MagMax)
	var normPhases []float64
	if resPhases != nil {
		normPhases = scalePhases(resPhases)
	}
	steps = append(steps, StepNormalize)

	freqs := make([]float64, len(n.grid))
	copy(freqs, n.grid)
	out.Measurement = models.NewMeasurement(freqs, resMags, resPhases, models.UnitDB, m.Connection)

	out.ProcessingMetadata = &models.ProcessingMetadata{
		ProcessedDate:         n.now().UTC(),
		Steps:                 steps,
		InterpolationStrategy: strategy,
		SmoothingApplied:      slices.Contains(steps, StepSmoothing),
		DenoisingApplied:      slices.Contains(steps, StepDenoising),
		TargetPoints:          n.cfg.TargetPoints,
		FrequencyRangeHz:      [2]float64{n.cfg.FreqMin, n.cfg.FreqMax},
		MagnitudeRangeDB:      [2]float64{n.cfg.MagMin, n.cfg.MagMax},
		NormalizedData: models.NormalizedData{
			FrequenciesLog10:     logFreqs,
			MagnitudesNormalized: normMags,
			PhasesNormalized:     normPhases,
		},
	}
	return out, nil
}

// resample walks the strategy chain and returns the first finite result
func (n *Normalizer) resample(s series) (string, []float64, []float64, error) {
	var lastErr error
	for i, r := range resamplers {
		mags, phases, err := guard(func() ([]float64, []float64, error) { return r.run(s, n.grid) })
		if err == nil && !allFinite(mags, phases) {
			err = errNonFinite
		}
		if err == nil {
			if i > 0 {
				n.fallback(StepResample, r.name)
			}
			return r.name, mags, phases, nil
		}
		log.Warn().Err(err).Str("strategy", r.name).Msg("Resampling strategy failed")
		lastErr = err
	}
	return "", nil, nil, fmt.Errorf("%w: resampling failed: %v", models.ErrInsufficientData, lastErr)
}

func (n *Normalizer) smooth(mags, phases []float64) ([]float64, []float64, bool) {
	window, order := smoothingWindow(n.cfg.SmoothingWindow, n.cfg.SmoothingOrder, len(mags))
	smMags, smPhases, err := guard(func() ([]float64, []float64, error) {
		sm, err := savgol(mags, window, order)
		if err != nil {
			return nil, nil, err
		}
		var sp []float64
		if phases != nil {
			if sp, err = savgol(phases, window, order); err != nil {
				return nil, nil, err
			}
		}
		return sm, sp, nil
	})
	if err == nil && !allFinite(smMags, smPhases) {
		err = errNonFinite
	}
	if err != nil {
		log.Warn().Err(err).Int("window", window).Int("order", order).Msg("Smoothing skipped")
		return nil, nil, false
	}
	return smMags, smPhases, true
}

func (n *Normalizer) denoise(mags []float64) ([]float64, bool) {
	out, _, err := guard(func() ([]float64, []float64, error) {
		dn, err := daubechies4.denoise(mags, n.cfg.NoiseSigma)
		return dn, nil, err
	})
	if err == nil && !allFinite(out) {
		err = errNonFinite
	}
	if err != nil {
		log.Warn().Err(err).Msg("Wavelet denoising skipped")
		return nil, false
	}
	return out, true
}

func (n *Normalizer) fallback(step, strategy string) {
	if n.onFallback != nil {
		n.onFallback(step, strategy)
	}
}

// guard turns a panic inside a numerical routine into an error
func guard(fn func() ([]float64, []float64, error)) (a, b []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("numerical routine panicked: %v", r)
		}
	}()
	return fn()
}

// toDecibels converts linear magnitudes; unknown units are assumed to be dB
func toDecibels(mags []float64, unit string) []float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "db", "":
		return mags
	case "linear", "magnitude", "ratio":
		out := make([]float64, len(mags))
		for i, v := range mags {
			out[i] = models.LinearToDB(v)
		}
		return out
	default:
		log.Warn().Str("unit", unit).Msg("Unknown magnitude unit, assuming dB")
		return mags
	}
}

func scaleMagnitudes(mags []float64, lo, hi float64) []float64 {
	out := make([]float64, len(mags))
	for i, v := range mags {
		v = math.Min(math.Max(v, lo), hi)
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// scalePhases wraps degrees into [-180, 180] and maps them onto [-1, 1]
func scalePhases(deg []float64) []float64 {
	out := make([]float64, len(deg))
	for i, v := range deg {
		rad := v * math.Pi / 180
		out[i] = math.Atan2(math.Sin(rad), math.Cos(rad)) / math.Pi
	}
	return out
}
