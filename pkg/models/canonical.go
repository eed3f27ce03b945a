package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Defaults for fields a source format cannot carry
const (
	Unknown              = "unknown"
	DefaultRatingMVA     = 100.0
	DefaultTestVoltage   = 1000.0
	DefaultAmbientTemp   = 25.0
	DefaultYearInstalled = 2020
	DefaultCoupling      = "capacitive"
	DefaultConnection    = "H1-H2"
)

// DefaultVoltageLevels is the HV/LV pair assumed when a file does not state one
var DefaultVoltageLevels = [2]float64{132, 33}

// NewAssetMetadata returns asset metadata populated with defaults
func NewAssetMetadata() *AssetMetadata {
	return &AssetMetadata{
		AssetID:       Unknown,
		Manufacturer:  Unknown,
		Model:         Unknown,
		RatingMVA:     DefaultRatingMVA,
		WindingConfig: Unknown,
		Serial:        Unknown,
		YearInstalled: DefaultYearInstalled,
		VoltageLevels: DefaultVoltageLevels,
	}
}

// NewTestInfo returns test info populated with defaults
func NewTestInfo() *TestInfo {
	return &TestInfo{
		TestID:      Unknown,
		Date:        time.Now().UTC().Format(time.RFC3339),
		Technician:  Unknown,
		Instrument:  Unknown,
		TestVoltage: DefaultTestVoltage,
		Coupling:    DefaultCoupling,
		AmbientTemp: DefaultAmbientTemp,
	}
}

// NewMeasurement builds a measurement and derives resolution and range from the arrays
func NewMeasurement(freqs, mags, phases []float64, unit, connection string) *Measurement {
	m := &Measurement{
		Frequencies: freqs,
		Magnitudes:  mags,
		Unit:        unit,
		Connection:  connection,
	}
	if len(phases) > 0 {
		m.Phases = phases
		m.PhaseUnit = PhaseDegrees
	}
	if m.Connection == "" {
		m.Connection = DefaultConnection
	}
	m.refreshSummary()
	return m
}

func (m *Measurement) refreshSummary() {
	m.Resolution = len(m.Frequencies)
	if len(m.Frequencies) > 0 {
		m.FreqStart = m.Frequencies[0]
		m.FreqEnd = m.Frequencies[len(m.Frequencies)-1]
	}
}

// LinearToDB converts a linear magnitude ratio to decibels
func LinearToDB(v float64) float64 {
	return 20 * math.Log10(math.Max(v, 1e-12))
}

// IsLinearMagnitude applies the text codecs' unit heuristic: all values
// non-negative and below 10 means a linear ratio, anything else is dB.
func IsLinearMagnitude(mags []float64) bool {
	if len(mags) == 0 {
		return false
	}
	maxVal := math.Inf(-1)
	for _, v := range mags {
		if v < 0 {
			return false
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return maxVal < 10
}

// CanonicalizeMeasurement sorts the sweep by frequency, drops duplicate
// frequencies (first occurrence kept) and non-positive or non-finite
// frequencies, converts linear magnitudes to dB and refreshes the summary
// fields. Arrays are replaced, never modified in place. Mismatched array
// lengths are an ErrMalformedRecord and leave m untouched.
func CanonicalizeMeasurement(m *Measurement) error {
	if m == nil {
		return fmt.Errorf("%w: no measurement", ErrMalformedRecord)
	}
	n := len(m.Frequencies)
	if len(m.Magnitudes) != n {
		return fmt.Errorf("%w: %d magnitudes for %d frequencies", ErrMalformedRecord, len(m.Magnitudes), n)
	}
	if len(m.Phases) != 0 && len(m.Phases) != n {
		return fmt.Errorf("%w: %d phases for %d frequencies", ErrMalformedRecord, len(m.Phases), n)
	}
	hasPhases := len(m.Phases) > 0

	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		f := m.Frequencies[i]
		if f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return m.Frequencies[idx[a]] < m.Frequencies[idx[b]]
	})

	freqs := make([]float64, 0, len(idx))
	mags := make([]float64, 0, len(idx))
	var phases []float64
	if hasPhases {
		phases = make([]float64, 0, len(idx))
	}
	linear := strings.EqualFold(m.Unit, UnitLinear) || strings.EqualFold(m.Unit, "magnitude") || strings.EqualFold(m.Unit, "ratio")
	for _, i := range idx {
		f := m.Frequencies[i]
		if len(freqs) > 0 && freqs[len(freqs)-1] == f {
			continue
		}
		freqs = append(freqs, f)
		mag := m.Magnitudes[i]
		if linear {
			mag = LinearToDB(mag)
		}
		mags = append(mags, mag)
		if hasPhases {
			phases = append(phases, m.Phases[i])
		}
	}

	m.Frequencies = freqs
	m.Magnitudes = mags
	m.Phases = phases
	if hasPhases {
		m.PhaseUnit = PhaseDegrees
	} else {
		m.PhaseUnit = ""
	}
	m.Unit = UnitDB
	m.refreshSummary()
	return nil
}
