package normalize

import (
	"fmt"
)

// Config controls the common grid and the optional filters
type Config struct {
	// TargetPoints is the number of log-spaced grid points
	TargetPoints int
	FreqMin      float64
	FreqMax      float64

	// MagMin and MagMax bound the dB window mapped onto [0, 1]
	MagMin float64
	MagMax float64

	Smoothing       bool
	SmoothingWindow int
	SmoothingOrder  int

	Denoise bool
	// NoiseSigma is the wavelet noise estimate; zero means estimate from the data
	NoiseSigma float64
}

// DefaultConfig returns the grid and filter settings used for model input
func DefaultConfig() Config {
	return Config{
		TargetPoints:    4096,
		FreqMin:         20e3,
		FreqMax:         12e6,
		MagMin:          -60,
		MagMax:          60,
		Smoothing:       true,
		SmoothingWindow: 51,
		SmoothingOrder:  3,
		Denoise:         false,
	}
}

// Validate rejects settings that cannot produce a grid
func (c Config) Validate() error {
	if c.TargetPoints < 2 {
		return fmt.Errorf("target points must be at least 2, got %d", c.TargetPoints)
	}
	if c.FreqMin <= 0 || c.FreqMax <= c.FreqMin {
		return fmt.Errorf("invalid frequency range [%g, %g]", c.FreqMin, c.FreqMax)
	}
	if c.MagMax <= c.MagMin {
		return fmt.Errorf("invalid magnitude range [%g, %g]", c.MagMin, c.MagMax)
	}
	if c.Smoothing && (c.SmoothingWindow < 1 || c.SmoothingOrder < 0) {
		return fmt.Errorf("invalid smoothing window %d / order %d", c.SmoothingWindow, c.SmoothingOrder)
	}
	if c.NoiseSigma < 0 {
		return fmt.Errorf("noise sigma must not be negative, got %g", c.NoiseSigma)
	}
	return nil
}
