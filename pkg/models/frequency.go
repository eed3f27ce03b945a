package models

// FrequencyPoint represents a single frequency measurement
type FrequencyPoint struct {
	Frequency float64  `json:"frequency" doc:"Frequency in Hz"`
	Magnitude float64  `json:"magnitude" doc:"Magnitude in dB"`
	Phase     *float64 `json:"phase,omitempty" doc:"Phase in degrees"`
}

// Points returns the measurement as frequency/magnitude pairs
func (m *Measurement) Points() []FrequencyPoint {
	if m == nil {
		return nil
	}
	n := len(m.Frequencies)
	if len(m.Magnitudes) < n {
		n = len(m.Magnitudes)
	}
	points := make([]FrequencyPoint, n)
	for i := 0; i < n; i++ {
		points[i] = FrequencyPoint{Frequency: m.Frequencies[i], Magnitude: m.Magnitudes[i]}
		if len(m.Phases) == len(m.Frequencies) {
			phase := m.Phases[i]
			points[i].Phase = &phase
		}
	}
	return points
}

// HasPhases reports whether the measurement carries phase data
func (m *Measurement) HasPhases() bool {
	return m != nil && len(m.Phases) > 0
}
