package models

import "time"

// Record is the canonical FRA record every codec produces and the normalizer consumes.
// Sections are pointers so a JSON document can be checked for their presence.
type Record struct {
	AssetMetadata      *AssetMetadata      `json:"asset_metadata" validate:"required"`
	TestInfo           *TestInfo           `json:"test_info" validate:"required"`
	Measurement        *Measurement        `json:"measurement" validate:"required"`
	RawFile            *RawFileInfo        `json:"raw_file" validate:"required"`
	ProcessingMetadata *ProcessingMetadata `json:"processing_metadata,omitempty"`
}

// AssetMetadata describes the transformer under test
type AssetMetadata struct {
	AssetID       string     `json:"asset_id" validate:"required"`
	Manufacturer  string     `json:"manufacturer" validate:"required"`
	Model         string     `json:"model" validate:"required"`
	RatingMVA     float64    `json:"rating_MVA"`
	WindingConfig string     `json:"winding_config"`
	Serial        string     `json:"serial"`
	YearInstalled int        `json:"year_installed"`
	VoltageLevels [2]float64 `json:"voltage_levels"`
}

// TestInfo describes the sweep session
type TestInfo struct {
	TestID      string  `json:"test_id" validate:"required"`
	Date        string  `json:"date" validate:"required"`
	Technician  string  `json:"technician"`
	Instrument  string  `json:"instrument" validate:"required"`
	TestVoltage float64 `json:"test_voltage"`
	Coupling    string  `json:"coupling"`
	AmbientTemp float64 `json:"ambient_temp"`
}

// Measurement holds the swept frequency response.
// Frequencies, Magnitudes and Phases (when present) are parallel arrays.
type Measurement struct {
	Frequencies []float64 `json:"frequencies" validate:"required"`
	Magnitudes  []float64 `json:"magnitudes" validate:"required"`
	Unit        string    `json:"unit" validate:"required"`
	Phases      []float64 `json:"phases,omitempty"`
	PhaseUnit   string    `json:"phase_unit,omitempty"`
	Connection  string    `json:"connection"`
	Resolution  int       `json:"resolution"`
	FreqStart   float64   `json:"freq_start"`
	FreqEnd     float64   `json:"freq_end"`
}

// RawFileInfo records where a record came from
type RawFileInfo struct {
	Filename       string `json:"filename"`
	VendorName     string `json:"vendor_name"`
	OriginalFormat string `json:"original_format"`
	FileSize       int64  `json:"file_size"`
	ParserVersion  string `json:"parser_version"`
}

// ProcessingMetadata is attached by the normalizer and lists what actually ran
type ProcessingMetadata struct {
	ProcessedDate         time.Time      `json:"processed_date"`
	Steps                 []string       `json:"preprocessing_steps"`
	InterpolationStrategy string         `json:"interpolation_strategy"`
	SmoothingApplied      bool           `json:"smoothing_applied"`
	DenoisingApplied      bool           `json:"denoising_applied"`
	TargetPoints          int            `json:"target_points"`
	FrequencyRangeHz      [2]float64     `json:"frequency_range_hz"`
	MagnitudeRangeDB      [2]float64     `json:"magnitude_range_db"`
	NormalizedData        NormalizedData `json:"normalized_data"`
}

// NormalizedData keeps the ML-facing arrays apart from the physical-unit ones
type NormalizedData struct {
	FrequenciesLog10     []float64 `json:"frequencies_log10"`
	MagnitudesNormalized []float64 `json:"magnitudes_normalized"`
	PhasesNormalized     []float64 `json:"phases_normalized"`
}

// Units and format tags shared by codecs
const (
	UnitDB        = "dB"
	UnitLinear    = "linear"
	PhaseDegrees  = "degrees"
	ParserVersion = "1.0"

	// MinPoints is the smallest sweep the pipeline accepts
	MinPoints = 10
)

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{}
	if r.AssetMetadata != nil {
		a := *r.AssetMetadata
		out.AssetMetadata = &a
	}
	if r.TestInfo != nil {
		t := *r.TestInfo
		out.TestInfo = &t
	}
	if r.Measurement != nil {
		m := *r.Measurement
		m.Frequencies = cloneFloats(r.Measurement.Frequencies)
		m.Magnitudes = cloneFloats(r.Measurement.Magnitudes)
		m.Phases = cloneFloats(r.Measurement.Phases)
		out.Measurement = &m
	}
	if r.RawFile != nil {
		f := *r.RawFile
		out.RawFile = &f
	}
	if r.ProcessingMetadata != nil {
		p := *r.ProcessingMetadata
		p.Steps = append([]string(nil), r.ProcessingMetadata.Steps...)
		p.NormalizedData.FrequenciesLog10 = cloneFloats(p.NormalizedData.FrequenciesLog10)
		p.NormalizedData.MagnitudesNormalized = cloneFloats(p.NormalizedData.MagnitudesNormalized)
		p.NormalizedData.PhasesNormalized = cloneFloats(p.NormalizedData.PhasesNormalized)
		out.ProcessingMetadata = &p
	}
	return out
}

func cloneFloats(src []float64) []float64 {
	if src == nil {
		return nil
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}
