// Package text decodes FRA sweeps exported as CSV, XML or JSON.
//
// None of these formats has a fixed schema, so each decoder walks ordered
// keyword tables to find columns, elements and metadata. Anything a file does
// not state is filled with the canonical defaults from the models package.
package text

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/RMahshie/unifra/pkg/models"
)

// Format tags produced by the detector for text inputs
const (
	FormatCSV  = "csv"
	FormatXML  = "xml"
	FormatJSON = "json"

	genericVendor = "generic"
)

// header collects the metadata a text export may carry
type header struct {
	assetID      string
	manufacturer string
	model        string
	ratingMVA    float64
	date         string
	instrument   string
	testVoltage  float64
}

func defaultHeader(now time.Time) header {
	return header{
		assetID:      models.Unknown,
		manufacturer: models.Unknown,
		model:        models.Unknown,
		ratingMVA:    models.DefaultRatingMVA,
		date:         now.UTC().Format(time.RFC3339),
		instrument:   models.Unknown,
		testVoltage:  models.DefaultTestVoltage,
	}
}

// sweep holds parallel point arrays as read from a file
type sweep struct {
	freqs  []float64
	mags   []float64
	phases []float64
}

func (s *sweep) add(f, m float64) {
	s.freqs = append(s.freqs, f)
	s.mags = append(s.mags, m)
}

// buildRecord assembles a canonical record from a text export. Magnitudes that
// look linear are converted to dB, phases are kept only when there is one per point.
func buildRecord(name, format string, size int, h header, s sweep, now time.Time) *models.Record {
	mags := s.mags
	if models.IsLinearMagnitude(mags) {
		mags = make([]float64, len(s.mags))
		for i, v := range s.mags {
			mags[i] = models.LinearToDB(v)
		}
	}
	var phases []float64
	if len(s.phases) == len(s.freqs) {
		phases = s.phases
	}

	asset := models.NewAssetMetadata()
	asset.AssetID = h.assetID
	asset.Manufacturer = h.manufacturer
	asset.Model = h.model
	asset.RatingMVA = h.ratingMVA

	test := models.NewTestInfo()
	test.TestID = testID(name, now)
	test.Date = h.date
	test.Instrument = h.instrument
	test.TestVoltage = h.testVoltage

	return &models.Record{
		AssetMetadata: asset,
		TestInfo:      test,
		Measurement:   models.NewMeasurement(s.freqs, mags, phases, models.UnitDB, ""),
		RawFile: &models.RawFileInfo{
			Filename:       name,
			VendorName:     genericVendor,
			OriginalFormat: format,
			FileSize:       int64(size),
			ParserVersion:  models.ParserVersion,
		},
	}
}

// testID derives a test identifier from the file stem and the parse time
func testID(name string, now time.Time) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." {
		stem = "upload"
	}
	return "test_" + stem + "_" + now.Format("20060102_150405")
}
