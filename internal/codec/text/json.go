package text

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/RMahshie/unifra/pkg/models"
)

// canonicalSections must all be present for a document to be taken verbatim
var canonicalSections = []string{"asset_metadata", "test_info", "measurement", "raw_file"}

var (
	jsonFrequencyKeys = []string{"frequencies", "freq", "frequency", "f", "x_data"}
	jsonMagnitudeKeys = []string{"magnitudes", "magnitude", "mag", "amplitude", "y_data", "db"}
	jsonPhaseKeys     = []string{"phases", "phase", "angle", "degrees"}
)

// JSON decodes canonical JSON records and loosely structured JSON exports
type JSON struct {
	now func() time.Time
}

// NewJSON creates a JSON decoder
func NewJSON() *JSON {
	return &JSON{now: time.Now}
}

// document is a decoded top-level JSON object
type document map[string]json.RawMessage

// Decode accepts a canonical record verbatim, or maps a flat object through alias lists
func (j *JSON) Decode(name string, data []byte) (*models.Record, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", models.ErrMalformedRecord, err)
	}

	if doc.hasAll(canonicalSections...) {
		var rec models.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("%w: invalid canonical record: %v", models.ErrMalformedRecord, err)
		}
		return &rec, nil
	}

	return j.fromAliases(name, data, doc)
}

func (j *JSON) fromAliases(name string, data []byte, doc document) (*models.Record, error) {
	now := j.now()

	freqs, err := doc.floats(jsonFrequencyKeys...)
	if err != nil {
		return nil, err
	}
	mags, err := doc.floats(jsonMagnitudeKeys...)
	if err != nil {
		return nil, err
	}
	if len(freqs) == 0 || len(mags) == 0 {
		return nil, fmt.Errorf("%w: no frequency and magnitude arrays in json", models.ErrMalformedRecord)
	}
	phases, err := doc.floats(jsonPhaseKeys...)
	if err != nil {
		return nil, err
	}

	asset := models.NewAssetMetadata()
	asset.AssetID = doc.text(asset.AssetID, "asset_id", "id")
	asset.Manufacturer = doc.text(asset.Manufacturer, "manufacturer", "make")
	asset.Model = doc.text(asset.Model, "model")
	asset.RatingMVA = doc.number(asset.RatingMVA, "rating_MVA", "rating")
	asset.WindingConfig = doc.text(asset.WindingConfig, "winding_config")
	asset.Serial = doc.text(asset.Serial, "serial")
	asset.YearInstalled = int(doc.number(float64(asset.YearInstalled), "year_installed"))
	if raw, ok := doc.lookup("voltage_levels"); ok {
		var levels [2]float64
		if json.Unmarshal(raw, &levels) == nil {
			asset.VoltageLevels = levels
		}
	}

	test := models.NewTestInfo()
	test.TestID = doc.text("json_"+now.Format("20060102_150405"), "test_id")
	test.Date = doc.text(now.UTC().Format(time.RFC3339), "test_date", "date")
	test.Technician = doc.text(test.Technician, "technician")
	test.Instrument = doc.text(test.Instrument, "instrument", "device")
	test.TestVoltage = doc.number(test.TestVoltage, "test_voltage", "voltage")
	test.Coupling = doc.text(test.Coupling, "coupling")
	test.AmbientTemp = doc.number(test.AmbientTemp, "ambient_temp", "temperature")

	unit := doc.text(models.UnitDB, "unit", "magnitude_unit")
	connection := doc.text(models.DefaultConnection, "connection")

	return &models.Record{
		AssetMetadata: asset,
		TestInfo:      test,
		Measurement:   models.NewMeasurement(freqs, mags, phases, unit, connection),
		RawFile: &models.RawFileInfo{
			Filename:       name,
			VendorName:     genericVendor,
			OriginalFormat: FormatJSON,
			FileSize:       int64(len(data)),
			ParserVersion:  models.ParserVersion,
		},
	}, nil
}

func (d document) hasAll(keys ...string) bool {
	for _, k := range keys {
		if _, ok := d[k]; !ok {
			return false
		}
	}
	return true
}

// lookup returns the first alias present with a non-null value
func (d document) lookup(keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if raw, ok := d[k]; ok && strings.TrimSpace(string(raw)) != "null" {
			return raw, true
		}
	}
	return nil, false
}

// floats returns the first alias holding an array. Aliases holding something
// other than an array are skipped; an array with non-numeric items is malformed.
func (d document) floats(keys ...string) ([]float64, error) {
	for _, k := range keys {
		raw, ok := d[k]
		if !ok || !isArray(raw) {
			continue
		}
		var out []float64
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: %q is not a numeric array", models.ErrMalformedRecord, k)
		}
		return out, nil
	}
	return nil, nil
}

// text reads a string or number field, falling back to def
func (d document) text(def string, keys ...string) string {
	raw, ok := d.lookup(keys...)
	if !ok {
		return def
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return def
}

// number reads a numeric field; numeric strings are accepted
func (d document) number(def float64, keys ...string) float64 {
	raw, ok := d.lookup(keys...)
	if !ok {
		return def
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return f
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return def
}

func isArray(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "[")
}
