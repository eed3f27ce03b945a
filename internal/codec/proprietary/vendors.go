package proprietary

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/RMahshie/unifra/pkg/models"
)

// Vendor tags, shared with the format detector
const (
	Omicron    = "omicron"
	Doble      = "doble"
	Megger     = "megger"
	Newtons4th = "newtons4th"
)

const (
	omicronVersion  = 0x00020001
	dobleFormat     = 0x44424C01
	meggerConst     = 0x4D454752
	meggerModel     = 150
	meggerVersion   = 1
	n4FormatID      = 0x4E345446
	n4Version       = 3
	n4Subversion    = 0
	dobleAssetBytes = 32
)

// dobleDefaultDate is written when the record's test date cannot be parsed
var dobleDefaultDate = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

var omicronLayout = &Layout{
	Vendor:     Omicron,
	Extension:  ".frx",
	Signature:  "OMICRON_FRX_V2.1",
	Instrument: "Omicron FRAnalyzer",
	Header: Schema{Order: binary.LittleEndian, Fields: []Field{
		{"signature", Fixed, 64},
		{"version", U32, 0},
		{"asset_id", Fixed, 32},
		{"manufacturer", Fixed, 32},
		{"model", Fixed, 32},
		{"rating_mva", F32, 0},
		{"test_id", Fixed, 32},
		{"test_voltage", F32, 0},
		{"ambient_temp", F32, 0},
		{"count", U32, 0},
		{"freq_start", F64, 0},
		{"freq_end", F64, 0},
		{"connection", Fixed, 16},
	}},
	Point: Schema{Order: binary.LittleEndian, Fields: []Field{
		{"frequency", F64, 0},
		{"magnitude", F32, 0},
		{"phase", F32, 0},
	}},
	Trailer: CRC32Trailer,
	toHeader: func(rec *models.Record, v Values) {
		a, t, m := rec.AssetMetadata, rec.TestInfo, rec.Measurement
		start, end := sweepBounds(m)
		v.SetUint("version", omicronVersion)
		v.SetText("asset_id", a.AssetID)
		v.SetText("manufacturer", a.Manufacturer)
		v.SetText("model", a.Model)
		v.SetFloat("rating_mva", a.RatingMVA)
		v.SetText("test_id", t.TestID)
		v.SetFloat("test_voltage", t.TestVoltage)
		v.SetFloat("ambient_temp", t.AmbientTemp)
		v.SetFloat("freq_start", start)
		v.SetFloat("freq_end", end)
		v.SetText("connection", m.Connection)
	},
	fromHeader: func(v Values, rec *models.Record) {
		a, t, m := rec.AssetMetadata, rec.TestInfo, rec.Measurement
		setText(&a.AssetID, v.Text("asset_id"))
		setText(&a.Manufacturer, v.Text("manufacturer"))
		setText(&a.Model, v.Text("model"))
		a.RatingMVA = v.Float("rating_mva")
		setText(&t.TestID, v.Text("test_id"))
		t.TestVoltage = v.Float("test_voltage")
		t.AmbientTemp = v.Float("ambient_temp")
		m.FreqStart = v.Float("freq_start")
		m.FreqEnd = v.Float("freq_end")
		setText(&m.Connection, v.Text("connection"))
	},
}

var dobleLayout = &Layout{
	Vendor:     Doble,
	Extension:  ".dbl",
	Signature:  "DOBLE_M4000_FMT1",
	Instrument: "Doble M4000",
	Header: Schema{Order: binary.BigEndian, Fields: []Field{
		{"signature", Fixed, 32},
		{"format", U32, 0},
		{"year", U16, 0},
		{"month", U16, 0},
		{"day", U16, 0},
		{"asset_id", Fixed, 64},
		{"test_voltage", F32, 0},
		{"count", U32, 0},
		{"freq_start", F64, 0},
		{"freq_end", F64, 0},
	}},
	Point: Schema{Order: binary.BigEndian, Fields: []Field{
		{"frequency", F64, 0},
		{"magnitude", F64, 0},
		{"phase", F64, 0},
	}},
	toHeader: func(rec *models.Record, v Values) {
		date, ok := parseTestDate(rec.TestInfo.Date)
		if !ok {
			date = dobleDefaultDate
		}
		start, end := sweepBounds(rec.Measurement)
		v.SetUint("format", dobleFormat)
		v.SetUint("year", uint64(date.Year()))
		v.SetUint("month", uint64(date.Month()))
		v.SetUint("day", uint64(date.Day()))
		v.SetText("asset_id", truncateUTF8(rec.AssetMetadata.AssetID, dobleAssetBytes))
		v.SetFloat("test_voltage", rec.TestInfo.TestVoltage)
		v.SetFloat("freq_start", start)
		v.SetFloat("freq_end", end)
	},
	fromHeader: func(v Values, rec *models.Record) {
		year, month, day := v.Uint("year"), v.Uint("month"), v.Uint("day")
		setText(&rec.AssetMetadata.AssetID, v.Text("asset_id"))
		rec.TestInfo.Date = fmt.Sprintf("%04d-%02d-%02dT12:00:00Z", year, month, day)
		rec.TestInfo.TestID = fmt.Sprintf("DOBLE_%04d%02d%02d", year, month, day)
		rec.TestInfo.TestVoltage = v.Float("test_voltage")
		rec.Measurement.FreqStart = v.Float("freq_start")
		rec.Measurement.FreqEnd = v.Float("freq_end")
	},
}

var meggerLayout = &Layout{
	Vendor:     Megger,
	Extension:  ".meg",
	Signature:  "MEGGER_FRAX_150",
	Instrument: "Megger FRAX-150",
	Header: Schema{Order: binary.LittleEndian, Fields: []Field{
		{"signature", Fixed, 48},
		{"magic", U32, 0},
		{"model", U16, 0},
		{"version", U16, 0},
		{"asset_id", Pascal, 32},
		{"manufacturer", Pascal, 32},
		{"test_voltage", F32, 0},
		{"ambient_temp", F32, 0},
		{"count", U32, 0},
		{"reserved", U32, 0},
	}},
	Point: Schema{Order: binary.LittleEndian, Fields: []Field{
		{"frequency", F32, 0},
		{"magnitude", F32, 0},
		{"phase", F32, 0},
		{"index", U32, 0},
	}},
	toHeader: func(rec *models.Record, v Values) {
		v.SetUint("magic", meggerConst)
		v.SetUint("model", uint64(meggerModelNumber(rec.AssetMetadata.Model)))
		v.SetUint("version", meggerVersion)
		v.SetText("asset_id", rec.AssetMetadata.AssetID)
		v.SetText("manufacturer", rec.AssetMetadata.Manufacturer)
		v.SetFloat("test_voltage", rec.TestInfo.TestVoltage)
		v.SetFloat("ambient_temp", rec.TestInfo.AmbientTemp)
	},
	fromHeader: func(v Values, rec *models.Record) {
		model := v.Uint("model")
		setText(&rec.AssetMetadata.AssetID, v.Text("asset_id"))
		setText(&rec.AssetMetadata.Manufacturer, v.Text("manufacturer"))
		rec.AssetMetadata.Model = fmt.Sprintf("FRAX-%d", model)
		rec.TestInfo.Instrument = fmt.Sprintf("Megger FRAX-%d", model)
		rec.TestInfo.TestVoltage = v.Float("test_voltage")
		rec.TestInfo.AmbientTemp = v.Float("ambient_temp")
	},
}

var newtons4thLayout = &Layout{
	Vendor:     Newtons4th,
	Extension:  ".n4f",
	Signature:  "N4TH_ANALYZER_V3",
	Instrument: "Newtons4th Analyzer V3",
	Header: Schema{Order: binary.BigEndian, Fields: []Field{
		{"signature", Fixed, 32},
		{"format", U32, 0},
		{"version", U16, 0},
		{"subversion", U16, 0},
		{"timestamp", U64, 0},
		{"count", U32, 0},
		{"freq_start", F64, 0},
		{"freq_end", F64, 0},
		{"test_voltage", F32, 0},
		{"connection", Fixed, 8},
	}},
	Point: Schema{Order: binary.BigEndian, Fields: []Field{
		{"frequency", F64, 0},
		{"magnitude", F64, 0},
		{"phase", F64, 0},
	}},
	Trailer: JSONFooter,
	toHeader: func(rec *models.Record, v Values) {
		ts, ok := parseTestDate(rec.TestInfo.Date)
		if !ok {
			ts = time.Now()
		}
		start, end := sweepBounds(rec.Measurement)
		v.SetUint("format", n4FormatID)
		v.SetUint("version", n4Version)
		v.SetUint("subversion", n4Subversion)
		v.SetUint("timestamp", uint64(ts.Unix()))
		v.SetFloat("freq_start", start)
		v.SetFloat("freq_end", end)
		v.SetFloat("test_voltage", rec.TestInfo.TestVoltage)
		v.SetText("connection", rec.Measurement.Connection)
	},
	fromHeader: func(v Values, rec *models.Record) {
		ts := time.Unix(int64(v.Uint("timestamp")), 0).UTC()
		rec.TestInfo.Date = ts.Format(time.RFC3339)
		rec.TestInfo.TestID = fmt.Sprintf("N4_%d", ts.Unix())
		rec.TestInfo.TestVoltage = v.Float("test_voltage")
		rec.Measurement.FreqStart = v.Float("freq_start")
		rec.Measurement.FreqEnd = v.Float("freq_end")
		setText(&rec.Measurement.Connection, v.Text("connection"))
	},
}

// setText overwrites dst unless the decoded slot was empty
func setText(dst *string, s string) {
	if s != "" {
		*dst = s
	}
}

// meggerModelNumber extracts 150 from "FRAX-150"; anything else maps to the default model
func meggerModelNumber(model string) int {
	var n int
	if _, err := fmt.Sscanf(strings.ToUpper(strings.TrimSpace(model)), "FRAX-%d", &n); err != nil || n <= 0 || n > 0xFFFF {
		return meggerModel
	}
	return n
}
