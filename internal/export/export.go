// Package export writes canonical records to files for people and other tools:
// JSON documents the text codec reads back, and XLSX workbooks for review.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/RMahshie/unifra/pkg/models"
)

// Sheet names in exported workbooks
const (
	SheetMeasurement = "Measurement"
	SheetNormalized  = "Normalized"
	SheetMetadata    = "Metadata"
)

// Export formats
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// FormatFor picks the export format from a file extension
func FormatFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export extension %q: want .json or .xlsx", filepath.Ext(path))
	}
}

// ToFile writes rec to path in the format its extension names. JSON output
// holds normalized when it is set, otherwise rec. XLSX output holds both.
func ToFile(path string, rec, normalized *models.Record) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case FormatJSON:
		out := rec
		if normalized != nil {
			out = normalized
		}
		err = WriteJSON(f, out)
	default:
		err = WriteXLSX(f, rec, normalized)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

// WriteJSON writes rec as an indented JSON document
func WriteJSON(w io.Writer, rec *models.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", models.ErrMalformedRecord)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return nil
}

// WriteXLSX writes a workbook with the physical sweep, the normalized arrays
// when normalized is non-nil, and a metadata sheet
func WriteXLSX(w io.Writer, rec, normalized *models.Record) error {
	if rec == nil || rec.Measurement == nil {
		return fmt.Errorf("%w: record has no measurement", models.ErrMalformedRecord)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetMeasurement); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeMeasurement(f, rec.Measurement); err != nil {
		return err
	}

	if normalized != nil && normalized.Measurement != nil {
		if _, err := f.NewSheet(SheetNormalized); err != nil {
			return fmt.Errorf("failed to add sheet: %w", err)
		}
		if err := writeNormalized(f, normalized); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetMetadata); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	meta := rec
	if normalized != nil {
		meta = normalized
	}
	if err := writeMetadata(f, meta); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeMeasurement(f *excelize.File, m *models.Measurement) error {
	header := []any{"Frequency (Hz)", "Magnitude (" + m.Unit + ")"}
	hasPhase := len(m.Phases) == len(m.Frequencies) && len(m.Phases) > 0
	if hasPhase {
		header = append(header, "Phase ("+m.PhaseUnit+")")
	}

	return streamRows(f, SheetMeasurement, header, len(m.Frequencies), func(i int) []any {
		row := []any{m.Frequencies[i], m.Magnitudes[i]}
		if hasPhase {
			row = append(row, m.Phases[i])
		}
		return row
	})
}

func writeNormalized(f *excelize.File, rec *models.Record) error {
	m := rec.Measurement
	var nd models.NormalizedData
	if rec.ProcessingMetadata != nil {
		nd = rec.ProcessingMetadata.NormalizedData
	}

	header := []any{"Frequency (Hz)", "Magnitude (dB)"}
	cols := []struct {
		name   string
		values []float64
	}{
		{"Phase (deg)", m.Phases},
		{"Log10 Frequency", nd.FrequenciesLog10},
		{"Magnitude (normalized)", nd.MagnitudesNormalized},
		{"Phase (normalized)", nd.PhasesNormalized},
	}
	var extra [][]float64
	for _, c := range cols {
		if len(c.values) == len(m.Frequencies) {
			header = append(header, c.name)
			extra = append(extra, c.values)
		}
	}

	return streamRows(f, SheetNormalized, header, len(m.Frequencies), func(i int) []any {
		row := []any{m.Frequencies[i], m.Magnitudes[i]}
		for _, values := range extra {
			row = append(row, values[i])
		}
		return row
	})
}

// streamRows writes a header and n data rows through excelize's stream writer
func streamRows(f *excelize.File, sheet string, header []any, n int, row func(i int) []any) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open %s sheet: %w", sheet, err)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row(i)); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s sheet: %w", sheet, err)
	}
	return nil
}

func writeMetadata(f *excelize.File, rec *models.Record) error {
	var rows [][2]any
	add := func(key string, value any) { rows = append(rows, [2]any{key, value}) }

	if a := rec.AssetMetadata; a != nil {
		add("asset_id", a.AssetID)
		add("manufacturer", a.Manufacturer)
		add("model", a.Model)
		add("rating_MVA", a.RatingMVA)
		add("winding_config", a.WindingConfig)
		add("serial", a.Serial)
		add("year_installed", a.YearInstalled)
		add("voltage_hv_kv", a.VoltageLevels[0])
		add("voltage_lv_kv", a.VoltageLevels[1])
	}
	if t := rec.TestInfo; t != nil {
		add("test_id", t.TestID)
		add("date", t.Date)
		add("technician", t.Technician)
		add("instrument", t.Instrument)
		add("test_voltage", t.TestVoltage)
		add("coupling", t.Coupling)
		add("ambient_temp", t.AmbientTemp)
	}
	if m := rec.Measurement; m != nil {
		add("connection", m.Connection)
		add("resolution", m.Resolution)
		add("freq_start", m.FreqStart)
		add("freq_end", m.FreqEnd)
	}
	if r := rec.RawFile; r != nil {
		add("filename", r.Filename)
		add("vendor_name", r.VendorName)
		add("original_format", r.OriginalFormat)
		add("file_size", r.FileSize)
		add("parser_version", r.ParserVersion)
	}
	if p := rec.ProcessingMetadata; p != nil {
		add("processed_date", p.ProcessedDate.Format(time.RFC3339))
		add("preprocessing_steps", strings.Join(p.Steps, ", "))
		add("interpolation_strategy", p.InterpolationStrategy)
		add("smoothing_applied", p.SmoothingApplied)
		add("denoising_applied", p.DenoisingApplied)
		add("target_points", p.TargetPoints)
	}

	if err := f.SetSheetRow(SheetMetadata, "A1", &[]any{"Field", "Value"}); err != nil {
		return fmt.Errorf("failed to write metadata header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetMetadata, cell, &[]any{r[0], r[1]}); err != nil {
			return fmt.Errorf("failed to write metadata row %s: %w", r[0], err)
		}
	}
	return nil
}
