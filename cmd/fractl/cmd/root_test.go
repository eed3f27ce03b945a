package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/RMahshie/unifra/internal/codec/proprietary"
	"github.com/RMahshie/unifra/internal/export"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestEmulateThenIngest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t1.frx")

	out, err := run(t, "emulate", "--vendor", "omicron", "--out", path, "--points", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	out, err = run(t, "detect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "omicron")
	assert.Contains(t, out, "extension")

	out, err = run(t, "ingest", path)
	require.NoError(t, err)
	assert.Contains(t, out, "TR_SYNTH_001")
	assert.Contains(t, out, "omicron (extension)")
	assert.Regexp(t, `Points:\s+200`, out)
}

func TestIngest_NormalizedWorkbook(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t1.dbl")
	xlsx := filepath.Join(dir, "t1.xlsx")

	_, err := run(t, "emulate", "--vendor", "doble", "--out", path, "--points", "300")
	require.NoError(t, err)

	_, err = run(t, "ingest", path, "--normalize", "--target-points", "512", "--out", xlsx)
	require.NoError(t, err)

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{export.SheetMeasurement, export.SheetNormalized, export.SheetMetadata}, f.GetSheetList())

	rows, err := f.GetRows(export.SheetNormalized)
	require.NoError(t, err)
	assert.Len(t, rows, 513)
}

func TestDetect_ExtensionlessSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture")

	_, err := run(t, "emulate", "--vendor", "megger", "--out", path)
	require.NoError(t, err)

	out, err := run(t, "detect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "megger")
	assert.Contains(t, out, "signature")
}

func TestEmulate_FromJSON(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "rec.json")
	dst := filepath.Join(dir, "rec.n4f")

	rec := syntheticSweep(50, "TR_JSON_7")
	require.NoError(t, export.ToFile(src, rec, nil))

	_, err := run(t, "emulate", "--vendor", "newtons4th", "--from", src, "--out", dst)
	require.NoError(t, err)

	layout, err := proprietary.ByName(proprietary.Newtons4th)
	require.NoError(t, err)
	got, err := layout.DecodeFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "TR_JSON_7", got.AssetMetadata.AssetID)
	assert.Equal(t, 50, got.Measurement.Resolution)
}

func TestEmulate_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "emulate", "--vendor", "acme", "--out", filepath.Join(dir, "x.bin"))
	assert.ErrorContains(t, err, "omicron")

	_, err = run(t, "emulate", "--vendor", "omicron", "--out", filepath.Join(dir, "x.frx"), "--points", "5")
	assert.Error(t, err)

	_, err = run(t, "emulate", "--out", filepath.Join(dir, "x.frx"))
	assert.Error(t, err)
}

func TestBatch_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.frx")
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Frequency,Magnitude\n1,2\n"), 0o644))

	_, err := run(t, "emulate", "--vendor", "omicron", "--out", good, "--points", "64")
	require.NoError(t, err)

	out, err := run(t, "batch", good, bad, "--concurrency", "2")
	require.Error(t, err)
	assert.EqualError(t, err, "1 of 2 files failed")
	assert.Contains(t, out, "TR_SYNTH_001")
	assert.Contains(t, out, "insufficient data")
}

func TestFormats(t *testing.T) {
	out, err := run(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, ".n4f")
	assert.Contains(t, out, "newtons4th")
}

func TestSyntheticSweep(t *testing.T) {
	rec := syntheticSweep(400, "X")
	m := rec.Measurement

	assert.Equal(t, 400, m.Resolution)
	assert.InDelta(t, sweepStart, m.FreqStart, 1e-9)
	assert.InDelta(t, sweepEnd, m.FreqEnd, 1e-3)
	for i := 1; i < len(m.Frequencies); i++ {
		require.Greater(t, m.Frequencies[i], m.Frequencies[i-1])
	}
	// roll-off above the pole
	assert.Less(t, m.Magnitudes[len(m.Magnitudes)-1], m.Magnitudes[0])
}
