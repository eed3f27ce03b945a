package text

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/RMahshie/unifra/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.May, 2, 9, 30, 15, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

const abbExport = `# Asset ID: TR001
# Manufacturer: ABB
# Model: TDOC 300MVA
# Rating: 300 MVA
# Test Date: 2024-01-15
# Instrument: Omicron FRAnalyzer
# Test Voltage: 1000V
Frequency (Hz),Magnitude (dB),Phase (deg)
20000,45.2,5.1
25000,44.8,4.9
30000,44.1,4.5
40000,43.2,3.8
50000,42.1,3.2
75000,40.5,2.1
100000,38.9,1.2
150000,36.8,-0.5
200000,34.2,-2.1
300000,31.5,-4.2
500000,28.1,-7.8
750000,24.3,-12.1
1000000,20.8,-18.5
1500000,16.2,-28.2
2000000,12.1,-38.9
3000000,7.8,-55.2
5000000,2.1,-78.5
7500000,-3.2,-95.1
10000000,-8.9,-118.2
12000000,-15.2,-142.8`

// csvRows renders n data rows with the given delimiter
func csvRows(n int, delim string) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d%s%.2f%s%.1f\n", 1000*(i+1), delim, -10-float64(i), delim, -float64(i))
	}
	return b.String()
}

func TestCSV_ABBExport(t *testing.T) {
	c := &CSV{now: fixedClock}

	rec, err := c.Decode("abb_tr001.csv", []byte(abbExport))
	require.NoError(t, err)

	assert.Equal(t, "TR001", rec.AssetMetadata.AssetID)
	assert.Equal(t, "ABB", rec.AssetMetadata.Manufacturer)
	assert.Equal(t, "TDOC 300MVA", rec.AssetMetadata.Model)
	assert.Equal(t, 300.0, rec.AssetMetadata.RatingMVA)
	assert.Equal(t, "2024-01-15", rec.TestInfo.Date)
	assert.Equal(t, "Omicron FRAnalyzer", rec.TestInfo.Instrument)
	assert.Equal(t, 1000.0, rec.TestInfo.TestVoltage)
	assert.Equal(t, "test_abb_tr001_20240502_093015", rec.TestInfo.TestID)

	m := rec.Measurement
	assert.Equal(t, 20, m.Resolution)
	assert.Len(t, m.Frequencies, 20)
	assert.Len(t, m.Phases, 20)
	assert.Equal(t, models.UnitDB, m.Unit)
	assert.Equal(t, models.PhaseDegrees, m.PhaseUnit)
	assert.Equal(t, 20000.0, m.FreqStart)
	assert.Equal(t, 12e6, m.FreqEnd)
	assert.Equal(t, 45.2, m.Magnitudes[0])
	assert.Equal(t, -142.8, m.Phases[19])

	assert.Equal(t, "generic", rec.RawFile.VendorName)
	assert.Equal(t, "csv", rec.RawFile.OriginalFormat)
	assert.Equal(t, int64(len(abbExport)), rec.RawFile.FileSize)
}

func TestCSV_MinimumRows(t *testing.T) {
	testCases := []struct {
		name    string
		rows    int
		wantErr error
	}{
		{name: "nine rows", rows: 9, wantErr: models.ErrInsufficientData},
		{name: "ten rows", rows: 10},
		{name: "no rows", rows: 0, wantErr: models.ErrInsufficientData},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := "freq,mag,phase\n" + csvRows(tc.rows, ",")
			rec, err := NewCSV().Decode("sweep.csv", []byte(data))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, rec.Measurement.Frequencies, tc.rows)
		})
	}
}

func TestCSV_Delimiters(t *testing.T) {
	for _, delim := range []string{",", ";", "\t", "|"} {
		t.Run(fmt.Sprintf("%q", delim), func(t *testing.T) {
			data := strings.Join([]string{"Frequency", "Magnitude", "Phase"}, delim) + "\n" + csvRows(12, delim)
			rec, err := NewCSV().Decode("sweep.txt", []byte(data))
			require.NoError(t, err)
			assert.Len(t, rec.Measurement.Frequencies, 12)
			assert.Equal(t, -11.0, rec.Measurement.Phases[11])
		})
	}
}

func TestCSV_PositionalNumericHeader(t *testing.T) {
	rec, err := NewCSV().Decode("raw.csv", []byte(csvRows(10, ";")))
	require.NoError(t, err)

	assert.Len(t, rec.Measurement.Frequencies, 10, "first numeric row must count as data")
	assert.Equal(t, 1000.0, rec.Measurement.Frequencies[0])
	assert.Len(t, rec.Measurement.Phases, 10)
}

func TestCSV_SkipsBadRows(t *testing.T) {
	data := "Frequency,Magnitude\n" +
		csvRows(10, ",") +
		"oops,1\n" +
		"5\n" +
		"\n"
	rec, err := NewCSV().Decode("sweep.csv", []byte(data))
	require.NoError(t, err)

	assert.Len(t, rec.Measurement.Frequencies, 10)
	assert.Empty(t, rec.Measurement.Phases)
}

func TestCSV_LinearMagnitudesConvertedToDB(t *testing.T) {
	var b strings.Builder
	b.WriteString("freq,gain\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "%d,%.1f\n", i*100, float64(i)/10)
	}

	rec, err := NewCSV().Decode("linear.csv", []byte(b.String()))
	require.NoError(t, err)

	assert.Equal(t, models.UnitDB, rec.Measurement.Unit)
	assert.InDelta(t, 20*math.Log10(0.1), rec.Measurement.Magnitudes[0], 1e-9)
	assert.InDelta(t, 0.0, rec.Measurement.Magnitudes[9], 1e-9)
}

func TestCSV_MissingMagnitudeColumn(t *testing.T) {
	data := "Frequency,Value\n" + csvRows(12, ",")
	_, err := NewCSV().Decode("sweep.csv", []byte(data))
	assert.ErrorIs(t, err, models.ErrMalformedRecord)
}

func TestCSV_Empty(t *testing.T) {
	_, err := NewCSV().Decode("empty.csv", []byte("  \n"))
	assert.ErrorIs(t, err, models.ErrMalformedRecord)

	_, err = NewCSV().Decode("comments.csv", []byte("# Asset: X\n# Model: Y\n"))
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestParseCommentHeader(t *testing.T) {
	lines := []string{
		"% Transformer: T-9",
		"// Make: Siemens",
		"# Device: FRAX",
		"# Rating: abc",
		"# Test Voltage: approx 10 V",
		"# no separator here",
	}
	h := parseCommentHeader(lines, fixedNow)

	assert.Equal(t, "T-9", h.assetID)
	assert.Equal(t, "Siemens", h.manufacturer)
	assert.Equal(t, "FRAX", h.instrument)
	assert.Equal(t, models.DefaultRatingMVA, h.ratingMVA)
	assert.Equal(t, 10.0, h.testVoltage)
	assert.Equal(t, models.Unknown, h.model)
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, byte(','), detectDelimiter([]byte("a,b,c\n1,2,3")))
	assert.Equal(t, byte(';'), detectDelimiter([]byte("a;b;c\n1;2;3")))
	assert.Equal(t, byte('\t'), detectDelimiter([]byte("a\tb\n1\t2")))
	assert.Equal(t, byte(','), detectDelimiter([]byte("no delimiters")), "ties resolve to the first candidate")
}
