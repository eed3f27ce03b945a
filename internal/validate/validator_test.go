package validate

import (
	"testing"

	"github.com/RMahshie/unifra/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord(n int) *models.Record {
	freqs := make([]float64, n)
	mags := make([]float64, n)
	phases := make([]float64, n)
	for i := range freqs {
		freqs[i] = float64(100 * (i + 1))
		mags[i] = -float64(i)
		phases[i] = float64(i)
	}
	return &models.Record{
		AssetMetadata: models.NewAssetMetadata(),
		TestInfo:      models.NewTestInfo(),
		Measurement:   models.NewMeasurement(freqs, mags, phases, models.UnitDB, ""),
		RawFile:       &models.RawFileInfo{Filename: "a.csv"},
	}
}

func TestCheck(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(r *models.Record)
		wantErr error
		wantMsg string
	}{
		{name: "valid", mutate: func(r *models.Record) {}},
		{name: "phases absent", mutate: func(r *models.Record) { r.Measurement.Phases = nil }},
		{
			name:    "missing asset section",
			mutate:  func(r *models.Record) { r.AssetMetadata = nil },
			wantErr: models.ErrMalformedRecord,
			wantMsg: "asset_metadata is required",
		},
		{
			name:    "missing raw file section",
			mutate:  func(r *models.Record) { r.RawFile = nil },
			wantErr: models.ErrMalformedRecord,
		},
		{
			name:    "empty asset id",
			mutate:  func(r *models.Record) { r.AssetMetadata.AssetID = "" },
			wantErr: models.ErrMalformedRecord,
			wantMsg: "asset_metadata.asset_id is required",
		},
		{
			name:    "empty instrument",
			mutate:  func(r *models.Record) { r.TestInfo.Instrument = "" },
			wantErr: models.ErrMalformedRecord,
		},
		{
			name:    "empty unit",
			mutate:  func(r *models.Record) { r.Measurement.Unit = "" },
			wantErr: models.ErrMalformedRecord,
		},
		{
			name:    "nil frequencies",
			mutate:  func(r *models.Record) { r.Measurement.Frequencies = nil },
			wantErr: models.ErrMalformedRecord,
		},
		{
			name:    "magnitude length mismatch",
			mutate:  func(r *models.Record) { r.Measurement.Magnitudes = r.Measurement.Magnitudes[:11] },
			wantErr: models.ErrMalformedRecord,
			wantMsg: "measurement.magnitudes length does not match frequencies",
		},
		{
			name:    "phase length mismatch",
			mutate:  func(r *models.Record) { r.Measurement.Phases = r.Measurement.Phases[:3] },
			wantErr: models.ErrMalformedRecord,
			wantMsg: "measurement.phases",
		},
		{
			name: "nine points",
			mutate: func(r *models.Record) {
				r.Measurement.Frequencies = r.Measurement.Frequencies[:9]
				r.Measurement.Magnitudes = r.Measurement.Magnitudes[:9]
				r.Measurement.Phases = r.Measurement.Phases[:9]
			},
			wantErr: models.ErrInsufficientData,
		},
	}

	v := New()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord(12)
			tc.mutate(rec)

			err := v.Check(rec)
			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.True(t, v.Valid(rec))
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			if tc.wantMsg != "" {
				assert.Contains(t, err.Error(), tc.wantMsg)
			}
			assert.False(t, v.Valid(rec))
		})
	}
}

func TestCheck_NilRecord(t *testing.T) {
	v := New()
	assert.ErrorIs(t, v.Check(nil), models.ErrMalformedRecord)
	assert.False(t, v.Valid(nil))
}

func TestCheck_ExactlyMinimum(t *testing.T) {
	assert.True(t, New().Valid(validRecord(models.MinPoints)))
}
