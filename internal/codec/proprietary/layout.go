package proprietary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	"github.com/RMahshie/unifra/pkg/models"
)

// Trailer describes what follows the point table
type Trailer int

const (
	NoTrailer Trailer = iota
	// CRC32Trailer is a u32 IEEE CRC over every preceding byte
	CRC32Trailer
	// JSONFooter is a u32 length followed by a UTF-8 JSON object with asset metadata
	JSONFooter
)

// Layout describes one vendor file format. The header schema must contain a
// "signature" slot first and a "count" field holding the number of points.
// The point schema lists frequency, magnitude and phase, optionally followed
// by a running index.
type Layout struct {
	Vendor     string
	Extension  string
	Signature  string
	Instrument string
	Header     Schema
	Point      Schema
	Trailer    Trailer

	// toHeader fills vendor header fields from a record before encoding
	toHeader func(rec *models.Record, v Values)
	// fromHeader copies decoded header fields onto a record built with defaults
	fromHeader func(v Values, rec *models.Record)
}

// assetFooter is the JSON trailer written after Newtons4th point data
type assetFooter struct {
	AssetID      string  `json:"asset_id"`
	Manufacturer string  `json:"manufacturer"`
	Model        string  `json:"model"`
	RatingMVA    float64 `json:"rating_MVA"`
}

// Name returns the vendor tag, which doubles as the detector format tag
func (l *Layout) Name() string {
	return l.Vendor
}

// Encode serializes a record into the vendor layout. Missing phases are written as zeros.
func (l *Layout) Encode(rec *models.Record) ([]byte, error) {
	if rec == nil || rec.Measurement == nil {
		return nil, fmt.Errorf("%w: record has no measurement", models.ErrMalformedRecord)
	}
	m := rec.Measurement
	n := len(m.Frequencies)
	if len(m.Magnitudes) != n {
		return nil, fmt.Errorf("%w: %d frequencies but %d magnitudes", models.ErrMalformedRecord, n, len(m.Magnitudes))
	}
	if len(m.Phases) != 0 && len(m.Phases) != n {
		return nil, fmt.Errorf("%w: %d frequencies but %d phases", models.ErrMalformedRecord, n, len(m.Phases))
	}
	if uint64(n) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d points do not fit the point counter", models.ErrMalformedRecord, n)
	}

	v := NewValues()
	v.SetText("signature", l.Signature)
	v.SetUint("count", uint64(n))
	if l.toHeader != nil {
		l.toHeader(withSections(rec), v)
	}

	var buf bytes.Buffer
	buf.Grow(l.Header.Size() + n*l.Point.Size() + 256)
	l.Header.encode(&buf, v)

	row := make([]float64, len(l.Point.Fields))
	for i := 0; i < n; i++ {
		row[0] = m.Frequencies[i]
		row[1] = m.Magnitudes[i]
		row[2] = 0
		if len(m.Phases) == n {
			row[2] = m.Phases[i]
		}
		if len(row) > 3 {
			row[3] = float64(i)
		}
		l.Point.encodeRow(&buf, row)
	}

	switch l.Trailer {
	case CRC32Trailer:
		sum := crc32.ChecksumIEEE(buf.Bytes())
		tail := make([]byte, 4)
		l.Header.Order.PutUint32(tail, sum)
		buf.Write(tail)
	case JSONFooter:
		asset := withSections(rec).AssetMetadata
		footer, err := json.Marshal(assetFooter{
			AssetID:      asset.AssetID,
			Manufacturer: asset.Manufacturer,
			Model:        asset.Model,
			RatingMVA:    asset.RatingMVA,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal asset footer: %w", err)
		}
		size := make([]byte, 4)
		l.Header.Order.PutUint32(size, uint32(len(footer)))
		buf.Write(size)
		buf.Write(footer)
	}

	return buf.Bytes(), nil
}

// Decode parses a vendor file. The signature must open the header; the point
// count is not checked against the minimum sweep length here.
func (l *Layout) Decode(name string, data []byte) (*models.Record, error) {
	if !bytes.HasPrefix(data, []byte(l.Signature)) {
		return nil, fmt.Errorf("%w: %s header does not start with %q", models.ErrSignatureMismatch, l.Vendor, l.Signature)
	}

	c := &cursor{buf: data}
	header, err := l.Header.decode(c)
	if err != nil {
		return nil, err
	}

	count := header.Uint("count")
	if count > uint64(c.remaining()/l.Point.Size()) {
		return nil, fmt.Errorf("%w: header declares %d points but only %d bytes of point data follow",
			models.ErrMalformedRecord, count, c.remaining())
	}

	freqs := make([]float64, count)
	mags := make([]float64, count)
	phases := make([]float64, count)
	row := make([]float64, len(l.Point.Fields))
	for i := range freqs {
		if err := l.Point.decodeRow(c, row); err != nil {
			return nil, err
		}
		freqs[i], mags[i], phases[i] = row[0], row[1], row[2]
	}

	var footer *assetFooter
	switch l.Trailer {
	case CRC32Trailer:
		payloadEnd := c.off
		raw, err := c.take(4, "checksum")
		if err != nil {
			return nil, err
		}
		want := l.Header.Order.Uint32(raw)
		if got := crc32.ChecksumIEEE(data[:payloadEnd]); got != want {
			return nil, fmt.Errorf("%w: CRC32 mismatch: %08x != %08x", models.ErrMalformedRecord, got, want)
		}
	case JSONFooter:
		raw, err := c.take(4, "footer length")
		if err != nil {
			return nil, err
		}
		body, err := c.take(int(l.Header.Order.Uint32(raw)), "footer")
		if err != nil {
			return nil, err
		}
		footer = &assetFooter{}
		if err := json.Unmarshal(body, footer); err != nil {
			return nil, fmt.Errorf("%w: invalid metadata footer: %v", models.ErrMalformedRecord, err)
		}
	}

	rec := &models.Record{
		AssetMetadata: models.NewAssetMetadata(),
		TestInfo:      models.NewTestInfo(),
		Measurement:   models.NewMeasurement(freqs, mags, phases, models.UnitDB, ""),
		RawFile: &models.RawFileInfo{
			Filename:       name,
			VendorName:     l.Vendor,
			OriginalFormat: "binary",
			FileSize:       int64(len(data)),
			ParserVersion:  models.ParserVersion,
		},
	}
	rec.TestInfo.Instrument = l.Instrument
	if l.fromHeader != nil {
		l.fromHeader(header, rec)
	}
	if footer != nil {
		applyFooter(footer, rec.AssetMetadata)
	}
	return rec, nil
}

func applyFooter(f *assetFooter, a *models.AssetMetadata) {
	if f.AssetID != "" {
		a.AssetID = f.AssetID
	}
	if f.Manufacturer != "" {
		a.Manufacturer = f.Manufacturer
	}
	if f.Model != "" {
		a.Model = f.Model
	}
	if f.RatingMVA != 0 {
		a.RatingMVA = f.RatingMVA
	}
}

// withSections returns rec, or a shallow copy with default sections filled in
// when the caller left some of them nil.
func withSections(rec *models.Record) *models.Record {
	if rec.AssetMetadata != nil && rec.TestInfo != nil {
		return rec
	}
	out := *rec
	if out.AssetMetadata == nil {
		out.AssetMetadata = models.NewAssetMetadata()
	}
	if out.TestInfo == nil {
		out.TestInfo = models.NewTestInfo()
	}
	return &out
}

// sweepBounds returns the first and last frequency, falling back to the
// measurement's recorded range for empty sweeps
func sweepBounds(m *models.Measurement) (float64, float64) {
	if len(m.Frequencies) == 0 {
		return m.FreqStart, m.FreqEnd
	}
	return m.Frequencies[0], m.Frequencies[len(m.Frequencies)-1]
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTestDate accepts the date spellings found in vendor exports
func parseTestDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
