package text

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/RMahshie/unifra/pkg/models"
)

const (
	delimiterSample = 1024
	metadataLines   = 20
)

// delimiters in tie-break order
var delimiters = []byte{',', ';', '\t', '|'}

var commentPrefixes = []string{"#", "%", "//"}

var (
	frequencyKeywords = []string{"freq", "frequency", "f", "hz"}
	magnitudeKeywords = []string{"mag", "magnitude", "amp", "amplitude", "db", "gain"}
	phaseKeywords     = []string{"phase", "ph", "angle", "deg", "degrees"}
)

var firstInteger = regexp.MustCompile(`\d+`)

// headerRule maps a normalized comment key to a metadata field. Rules are
// tried in order and the first match wins for a given line.
type headerRule struct {
	match func(key string) bool
	apply func(h *header, val string)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var csvHeaderRules = []headerRule{
	{
		match: func(k string) bool { return containsAny(k, "asset", "transformer", "id") },
		apply: func(h *header, v string) { h.assetID = v },
	},
	{
		match: func(k string) bool { return containsAny(k, "manufacturer", "make") },
		apply: func(h *header, v string) { h.manufacturer = v },
	},
	{
		match: func(k string) bool { return strings.Contains(k, "model") },
		apply: func(h *header, v string) { h.model = v },
	},
	{
		match: func(k string) bool { return containsAny(k, "mva", "rating") },
		apply: func(h *header, v string) {
			if f, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(v, "MVA", "")), 64); err == nil {
				h.ratingMVA = f
			}
		},
	},
	{
		match: func(k string) bool { return strings.Contains(k, "date") },
		apply: func(h *header, v string) { h.date = v },
	},
	{
		match: func(k string) bool { return containsAny(k, "instrument", "device") },
		apply: func(h *header, v string) { h.instrument = v },
	},
	{
		match: func(k string) bool { return strings.Contains(k, "voltage") && strings.Contains(k, "test") },
		apply: func(h *header, v string) {
			if m := firstInteger.FindString(v); m != "" {
				if f, err := strconv.ParseFloat(m, 64); err == nil {
					h.testVoltage = f
				}
			}
		},
	},
}

// CSV decodes delimited text exports
type CSV struct {
	now func() time.Time
}

// NewCSV creates a CSV decoder
func NewCSV() *CSV {
	return &CSV{now: time.Now}
}

// Decode parses a delimited export. Fewer than MinPoints numeric rows is ErrInsufficientData.
func (c *CSV) Decode(name string, data []byte) (*models.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty csv file", models.ErrMalformedRecord)
	}
	now := c.now()

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(content, "\n")

	// Step 1: metadata from comment lines
	meta := parseCommentHeader(lines, now)

	// Step 2: delimiter and first data line
	delim := detectDelimiter(data)
	start := dataStart(lines)
	if start < 0 {
		return nil, fmt.Errorf("%w: no data rows", models.ErrInsufficientData)
	}

	// Step 3: tabular rows
	r := csv.NewReader(strings.NewReader(strings.Join(lines[start:], "\n")))
	r.Comma = rune(delim)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read csv rows: %v", models.ErrMalformedRecord, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", models.ErrInsufficientData)
	}

	// Step 4: column mapping
	cols := identifyColumns(rows[0])
	if cols.freq < 0 || cols.mag < 0 {
		return nil, fmt.Errorf("%w: could not identify frequency and magnitude columns", models.ErrMalformedRecord)
	}
	body := rows[1:]
	if cols.positional && cols.parses(rows[0]) {
		body = rows
	}

	// Step 5: numeric rows; unparsable or short rows are skipped
	var s sweep
	for _, row := range body {
		f, m, p, ok := cols.parse(row)
		if !ok {
			continue
		}
		s.add(f, m)
		if cols.phase >= 0 {
			s.phases = append(s.phases, p)
		}
	}
	if len(s.freqs) < models.MinPoints {
		return nil, fmt.Errorf("%w: %d valid rows, need at least %d", models.ErrInsufficientData, len(s.freqs), models.MinPoints)
	}

	return buildRecord(name, FormatCSV, len(data), meta, s, now), nil
}

// detectDelimiter returns the most frequent candidate in the leading bytes
func detectDelimiter(data []byte) byte {
	sample := data
	if len(sample) > delimiterSample {
		sample = sample[:delimiterSample]
	}
	best, bestCount := delimiters[0], -1
	for _, d := range delimiters {
		if n := bytes.Count(sample, []byte{d}); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func commentBody(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, p := range commentPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return strings.TrimPrefix(trimmed, p), true
		}
	}
	return "", false
}

// parseCommentHeader scans the leading comment lines for "key: value" pairs
func parseCommentHeader(lines []string, now time.Time) header {
	h := defaultHeader(now)
	if len(lines) > metadataLines {
		lines = lines[:metadataLines]
	}
	for _, line := range lines {
		body, ok := commentBody(line)
		if !ok {
			continue
		}
		key, val, found := strings.Cut(body, ":")
		if !found {
			continue
		}
		key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
		val = strings.TrimSpace(val)
		for _, rule := range csvHeaderRules {
			if rule.match(key) {
				rule.apply(&h, val)
				break
			}
		}
	}
	return h
}

// dataStart returns the index of the first non-blank, non-comment line
func dataStart(lines []string) int {
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, ok := commentBody(line); ok {
			continue
		}
		return i
	}
	return -1
}

// columns records where each series lives; -1 means absent
type columns struct {
	freq, mag, phase int
	positional       bool
}

func identifyColumns(headerRow []string) columns {
	cols := columns{freq: -1, mag: -1, phase: -1}
	for i, name := range headerRow {
		lower := strings.ToLower(strings.TrimSpace(name))
		switch {
		case containsAny(lower, frequencyKeywords...):
			cols.freq = i
		case containsAny(lower, magnitudeKeywords...):
			cols.mag = i
		case containsAny(lower, phaseKeywords...):
			cols.phase = i
		}
	}
	if cols.freq < 0 && len(headerRow) >= 2 {
		cols = columns{freq: 0, mag: 1, phase: -1, positional: true}
		if len(headerRow) >= 3 {
			cols.phase = 2
		}
	}
	return cols
}

func (c columns) maxIndex() int {
	return max(c.freq, c.mag, c.phase)
}

// parse reads one row; ok is false for short or non-numeric rows
func (c columns) parse(row []string) (f, m, p float64, ok bool) {
	if len(row) <= c.maxIndex() {
		return 0, 0, 0, false
	}
	var err error
	if f, err = parseNumber(row[c.freq]); err != nil {
		return 0, 0, 0, false
	}
	if m, err = parseNumber(row[c.mag]); err != nil {
		return 0, 0, 0, false
	}
	if c.phase >= 0 {
		if p, err = parseNumber(row[c.phase]); err != nil {
			return 0, 0, 0, false
		}
	}
	return f, m, p, true
}

func (c columns) parses(row []string) bool {
	_, _, _, ok := c.parse(row)
	return ok
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
