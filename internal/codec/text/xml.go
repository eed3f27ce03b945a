package text

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/RMahshie/unifra/pkg/models"
)

var (
	xmlContainerTags = []string{"MeasurementData", "Data", "FrequencyResponse", "FRA_Data", "Measurements", "Points", "Samples"}
	xmlContainerHint = []string{"freq", "data", "measurement"}
	xmlPointTags     = []string{"Point", "DataPoint", "Sample", "Measurement"}

	xmlFrequencyTags = []string{"Frequency", "Freq", "F", "Hz"}
	xmlMagnitudeTags = []string{"Magnitude", "Mag", "Amplitude", "dB", "Gain"}
	xmlPhaseTags     = []string{"Phase", "Angle", "Degrees", "Deg"}

	xmlFrequencyArrays = []string{"Frequencies", "FrequencyArray", "F_Array"}
	xmlMagnitudeArrays = []string{"Magnitudes", "MagnitudeArray", "Mag_Array"}
	xmlPhaseArrays     = []string{"Phases", "PhaseArray", "Phase_Array"}

	xmlAssetTags = []string{"Asset", "Transformer", "Equipment", "Device"}
	xmlTestTags  = []string{"Test", "TestInfo", "Measurement", "TestConditions"}

	// array separators in preference order
	xmlSeparators = []string{",", ";", " ", "\t", "\n"}
)

var firstDecimal = regexp.MustCompile(`[\d.]+`)

// element is a namespace-free XML tree node
type element struct {
	name     string
	attrs    map[string]string
	text     string
	children []*element
}

// find returns the first descendant, in document order, with the exact local name
func (e *element) find(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant with the exact local name
func (e *element) findAll(name string) []*element {
	var out []*element
	for _, c := range e.children {
		if c.name == name {
			out = append(out, c)
		}
		out = append(out, c.findAll(name)...)
	}
	return out
}

// walk visits e and its descendants depth first until fn returns false
func (e *element) walk(fn func(*element) bool) bool {
	if !fn(e) {
		return false
	}
	for _, c := range e.children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

// field looks a value element up by any of names: a direct child whose name
// matches case-insensitively, then any descendant whose name ends with it.
func (e *element) field(names ...string) *element {
	for _, name := range names {
		for _, c := range e.children {
			if strings.EqualFold(c.name, name) {
				return c
			}
		}
		suffix := strings.ToLower(name)
		var hit *element
		for _, c := range e.children {
			c.walk(func(n *element) bool {
				if strings.HasSuffix(strings.ToLower(n.name), suffix) {
					hit = n
					return false
				}
				return true
			})
			if hit != nil {
				return hit
			}
		}
	}
	return nil
}

// value returns the element's text, or its value attribute when the text is blank
func (e *element) value() string {
	if e == nil {
		return ""
	}
	if e.text != "" {
		return e.text
	}
	return strings.TrimSpace(e.attrs["value"])
}

func parseElementTree(data []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var root *element
	var stack []*element
	var text []*strings.Builder
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				el.attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
			text = append(text, &strings.Builder{})
		case xml.CharData:
			if len(text) > 0 {
				text[len(text)-1].Write(t)
			}
		case xml.EndElement:
			stack[len(stack)-1].text = strings.TrimSpace(text[len(text)-1].String())
			stack = stack[:len(stack)-1]
			text = text[:len(text)-1]
		}
	}
	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	return root, nil
}

// XML decodes XML exports with unknown schemas
type XML struct {
	now func() time.Time
}

// NewXML creates an XML decoder
func NewXML() *XML {
	return &XML{now: time.Now}
}

// Decode parses an XML export. Fewer than MinPoints points is ErrMalformedRecord.
func (x *XML) Decode(name string, data []byte) (*models.Record, error) {
	root, err := parseElementTree(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid xml: %v", models.ErrMalformedRecord, err)
	}
	now := x.now()

	meta := parseXMLMetadata(root, now)

	container := findContainer(root)
	if container == nil {
		return nil, fmt.Errorf("%w: no measurement data element", models.ErrMalformedRecord)
	}

	var s sweep
	if points := findPoints(container); len(points) > 0 {
		s = readPoints(points)
	} else {
		s = readArrays(container)
	}
	if len(s.freqs) < models.MinPoints {
		return nil, fmt.Errorf("%w: %d points found, need at least %d", models.ErrMalformedRecord, len(s.freqs), models.MinPoints)
	}

	return buildRecord(name, FormatXML, len(data), meta, s, now), nil
}

func findContainer(root *element) *element {
	for _, tag := range xmlContainerTags {
		if c := root.find(tag); c != nil {
			return c
		}
	}
	var hit *element
	root.walk(func(e *element) bool {
		if containsAny(strings.ToLower(e.name), xmlContainerHint...) {
			hit = e
			return false
		}
		return true
	})
	return hit
}

func findPoints(container *element) []*element {
	for _, tag := range xmlPointTags {
		if points := container.findAll(tag); len(points) > 0 {
			return points
		}
	}
	return nil
}

// readPoints extracts one sample per point element; points that do not parse are skipped
func readPoints(points []*element) sweep {
	var s sweep
	withPhase := 0
	for _, p := range points {
		freqEl := p.field(xmlFrequencyTags...)
		magEl := p.field(xmlMagnitudeTags...)
		if freqEl == nil || magEl == nil {
			continue
		}
		f, err := parseNumber(freqEl.value())
		if err != nil {
			continue
		}
		m, err := parseNumber(magEl.value())
		if err != nil {
			continue
		}
		phase := 0.0
		hasPhase := false
		if phaseEl := p.field(xmlPhaseTags...); phaseEl != nil {
			if phase, err = parseNumber(phaseEl.value()); err != nil {
				continue
			}
			hasPhase = true
		}
		s.add(f, m)
		s.phases = append(s.phases, phase)
		if hasPhase {
			withPhase++
		}
	}
	if withPhase != len(s.freqs) {
		s.phases = nil
	}
	return s
}

// readArrays handles exports that store each series as one delimited string
func readArrays(container *element) sweep {
	freqEl := firstOf(container, xmlFrequencyArrays)
	magEl := firstOf(container, xmlMagnitudeArrays)
	if freqEl == nil || magEl == nil {
		return sweep{}
	}

	sep := ""
	for _, candidate := range xmlSeparators {
		if strings.Contains(freqEl.text, candidate) {
			sep = candidate
			break
		}
	}
	if sep == "" {
		return sweep{}
	}

	freqs, err := splitNumbers(freqEl.text, sep)
	if err != nil {
		return sweep{}
	}
	mags, err := splitNumbers(magEl.text, sep)
	if err != nil || len(mags) != len(freqs) {
		return sweep{}
	}
	s := sweep{freqs: freqs, mags: mags}
	if phaseEl := firstOf(container, xmlPhaseArrays); phaseEl != nil {
		if phases, err := splitNumbers(phaseEl.text, sep); err == nil && len(phases) == len(freqs) {
			s.phases = phases
		}
	}
	return s
}

func firstOf(e *element, names []string) *element {
	for _, name := range names {
		if found := e.find(name); found != nil {
			return found
		}
	}
	return nil
}

func splitNumbers(s, sep string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseXMLMetadata(root *element, now time.Time) header {
	h := defaultHeader(now)

	if asset := firstOf(root, xmlAssetTags); asset != nil {
		setIfPresent(&h.assetID, asset.field("ID", "AssetID", "SerialNumber", "Name"))
		setIfPresent(&h.manufacturer, asset.field("Manufacturer", "Make", "Brand"))
		setIfPresent(&h.model, asset.field("Model", "Type", "ModelNumber"))
		if v, ok := leadingDecimal(asset.field("Rating", "MVA", "Power", "Capacity")); ok {
			h.ratingMVA = v
		}
	}

	if test := firstOf(root, xmlTestTags); test != nil {
		setIfPresent(&h.date, test.field("Date", "TestDate", "DateTime", "Timestamp"))
		setIfPresent(&h.instrument, test.field("Instrument", "Device", "Analyzer", "Equipment"))
		if v, ok := leadingDecimal(test.field("Voltage", "TestVoltage", "ExcitationVoltage")); ok {
			h.testVoltage = v
		}
	}
	return h
}

func setIfPresent(dst *string, e *element) {
	if v := e.value(); v != "" {
		*dst = v
	}
}

// leadingDecimal parses the first run of digits and dots, so "200 MVA" reads as 200
func leadingDecimal(e *element) (float64, bool) {
	m := firstDecimal.FindString(e.value())
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}
