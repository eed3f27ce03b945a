// Package detect classifies an input file into one of the supported FRA formats
// using its extension, a vendor signature, or the shape of its text.
package detect

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/RMahshie/unifra/pkg/models"
)

// Format tags
const (
	CSV           = "csv"
	XML           = "xml"
	JSON          = "json"
	Omicron       = "omicron"
	Doble         = "doble"
	Megger        = "megger"
	Newtons4th    = "newtons4th"
	UnknownBinary = "unknown-binary"
)

// Rule names which check classified the input
type Rule string

const (
	RuleExtension Rule = "extension"
	RuleSignature Rule = "signature"
	RuleContent   Rule = "content"
	RuleFallback  Rule = "fallback"
)

const (
	// headerWindow is how much of the input the detector looks at
	headerWindow  = 1024
	xmlProbeRunes = 100
	jsonProbe     = 512
	minDelimiters = 5
)

// Detection is the outcome of classifying one input
type Detection struct {
	Format string
	Rule   Rule
}

// Extension pairs a file extension with its format tag
type Extension struct {
	Ext    string
	Format string
}

var extensions = []Extension{
	{".csv", CSV},
	{".txt", CSV},
	{".xml", XML},
	{".json", JSON},
	{".frx", Omicron},
	{".dbl", Doble},
	{".meg", Megger},
	{".n4f", Newtons4th},
}

var signatures = []struct {
	marker []byte
	format string
}{
	{[]byte("OMICRON_FRX"), Omicron},
	{[]byte("DOBLE_M4000"), Doble},
	{[]byte("MEGGER_FRAX"), Megger},
	{[]byte("N4TH_ANALYZER"), Newtons4th},
}

var csvDelimiters = []string{",", ";", "\t", "|"}

// contentRule inspects the decoded text window
type contentRule struct {
	format string
	rule   Rule
	match  func(text string) bool
}

var contentRules = []contentRule{
	{XML, RuleContent, looksLikeXML},
	{JSON, RuleContent, looksLikeJSON},
	{CSV, RuleContent, hasDelimiters},
	{CSV, RuleFallback, hasDigitAndNewline},
}

// Extensions returns the extension table in lookup order
func Extensions() []Extension {
	out := make([]Extension, len(extensions))
	copy(out, extensions)
	return out
}

// IsBinary reports whether a format tag names a vendor binary layout
func IsBinary(format string) bool {
	switch format {
	case Omicron, Doble, Megger, Newtons4th, UnknownBinary:
		return true
	}
	return false
}

// File classifies the file at path, reading at most the header window
func File(path string) (Detection, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Detection{}, fmt.Errorf("%w: %s", models.ErrNotFound, path)
	}
	if err != nil {
		return Detection{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	// one byte past the window tells Bytes the input was cut
	head := make([]byte, headerWindow+1)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Detection{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Bytes(filepath.Base(path), head[:n])
}

// Bytes classifies an in-memory input. name may be empty.
func Bytes(name string, data []byte) (Detection, error) {
	if len(data) == 0 {
		return Detection{}, fmt.Errorf("%w: empty input", models.ErrUnsupportedFormat)
	}

	// Step 1: extension
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if e.Ext == ext {
			return Detection{Format: e.Format, Rule: RuleExtension}, nil
		}
	}

	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}

	// Step 2: vendor signature anywhere in the window
	for _, s := range signatures {
		if bytes.Contains(window, s.marker) {
			return Detection{Format: s.format, Rule: RuleSignature}, nil
		}
	}

	// Step 3: text heuristics
	if text, ok := decodeWindow(window, len(data) > headerWindow); ok {
		for _, r := range contentRules {
			if r.match(text) {
				return Detection{Format: r.format, Rule: r.rule}, nil
			}
		}
	}

	// Step 4: hand over to the binary decoders
	return Detection{Format: UnknownBinary, Rule: RuleFallback}, nil
}

// decodeWindow returns the window as text when it is valid UTF-8. A rune cut
// by the window boundary is dropped rather than failing the check.
func decodeWindow(window []byte, truncated bool) (string, bool) {
	if utf8.Valid(window) {
		return string(window), true
	}
	if !truncated {
		return "", false
	}
	for cut := 1; cut < utf8.UTFMax && cut <= len(window); cut++ {
		head := window[:len(window)-cut]
		if utf8.Valid(head) && !utf8.FullRune(window[len(window)-cut:]) {
			return string(head), true
		}
	}
	return "", false
}

func looksLikeXML(text string) bool {
	if strings.HasPrefix(strings.TrimSpace(text), "<?xml") {
		return true
	}
	probe := text
	if utf8.RuneCountInString(probe) > xmlProbeRunes {
		probe = string([]rune(probe)[:xmlProbeRunes])
	}
	return strings.Contains(probe, "<")
}

func looksLikeJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return false
	}
	probe := text
	if len(probe) > jsonProbe {
		probe = probe[:jsonProbe]
	}
	return json.Valid([]byte(probe))
}

func hasDelimiters(text string) bool {
	for _, d := range csvDelimiters {
		if strings.Count(text, d) > minDelimiters {
			return true
		}
	}
	return false
}

func hasDigitAndNewline(text string) bool {
	return strings.Contains(text, "\n") && strings.IndexFunc(text, unicode.IsDigit) >= 0
}
