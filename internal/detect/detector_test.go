package detect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RMahshie/unifra/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
		data     string
		want     Detection
	}{
		{
			name:     "frx extension wins over content",
			filename: "x.frx",
			data:     "freq,mag\n1,2\n",
			want:     Detection{Format: Omicron, Rule: RuleExtension},
		},
		{
			name:     "extension is case-insensitive",
			filename: "SWEEP.N4F",
			data:     "anything",
			want:     Detection{Format: Newtons4th, Rule: RuleExtension},
		},
		{
			name:     "txt is csv",
			filename: "export.txt",
			data:     "<xml/>",
			want:     Detection{Format: CSV, Rule: RuleExtension},
		},
		{
			name: "signature anywhere in the window",
			data: strings.Repeat("\x00", 200) + "DOBLE_M4000_FMT1" + "\x01\x02",
			want: Detection{Format: Doble, Rule: RuleSignature},
		},
		{
			name:     "unknown extension falls through to signature",
			filename: "capture.bin",
			data:     "MEGGER_FRAX_150\x00\x00",
			want:     Detection{Format: Megger, Rule: RuleSignature},
		},
		{
			name: "xml declaration",
			data: "  <?xml version=\"1.0\"?><Root/>",
			want: Detection{Format: XML, Rule: RuleContent},
		},
		{
			name: "angle bracket early in text",
			data: "garbage <Root></Root>",
			want: Detection{Format: XML, Rule: RuleContent},
		},
		{
			name: "json object",
			data: `{"frequencies": [1, 2, 3], "magnitudes": [4, 5, 6]}`,
			want: Detection{Format: JSON, Rule: RuleContent},
		},
		{
			name: "truncated json is classified as csv",
			data: `{"frequencies": [1, 2, 3, 4, 5, 6, 7`,
			want: Detection{Format: CSV, Rule: RuleContent},
		},
		{
			name: "delimited text",
			data: "1;2\n3;4\n5;6\n7;8\n9;10\n11;12\n",
			want: Detection{Format: CSV, Rule: RuleContent},
		},
		{
			name: "digits and newlines",
			data: "100 -3.2\n200 -3.4\n",
			want: Detection{Format: CSV, Rule: RuleFallback},
		},
		{
			name: "invalid utf-8",
			data: "\xff\xfe\xfd\x00\x01",
			want: Detection{Format: UnknownBinary, Rule: RuleFallback},
		},
		{
			name: "plain words",
			data: "hello there",
			want: Detection{Format: UnknownBinary, Rule: RuleFallback},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Bytes(tc.filename, []byte(tc.data))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBytes_SignatureOutsideWindowIgnored(t *testing.T) {
	data := strings.Repeat("a", headerWindow) + "OMICRON_FRX"
	got, err := Bytes("", []byte(data))
	require.NoError(t, err)
	assert.NotEqual(t, Omicron, got.Format)
}

func TestBytes_RuneCutAtWindowBoundary(t *testing.T) {
	// 1023 ASCII bytes then a two-byte rune straddling the boundary
	data := strings.Repeat("1,2\n", 255) + "abc" + "é" + "more"
	require.Greater(t, len(data), headerWindow)

	got, err := Bytes("", []byte(data))
	require.NoError(t, err)
	assert.Equal(t, CSV, got.Format)
}

func TestBytes_Empty(t *testing.T) {
	_, err := Bytes("a.csv", nil)
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "sweep")
	content := append([]byte("DOBLE_M4000_FMT1"), make([]byte, 4096)...)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	got, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, Detection{Format: Doble, Rule: RuleSignature}, got)

	_, err = File(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, models.ErrNotFound)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = File(empty)
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestIsBinary(t *testing.T) {
	assert.True(t, IsBinary(Omicron))
	assert.True(t, IsBinary(UnknownBinary))
	assert.False(t, IsBinary(CSV))
	assert.False(t, IsBinary(JSON))
}

func TestExtensions_ReturnsCopy(t *testing.T) {
	exts := Extensions()
	require.Len(t, exts, 8)
	exts[0].Format = "mutated"
	assert.Equal(t, CSV, Extensions()[0].Format)
}
