package proprietary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/RMahshie/unifra/pkg/models"
)

// Kind is the wire type of a schema field
type Kind int

const (
	// Fixed is a zero-padded byte slot of Width bytes
	Fixed Kind = iota
	// Pascal is a one-byte length prefix followed by the text, padded to Width bytes in total
	Pascal
	U16
	U32
	U64
	F32
	F64
)

// Field is one entry of a layout. Width is only read for Fixed and Pascal.
type Field struct {
	Name  string
	Kind  Kind
	Width int
}

// Size returns the number of bytes the field occupies on the wire
func (f Field) Size() int {
	switch f.Kind {
	case Fixed, Pascal:
		return f.Width
	case U16:
		return 2
	case U32, F32:
		return 4
	case U64, F64:
		return 8
	}
	return 0
}

// Schema is an ordered list of fields sharing one byte order
type Schema struct {
	Order  binary.ByteOrder
	Fields []Field
}

// Size returns the encoded size of one instance of the schema
func (s Schema) Size() int {
	n := 0
	for _, f := range s.Fields {
		n += f.Size()
	}
	return n
}

// Values holds decoded header fields keyed by field name
type Values struct {
	text   map[string]string
	uints  map[string]uint64
	floats map[string]float64
}

// NewValues returns an empty value set
func NewValues() Values {
	return Values{
		text:   map[string]string{},
		uints:  map[string]uint64{},
		floats: map[string]float64{},
	}
}

func (v Values) Text(name string) string { return v.text[name] }
func (v Values) Uint(name string) uint64 { return v.uints[name] }
func (v Values) Float(name string) float64 { return v.floats[name] }
func (v Values) SetText(name, s string) { v.text[name] = s }
func (v Values) SetUint(name string, u uint64) { v.uints[name] = u }
func (v Values) SetFloat(name string, f float64) { v.floats[name] = f }

// cursor walks a byte slice and reports short reads as malformed records
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) take(n int, what string) ([]byte, error) {
	if n < 0 || len(c.buf)-c.off < n {
		return nil, fmt.Errorf("%w: truncated at %s (offset %d, need %d bytes, have %d)",
			models.ErrMalformedRecord, what, c.off, n, len(c.buf)-c.off)
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) remaining() int {
	return len(c.buf) - c.off
}

// decode reads one instance of the schema
func (s Schema) decode(c *cursor) (Values, error) {
	v := NewValues()
	for _, f := range s.Fields {
		raw, err := c.take(f.Size(), f.Name)
		if err != nil {
			return v, err
		}
		switch f.Kind {
		case Fixed:
			v.text[f.Name] = trimSlot(raw)
		case Pascal:
			n := int(raw[0])
			if n > len(raw)-1 {
				n = len(raw) - 1
			}
			v.text[f.Name] = trimSlot(raw[1 : 1+n])
		case U16:
			v.uints[f.Name] = uint64(s.Order.Uint16(raw))
		case U32:
			v.uints[f.Name] = uint64(s.Order.Uint32(raw))
		case U64:
			v.uints[f.Name] = s.Order.Uint64(raw)
		case F32:
			v.floats[f.Name] = float64(math.Float32frombits(s.Order.Uint32(raw)))
		case F64:
			v.floats[f.Name] = math.Float64frombits(s.Order.Uint64(raw))
		}
	}
	return v, nil
}

// encode appends one instance of the schema. Missing values encode as zero,
// strings longer than their slot are truncated.
func (s Schema) encode(buf *bytes.Buffer, v Values) {
	for _, f := range s.Fields {
		slot := make([]byte, f.Size())
		switch f.Kind {
		case Fixed:
			copy(slot, truncateUTF8(v.text[f.Name], f.Width))
		case Pascal:
			text := truncateUTF8(v.text[f.Name], f.Width-1)
			slot[0] = byte(len(text))
			copy(slot[1:], text)
		case U16:
			s.Order.PutUint16(slot, uint16(v.uints[f.Name]))
		case U32:
			s.Order.PutUint32(slot, uint32(v.uints[f.Name]))
		case U64:
			s.Order.PutUint64(slot, v.uints[f.Name])
		case F32:
			s.Order.PutUint32(slot, math.Float32bits(float32(v.floats[f.Name])))
		case F64:
			s.Order.PutUint64(slot, math.Float64bits(v.floats[f.Name]))
		}
		buf.Write(slot)
	}
}

// decodeRow reads a numeric-only schema into dst, one value per field in order
func (s Schema) decodeRow(c *cursor, dst []float64) error {
	raw, err := c.take(s.Size(), "data point")
	if err != nil {
		return err
	}
	off := 0
	for i, f := range s.Fields {
		b := raw[off : off+f.Size()]
		off += f.Size()
		switch f.Kind {
		case U16:
			dst[i] = float64(s.Order.Uint16(b))
		case U32:
			dst[i] = float64(s.Order.Uint32(b))
		case U64:
			dst[i] = float64(s.Order.Uint64(b))
		case F32:
			dst[i] = float64(math.Float32frombits(s.Order.Uint32(b)))
		case F64:
			dst[i] = math.Float64frombits(s.Order.Uint64(b))
		}
	}
	return nil
}

// encodeRow appends one numeric-only row
func (s Schema) encodeRow(buf *bytes.Buffer, row []float64) {
	slot := make([]byte, s.Size())
	off := 0
	for i, f := range s.Fields {
		b := slot[off : off+f.Size()]
		off += f.Size()
		switch f.Kind {
		case U16:
			s.Order.PutUint16(b, uint16(row[i]))
		case U32:
			s.Order.PutUint32(b, uint32(row[i]))
		case U64:
			s.Order.PutUint64(b, uint64(row[i]))
		case F32:
			s.Order.PutUint32(b, math.Float32bits(float32(row[i])))
		case F64:
			s.Order.PutUint64(b, math.Float64bits(row[i]))
		}
	}
	buf.Write(slot)
}

// trimSlot strips trailing zero padding and drops bytes that are not valid UTF-8
func trimSlot(raw []byte) string {
	return strings.ToValidUTF8(string(bytes.TrimRight(raw, "\x00")), "")
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
