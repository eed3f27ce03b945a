// Package codec maps detector format tags to the decoders that read them.
package codec

import (
	"fmt"
	"sort"

	"github.com/RMahshie/unifra/internal/codec/proprietary"
	"github.com/RMahshie/unifra/internal/codec/text"
	"github.com/RMahshie/unifra/pkg/models"
)

// Decoder turns the bytes of one input file into a canonical record
type Decoder interface {
	Decode(name string, data []byte) (*models.Record, error)
}

// Registry maps format tags to decoders
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Default returns a registry holding every text and vendor decoder
func Default() *Registry {
	r := NewRegistry()
	r.Register(text.FormatCSV, text.NewCSV())
	r.Register(text.FormatXML, text.NewXML())
	r.Register(text.FormatJSON, text.NewJSON())
	for _, l := range proprietary.Layouts() {
		r.Register(l.Name(), l)
	}
	return r
}

// Register adds or replaces the decoder for a format tag
func (r *Registry) Register(format string, d Decoder) {
	r.decoders[format] = d
}

// Lookup returns the decoder for a format tag
func (r *Registry) Lookup(format string) (Decoder, error) {
	d, ok := r.decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: no decoder for %q", models.ErrUnsupportedFormat, format)
	}
	return d, nil
}

// Formats returns the registered format tags in sorted order
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.decoders))
	for name := range r.decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
