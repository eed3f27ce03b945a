package proprietary

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RMahshie/unifra/pkg/models"
)

// layouts is ordered; Sniff tries signatures in this order
var layouts = []*Layout{omicronLayout, dobleLayout, meggerLayout, newtons4thLayout}

// Layouts returns every supported vendor layout
func Layouts() []*Layout {
	out := make([]*Layout, len(layouts))
	copy(out, layouts)
	return out
}

// ByName returns the layout for a vendor tag
func ByName(name string) (*Layout, error) {
	for _, l := range layouts {
		if strings.EqualFold(l.Vendor, name) {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: no binary layout named %q", models.ErrUnsupportedFormat, name)
}

// Sniff returns the layout whose signature opens data
func Sniff(data []byte) (*Layout, error) {
	for _, l := range layouts {
		if bytes.HasPrefix(data, []byte(l.Signature)) {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: no vendor signature matched", models.ErrSignatureMismatch)
}

// DecodeFile reads and decodes a vendor file at path
func (l *Layout) DecodeFile(path string) (*models.Record, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return l.Decode(filepath.Base(path), data)
}

// EncodeFile writes rec to path in the vendor layout
func (l *Layout) EncodeFile(rec *models.Record, path string) error {
	data, err := l.Encode(rec)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Sync()
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
