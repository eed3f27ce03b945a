// Package validate checks that a decoded record is complete enough to enter
// normalization.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/RMahshie/unifra/pkg/models"
)

// Validator checks canonical records. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with the record rules registered
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterStructValidation(measurementLengths, models.Measurement{})
	return &Validator{validate: v}
}

// measurementLengths requires parallel arrays; phases may be absent
func measurementLengths(sl validator.StructLevel) {
	m := sl.Current().Interface().(models.Measurement)
	if len(m.Magnitudes) != len(m.Frequencies) {
		sl.ReportError(m.Magnitudes, "magnitudes", "Magnitudes", "eqlen_frequencies", "")
	}
	if len(m.Phases) != 0 && len(m.Phases) != len(m.Frequencies) {
		sl.ReportError(m.Phases, "phases", "Phases", "eqlen_frequencies", "")
	}
}

// Valid reports whether rec passes Check
func (v *Validator) Valid(rec *models.Record) bool {
	return v.Check(rec) == nil
}

// Check returns nil for a usable record, an ErrMalformedRecord for missing
// sections, fields or mismatched arrays, and ErrInsufficientData for short sweeps.
func (v *Validator) Check(rec *models.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: validation panicked: %v", models.ErrMalformedRecord, r)
		}
	}()

	if rec == nil {
		return fmt.Errorf("%w: nil record", models.ErrMalformedRecord)
	}

	if err := v.validate.Struct(rec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", models.ErrMalformedRecord, describe(verrs))
		}
		return fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
	}

	if n := len(rec.Measurement.Frequencies); n < models.MinPoints {
		return fmt.Errorf("%w: %d points, need at least %d", models.ErrInsufficientData, n, models.MinPoints)
	}
	return nil
}

func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := strings.TrimPrefix(fe.Namespace(), "Record.")
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "eqlen_frequencies":
			parts = append(parts, field+" length does not match frequencies")
		default:
			parts = append(parts, field+" failed "+fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}
