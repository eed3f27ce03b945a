package models

import "errors"

// Ingestion errors. Codecs and the pipeline wrap these with context;
// callers match them with errors.Is.
var (
	// ErrSignatureMismatch indicates a binary header does not carry the expected vendor signature.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrUnsupportedFormat indicates the detector could not classify the input.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrMalformedRecord indicates a missing field, a length mismatch or an undecodable payload.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInsufficientData indicates fewer than MinPoints usable points.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotFound indicates the input file or stored record does not exist.
	ErrNotFound = errors.New("not found")
)
