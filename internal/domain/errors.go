package domain

import "errors"

var (
	// ErrUnitNotFound is returned when no unit matches the requested name.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrPersonNotResolved is returned when an identifier matches no user.
	ErrPersonNotResolved = errors.New("person not resolved")
	// ErrMalformedMonth is returned for month filters outside the YYYY-MM shape.
	ErrMalformedMonth = errors.New("malformed month filter")
	// ErrMissingFallback signals that no Miscellaneous activity is configured.
	ErrMissingFallback = errors.New("activity catalog has no Miscellaneous fallback")
	// ErrDelegateFailure wraps errors returned by the summary delegate.
	ErrDelegateFailure = errors.New("summary delegate failed")
	// ErrIndicatorNotFound is returned when an indicator code is unknown and creation is disabled.
	ErrIndicatorNotFound = errors.New("success indicator not found")
	// ErrRecordNotFound is returned when a source record cannot be located.
	ErrRecordNotFound = errors.New("source record not found")
	// ErrTemplateMissing is returned when the IPMT workbook template cannot be opened.
	ErrTemplateMissing = errors.New("ipmt template missing")
	// ErrUnknownTarget is returned by ingestion for unrecognised entity types.
	ErrUnknownTarget = errors.New("unknown import target")
)
