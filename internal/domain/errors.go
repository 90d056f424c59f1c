package domain

import "errors"

// Structural errors. Data conditions such as missing reference data, incomplete
// aggregation windows or zero weight sums are not errors; they surface as
// no-data values.
var (
	ErrInvalidAxis      = errors.New("invalid axis")
	ErrUnrecognizedAxis = errors.New("unrecognized axis")
	ErrMissingAxis      = errors.New("missing axis")
	ErrGridMismatch     = errors.New("grid mismatch")
	ErrUnknownRegion    = errors.New("unknown region")
	ErrInvalidWeights   = errors.New("invalid weights")
	ErrNotMonthly       = errors.New("time axis is not monthly")
	ErrNotDaily         = errors.New("time axis is not daily")
	ErrInvalidRequest   = errors.New("invalid analysis request")
	ErrDatasetNotFound  = errors.New("dataset not found")
)
