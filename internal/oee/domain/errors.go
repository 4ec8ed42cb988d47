package oee

import "errors"

var (
	// ErrZeroTime is returned when a required timestamp is zero.
	ErrZeroTime = errors.New("oee: zero time")
	// ErrInvalidWindow is returned when a query window is empty or inverted.
	ErrInvalidWindow = errors.New("oee: invalid window")
	// ErrInvalidEntityType is returned when the entity type is unsupported.
	ErrInvalidEntityType = errors.New("oee: invalid entity type")
	// ErrEmptyEntityRef is returned when an entity reference is required but empty.
	ErrEmptyEntityRef = errors.New("oee: empty entity ref")
	// ErrInvalidEntityRef is returned when a composite entity reference cannot be split.
	ErrInvalidEntityRef = errors.New("oee: invalid entity ref")
	// ErrInvalidDayKey is returned when a day key cannot be parsed.
	ErrInvalidDayKey = errors.New("oee: invalid day key")
	// ErrNilLocation is returned when a timezone is required but missing.
	ErrNilLocation = errors.New("oee: nil location")
	// ErrNegativeTotals is returned when a rollup carries negative sums.
	ErrNegativeTotals = errors.New("oee: negative totals")
	// ErrInvalidRollupDocument is returned when a stored rollup payload matches no known shape.
	ErrInvalidRollupDocument = errors.New("oee: invalid rollup document")
)
