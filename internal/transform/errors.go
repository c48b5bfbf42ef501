package transform

import "errors"

var (
	// ErrMissingColumn is returned when a required column is absent from
	// every row of a batch. An empty batch fails this way too.
	ErrMissingColumn = errors.New("missing required column")

	// ErrInvalidValue is returned when a value cannot be coerced to its
	// warehouse type.
	ErrInvalidValue = errors.New("invalid value")

	// ErrEmptyReference is returned when a lookup join finds no objects in
	// the referenced raw table.
	ErrEmptyReference = errors.New("empty reference table")
)

// IsStructural reports whether err means the input itself is unusable, as
// opposed to a failure reaching a collaborator.
func IsStructural(err error) bool {
	return errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrEmptyReference)
}
